package adapter

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

const dateLayout = "2006-01-02"

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// str returns the first key holding a scalar, rendered as a string.
func str(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := scalar(obj[k]); ok && s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// ident reads an id that may be sent bare or as a nested {"id": ...} object.
func ident(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case map[string]any:
			if s := str(t, "id"); s != "" {
				return s
			}
		default:
			if s, ok := scalar(t); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func boolean(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b
			}
		case json.Number:
			if n, err := t.Int64(); err == nil {
				return n != 0
			}
		}
	}
	return false
}

func number(obj map[string]any, keys ...string) float64 {
	for _, k := range keys {
		s, ok := scalar(obj[k])
		if !ok || s == "" {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

// parseTime reads RFC3339 instants, zone-less date-times in loc, and bare
// dates. dateOnly reports the latter.
func parseTime(s string, loc *time.Location) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), false, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, true
		}
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}
