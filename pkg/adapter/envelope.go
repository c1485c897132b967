// Package adapter turns the list payloads of the events, notes and invoice
// endpoints into canonical calendar items.
package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Shape records which envelope a list arrived in.
type Shape string

const (
	ShapeNull    Shape = "null"
	ShapeArray   Shape = "array"
	ShapeResults Shape = "results"
	ShapeItems   Shape = "items"
	ShapeData    Shape = "data"
)

// envelopeKeys are the object keys that may carry the list, in priority order.
var envelopeKeys = []Shape{ShapeResults, ShapeItems, ShapeData}

// ErrUnexpectedShape is returned for payloads that are neither a bare array
// nor an object wrapping one under a known key.
var ErrUnexpectedShape = errors.New("adapter: unexpected list shape")

// List is the canonical list envelope every endpoint is decoded into.
type List struct {
	Items []json.RawMessage
	Shape Shape
}

// DecodeList unwraps body into a List.
func DecodeList(body []byte) (List, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return List{Shape: ShapeNull}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return List{}, fmt.Errorf("adapter: decode array: %w", err)
		}
		return List{Items: items, Shape: ShapeArray}, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return List{}, fmt.Errorf("adapter: decode object: %w", err)
		}
		for _, key := range envelopeKeys {
			raw, ok := obj[string(key)]
			if !ok {
				continue
			}
			raw = bytes.TrimSpace(raw)
			if bytes.Equal(raw, []byte("null")) {
				return List{Shape: key}, nil
			}
			if len(raw) == 0 || raw[0] != '[' {
				return List{}, fmt.Errorf("%w: %q is not an array", ErrUnexpectedShape, key)
			}
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return List{}, fmt.Errorf("adapter: decode %q: %w", key, err)
			}
			return List{Items: items, Shape: key}, nil
		}
		return List{}, fmt.Errorf("%w: object keys %v", ErrUnexpectedShape, keysOf(obj))
	}
	return List{}, fmt.Errorf("%w: %s", ErrUnexpectedShape, preview(trimmed))
}

func keysOf(obj map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func preview(b []byte) string {
	const max = 32
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
