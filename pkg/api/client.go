// Package api is the HTTP client for the organization-scoped ERP endpoints the
// agenda reads and mutates.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tableflip.dev/agenda/pkg/calendar"
)

const defaultTimeout = 15 * time.Second

// ErrNoTenant is returned by New when no organization is configured. Every
// endpoint is scoped by it, so the client refuses to guess.
var ErrNoTenant = errors.New("api: organization id is required")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Org        string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to /api/orgs/{org}/... on the configured base URL.
type Client struct {
	base   *url.URL
	org    string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	org := strings.TrimSpace(opts.Org)
	if org == "" {
		return nil, ErrNoTenant
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", base.Scheme)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{base: base, org: org, token: opts.Token, http: hc, logger: logger}, nil
}

// Org returns the organization the client is scoped to.
func (c *Client) Org() string { return c.org }

// ListParams narrows a list-by-range request.
type ListParams struct {
	Range     calendar.Range
	Query     string
	Important bool
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	v.Set("start", p.Range.Start.Format(time.RFC3339))
	v.Set("end", p.Range.End.Format(time.RFC3339))
	if q := strings.TrimSpace(p.Query); q != "" {
		v.Set("query", q)
	}
	if p.Important {
		v.Set("important", "true")
	}
	return v
}

// ListEvents returns the raw events list for the range.
func (c *Client) ListEvents(ctx context.Context, p ListParams) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "events/", p.values(), nil)
}

// ListNotes returns the raw list of notes that carry a due date in the range.
func (c *Client) ListNotes(ctx context.Context, p ListParams) ([]byte, error) {
	v := p.values()
	v.Set("has_due_date", "true")
	return c.do(ctx, http.MethodGet, "notes/", v, nil)
}

// ListOverlays returns the raw list of invoices falling due in the range.
// Overlays ignore the importance filter.
func (c *Client) ListOverlays(ctx context.Context, p ListParams) ([]byte, error) {
	p.Important = false
	return c.do(ctx, http.MethodGet, "invoices/due/", p.values(), nil)
}

// Create posts a new event or note.
func (c *Client) Create(ctx context.Context, kind calendar.Kind, body map[string]any) ([]byte, error) {
	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, collection+"/", nil, body)
}

// Patch applies a partial update to an event or note.
func (c *Client) Patch(ctx context.Context, kind calendar.Kind, id string, body map[string]any) ([]byte, error) {
	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPatch, collection+"/"+url.PathEscape(id)+"/", nil, body)
}

// Delete removes an event or note.
func (c *Client) Delete(ctx context.Context, kind calendar.Kind, id string) error {
	collection, err := collectionFor(kind)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, collection+"/"+url.PathEscape(id)+"/", nil, nil)
	return err
}

func collectionFor(kind calendar.Kind) (string, error) {
	switch kind {
	case calendar.KindEvent:
		return "events", nil
	case calendar.KindNote:
		return "notes", nil
	case calendar.KindOverlay:
		return "", calendar.ErrReadOnly
	}
	return "", fmt.Errorf("api: unknown kind %q", kind)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/api/orgs/" + url.PathEscape(c.org) + "/" + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "err", err)
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read %s %s: %w", method, path, err)
	}
	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   summarize(data),
		}
	}
	return data, nil
}

// summarize keeps error bodies short enough for a status line.
func summarize(body []byte) string {
	s := strings.TrimSpace(string(body))
	const max = 200
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
