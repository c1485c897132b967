// Package enrich memoizes the cross-entity lookups the hover preview needs:
// contact display names and invoice summaries keyed by id.
package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"tableflip.dev/agenda/pkg/api"
)

const (
	DefaultSize = 512
	DefaultTTL  = 10 * time.Minute
)

// Kind names the entity a lookup resolves.
type Kind string

const (
	KindContact Kind = "contact"
	KindInvoice Kind = "invoice"
)

// InvoiceSummary is the invoice digest shown in previews.
type InvoiceSummary struct {
	Number        string
	Total         float64
	Currency      string
	PaymentStatus string
}

// String renders "F-001 · 99.90 EUR · unpaid", omitting empty parts.
func (s InvoiceSummary) String() string {
	parts := make([]string, 0, 3)
	if s.Number != "" {
		parts = append(parts, s.Number)
	}
	if s.Total != 0 || s.Currency != "" {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("%.2f %s", s.Total, s.Currency)))
	}
	if s.PaymentStatus != "" {
		parts = append(parts, s.PaymentStatus)
	}
	return strings.Join(parts, " · ")
}

// Value is a resolved entry. Name is set for contacts, Invoice for invoices.
type Value struct {
	Kind    Kind
	ID      string
	Name    string
	Invoice InvoiceSummary
}

// Label is the single line a preview shows for the value.
func (v Value) Label() string {
	if v.Kind == KindInvoice {
		return v.Invoice.String()
	}
	return v.Name
}

// Lookup is the remote side of the cache. *api.Client satisfies it.
type Lookup interface {
	Contact(ctx context.Context, id string) (api.Contact, error)
	Invoice(ctx context.Context, id string) (api.Invoice, error)
}

// Options configures a Cache.
type Options struct {
	Size   int
	TTL    time.Duration
	Logger *slog.Logger
}

type key struct {
	kind Kind
	id   string
}

func (k key) String() string { return string(k.kind) + ":" + k.id }

// Cache is a bounded, expiring memo in front of a Lookup. Concurrent misses
// for one key share a single remote call. Failures are never stored.
type Cache struct {
	lookup Lookup
	lru    *expirable.LRU[key, Value]
	group  singleflight.Group
	logger *slog.Logger
}

// New returns a Cache over lookup.
func New(lookup Lookup, opts Options) *Cache {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{
		lookup: lookup,
		lru:    expirable.NewLRU[key, Value](opts.Size, nil, opts.TTL),
		logger: logger,
	}
}

// Fallback is the placeholder shown when an entity cannot be resolved.
func Fallback(id string) string {
	return "#" + id
}

// GetOrFetch returns the cached value for (kind, id), resolving it on a miss.
func (c *Cache) GetOrFetch(ctx context.Context, kind Kind, id string) (Value, error) {
	k := key{kind: kind, id: strings.TrimSpace(id)}
	if k.id == "" {
		return Value{}, fmt.Errorf("enrich: empty %s id", kind)
	}
	if v, ok := c.lru.Get(k); ok {
		return v, nil
	}
	res, err, shared := c.group.Do(k.String(), func() (any, error) {
		if v, ok := c.lru.Get(k); ok {
			return v, nil
		}
		// Shared by every waiter, so one caller giving up must not fail the rest.
		v, err := c.fetch(context.WithoutCancel(ctx), k)
		if err != nil {
			return Value{}, err
		}
		c.lru.Add(k, v)
		return v, nil
	})
	if err != nil {
		c.logger.Debug("enrich: lookup failed", "key", k.String(), "shared", shared, "err", err)
		return Value{}, err
	}
	return res.(Value), nil
}

func (c *Cache) fetch(ctx context.Context, k key) (Value, error) {
	switch k.kind {
	case KindContact:
		contact, err := c.lookup.Contact(ctx, k.id)
		if err != nil {
			return Value{}, fmt.Errorf("enrich: contact %s: %w", k.id, err)
		}
		return Value{Kind: KindContact, ID: k.id, Name: contact.DisplayName()}, nil
	case KindInvoice:
		inv, err := c.lookup.Invoice(ctx, k.id)
		if err != nil {
			return Value{}, fmt.Errorf("enrich: invoice %s: %w", k.id, err)
		}
		return Value{Kind: KindInvoice, ID: k.id, Invoice: InvoiceSummary{
			Number:        inv.Number,
			Total:         float64(inv.Total),
			Currency:      inv.Currency,
			PaymentStatus: inv.PaymentStatus,
		}}, nil
	}
	return Value{}, fmt.Errorf("enrich: unknown kind %q", k.kind)
}

// ContactName resolves a contact display name. On failure it returns the
// fallback label together with the error.
func (c *Cache) ContactName(ctx context.Context, id string) (string, error) {
	v, err := c.GetOrFetch(ctx, KindContact, id)
	if err != nil {
		return Fallback(id), err
	}
	if v.Name == "" {
		return Fallback(id), nil
	}
	return v.Name, nil
}

// Invoice resolves an invoice summary. On failure the summary carries the
// fallback label as its number.
func (c *Cache) Invoice(ctx context.Context, id string) (InvoiceSummary, error) {
	v, err := c.GetOrFetch(ctx, KindInvoice, id)
	if err != nil {
		return InvoiceSummary{Number: Fallback(id)}, err
	}
	if v.Invoice.Number == "" {
		v.Invoice.Number = Fallback(id)
	}
	return v.Invoice, nil
}

// Len is the number of live entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge drops every entry.
func (c *Cache) Purge() { c.lru.Purge() }
