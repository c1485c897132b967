// Package fetch loads the three entity streams for a visible range and keeps
// the committed, combined item list.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tableflip.dev/agenda/pkg/adapter"
	"tableflip.dev/agenda/pkg/api"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/clock"
)

// DefaultDebounce is the quiet period before a debounced load fires.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrNotFound is returned by Patch and Replace for unknown ids.
	ErrNotFound = errors.New("fetch: item not found")
	// ErrSuperseded is returned by Load when a newer cycle replaced it before
	// it could commit.
	ErrSuperseded = errors.New("fetch: superseded by a newer load")
)

// Source issues the range-scoped list calls. *api.Client satisfies it.
type Source interface {
	ListEvents(ctx context.Context, p api.ListParams) ([]byte, error)
	ListNotes(ctx context.Context, p api.ListParams) ([]byte, error)
	ListOverlays(ctx context.Context, p api.ListParams) ([]byte, error)
}

// Filters narrow what a cycle loads.
type Filters struct {
	OnlyImportant bool
	ShowOverlays  bool
}

// Request describes one load. Force reloads even when the range is the one
// already committed.
type Request struct {
	Range   calendar.Range
	Query   string
	Filters Filters
	Force   bool
}

func (r Request) same(o Request) bool {
	return r.Range.Equal(o.Range) && r.Query == o.Query && r.Filters == o.Filters
}

// State is the coordinator phase.
type State int

const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// FetchError records a failed cycle. The previously committed list is kept.
type FetchError struct {
	Request Request
	Stream  calendar.Kind
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch: load %s for %s: %v", e.Stream, e.Request.Range, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChangeKind tells observers what happened.
type ChangeKind string

const (
	ChangeLoading   ChangeKind = "loading"
	ChangeCommitted ChangeKind = "committed"
	ChangeFailed    ChangeKind = "failed"
	ChangePatched   ChangeKind = "patched"
)

// Change is delivered to OnChange observers.
type Change struct {
	Kind       ChangeKind
	Generation uint64
	Range      calendar.Range
	ItemID     string
	Err        error
}

// Snapshot is a consistent copy of the coordinator state.
type Snapshot struct {
	Items      []*calendar.Item
	Request    Request
	Generation uint64
	State      State
	Err        error
}

// Options configures a Coordinator.
type Options struct {
	Source   Source
	Adapter  *adapter.Adapter
	Clock    clock.Clock
	Logger   *slog.Logger
	Debounce time.Duration
}

type cycle struct {
	gen    uint64
	req    Request
	cancel context.CancelFunc
}

// Coordinator owns the item list for the loaded range.
type Coordinator struct {
	source   Source
	adapter  *adapter.Adapter
	clock    clock.Clock
	logger   *slog.Logger
	debounce time.Duration

	mu        sync.RWMutex
	gen       uint64
	commitGen uint64
	inflight  *cycle
	committed *Request
	last      Request
	items     []*calendar.Item
	err       error
	timer     clock.Timer
	observers []func(Change)
}

// New returns an idle Coordinator with an empty list.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	ad := opts.Adapter
	if ad == nil {
		ad = adapter.New(nil, logger)
	}
	delay := opts.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Coordinator{
		source:   opts.Source,
		adapter:  ad,
		clock:    clk,
		logger:   logger,
		debounce: delay,
	}
}

// OnChange registers an observer. Observers run outside the coordinator lock
// on the goroutine that caused the change.
func (c *Coordinator) OnChange(fn func(Change)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Coordinator) notify(ch Change) {
	c.mu.RLock()
	observers := make([]func(Change), len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(ch)
	}
}

// Load runs one fetch cycle for req and commits its result. A non-forced
// trigger identical to the cycle in flight is dropped, and a non-forced
// request for the committed range is a no-op; both return nil. A different
// or forced trigger cancels the running cycle, which then returns
// ErrSuperseded.
func (c *Coordinator) Load(ctx context.Context, req Request) error {
	c.mu.Lock()
	if c.inflight != nil && !req.Force && c.inflight.req.same(req) {
		c.mu.Unlock()
		c.logger.Debug("fetch: dropping duplicate trigger", "range", req.Range.String())
		return nil
	}
	if c.inflight == nil && !req.Force && c.committed != nil && c.committed.same(req) {
		c.mu.Unlock()
		return nil
	}
	if c.inflight != nil {
		c.inflight.cancel()
	}
	c.gen++
	cctx, cancel := context.WithCancel(ctx)
	cur := &cycle{gen: c.gen, req: req, cancel: cancel}
	c.inflight = cur
	c.last = req
	c.mu.Unlock()
	defer cancel()

	c.notify(Change{Kind: ChangeLoading, Generation: cur.gen, Range: req.Range})
	start := c.clock.Now()
	items, err := c.run(cctx, req)

	c.mu.Lock()
	if c.gen != cur.gen {
		c.mu.Unlock()
		c.logger.Debug("fetch: discarding stale cycle", "generation", cur.gen, "range", req.Range.String())
		return ErrSuperseded
	}
	c.inflight = nil
	if err != nil {
		c.err = err
		c.mu.Unlock()
		c.logger.Warn("fetch: cycle failed", "generation", cur.gen, "range", req.Range.String(), "err", err)
		c.notify(Change{Kind: ChangeFailed, Generation: cur.gen, Range: req.Range, Err: err})
		return err
	}
	c.items = items
	c.err = nil
	c.commitGen = cur.gen
	committed := req
	committed.Force = false
	c.committed = &committed
	c.mu.Unlock()

	c.logger.Debug("fetch: committed", "generation", cur.gen, "range", req.Range.String(),
		"items", len(items), "elapsed", c.clock.Now().Sub(start))
	c.notify(Change{Kind: ChangeCommitted, Generation: cur.gen, Range: req.Range})
	return nil
}

func (c *Coordinator) run(ctx context.Context, req Request) ([]*calendar.Item, error) {
	if c.source == nil {
		return nil, &FetchError{Request: req, Stream: calendar.KindEvent, Err: errors.New("no source configured")}
	}
	params := api.ListParams{Range: req.Range, Query: req.Query, Important: req.Filters.OnlyImportant}

	var events, notes, overlays []*calendar.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = c.stream(gctx, req, calendar.KindEvent, c.source.ListEvents, params)
		return err
	})
	g.Go(func() error {
		var err error
		notes, err = c.stream(gctx, req, calendar.KindNote, c.source.ListNotes, params)
		return err
	})
	if req.Filters.ShowOverlays {
		g.Go(func() error {
			var err error
			overlays, err = c.stream(gctx, req, calendar.KindOverlay, c.source.ListOverlays, params)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*calendar.Item, 0, len(events)+len(notes)+len(overlays))
	for _, list := range [][]*calendar.Item{events, notes} {
		for _, it := range list {
			if req.Filters.OnlyImportant && !it.Important() {
				continue
			}
			out = append(out, it)
		}
	}
	out = append(out, overlays...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

type listFunc func(context.Context, api.ListParams) ([]byte, error)

func (c *Coordinator) stream(ctx context.Context, req Request, kind calendar.Kind, list listFunc, p api.ListParams) ([]*calendar.Item, error) {
	body, err := list(ctx, p)
	if err != nil {
		return nil, &FetchError{Request: req, Stream: kind, Err: err}
	}
	items, err := c.adapter.Decode(kind, body)
	if err != nil {
		return nil, &FetchError{Request: req, Stream: kind, Err: err}
	}
	return items, nil
}

// Debounce schedules a load once the quiet period elapses. build is called
// when the timer fires, so the request reflects the state at that moment.
// Each call restarts the timer.
func (c *Coordinator) Debounce(ctx context.Context, build func() Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	var t clock.Timer
	t = c.clock.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		if c.timer != t {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		if err := c.Load(ctx, build()); err != nil && !errors.Is(err, ErrSuperseded) {
			c.logger.Debug("fetch: debounced load failed", "err", err)
		}
	})
	c.timer = t
}

// Pending reports whether a debounced load is scheduled.
func (c *Coordinator) Pending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timer != nil
}

// Retry re-issues the most recent request.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.RLock()
	req := c.last
	c.mu.RUnlock()
	req.Force = true
	return c.Load(ctx, req)
}

// Refresh forces a reload of the most recent request.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.Retry(ctx)
}

// Items returns copies of the committed items.
func (c *Coordinator) Items() []*calendar.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calendar.CloneItems(c.items)
}

// Item returns a copy of one committed item.
func (c *Coordinator) Item(id string) (*calendar.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i].Clone(), true
	}
	return nil, false
}

// Generation identifies the committed list; it changes on every commit.
func (c *Coordinator) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commitGen
}

// Snapshot returns the committed items with the state they belong to.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		Items:      calendar.CloneItems(c.items),
		Generation: c.gen,
		State:      c.stateLocked(),
		Err:        c.err,
	}
	if c.committed != nil {
		snap.Request = *c.committed
	}
	return snap
}

// State reports whether a cycle is in flight.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	if c.inflight != nil {
		return Fetching
	}
	return Idle
}

// Err is the error of the last completed cycle, nil after a success.
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Patch applies fn to the committed item id and returns the item as it was
// before, for rollback. The list is unchanged when fn fails.
func (c *Coordinator) Patch(id string, fn func(*calendar.Item) error) (*calendar.Item, error) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev := c.items[i].Clone()
	next := c.items[i].Clone()
	if err := fn(next); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.items[i] = next
	c.mu.Unlock()
	c.notify(Change{Kind: ChangePatched, ItemID: id, Range: c.committedRange()})
	return prev, nil
}

// Replace swaps the committed item with the same id for item.
func (c *Coordinator) Replace(item *calendar.Item) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrNotFound)
	}
	c.mu.Lock()
	i := c.indexLocked(item.ID)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, item.ID)
	}
	c.items[i] = item.Clone()
	c.mu.Unlock()
	c.notify(Change{Kind: ChangePatched, ItemID: item.ID, Range: c.committedRange()})
	return nil
}

func (c *Coordinator) committedRange() calendar.Range {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.committed == nil {
		return calendar.Range{}
	}
	return c.committed.Range
}

func (c *Coordinator) indexLocked(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
