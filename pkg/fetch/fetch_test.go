package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tableflip.dev/agenda/pkg/adapter"
	"tableflip.dev/agenda/pkg/api"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/clock"
)

type call struct {
	kind   calendar.Kind
	params api.ListParams
}

type fakeSource struct {
	mu      sync.Mutex
	calls   []call
	bodies  map[calendar.Kind]string
	errs    map[calendar.Kind]error
	block   func(calendar.Kind, api.ListParams) bool
	gate    chan struct{}
	started chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bodies: map[calendar.Kind]string{
			calendar.KindEvent:   `[]`,
			calendar.KindNote:    `[]`,
			calendar.KindOverlay: `[]`,
		},
		errs: map[calendar.Kind]error{},
	}
}

func (f *fakeSource) respond(kind calendar.Kind, p api.ListParams) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{kind: kind, params: p})
	body, err := f.bodies[kind], f.errs[kind]
	blocked := f.block != nil && f.block(kind, p)
	f.mu.Unlock()
	if blocked {
		f.started <- struct{}{}
		<-f.gate
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (f *fakeSource) set(kind calendar.Kind, body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[kind] = body
	f.errs[kind] = err
}

func (f *fakeSource) count(kind calendar.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeSource) lastParams(kind calendar.Kind) api.ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].kind == kind {
			return f.calls[i].params
		}
	}
	return api.ListParams{}
}

func (f *fakeSource) ListEvents(_ context.Context, p api.ListParams) ([]byte, error) {
	return f.respond(calendar.KindEvent, p)
}

func (f *fakeSource) ListNotes(_ context.Context, p api.ListParams) ([]byte, error) {
	return f.respond(calendar.KindNote, p)
}

func (f *fakeSource) ListOverlays(_ context.Context, p api.ListParams) ([]byte, error) {
	return f.respond(calendar.KindOverlay, p)
}

func newCoordinator(src Source, clk clock.Clock) *Coordinator {
	return New(Options{Source: src, Adapter: adapter.New(time.UTC, nil), Clock: clk})
}

var (
	january  = calendar.MonthRange(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	february = calendar.MonthRange(time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC))
)

func TestMonthViewLoad(t *testing.T) {
	src := newFakeSource()
	src.set(calendar.KindEvent, `{"results":[
		{"id":1,"title":"Kickoff","start":"2025-01-06T09:00:00Z"},
		{"id":2,"title":"Review","start":"2025-01-20T14:00:00Z"}
	]}`, nil)
	c := newCoordinator(src, clock.Real())

	if err := c.Load(context.Background(), Request{Range: january}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	items := c.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, it := range items {
		if it.Kind == calendar.KindOverlay {
			t.Fatalf("unexpected overlay %s", it.ID)
		}
	}
	if src.count(calendar.KindOverlay) != 0 {
		t.Fatalf("overlay stream requested while disabled")
	}
	p := src.lastParams(calendar.KindEvent)
	if got := p.Range.Start.Format(time.RFC3339); got != "2025-01-01T00:00:00Z" {
		t.Fatalf("start = %s", got)
	}
	if got := p.Range.End.Format(time.RFC3339); got != "2025-02-01T00:00:00Z" {
		t.Fatalf("end = %s", got)
	}
}

func TestIdenticalTriggerWhileFetchingIsDropped(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	src.block = func(kind calendar.Kind, _ api.ListParams) bool { return kind == calendar.KindEvent }
	c := newCoordinator(src, clock.Real())

	req := Request{Range: january}
	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background(), req) }()
	<-src.started

	if c.State() != Fetching {
		t.Fatalf("state = %s, want fetching", c.State())
	}
	if err := c.Load(context.Background(), req); err != nil {
		t.Fatalf("duplicate trigger: %v", err)
	}
	close(src.gate)
	if err := <-done; err != nil {
		t.Fatalf("first load: %v", err)
	}
	if got := src.count(calendar.KindEvent); got != 1 {
		t.Fatalf("expected a single events call, got %d", got)
	}
	if c.State() != Idle {
		t.Fatalf("state = %s, want idle", c.State())
	}
}

func TestCommittedRangeIsNotReloaded(t *testing.T) {
	src := newFakeSource()
	c := newCoordinator(src, clock.Real())
	ctx := context.Background()

	_ = c.Load(ctx, Request{Range: january})
	gen := c.Generation()
	_ = c.Load(ctx, Request{Range: january})
	if got := src.count(calendar.KindEvent); got != 1 {
		t.Fatalf("expected cached range to skip, got %d calls", got)
	}
	if c.Generation() != gen {
		t.Fatalf("generation changed without a commit")
	}
	_ = c.Load(ctx, Request{Range: january, Force: true})
	if got := src.count(calendar.KindEvent); got != 2 {
		t.Fatalf("expected forced reload, got %d calls", got)
	}
	if c.Generation() == gen {
		t.Fatalf("generation unchanged after a forced reload")
	}
}

func TestStaleGenerationIsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	src.block = func(kind calendar.Kind, p api.ListParams) bool {
		return kind == calendar.KindEvent && p.Range.Equal(january)
	}
	src.set(calendar.KindEvent, `[{"id":1,"title":"stale","start":"2025-01-06T09:00:00Z"}]`, nil)
	c := newCoordinator(src, clock.Real())

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background(), Request{Range: january}) }()
	<-src.started

	src.set(calendar.KindEvent, `[{"id":2,"title":"fresh","start":"2025-02-03T09:00:00Z"}]`, nil)
	if err := c.Load(context.Background(), Request{Range: february}); err != nil {
		t.Fatalf("newer load: %v", err)
	}
	close(src.gate)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("stale load err = %v, want ErrSuperseded", err)
	}

	items := c.Items()
	if len(items) != 1 || items[0].ID != "2" {
		t.Fatalf("committed items = %v, want only the fresh event", items)
	}
	if snap := c.Snapshot(); !snap.Request.Range.Equal(february) {
		t.Fatalf("committed range = %s", snap.Request.Range)
	}
}

func TestSearchDebounceLoadsFinalQueryOnce(t *testing.T) {
	src := newFakeSource()
	clk := clock.Fake(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
	c := newCoordinator(src, clk)
	ctx := context.Background()

	query := "ac"
	build := func() Request { return Request{Range: january, Query: query} }
	c.Debounce(ctx, build)
	clk.Advance(100 * time.Millisecond)
	query = "acme"
	c.Debounce(ctx, build)
	clk.Advance(299 * time.Millisecond)
	if got := src.count(calendar.KindEvent); got != 0 {
		t.Fatalf("load fired before the quiet period, %d calls", got)
	}
	clk.Advance(time.Millisecond)

	if got := src.count(calendar.KindEvent); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	if q := src.lastParams(calendar.KindEvent).Query; q != "acme" {
		t.Fatalf("query = %q, want acme", q)
	}
	if c.Pending() {
		t.Fatalf("timer still pending")
	}
}

func TestDebounceUsesStateAtFireTime(t *testing.T) {
	src := newFakeSource()
	clk := clock.Fake(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
	c := newCoordinator(src, clk)
	ctx := context.Background()

	visible := Request{Range: january}
	if err := c.Load(ctx, visible); err != nil {
		t.Fatalf("Load: %v", err)
	}
	visible.Query = "acme"
	c.Debounce(ctx, func() Request { return visible })

	visible.Range = february
	if err := c.Load(ctx, visible); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	calls := src.count(calendar.KindEvent)
	clk.Advance(DefaultDebounce)

	if got := src.count(calendar.KindEvent); got != calls {
		t.Fatalf("debounced load repeated the committed request, %d calls", got-calls)
	}
	snap := c.Snapshot()
	if !snap.Request.Range.Equal(february) || snap.Request.Query != "acme" {
		t.Fatalf("committed = %s %q, want february acme", snap.Request.Range, snap.Request.Query)
	}
}

func TestForcedLoadSupersedesIdenticalCycle(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	src.set(calendar.KindEvent, `[{"id":1,"title":"before","start":"2025-01-06T09:00:00Z"}]`, nil)
	first := true
	src.block = func(kind calendar.Kind, _ api.ListParams) bool {
		if kind != calendar.KindEvent || !first {
			return false
		}
		first = false
		return true
	}
	c := newCoordinator(src, clock.Real())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Load(ctx, Request{Range: january}) }()
	<-src.started

	src.set(calendar.KindEvent, `[{"id":1,"title":"after","start":"2025-01-06T09:00:00Z"}]`, nil)
	if err := c.Load(ctx, Request{Range: january, Force: true}); err != nil {
		t.Fatalf("forced load: %v", err)
	}
	close(src.gate)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("older load err = %v, want ErrSuperseded", err)
	}

	items := c.Items()
	if len(items) != 1 || items[0].Title != "after" {
		t.Fatalf("committed items = %v, want the refreshed event", items)
	}
}

func TestOverlaysDisabledMeansZeroCalls(t *testing.T) {
	src := newFakeSource()
	src.set(calendar.KindOverlay, `[{"id":12,"number":"F-001","due_date":"2025-01-31"}]`, nil)
	c := newCoordinator(src, clock.Real())
	ctx := context.Background()

	if err := c.Load(ctx, Request{Range: january, Filters: Filters{ShowOverlays: true}}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Items()) != 1 || src.count(calendar.KindOverlay) != 1 {
		t.Fatalf("expected the overlay to load")
	}

	if err := c.Load(ctx, Request{Range: january}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := src.count(calendar.KindOverlay); got != 1 {
		t.Fatalf("overlay stream requested while disabled: %d calls", got)
	}
	if len(c.Items()) != 0 {
		t.Fatalf("overlay still rendered after disabling")
	}
}

func TestOnlyImportantFilter(t *testing.T) {
	src := newFakeSource()
	src.set(calendar.KindEvent, `[
		{"id":1,"title":"a","start":"2025-01-06T09:00:00Z","is_important":true},
		{"id":2,"title":"b","start":"2025-01-07T09:00:00Z"}
	]`, nil)
	src.set(calendar.KindNote, `[{"id":5,"title":"n","due_date":"2025-01-08"}]`, nil)
	c := newCoordinator(src, clock.Real())

	if err := c.Load(context.Background(), Request{Range: january, Filters: Filters{OnlyImportant: true}}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !src.lastParams(calendar.KindNote).Important {
		t.Fatalf("important flag not sent")
	}
	items := c.Items()
	if len(items) != 1 || items[0].ID != "1" {
		t.Fatalf("items = %v", items)
	}
}

func TestFailureKeepsPriorListAndRetries(t *testing.T) {
	src := newFakeSource()
	src.set(calendar.KindEvent, `[{"id":1,"title":"a","start":"2025-01-06T09:00:00Z"}]`, nil)
	c := newCoordinator(src, clock.Real())
	ctx := context.Background()

	var changes []Change
	var mu sync.Mutex
	c.OnChange(func(ch Change) {
		mu.Lock()
		changes = append(changes, ch)
		mu.Unlock()
	})

	if err := c.Load(ctx, Request{Range: january}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	src.set(calendar.KindNote, "", errors.New("connection reset"))
	err := c.Load(ctx, Request{Range: february})
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Stream != calendar.KindNote {
		t.Fatalf("err = %v, want notes FetchError", err)
	}
	if len(c.Items()) != 1 || c.Items()[0].ID != "1" {
		t.Fatalf("prior list was not kept")
	}
	if c.Err() == nil {
		t.Fatalf("Err() should surface the failure")
	}

	src.set(calendar.KindNote, `[]`, nil)
	src.set(calendar.KindEvent, `[]`, nil)
	if err := c.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if c.Err() != nil {
		t.Fatalf("Err() after successful retry: %v", c.Err())
	}
	if !c.Snapshot().Request.Range.Equal(february) {
		t.Fatalf("retry did not load the failed range")
	}

	mu.Lock()
	defer mu.Unlock()
	var failed int
	for _, ch := range changes {
		if ch.Kind == ChangeFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failure notification, got %d", failed)
	}
}

func TestUnexpectedShapeFailsTheCycle(t *testing.T) {
	src := newFakeSource()
	src.set(calendar.KindEvent, `{"rows":[]}`, nil)
	c := newCoordinator(src, clock.Real())

	err := c.Load(context.Background(), Request{Range: january})
	if !errors.Is(err, adapter.ErrUnexpectedShape) {
		t.Fatalf("err = %v, want ErrUnexpectedShape", err)
	}
}

func TestPatchAndReplace(t *testing.T) {
	src := newFakeSource()
	src.set(calendar.KindEvent, `[{"id":7,"title":"a","start":"2025-01-06T09:00:00Z"}]`, nil)
	c := newCoordinator(src, clock.Real())
	if err := c.Load(context.Background(), Request{Range: january}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	moved := time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)
	prev, err := c.Patch("7", func(it *calendar.Item) error {
		it.Start = moved
		return nil
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got, _ := c.Item("7"); !got.Start.Equal(moved) {
		t.Fatalf("patch not applied")
	}
	if err := c.Replace(prev); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got, _ := c.Item("7"); got.Start.Day() != 6 {
		t.Fatalf("replace did not restore the item")
	}
	if _, err := c.Patch("missing", func(*calendar.Item) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
