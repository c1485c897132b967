// Package agenda wires the fetch coordinator, mutation executor, hover
// preview and context menu into the calendar screen's coordinator.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tableflip.dev/agenda/pkg/adapter"
	"tableflip.dev/agenda/pkg/api"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/clock"
	"tableflip.dev/agenda/pkg/fetch"
	"tableflip.dev/agenda/pkg/hover"
	"tableflip.dev/agenda/pkg/menu"
	"tableflip.dev/agenda/pkg/mutate"
	"tableflip.dev/agenda/pkg/prefs"
)

// Client is the tenant-scoped server. *api.Client satisfies it.
type Client interface {
	fetch.Source
	mutate.Persister
	Org() string
}

// ModalMode tells the edit modal whether it creates or edits.
type ModalMode string

const (
	ModeCreate ModalMode = "create"
	ModeEdit   ModalMode = "edit"
)

// ModalRequest carries everything the edit modal needs to open. Item is set
// for edits; the seed fields are always filled.
type ModalRequest struct {
	Mode      ModalMode
	Kind      calendar.Kind
	SeedStart time.Time
	SeedEnd   *time.Time
	AllDay    bool
	Item      *calendar.Item
}

// Modal is the host's create/edit form.
type Modal interface {
	Open(req ModalRequest) error
}

// ModalFunc adapts a function to Modal.
type ModalFunc func(req ModalRequest) error

func (f ModalFunc) Open(req ModalRequest) error { return f(req) }

// EventKind discriminates Event.
type EventKind string

const (
	EventFetch          EventKind = "fetch"
	EventHover          EventKind = "hover"
	EventMenu           EventKind = "menu"
	EventMutationFailed EventKind = "mutation-failed"
	EventPreferences    EventKind = "preferences"
)

const subscriberBufferSize = 64

// Event is a change notification delivered to subscribers.
type Event struct {
	Kind        EventKind
	Fetch       *fetch.Change
	Hover       *hover.State
	Menu        *menu.Menu
	Preferences *prefs.Preferences
	Err         error
}

// Options configures a Coordinator.
type Options struct {
	Client    Client
	Prefs     prefs.Store
	Cache     hover.Enricher
	Clock     clock.Clock
	Logger    *slog.Logger
	Confirmer mutate.Confirmer
	Modal     Modal
	WeekStart time.Weekday
	Location  *time.Location
	// Now is the initial anchor; the clock's time when zero.
	Now time.Time
	// Query is the initial search text.
	Query string
}

// Coordinator is the calendar screen state.
type Coordinator struct {
	client    Client
	store     prefs.Store
	clock     clock.Clock
	logger    *slog.Logger
	modal     Modal
	weekStart time.Weekday

	fetcher  *fetch.Coordinator
	executor *mutate.Executor
	hover    *hover.Machine
	menu     *menu.Controller

	// saveMu serializes preference updates.
	saveMu sync.Mutex
	mu     sync.RWMutex
	base   context.Context
	prefs  prefs.Preferences
	anchor time.Time
	query  string
	subs   []chan Event
}

// New builds a Coordinator and reads the preferences once.
func New(opts Options) (*Coordinator, error) {
	if opts.Client == nil {
		return nil, errors.New("agenda: client is required")
	}
	if strings.TrimSpace(opts.Client.Org()) == "" {
		return nil, api.ErrNoTenant
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	store := opts.Prefs
	if store == nil {
		store = prefs.NewMemory()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	anchor := opts.Now
	if anchor.IsZero() {
		anchor = clk.Now()
	}

	c := &Coordinator{
		client:    opts.Client,
		store:     store,
		clock:     clk,
		logger:    logger,
		modal:     opts.Modal,
		weekStart: opts.WeekStart,
		base:      context.Background(),
		prefs:     store.Load(),
		anchor:    anchor.In(loc),
		query:     strings.TrimSpace(opts.Query),
	}
	c.fetcher = fetch.New(fetch.Options{
		Source:  opts.Client,
		Adapter: adapter.New(loc, logger),
		Clock:   clk,
		Logger:  logger,
	})
	c.executor = mutate.New(mutate.Options{
		Store:     c.fetcher,
		Persister: opts.Client,
		Confirmer: opts.Confirmer,
		Logger:    logger,
	})
	c.hover = hover.New(hover.Options{
		Clock:    clk,
		Enricher: opts.Cache,
		Mutator:  c.executor,
		Logger:   logger,
	})
	c.menu = menu.New(c.handleMenu)

	c.fetcher.OnChange(func(ch fetch.Change) {
		c.publish(Event{Kind: EventFetch, Fetch: &ch, Err: ch.Err})
	})
	c.hover.OnChange(func(st hover.State) {
		c.publish(Event{Kind: EventHover, Hover: &st})
	})
	c.menu.OnChange(func(m *menu.Menu) {
		c.publish(Event{Kind: EventMenu, Menu: m})
	})
	c.executor.OnFailure(func(err *mutate.MutationError) {
		c.publish(Event{Kind: EventMutationFailed, Err: err})
	})
	return c, nil
}

// Subscribe returns a channel of change notifications. Events are dropped
// for subscribers that fall behind.
func (c *Coordinator) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBufferSize)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Coordinator) publish(ev Event) {
	c.mu.RLock()
	subs := append([]chan Event(nil), c.subs...)
	c.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			c.logger.Debug("agenda: subscriber behind, dropping event", "kind", ev.Kind)
		}
	}
}

func (c *Coordinator) requestLocked(force bool) fetch.Request {
	return fetch.Request{
		Range: calendar.RangeFor(c.prefs.View, c.anchor, c.weekStart),
		Query: c.query,
		Filters: fetch.Filters{
			OnlyImportant: c.prefs.OnlyImportant,
			ShowOverlays:  c.prefs.ShowOverlays,
		},
		Force: force,
	}
}

func (c *Coordinator) load(ctx context.Context, force bool) error {
	c.mu.RLock()
	req := c.requestLocked(force)
	c.mu.RUnlock()
	err := c.fetcher.Load(ctx, req)
	if errors.Is(err, fetch.ErrSuperseded) {
		return nil
	}
	return err
}

// debounce schedules a reload of whatever is visible when the timer fires.
func (c *Coordinator) debounce() {
	c.mu.RLock()
	base := c.base
	c.mu.RUnlock()
	if base == nil {
		base = context.Background()
	}
	c.fetcher.Debounce(base, func() fetch.Request {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.requestLocked(false)
	})
}

// Start performs the first load. ctx also bounds the debounced loads that
// follow.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()
	return c.load(ctx, false)
}

// Navigate moves the visible range one step back (dir < 0) or forward.
func (c *Coordinator) Navigate(ctx context.Context, dir int) error {
	if dir == 0 {
		return nil
	}
	if dir > 0 {
		dir = 1
	} else {
		dir = -1
	}
	c.mu.Lock()
	c.anchor = calendar.Shift(c.prefs.View, c.anchor, dir)
	c.mu.Unlock()
	return c.load(ctx, false)
}

// Today moves the visible range back to the current date.
func (c *Coordinator) Today(ctx context.Context) error {
	return c.SetAnchor(ctx, c.clock.Now())
}

// SetAnchor shows the range containing t.
func (c *Coordinator) SetAnchor(ctx context.Context, t time.Time) error {
	c.mu.Lock()
	c.anchor = t.In(c.anchor.Location())
	c.mu.Unlock()
	return c.load(ctx, false)
}

// Anchor is the date the visible range is derived from.
func (c *Coordinator) Anchor() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.anchor
}

// updatePrefs applies fn to a copy of the preferences and adopts the result
// once it is saved. On failure the current preferences are returned
// unchanged.
func (c *Coordinator) updatePrefs(fn func(*prefs.Preferences)) (prefs.Preferences, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	p := c.prefs
	c.mu.RUnlock()
	fn(&p)
	if err := c.store.Save(p); err != nil {
		c.logger.Warn("agenda: persisting preferences failed", "err", err)
		return c.Preferences(), fmt.Errorf("agenda: save preferences: %w", err)
	}
	c.mu.Lock()
	c.prefs = p
	c.mu.Unlock()
	c.publish(Event{Kind: EventPreferences, Preferences: &p})
	return p, nil
}

// ApplyPreferences adopts preferences written by another process and loads
// the range they describe. It does not write them back.
func (c *Coordinator) ApplyPreferences(ctx context.Context, p prefs.Preferences) error {
	if _, ok := calendar.ParseView(string(p.View)); !ok {
		p.View = prefs.Defaults().View
	}
	c.mu.Lock()
	if c.prefs == p {
		c.mu.Unlock()
		return nil
	}
	c.prefs = p
	c.mu.Unlock()
	c.logger.Debug("agenda: preferences changed elsewhere", "view", string(p.View))
	c.publish(Event{Kind: EventPreferences, Preferences: &p})
	return c.load(ctx, false)
}

// SetView switches the layout, persists it and loads the new range.
func (c *Coordinator) SetView(ctx context.Context, v calendar.View) error {
	if _, ok := calendar.ParseView(string(v)); !ok {
		return fmt.Errorf("agenda: unknown view %q", v)
	}
	if _, err := c.updatePrefs(func(p *prefs.Preferences) { p.View = v }); err != nil {
		return err
	}
	return c.load(ctx, false)
}

// ToggleOverlays flips invoice overlays and schedules a reload.
func (c *Coordinator) ToggleOverlays() error {
	if _, err := c.updatePrefs(func(p *prefs.Preferences) { p.ShowOverlays = !p.ShowOverlays }); err != nil {
		return err
	}
	c.debounce()
	return nil
}

// ToggleOnlyImportant flips the importance filter and schedules a reload.
func (c *Coordinator) ToggleOnlyImportant() error {
	if _, err := c.updatePrefs(func(p *prefs.Preferences) { p.OnlyImportant = !p.OnlyImportant }); err != nil {
		return err
	}
	c.debounce()
	return nil
}

// SetQuery updates the search text and schedules a reload.
func (c *Coordinator) SetQuery(q string) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
	c.debounce()
}

// Query is the current search text.
func (c *Coordinator) Query() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

// Refresh reloads the visible range.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.load(ctx, true)
}

// Retry re-issues the last failed load.
func (c *Coordinator) Retry(ctx context.Context) error {
	return c.fetcher.Retry(ctx)
}

// Items is the committed list for the visible range.
func (c *Coordinator) Items() []*calendar.Item { return c.fetcher.Items() }

// Item returns one committed item.
func (c *Coordinator) Item(id string) (*calendar.Item, bool) { return c.fetcher.Item(id) }

// Range is the visible range.
func (c *Coordinator) Range() calendar.Range {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calendar.RangeFor(c.prefs.View, c.anchor, c.weekStart)
}

// Preferences returns the current preferences.
func (c *Coordinator) Preferences() prefs.Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// Err is the last fetch failure, nil after a successful load.
func (c *Coordinator) Err() error { return c.fetcher.Err() }

// State reports whether a load is in flight.
func (c *Coordinator) State() fetch.State { return c.fetcher.State() }

func (c *Coordinator) Hover() *hover.Machine       { return c.hover }
func (c *Coordinator) Menu() *menu.Controller      { return c.menu }
func (c *Coordinator) Executor() *mutate.Executor  { return c.executor }
func (c *Coordinator) Fetcher() *fetch.Coordinator { return c.fetcher }

// OpenCreate opens the modal for a new item on day. Events are seeded with
// 09:00-10:00, notes with the whole day.
func (c *Coordinator) OpenCreate(kind calendar.Kind, day time.Time) error {
	if kind == calendar.KindOverlay {
		return fmt.Errorf("agenda: create %s: %w", kind, calendar.ErrReadOnly)
	}
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	req := ModalRequest{Mode: ModeCreate, Kind: kind}
	if kind == calendar.KindNote {
		req.SeedStart = date
		req.AllDay = true
	} else {
		start := date.Add(9 * time.Hour)
		end := date.Add(10 * time.Hour)
		req.SeedStart = start
		req.SeedEnd = &end
	}
	return c.openModal(req)
}

// OpenEdit opens the modal for a committed item.
func (c *Coordinator) OpenEdit(id string) error {
	it, ok := c.fetcher.Item(id)
	if !ok {
		return fmt.Errorf("agenda: edit %s: %w", id, fetch.ErrNotFound)
	}
	if !it.Mutable() {
		return fmt.Errorf("agenda: edit %s: %w", id, calendar.ErrReadOnly)
	}
	return c.openModal(ModalRequest{
		Mode:      ModeEdit,
		Kind:      it.Kind,
		SeedStart: it.Start,
		SeedEnd:   it.End,
		AllDay:    it.AllDay,
		Item:      it,
	})
}

func (c *Coordinator) openModal(req ModalRequest) error {
	if c.modal == nil {
		return errors.New("agenda: no modal configured")
	}
	c.hover.Hide()
	c.menu.Dismiss()
	return c.modal.Open(req)
}

// Saved is called by the host after the modal saved successfully.
func (c *Coordinator) Saved(ctx context.Context) error {
	return c.Refresh(ctx)
}

func (c *Coordinator) handleMenu(ctx context.Context, action menu.Action, item *calendar.Item) error {
	switch action {
	case menu.ActionEdit:
		return c.OpenEdit(item.ID)
	case menu.ActionDuplicate:
		return c.executor.Duplicate(ctx, item.ID)
	case menu.ActionDelete:
		return c.executor.Delete(ctx, item.ID)
	}
	return fmt.Errorf("agenda: unknown menu action %q", action)
}
