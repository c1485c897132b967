// Package hover tracks the preview panel shown while the pointer rests on a
// timeline item. It knows nothing about rendering; hosts feed it pointer
// transitions and draw whatever State reports.
package hover

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/clock"
	"tableflip.dev/agenda/pkg/enrich"
)

// DefaultGrace is how long the panel survives after the pointer leaves both
// the item and the panel.
const DefaultGrace = 400 * time.Millisecond

// ErrNothingHovered is returned by the preview controls when no item is shown.
var ErrNothingHovered = errors.New("hover: no item is being previewed")

// Phase is the visibility of the preview panel.
type Phase int

const (
	Hidden Phase = iota
	Showing
	PendingHide
)

func (p Phase) String() string {
	switch p {
	case Showing:
		return "showing"
	case PendingHide:
		return "pending-hide"
	}
	return "hidden"
}

// Point is a host coordinate (terminal cells in the TUI).
type Point struct {
	X, Y int
}

// Payload is the enriched copy of the hovered item.
type Payload struct {
	Item        *calendar.Item
	ContactName string
	Invoice     *enrich.InvoiceSummary
}

func (p *Payload) clone() *Payload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Item = p.Item.Clone()
	if p.Invoice != nil {
		inv := *p.Invoice
		cp.Invoice = &inv
	}
	return &cp
}

// State is what the host renders. Anchor and Payload are nil when hidden.
type State struct {
	Phase   Phase
	Anchor  *Point
	Payload *Payload
}

// Control is an interactive element of the preview body.
type Control string

const (
	ControlImportant Control = "important"
	ControlCompleted Control = "completed"
	ControlStatus    Control = "status"
)

// Enricher resolves linked entities. *enrich.Cache satisfies it.
type Enricher interface {
	ContactName(ctx context.Context, id string) (string, error)
	Invoice(ctx context.Context, id string) (enrich.InvoiceSummary, error)
}

// Mutator persists preview toggles. *mutate.Executor satisfies it.
type Mutator interface {
	SetImportant(ctx context.Context, id string, important bool) error
	SetCompleted(ctx context.Context, id string, completed bool) error
	SetStatus(ctx context.Context, id string, status calendar.Status) error
}

// Options configures a Machine.
type Options struct {
	Clock    clock.Clock
	Enricher Enricher
	Mutator  Mutator
	Logger   *slog.Logger
	Grace    time.Duration
}

// Machine is the hover state machine.
type Machine struct {
	clock    clock.Clock
	enricher Enricher
	mutator  Mutator
	logger   *slog.Logger
	grace    time.Duration

	mu         sync.Mutex
	phase      Phase
	anchor     *Point
	payload    *Payload
	overSource bool
	overPanel  bool
	gen        uint64
	timer      clock.Timer
	observers  []func(State)

	pending sync.WaitGroup
}

// New returns a hidden Machine.
func New(opts Options) *Machine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	grace := opts.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Machine{clock: clk, enricher: opts.Enricher, mutator: opts.Mutator, logger: logger, grace: grace}
}

// OnChange registers an observer called with the new state after every
// transition or payload update.
func (m *Machine) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Machine) stateLocked() State {
	st := State{Phase: m.phase, Payload: m.payload.clone()}
	if m.anchor != nil {
		a := *m.anchor
		st.Anchor = &a
	}
	return st
}

// notifyLocked snapshots state and observers under the lock. The returned
// func delivers them and must be called after unlocking.
func (m *Machine) notifyLocked() func() {
	st := m.stateLocked()
	observers := make([]func(State), len(m.observers))
	copy(observers, m.observers)
	return func() {
		for _, fn := range observers {
			fn(st)
		}
	}
}

// EnterItem shows the preview for item anchored at p and starts resolving the
// contact and invoice it links to.
func (m *Machine) EnterItem(ctx context.Context, item *calendar.Item, p Point) {
	if item == nil {
		return
	}
	m.mu.Lock()
	m.stopTimerLocked()
	m.overSource = true
	m.phase = Showing
	m.anchor = &p
	same := m.payload != nil && m.payload.Item.ID == item.ID
	if !same {
		m.gen++
		m.payload = &Payload{Item: item.Clone()}
		m.startEnrichmentLocked(ctx, m.gen, item)
	}
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()
}

// Move follows the pointer while it stays over the source item.
func (m *Machine) Move(p Point) {
	m.mu.Lock()
	if m.phase != Showing || !m.overSource {
		m.mu.Unlock()
		return
	}
	m.anchor = &p
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()
}

// LeaveItem starts the grace period unless the pointer moved onto the panel.
func (m *Machine) LeaveItem() {
	m.mu.Lock()
	m.overSource = false
	if m.phase != Showing || m.overPanel {
		m.mu.Unlock()
		return
	}
	m.beginGraceLocked()
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()
}

// EnterPanel keeps the panel open while the pointer is over it.
func (m *Machine) EnterPanel() {
	m.mu.Lock()
	if m.phase == Hidden {
		m.mu.Unlock()
		return
	}
	m.overPanel = true
	m.stopTimerLocked()
	if m.phase != PendingHide {
		m.mu.Unlock()
		return
	}
	m.phase = Showing
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()
}

// LeavePanel starts the grace period unless the pointer is back on the item.
func (m *Machine) LeavePanel() {
	m.mu.Lock()
	m.overPanel = false
	if m.phase != Showing || m.overSource {
		m.mu.Unlock()
		return
	}
	m.beginGraceLocked()
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()
}

// Hide closes the panel immediately.
func (m *Machine) Hide() {
	m.mu.Lock()
	if m.phase == Hidden {
		m.mu.Unlock()
		return
	}
	m.hideLocked()
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()
}

func (m *Machine) hideLocked() {
	m.stopTimerLocked()
	m.gen++
	m.phase = Hidden
	m.anchor = nil
	m.payload = nil
	m.overSource = false
	m.overPanel = false
}

func (m *Machine) beginGraceLocked() {
	m.phase = PendingHide
	m.stopTimerLocked()
	var t clock.Timer
	t = m.clock.AfterFunc(m.grace, func() {
		m.mu.Lock()
		if m.timer != t || m.phase != PendingHide {
			m.mu.Unlock()
			return
		}
		m.timer = nil
		m.hideLocked()
		deliver := m.notifyLocked()
		m.mu.Unlock()
		deliver()
	})
	m.timer = t
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) startEnrichmentLocked(ctx context.Context, gen uint64, item *calendar.Item) {
	if m.enricher == nil {
		return
	}
	if id := item.ContactID(); id != "" {
		m.pending.Add(1)
		go func() {
			defer m.pending.Done()
			name, err := m.enricher.ContactName(ctx, id)
			if err != nil {
				m.logger.Debug("hover: contact lookup failed", "id", id, "err", err)
			}
			m.update(gen, func(p *Payload) { p.ContactName = name })
		}()
	}
	if id := item.InvoiceID(); id != "" {
		m.pending.Add(1)
		go func() {
			defer m.pending.Done()
			sum, err := m.enricher.Invoice(ctx, id)
			if err != nil {
				m.logger.Debug("hover: invoice lookup failed", "id", id, "err", err)
			}
			m.update(gen, func(p *Payload) { p.Invoice = &sum })
		}()
	}
}

// update applies fn to the payload if it still belongs to generation gen.
func (m *Machine) update(gen uint64, fn func(*Payload)) {
	m.mu.Lock()
	if m.gen != gen || m.payload == nil {
		m.mu.Unlock()
		return
	}
	fn(m.payload)
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()
}

// Wait blocks until enrichment lookups started so far have finished.
func (m *Machine) Wait() {
	m.pending.Wait()
}

// Controls lists the preview controls for the current payload. Overlays are
// read-only and have none.
func (m *Machine) Controls() []Control {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payload == nil {
		return nil
	}
	switch m.payload.Item.Kind {
	case calendar.KindEvent:
		return []Control{ControlStatus, ControlImportant}
	case calendar.KindNote:
		return []Control{ControlCompleted, ControlImportant}
	}
	return nil
}

// ToggleImportant flips the importance of the previewed item.
func (m *Machine) ToggleImportant(ctx context.Context) error {
	return m.toggle(func(it *calendar.Item) (func(*calendar.Item) error, func() error, error) {
		next := !it.Important()
		return func(p *calendar.Item) error { return p.SetImportant(next) },
			func() error { return m.mutator.SetImportant(ctx, it.ID, next) }, nil
	})
}

// ToggleCompleted flips the completed flag of the previewed note.
func (m *Machine) ToggleCompleted(ctx context.Context) error {
	return m.toggle(func(it *calendar.Item) (func(*calendar.Item) error, func() error, error) {
		if it.Note == nil {
			return nil, nil, calendar.ErrUnsupported
		}
		next := !it.Note.Completed
		return func(p *calendar.Item) error { return p.SetCompleted(next) },
			func() error { return m.mutator.SetCompleted(ctx, it.ID, next) }, nil
	})
}

// SetStatus changes the status of the previewed event.
func (m *Machine) SetStatus(ctx context.Context, s calendar.Status) error {
	return m.toggle(func(it *calendar.Item) (func(*calendar.Item) error, func() error, error) {
		if it.Event == nil {
			return nil, nil, calendar.ErrUnsupported
		}
		return func(p *calendar.Item) error { return p.SetStatus(s) },
			func() error { return m.mutator.SetStatus(ctx, it.ID, s) }, nil
	})
}

type plan func(current *calendar.Item) (local func(*calendar.Item) error, persist func() error, err error)

// toggle reflects a change in the payload at once, persists it, and reverts
// the payload when persistence fails.
func (m *Machine) toggle(build plan) error {
	m.mu.Lock()
	if m.payload == nil {
		m.mu.Unlock()
		return ErrNothingHovered
	}
	current := m.payload.Item
	if !current.Mutable() {
		m.mu.Unlock()
		return calendar.ErrReadOnly
	}
	if m.mutator == nil {
		m.mu.Unlock()
		return errors.New("hover: no mutator configured")
	}
	local, persist, err := build(current.Clone())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	prev := current.Clone()
	next := current.Clone()
	if err := local(next); err != nil {
		m.mu.Unlock()
		return err
	}
	m.payload.Item = next
	gen := m.gen
	deliver := m.notifyLocked()
	m.mu.Unlock()
	deliver()

	if err := persist(); err != nil {
		m.update(gen, func(p *Payload) { p.Item = prev })
		return err
	}
	return nil
}
