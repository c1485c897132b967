// Package calendar holds the canonical representation of everything the
// agenda draws on its timeline: scheduled events, due notes and read-only
// invoice overlays.
package calendar

import (
	"errors"
	"time"
)

// Kind discriminates the Item variants.
type Kind string

const (
	KindEvent   Kind = "event"
	KindNote    Kind = "note"
	KindOverlay Kind = "overlay"
)

// Status is the lifecycle of a scheduled event.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusDone      Status = "done"
	StatusCanceled  Status = "canceled"
)

// Statuses lists the values offered by the status selector, in display order.
var Statuses = []Status{StatusScheduled, StatusDone, StatusCanceled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

var (
	// ErrReadOnly is returned when a change targets an overlay.
	ErrReadOnly = errors.New("calendar: item is read-only")
	// ErrUnsupported is returned when a change does not apply to the item kind.
	ErrUnsupported = errors.New("calendar: change not supported for this kind")
)

// Item is one entry on the timeline. Exactly one of Event, Note and Overlay is
// set, matching Kind.
type Item struct {
	ID     string
	Kind   Kind
	Title  string
	Start  time.Time
	End    *time.Time
	AllDay bool
	Color  string

	Event   *EventData
	Note    *NoteData
	Overlay *OverlayData
}

// EventData carries the source fields of a scheduled event.
type EventData struct {
	ContactID   string
	InvoiceID   string
	Status      Status
	Important   bool
	Description string
	Location    string
	Raw         map[string]any
}

// NoteData carries the source fields of a note pinned by its due date.
type NoteData struct {
	ContactID string
	InvoiceID string
	DueDate   time.Time
	Completed bool
	Important bool
	Body      string
	Raw       map[string]any
}

// OverlayData carries the invoice an overlay was computed from.
type OverlayData struct {
	InvoiceID     string
	ContactID     string
	Number        string
	Amount        float64
	Currency      string
	PaymentStatus string
	DueDate       time.Time
	Raw           map[string]any
}

// Mutable reports whether the item may be edited, moved or deleted.
func (it *Item) Mutable() bool {
	return it != nil && it.Kind != KindOverlay
}

// Important reports the importance flag of events and notes.
func (it *Item) Important() bool {
	switch {
	case it.Event != nil:
		return it.Event.Important
	case it.Note != nil:
		return it.Note.Important
	}
	return false
}

// SetImportant updates the importance flag in place.
func (it *Item) SetImportant(v bool) error {
	switch {
	case it.Kind == KindOverlay:
		return ErrReadOnly
	case it.Event != nil:
		it.Event.Important = v
	case it.Note != nil:
		it.Note.Important = v
	default:
		return ErrUnsupported
	}
	return nil
}

// SetStatus updates an event status in place.
func (it *Item) SetStatus(s Status) error {
	if it.Kind == KindOverlay {
		return ErrReadOnly
	}
	if it.Event == nil {
		return ErrUnsupported
	}
	it.Event.Status = s
	return nil
}

// SetCompleted updates a note's completed flag in place.
func (it *Item) SetCompleted(v bool) error {
	if it.Kind == KindOverlay {
		return ErrReadOnly
	}
	if it.Note == nil {
		return ErrUnsupported
	}
	it.Note.Completed = v
	return nil
}

// ContactID returns the linked contact, if any.
func (it *Item) ContactID() string {
	switch {
	case it.Event != nil:
		return it.Event.ContactID
	case it.Note != nil:
		return it.Note.ContactID
	case it.Overlay != nil:
		return it.Overlay.ContactID
	}
	return ""
}

// InvoiceID returns the linked invoice, if any.
func (it *Item) InvoiceID() string {
	switch {
	case it.Event != nil:
		return it.Event.InvoiceID
	case it.Note != nil:
		return it.Note.InvoiceID
	case it.Overlay != nil:
		return it.Overlay.InvoiceID
	}
	return ""
}

// EndOrStart returns End when set and Start otherwise.
func (it *Item) EndOrStart() time.Time {
	if it.End != nil {
		return *it.End
	}
	return it.Start
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	cp := *it
	if it.End != nil {
		end := *it.End
		cp.End = &end
	}
	if it.Event != nil {
		ev := *it.Event
		ev.Raw = cloneRaw(it.Event.Raw)
		cp.Event = &ev
	}
	if it.Note != nil {
		n := *it.Note
		n.Raw = cloneRaw(it.Note.Raw)
		cp.Note = &n
	}
	if it.Overlay != nil {
		ov := *it.Overlay
		ov.Raw = cloneRaw(it.Overlay.Raw)
		cp.Overlay = &ov
	}
	return &cp
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []*Item) []*Item {
	if items == nil {
		return nil
	}
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		out = append(out, it.Clone())
	}
	return out
}

func cloneRaw(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneRaw(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
