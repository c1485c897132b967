package adapter

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"tableflip.dev/agenda/pkg/calendar"
)

// OverlayIDPrefix keeps overlay ids from colliding with event and note ids.
const OverlayIDPrefix = "overlay-"

// Adapter maps decoded list items into calendar items. Zone-less timestamps
// and bare dates are interpreted in Location.
type Adapter struct {
	Location *time.Location
	Logger   *slog.Logger
}

// New returns an Adapter for loc (time.Local when nil).
func New(loc *time.Location, logger *slog.Logger) *Adapter {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Adapter{Location: loc, Logger: logger}
}

var errMissingID = errors.New("missing id")

// Events maps the events list. Objects without an id or a start are skipped.
func (a *Adapter) Events(list List) []*calendar.Item {
	return a.each(list, calendar.KindEvent, a.event)
}

// Notes maps the notes list. Only notes with a due date become items.
func (a *Adapter) Notes(list List) []*calendar.Item {
	return a.each(list, calendar.KindNote, a.note)
}

// Overlays maps the invoices-due list into read-only overlays.
func (a *Adapter) Overlays(list List) []*calendar.Item {
	return a.each(list, calendar.KindOverlay, a.overlay)
}

func (a *Adapter) each(list List, kind calendar.Kind, fn func(map[string]any) (*calendar.Item, error)) []*calendar.Item {
	out := make([]*calendar.Item, 0, len(list.Items))
	for i, raw := range list.Items {
		obj, err := decodeObject(raw)
		if err != nil {
			a.Logger.Warn("adapter: skipping undecodable item", "kind", kind, "index", i, "err", err)
			continue
		}
		item, err := fn(obj)
		if err != nil {
			a.Logger.Debug("adapter: skipping item", "kind", kind, "index", i, "err", err)
			continue
		}
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

func (a *Adapter) event(obj map[string]any) (*calendar.Item, error) {
	id := ident(obj, "id")
	if id == "" {
		return nil, errMissingID
	}
	start, startDateOnly, ok := parseTime(str(obj, "start", "start_at", "starts_at"), a.Location)
	if !ok {
		return nil, errors.New("missing start")
	}
	item := &calendar.Item{
		ID:     id,
		Kind:   calendar.KindEvent,
		Title:  str(obj, "title", "name"),
		Start:  start,
		AllDay: boolean(obj, "all_day", "allDay") || startDateOnly,
		Color:  str(obj, "color"),
	}
	if end, _, ok := parseTime(str(obj, "end", "end_at", "ends_at"), a.Location); ok {
		item.End = &end
	}
	status := calendar.Status(str(obj, "status"))
	if status == "" {
		status = calendar.StatusScheduled
	}
	item.Event = &calendar.EventData{
		ContactID:   ident(obj, "contact_id", "contact"),
		InvoiceID:   ident(obj, "invoice_id", "invoice"),
		Status:      status,
		Important:   boolean(obj, "is_important", "important"),
		Description: str(obj, "description"),
		Location:    str(obj, "location"),
		Raw:         obj,
	}
	return item, nil
}

func (a *Adapter) note(obj map[string]any) (*calendar.Item, error) {
	id := ident(obj, "id")
	if id == "" {
		return nil, errMissingID
	}
	due, dateOnly, ok := parseTime(str(obj, "due_date", "due_at", "due"), a.Location)
	if !ok {
		// Notes without a due date have no place on the timeline.
		return nil, nil
	}
	return &calendar.Item{
		ID:     id,
		Kind:   calendar.KindNote,
		Title:  str(obj, "title"),
		Start:  due,
		AllDay: dateOnly || boolean(obj, "all_day"),
		Color:  str(obj, "color"),
		Note: &calendar.NoteData{
			ContactID: ident(obj, "contact_id", "contact"),
			InvoiceID: ident(obj, "invoice_id", "invoice"),
			DueDate:   due,
			Completed: boolean(obj, "is_completed", "completed"),
			Important: boolean(obj, "is_important", "important"),
			Body:      str(obj, "body", "content"),
			Raw:       obj,
		},
	}, nil
}

func (a *Adapter) overlay(obj map[string]any) (*calendar.Item, error) {
	invoiceID := ident(obj, "invoice_id", "id")
	if invoiceID == "" {
		return nil, errMissingID
	}
	due, _, ok := parseTime(str(obj, "due_date", "due"), a.Location)
	if !ok {
		return nil, errors.New("missing due date")
	}
	invNumber := str(obj, "number")
	label := invNumber
	if label == "" {
		label = "#" + invoiceID
	}
	return &calendar.Item{
		ID:     OverlayIDPrefix + invoiceID,
		Kind:   calendar.KindOverlay,
		Title:  "Invoice " + label + " due",
		Start:  due,
		AllDay: true,
		Color:  str(obj, "color"),
		Overlay: &calendar.OverlayData{
			InvoiceID:     invoiceID,
			ContactID:     ident(obj, "contact_id", "contact", "client"),
			Number:        invNumber,
			Amount:        number(obj, "total", "amount", "amount_due"),
			Currency:      str(obj, "currency"),
			PaymentStatus: str(obj, "payment_status", "status"),
			DueDate:       due,
			Raw:           obj,
		},
	}, nil
}

// Decode is DecodeList followed by the mapper for kind.
func (a *Adapter) Decode(kind calendar.Kind, body []byte) ([]*calendar.Item, error) {
	list, err := DecodeList(body)
	if err != nil {
		return nil, err
	}
	switch kind {
	case calendar.KindEvent:
		return a.Events(list), nil
	case calendar.KindNote:
		return a.Notes(list), nil
	case calendar.KindOverlay:
		return a.Overlays(list), nil
	}
	return nil, errors.New("adapter: unknown kind " + string(kind))
}
