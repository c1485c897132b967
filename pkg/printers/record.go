package printers

import (
	"time"

	"tableflip.dev/agenda/pkg/calendar"
)

// Record is the machine-readable shape of an item.
type Record struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	AllDay    bool       `json:"allDay"`
	State     string     `json:"state,omitempty"`
	Important bool       `json:"important"`
	Color     string     `json:"color,omitempty"`
}

// Records converts items for JSON output.
func Records(items []*calendar.Item) []Record {
	out := make([]Record, 0, len(items))
	for _, it := range items {
		out = append(out, Record{
			ID:        it.ID,
			Kind:      string(it.Kind),
			Title:     it.Title,
			Start:     it.Start,
			End:       it.End,
			AllDay:    it.AllDay,
			State:     State(it),
			Important: it.Important(),
			Color:     it.Color,
		})
	}
	return out
}

// Legend is a marker and what it stands for.
type Legend struct {
	Marker  string
	Meaning string
}

// Legends lists the markers Marker produces.
func Legends() []Legend {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sample := []struct {
		it      *calendar.Item
		meaning string
	}{
		{&calendar.Item{Kind: calendar.KindEvent, Start: day, Event: &calendar.EventData{}}, "event"},
		{&calendar.Item{Kind: calendar.KindEvent, Start: day, Event: &calendar.EventData{Important: true}}, "important event"},
		{&calendar.Item{Kind: calendar.KindNote, Start: day, Note: &calendar.NoteData{}}, "note, open"},
		{&calendar.Item{Kind: calendar.KindNote, Start: day, Note: &calendar.NoteData{Completed: true}}, "note, completed"},
		{&calendar.Item{Kind: calendar.KindOverlay, Start: day, Overlay: &calendar.OverlayData{}}, "invoice due (read-only)"},
	}
	out := make([]Legend, 0, len(sample))
	for _, s := range sample {
		out = append(out, Legend{Marker: Marker(s.it), Meaning: s.meaning})
	}
	return out
}
