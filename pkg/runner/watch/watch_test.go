package watch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/fetch"
)

func init() {
	color.NoColor = true
}

func item(id, title string) *calendar.Item {
	return &calendar.Item{
		ID:    id,
		Kind:  calendar.KindEvent,
		Title: title,
		Start: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
		Event: &calendar.EventData{Status: calendar.StatusScheduled},
	}
}

func TestDiff(t *testing.T) {
	w := &Watch{}
	r := calendar.MonthRange(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	first := w.Diff(r, []*calendar.Item{item("1", "a"), item("2", "b")})
	if first.Total != 2 || len(first.Added) != 0 || first.Removed != 0 {
		t.Fatalf("first snapshot = %+v", first)
	}

	next := w.Diff(r, []*calendar.Item{item("2", "b"), item("3", "c")})
	if next.Total != 2 || next.Removed != 1 || len(next.Added) != 1 || next.Added[0].ID != "3" {
		t.Fatalf("second snapshot = %+v", next)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	w := &Watch{Out: &buf, ShowID: true}
	r := calendar.MonthRange(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	w.Diff(r, []*calendar.Item{item("1", "a")})
	w.print(w.Diff(r, []*calendar.Item{item("2", "Kickoff")}))

	out := buf.String()
	for _, want := range []string{"January 2025 - 1 item", "Kickoff", "1 removed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHandleFailure(t *testing.T) {
	var buf bytes.Buffer
	w := &Watch{Out: &buf}
	w.handle(agenda.Event{Kind: agenda.EventFetch, Fetch: &fetch.Change{Kind: fetch.ChangeFailed, Err: errors.New("boom")}})
	if !strings.Contains(buf.String(), "refresh failed: boom") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestInvalidSchedule(t *testing.T) {
	w := &Watch{Agenda: &agenda.Coordinator{}, Schedule: "every tuesday"}
	if err := w.Do(context.Background()); err == nil || !strings.Contains(err.Error(), "schedule") {
		t.Fatalf("err = %v", err)
	}
}
