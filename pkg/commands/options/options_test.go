package options

import (
	"testing"
	"time"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/prefs"
)

func TestGetOn(t *testing.T) {
	now := time.Date(2025, 12, 5, 15, 0, 0, 0, time.UTC)
	tests := map[string]struct {
		on   string
		want time.Time
	}{
		"empty":       {on: ""},
		"iso":         {on: "2025-2-28", want: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		"short later": {on: "12/24", want: time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)},
		"short today": {on: "12/5", want: time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)},
		"short past":  {on: "1/3", want: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			o := RangeOptions{OnString: tc.on}
			got, err := o.GetOn(now)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("GetOn(%q) = %v, want %v", tc.on, got, tc.want)
			}
		})
	}

	o := RangeOptions{OnString: "tomorrow"}
	if _, err := o.GetOn(now); err == nil {
		t.Fatal("expected an error for an unparsable date")
	}
}

func TestApply(t *testing.T) {
	base := prefs.Preferences{View: calendar.ViewMonth, ShowOverlays: true}

	o := RangeOptions{View: "week", NoOverlays: true, OnlyImportant: true}
	got, err := o.Apply(base)
	if err != nil {
		t.Fatal(err)
	}
	want := prefs.Preferences{View: calendar.ViewWeek, OnlyImportant: true}
	if got != want {
		t.Fatalf("Apply = %+v, want %+v", got, want)
	}

	if _, err := (&RangeOptions{View: "year"}).Apply(base); err == nil {
		t.Error("expected an error for an unknown view")
	}
	if _, err := (&RangeOptions{Overlays: true, NoOverlays: true}).Apply(base); err == nil {
		t.Error("expected an error for conflicting overlay flags")
	}
}

func TestMoveTarget(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 10, 30, 0, 0, time.UTC)
	event := &calendar.Item{
		Kind:  calendar.KindEvent,
		Start: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
		End:   &end,
	}

	t.Run("to keeps time and duration", func(t *testing.T) {
		o := MoveOptions{To: RangeOptions{OnString: "2025-1-20"}}
		start, e, allDay, err := o.Target(event, now)
		if err != nil {
			t.Fatal(err)
		}
		if !start.Equal(time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)) || allDay {
			t.Fatalf("start = %v allDay = %v", start, allDay)
		}
		if e == nil || !e.Equal(time.Date(2025, 1, 20, 10, 30, 0, 0, time.UTC)) {
			t.Fatalf("end = %v", e)
		}
	})

	t.Run("days and at", func(t *testing.T) {
		o := MoveOptions{Days: -1, At: "14:00"}
		start, _, _, err := o.Target(event, now)
		if err != nil {
			t.Fatal(err)
		}
		if !start.Equal(time.Date(2025, 1, 9, 14, 0, 0, 0, time.UTC)) {
			t.Fatalf("start = %v", start)
		}
	})

	t.Run("all day", func(t *testing.T) {
		o := MoveOptions{AllDay: true}
		start, _, allDay, err := o.Target(event, now)
		if err != nil {
			t.Fatal(err)
		}
		if !allDay || !start.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("start = %v allDay = %v", start, allDay)
		}
	})

	t.Run("nothing given", func(t *testing.T) {
		o := MoveOptions{}
		if _, _, _, err := o.Target(event, now); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("conflicting", func(t *testing.T) {
		o := MoveOptions{Days: 1, To: RangeOptions{OnString: "1/20"}}
		if _, _, _, err := o.Target(event, now); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestWrap(t *testing.T) {
	got := Wrap("one  two\nthree four", 9)
	if got != "one two\nthree\nfour" {
		t.Fatalf("Wrap = %q", got)
	}
}
