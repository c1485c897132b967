package calendar

import (
	"fmt"
	"time"
)

// View is the layout the agenda is showing; it decides the visible range.
type View string

const (
	ViewMonth View = "month"
	ViewWeek  View = "week"
	ViewDay   View = "day"
	ViewList  View = "list"
)

// ParseView maps user input to a View, falling back to ViewMonth.
func ParseView(s string) (View, bool) {
	switch View(s) {
	case ViewMonth, ViewWeek, ViewDay, ViewList:
		return View(s), true
	}
	return ViewMonth, false
}

// Range is a half-open time window [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range is non-empty.
func (r Range) Valid() bool {
	return r.End.After(r.Start)
}

// Equal compares instants, ignoring location.
func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether [start, end) intersects the range. A zero-length
// span overlaps when its instant is contained.
func (r Range) Overlaps(start, end time.Time) bool {
	if !end.After(start) {
		return r.Contains(start)
	}
	return start.Before(r.End) && end.After(r.Start)
}

// Days lists the midnight of every day the range touches.
func (r Range) Days() []time.Time {
	var out []time.Time
	for d := startOfDay(r.Start); d.Before(r.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// DayRange is the day containing t.
func DayRange(t time.Time) Range {
	start := startOfDay(t)
	return Range{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekRange is the week containing t, starting on weekStart.
func WeekRange(t time.Time, weekStart time.Weekday) Range {
	start := startOfDay(t)
	offset := (int(start.Weekday()) - int(weekStart) + 7) % 7
	start = start.AddDate(0, 0, -offset)
	return Range{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthRange is the calendar month containing t.
func MonthRange(t time.Time) Range {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Range{Start: start, End: start.AddDate(0, 1, 0)}
}

// RangeFor returns the visible range of view around anchor. The list view
// spans the anchor's month.
func RangeFor(view View, anchor time.Time, weekStart time.Weekday) Range {
	switch view {
	case ViewDay:
		return DayRange(anchor)
	case ViewWeek:
		return WeekRange(anchor, weekStart)
	default:
		return MonthRange(anchor)
	}
}

// Shift moves anchor by one view-sized step in direction dir (+1 or -1).
func Shift(view View, anchor time.Time, dir int) time.Time {
	switch view {
	case ViewDay:
		return anchor.AddDate(0, 0, dir)
	case ViewWeek:
		return anchor.AddDate(0, 0, 7*dir)
	default:
		first := time.Date(anchor.Year(), anchor.Month(), 1, anchor.Hour(), anchor.Minute(), 0, 0, anchor.Location())
		return first.AddDate(0, dir, 0)
	}
}

// ParseWeekday accepts "monday" or "sunday"; anything else is Monday.
func ParseWeekday(s string) time.Weekday {
	if s == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
