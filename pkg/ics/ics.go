// Package ics exports agenda items as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tableflip.dev/agenda/pkg/calendar"
)

const productID = "-//tableflip.dev//agenda//EN"

// Options tune an export.
type Options struct {
	// Name is written as X-WR-CALNAME when set.
	Name string
	// Overlays includes invoice-due overlays.
	Overlays bool
	// Domain suffixes generated UIDs.
	Domain string
	// Now stamps DTSTAMP; time.Now when zero.
	Now time.Time
}

// Build converts items into a calendar. Events keep their times; notes and
// overlays become all-day entries on their due date.
func Build(items []*calendar.Item, opts Options) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	domain := opts.Domain
	if domain == "" {
		domain = "agenda"
	}
	stamp := opts.Now
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, it := range items {
		if it.Kind == calendar.KindOverlay && !opts.Overlays {
			continue
		}
		ev := cal.AddEvent(UID(it, domain))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(it.Title)
		if it.AllDay || it.Kind != calendar.KindEvent {
			day := time.Date(it.Start.Year(), it.Start.Month(), it.Start.Day(), 0, 0, 0, 0, time.UTC)
			ev.SetAllDayStartAt(day)
			end := day.AddDate(0, 0, 1)
			if it.End != nil && it.End.After(it.Start) {
				e := *it.End
				end = time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
				if !end.After(day) {
					end = day.AddDate(0, 0, 1)
				}
			}
			ev.SetAllDayEndAt(end)
		} else {
			ev.SetStartAt(it.Start.UTC())
			ev.SetEndAt(eventEnd(it).UTC())
		}
		ev.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(it.Kind)))
		describe(ev, it)
	}
	return cal
}

// Write serializes items to w.
func Write(w io.Writer, items []*calendar.Item, opts Options) error {
	if err := Build(items, opts).SerializeTo(w); err != nil {
		return fmt.Errorf("ics: write: %w", err)
	}
	return nil
}

// UID is the stable identifier of it in exported feeds.
func UID(it *calendar.Item, domain string) string {
	return fmt.Sprintf("%s-%s@%s", it.Kind, strings.TrimPrefix(it.ID, "overlay-"), domain)
}

func eventEnd(it *calendar.Item) time.Time {
	if it.End != nil && it.End.After(it.Start) {
		return *it.End
	}
	return it.Start.Add(time.Hour)
}

func describe(ev *ical.VEvent, it *calendar.Item) {
	switch {
	case it.Event != nil:
		if it.Event.Description != "" {
			ev.SetDescription(it.Event.Description)
		}
		if it.Event.Location != "" {
			ev.SetLocation(it.Event.Location)
		}
		switch it.Event.Status {
		case calendar.StatusCanceled:
			ev.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
		default:
			ev.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		}
	case it.Note != nil:
		if it.Note.Body != "" {
			ev.SetDescription(it.Note.Body)
		}
	case it.Overlay != nil:
		o := it.Overlay
		ev.SetDescription(strings.TrimSpace(fmt.Sprintf("%.2f %s %s", o.Amount, o.Currency, o.PaymentStatus)))
	}
	if it.Important() {
		ev.SetProperty(ical.ComponentPropertyPriority, "1")
	}
}
