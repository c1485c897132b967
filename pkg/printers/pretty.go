// Package printers renders agenda items for the command line.
package printers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/muesli/reflow/truncate"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/prefs"
)

const titleWidth = 48

type PrettyPrint struct {
	Out    io.Writer
	ShowID bool
}

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out == nil {
		return color.Output
	}
	return pp.Out
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out(), "")
}

// TitleWithCount prints the range header with the number of items.
func (pp *PrettyPrint) TitleWithCount(title string, count int) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d", count)

	switch count {
	case 1:
		_, _ = c.Fprintln(pp.out(), " item")
	default:
		_, _ = c.Fprintln(pp.out(), " items")
	}
}

// RangeTitle is the header for r, e.g. "January 2025" or "Jan 13 - Jan 19, 2025".
func RangeTitle(r calendar.Range) string {
	last := r.End.AddDate(0, 0, -1)
	switch {
	case r.Start.Day() == 1 && r.End.Day() == 1 && r.Start.AddDate(0, 1, 0).Equal(r.End):
		return r.Start.Format("January 2006")
	case r.Start.AddDate(0, 0, 1).Equal(r.End):
		return r.Start.Format("Monday, Jan 2 2006")
	}
	return fmt.Sprintf("%s - %s", r.Start.Format("Jan 2"), last.Format("Jan 2, 2006"))
}

// Agenda prints items grouped by day.
func (pp *PrettyPrint) Agenda(r calendar.Range, items []*calendar.Item) {
	pp.TitleWithCount(RangeTitle(r), len(items))
	if len(items) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(pp.out(), " none\n\n")
		return
	}

	sorted := append([]*calendar.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	day := color.New(color.Bold)
	var current time.Time
	for _, it := range sorted {
		d := time.Date(it.Start.Year(), it.Start.Month(), it.Start.Day(), 0, 0, 0, 0, it.Start.Location())
		if !d.Equal(current) {
			if !current.IsZero() {
				pp.NewLine()
			}
			current = d
			_, _ = day.Fprintln(pp.out(), d.Format("Mon Jan 2"))
		}
		pp.Item(it)
	}
	pp.NewLine()
}

// Item prints one line: time, marker, title and id.
func (pp *PrettyPrint) Item(it *calendar.Item) {
	faint := color.New(color.Faint)
	y := color.New(color.FgHiYellow, color.Italic, color.Faint)

	_, _ = faint.Fprintf(pp.out(), "  %-11s ", When(it))
	style := kindColor(it)
	_, _ = style.Fprintf(pp.out(), "%s ", Marker(it))
	_, _ = color.New().Fprint(pp.out(), truncate.StringWithTail(it.Title, titleWidth, "…"))
	if pp.ShowID {
		_, _ = y.Fprintf(pp.out(), "  %s", it.ID)
	}
	_, _ = fmt.Fprintln(pp.out(), "")
}

// Table prints items as aligned columns.
func (pp *PrettyPrint) Table(items []*calendar.Item) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = titleWidth
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("KIND"), bold.Sprint("WHEN"), bold.Sprint("STATE"), bold.Sprint("TITLE"))
	for _, it := range items {
		tbl.AddRow(it.ID, string(it.Kind), it.Start.Format("2006-01-02")+" "+When(it), State(it), it.Title)
	}
	_, _ = fmt.Fprintln(pp.out(), tbl)
}

// Preferences prints the persisted view settings.
func (pp *PrettyPrint) Preferences(p prefs.Preferences) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("view"), string(p.View))
	tbl.AddRow(bold.Sprint("showOverlays"), fmt.Sprint(p.ShowOverlays))
	tbl.AddRow(bold.Sprint("onlyImportant"), fmt.Sprint(p.OnlyImportant))
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(pp.out(), tbl)
}

// When renders the time of day, or "all day".
func When(it *calendar.Item) string {
	if it.AllDay {
		return "all day"
	}
	if it.End != nil {
		return it.Start.Format("15:04") + "-" + it.End.Format("15:04")
	}
	return it.Start.Format("15:04")
}

// Marker is the one-glyph kind indicator.
func Marker(it *calendar.Item) string {
	switch it.Kind {
	case calendar.KindNote:
		if it.Note != nil && it.Note.Completed {
			return "✓"
		}
		return "–"
	case calendar.KindOverlay:
		return "$"
	}
	if it.Important() {
		return "!"
	}
	return "•"
}

// State is the status column text.
func State(it *calendar.Item) string {
	var parts []string
	switch {
	case it.Event != nil:
		parts = append(parts, string(it.Event.Status))
	case it.Note != nil:
		if it.Note.Completed {
			parts = append(parts, "completed")
		} else {
			parts = append(parts, "open")
		}
	case it.Overlay != nil:
		if it.Overlay.PaymentStatus != "" {
			parts = append(parts, it.Overlay.PaymentStatus)
		}
	}
	if it.Important() {
		parts = append(parts, "important")
	}
	return strings.Join(parts, ",")
}

func kindColor(it *calendar.Item) *color.Color {
	switch it.Kind {
	case calendar.KindNote:
		return color.New(color.FgCyan)
	case calendar.KindOverlay:
		return color.New(color.FgMagenta, color.Faint)
	}
	if it.Event != nil && it.Event.Status == calendar.StatusCanceled {
		return color.New(color.Faint, color.CrossedOut)
	}
	if it.Important() {
		return color.New(color.FgHiRed, color.Bold)
	}
	return color.New(color.FgGreen)
}
