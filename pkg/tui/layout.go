package tui

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/reflow/truncate"

	"tableflip.dev/agenda/pkg/adapter"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/colorutil"
	"tableflip.dev/agenda/pkg/printers"
)

// Screen rows above the agenda body: range title, then search.
const (
	headerRows = 2
	footerRows = 1
)

type rowKind int

const (
	rowDay rowKind = iota
	rowItem
	rowEmpty
)

type row struct {
	kind rowKind
	day  time.Time
	item *calendar.Item
}

// buildRows groups items by day. Week and day views list every day of the
// range; month and list views only the days that have something.
func buildRows(items []*calendar.Item, r calendar.Range, view calendar.View) []row {
	byDay := make(map[string][]*calendar.Item)
	for _, it := range items {
		key := it.Start.Format("2006-01-02")
		byDay[key] = append(byDay[key], it)
	}
	dense := view == calendar.ViewWeek || view == calendar.ViewDay

	var rows []row
	for _, day := range r.Days() {
		dayItems := byDay[day.Format("2006-01-02")]
		if len(dayItems) == 0 && !dense {
			continue
		}
		rows = append(rows, row{kind: rowDay, day: day})
		if len(dayItems) == 0 {
			rows = append(rows, row{kind: rowEmpty, day: day})
			continue
		}
		for _, it := range dayItems {
			rows = append(rows, row{kind: rowItem, day: day, item: it})
		}
	}
	if len(rows) == 0 {
		rows = append(rows, row{kind: rowEmpty, day: r.Start})
	}
	return rows
}

func itemIndex(rows []row, id string) int {
	for i, r := range rows {
		if r.kind == rowItem && r.item.ID == id {
			return i
		}
	}
	return -1
}

// stepItem finds the next item row from index from in direction dir.
func stepItem(rows []row, from, dir int) int {
	for i := from + dir; i >= 0 && i < len(rows); i += dir {
		if rows[i].kind == rowItem {
			return i
		}
	}
	return -1
}

func firstItem(rows []row) int {
	return stepItem(rows, -1, 1)
}

func (m Model) bodyHeight() int {
	h := m.height - headerRows - footerRows
	if h < 1 {
		return 1
	}
	return h
}

// visibleOffset clamps the scroll offset so selected stays on screen.
func (m Model) visibleOffset(rows []row, selected int) int {
	offset := m.offset
	height := m.bodyHeight()
	if selected >= 0 {
		if selected < offset {
			offset = selected
			// keep the day header of the first item visible
			if offset > 0 && rows[offset-1].kind == rowDay {
				offset--
			}
		}
		if selected >= offset+height {
			offset = selected - height + 1
		}
	}
	if last := len(rows) - height; offset > last {
		offset = last
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func (m Model) renderRow(r row, selected bool, today time.Time) string {
	th := m.theme.Agenda
	switch r.kind {
	case rowDay:
		label := r.day.Format("Mon Jan 2")
		if sameDay(r.day, today) {
			return th.Today.Render(label + " · today")
		}
		return th.Day.Render(label)
	case rowEmpty:
		return "   " + th.Empty.Render("nothing scheduled")
	}

	it := r.item
	cursor := "  "
	if selected {
		cursor = th.Selected.Render("→ ")
	}
	titleWidth := m.width - 20
	if titleWidth < 8 {
		titleWidth = 8
	}
	title := truncate.StringWithTail(it.Title, uint(titleWidth), "…")
	chip := chipStyle(it).Render(printers.Marker(it) + " " + title)
	return fmt.Sprintf(" %s%s %s", cursor, th.Time.Render(fmt.Sprintf("%-11s", printers.When(it))), chip)
}

func chipStyle(it *calendar.Item) lipgloss.Style {
	st := adapter.StyleFor(it)
	style := lipgloss.NewStyle().
		Background(opaque(st.Background)).
		Foreground(opaque(st.Foreground))
	if it.Event != nil && it.Event.Status == calendar.StatusCanceled {
		style = style.Strikethrough(true)
	}
	if it.Note != nil && it.Note.Completed {
		style = style.Faint(true)
	}
	return style
}

// opaque flattens a translucent color onto white; terminals ignore alpha.
func opaque(s string) color.Color {
	c, ok := colorutil.Parse(s)
	if !ok {
		return lipgloss.NoColor{}
	}
	if c.A < 1 {
		mixed, _ := colorutil.Mix(c.Hex(), 1-c.A)
		c = mixed
	}
	c.A = 1
	return c.Color()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (m Model) renderBody(rows []row, selected, offset int) []string {
	height := m.bodyHeight()
	today := m.now()
	lines := make([]string, 0, height)
	for i := offset; i < len(rows) && len(lines) < height; i++ {
		lines = append(lines, m.renderRow(rows[i], i == selected, today))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines
}

func joinLines(parts ...[]string) string {
	var all []string
	for _, p := range parts {
		all = append(all, p...)
	}
	return strings.Join(all, "\n")
}
