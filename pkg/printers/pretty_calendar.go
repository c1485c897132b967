package printers

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/agenda/pkg/calendar"
)

const width = len("11 12 13 14 15 16 17") // an example week

// Month prints a small month grid. Days that have items are bold.
func (pp *PrettyPrint) Month(then time.Time, weekStart time.Weekday, items []*calendar.Item) {
	count := make([]int, DaysIn(then))
	for _, it := range items {
		if it.Start.Year() == then.Year() && it.Start.Month() == then.Month() {
			count[it.Start.Day()-1]++
		}
	}
	pp.PrintMonthCount(then, weekStart, count)
}

func (pp *PrettyPrint) PrintMonthCount(then time.Time, weekStart time.Weekday, count []int) {
	out := pp.out()
	tf := color.New(color.FgWhite, color.Italic)

	m := then.Month().String()
	mid := (width - len(m)) / 2
	_, _ = tf.Fprintf(out, "%s%s%s\n", strings.Repeat(" ", mid), m, strings.Repeat(" ", width-mid-len(m)))

	hf := color.New(color.Faint)
	heads := make([]string, 7)
	for i := range heads {
		heads[i] = time.Weekday((int(weekStart) + i) % 7).String()[0:2]
	}
	_, _ = hf.Fprintln(out, strings.Join(heads, " "))

	// Pad out the start of the month.
	col := (int(StartDay(then)) - int(weekStart) + 7) % 7
	_, _ = fmt.Fprint(out, strings.Repeat("   ", col))

	l1 := color.New(color.Faint, color.FgWhite)
	l2 := color.New(color.Bold, color.FgHiWhite)

	for i := 0; i < DaysIn(then); i++ {
		if i < len(count) && count[i] > 0 {
			_, _ = l2.Fprintf(out, "%2d ", i+1)
		} else {
			_, _ = l1.Fprintf(out, "%2d ", i+1)
		}
		col++
		if col == 7 {
			col = 0
			_, _ = fmt.Fprint(out, "\n")
		}
	}
	_, _ = fmt.Fprint(out, "\n\n")
}

func DaysIn(then time.Time) int {
	return time.Date(then.Year(), then.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func StartDay(then time.Time) time.Weekday {
	return time.Date(then.Year(), then.Month(), 1, 1, 0, 0, 0, time.UTC).Weekday()
}
