// Package list prints the items of one agenda range.
package list

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/printers"
)

// List loads the coordinator's range and prints it.
type List struct {
	Agenda *agenda.Coordinator
	Output *options.OutputOptions
	ShowID bool
	// Calendar prints a month grid with per-day counts above the listing.
	Calendar  bool
	WeekStart time.Weekday
	Out       io.Writer
}

func (l *List) Do(ctx context.Context) error {
	if l.Agenda == nil {
		return errors.New("can not list, no agenda")
	}
	if err := l.Agenda.Start(ctx); err != nil {
		return err
	}
	items := l.Agenda.Items()
	out := l.Out
	if out == nil {
		out = color.Output
	}
	o := l.Output
	if o == nil {
		o = &options.OutputOptions{}
	}
	if o.JSON {
		return o.WriteJSON(out, printers.Records(items))
	}

	pp := printers.PrettyPrint{Out: out, ShowID: l.ShowID}
	r := l.Agenda.Range()
	if l.Calendar {
		pp.NewLine()
		pp.Month(r.Start, l.WeekStart, items)
		pp.NewLine()
	}
	if o.Table {
		pp.TitleWithCount(printers.RangeTitle(r), len(items))
		pp.Table(items)
		return nil
	}
	pp.NewLine()
	pp.Agenda(r, items)
	return nil
}

