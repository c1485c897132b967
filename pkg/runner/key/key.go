// Package key provides CLI helpers to display the agenda legend.
package key

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/printers"
)

// Key prints the item markers and event statuses.
type Key struct {
	Out io.Writer
}

func (k *Key) out() io.Writer {
	if k.Out == nil {
		return color.Output
	}
	return k.Out
}

// Do renders the marker and status keys.
func (k *Key) Do(_ context.Context) error {
	bold := color.New(color.Bold)
	_, _ = fmt.Fprintln(k.out(), "")

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Markers"), bold.Sprint("Meaning"))
	for _, l := range printers.Legends() {
		tbl.AddRow(l.Marker, l.Meaning)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(k.out(), tbl)
	_, _ = fmt.Fprintln(k.out(), "")

	tbl = uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Statuses"), bold.Sprint("Applies to"))
	for _, s := range calendar.Statuses {
		tbl.AddRow(string(s), "events")
	}
	tbl.AddRow("completed", "notes")
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(k.out(), tbl)

	_, _ = fmt.Fprintln(k.out(), "")
	return nil
}
