// Package export writes an agenda range as an iCalendar file.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/ics"
	"tableflip.dev/agenda/pkg/printers"
)

// Export loads the coordinator's range and serializes it.
type Export struct {
	Agenda *agenda.Coordinator
	// Path is the file to write; Out is used when empty.
	Path   string
	Out    io.Writer
	Name   string
	Domain string
	Now    time.Time
}

func (e *Export) Do(ctx context.Context) error {
	if e.Agenda == nil {
		return errors.New("can not export, no agenda")
	}
	if err := e.Agenda.Start(ctx); err != nil {
		return err
	}
	items := e.Agenda.Items()
	name := e.Name
	if name == "" {
		name = printers.RangeTitle(e.Agenda.Range())
	}
	opts := ics.Options{
		Name:     name,
		Overlays: e.Agenda.Preferences().ShowOverlays,
		Domain:   e.Domain,
		Now:      e.Now,
	}

	if e.Path == "" {
		out := e.Out
		if out == nil {
			out = os.Stdout
		}
		return ics.Write(out, items, opts)
	}

	f, err := os.Create(e.Path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := ics.Write(f, items, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	_, _ = color.New(color.Faint).Fprintf(color.Output, "wrote %d items to %s\n", len(items), e.Path)
	return nil
}
