// Package watch keeps an agenda range fresh on a cron schedule.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/fetch"
	"tableflip.dev/agenda/pkg/printers"
)

// Watch reloads the visible range on Schedule and prints a summary line for
// every committed load until ctx is done.
type Watch struct {
	Agenda   *agenda.Coordinator
	Schedule string
	ShowID   bool
	Logger   *slog.Logger
	Out      io.Writer

	seen map[string]struct{}
}

// Summary describes how a committed snapshot differs from the previous one.
type Summary struct {
	Range   calendar.Range
	Total   int
	Added   []*calendar.Item
	Removed int
}

func (w *Watch) out() io.Writer {
	if w.Out == nil {
		return color.Output
	}
	return w.Out
}

func (w *Watch) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w.Logger
}

func (w *Watch) Do(ctx context.Context) error {
	if w.Agenda == nil {
		return errors.New("can not watch, no agenda")
	}
	sched, err := cron.ParseStandard(w.Schedule)
	if err != nil {
		return fmt.Errorf("watch: schedule %q: %w", w.Schedule, err)
	}

	events := w.Agenda.Subscribe()
	if err := w.Agenda.Start(ctx); err != nil {
		return err
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(func() {
		if err := w.Agenda.Refresh(ctx); err != nil && ctx.Err() == nil {
			w.logger().Warn("watch: refresh failed", "err", err)
		}
	}))
	c.Start()
	defer func() { <-c.Stop().Done() }()

	w.logger().Info("watch: started", "schedule", w.Schedule, "range", w.Agenda.Range().String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			w.handle(ev)
		}
	}
}

func (w *Watch) handle(ev agenda.Event) {
	if ev.Kind != agenda.EventFetch || ev.Fetch == nil {
		return
	}
	switch ev.Fetch.Kind {
	case fetch.ChangeCommitted:
		w.print(w.Diff(ev.Fetch.Range, w.Agenda.Items()))
	case fetch.ChangeFailed:
		_, _ = color.New(color.FgRed).Fprintf(w.out(), "refresh failed: %v\n", ev.Fetch.Err)
	}
}

// Diff records items as the latest snapshot and reports what changed.
func (w *Watch) Diff(r calendar.Range, items []*calendar.Item) Summary {
	s := Summary{Range: r, Total: len(items)}
	next := make(map[string]struct{}, len(items))
	for _, it := range items {
		next[it.ID] = struct{}{}
		if w.seen == nil {
			continue
		}
		if _, ok := w.seen[it.ID]; !ok {
			s.Added = append(s.Added, it)
		}
	}
	for id := range w.seen {
		if _, ok := next[id]; !ok {
			s.Removed++
		}
	}
	w.seen = next
	return s
}

func (w *Watch) print(s Summary) {
	pp := printers.PrettyPrint{Out: w.out(), ShowID: w.ShowID}
	pp.TitleWithCount(printers.RangeTitle(s.Range), s.Total)
	for _, it := range s.Added {
		pp.Item(it)
	}
	if s.Removed > 0 {
		_, _ = color.New(color.Faint).Fprintf(w.out(), "  %d removed\n", s.Removed)
	}
}
