package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/calendar"
)

const layoutClock = "15:04"

// MoveOptions describe where an item goes.
type MoveOptions struct {
	To     RangeOptions
	At     string
	AllDay bool
	Days   int
}

func AddMoveArgs(cmd *cobra.Command, o *MoveOptions) {
	cmd.Flags().StringVar(&o.To.OnString, "to", "",
		`Target date, example: --to="2020-2-28" or --to="2/28".`)
	cmd.Flags().StringVar(&o.At, "at", "",
		`Start time on the target day, example: --at=14:30. Keeps the current time when empty.`)
	cmd.Flags().BoolVar(&o.AllDay, "all-day", false,
		"Make the item an all-day item.")
	cmd.Flags().IntVar(&o.Days, "days", 0,
		"Shift by this many days instead of giving --to.")
}

// Target computes the new start and end of it. The duration is kept.
func (o *MoveOptions) Target(it *calendar.Item, now time.Time) (time.Time, *time.Time, bool, error) {
	if o.Days != 0 && o.To.OnString != "" {
		return time.Time{}, nil, false, errors.New("--days and --to are mutually exclusive")
	}
	loc := it.Start.Location()
	day := it.Start
	if o.Days != 0 {
		day = day.AddDate(0, 0, o.Days)
	} else {
		to, err := o.To.GetOn(now.In(loc))
		if err != nil {
			return time.Time{}, nil, false, err
		}
		if to.IsZero() && o.At == "" && !o.AllDay {
			return time.Time{}, nil, false, errors.New("one of --to, --days, --at or --all-day is required")
		}
		if !to.IsZero() {
			day = time.Date(to.Year(), to.Month(), to.Day(), it.Start.Hour(), it.Start.Minute(), it.Start.Second(), 0, loc)
		}
	}

	allDay := it.AllDay || o.AllDay
	start := day
	if o.At != "" {
		at, err := time.ParseInLocation(layoutClock, o.At, loc)
		if err != nil {
			return time.Time{}, nil, false, fmt.Errorf("invalid --at %q: %w", o.At, err)
		}
		start = time.Date(day.Year(), day.Month(), day.Day(), at.Hour(), at.Minute(), 0, 0, loc)
		allDay = false
	}
	if allDay {
		start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	}

	var end *time.Time
	if it.End != nil {
		e := start.Add(it.End.Sub(it.Start))
		end = &e
	}
	return start, end, allDay, nil
}
