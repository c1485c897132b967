package options

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/prefs"
)

const (
	layoutISO      = "2006-1-2"
	layoutISOShort = "1/2"
)

// RangeOptions pick the range a command loads. Unset fields fall back to the
// persisted preferences.
type RangeOptions struct {
	OnString string
	View     string

	Overlays      bool
	NoOverlays    bool
	OnlyImportant bool
	Query         string
}

func AddOnArgs(cmd *cobra.Command, o *RangeOptions) {
	cmd.Flags().StringVar(&o.OnString, "on", "",
		`Specify a date inside the range, example: --on="2020-2-28" or --on="2/28".`)
}

func AddRangeArgs(cmd *cobra.Command, o *RangeOptions) {
	AddOnArgs(cmd, o)
	cmd.Flags().StringVar(&o.View, "view", "",
		"Range to load: month, week, day or list. Defaults to the saved view.")
}

func AddFilterArgs(cmd *cobra.Command, o *RangeOptions) {
	cmd.Flags().BoolVar(&o.Overlays, "overlays", false,
		"Include invoice due-date overlays.")
	cmd.Flags().BoolVar(&o.NoOverlays, "no-overlays", false,
		"Hide invoice due-date overlays.")
	cmd.Flags().BoolVar(&o.OnlyImportant, "important", false,
		"Only show important items.")
	cmd.Flags().StringVarP(&o.Query, "query", "q", "",
		"Only show items matching the search text.")
}

// GetOn parses --on relative to now. A zero time means it was not set.
func (o *RangeOptions) GetOn(now time.Time) (time.Time, error) {
	if o.OnString == "" {
		return time.Time{}, nil
	}
	loc := now.Location()
	t, err := time.ParseInLocation(layoutISO, o.OnString, loc)
	if err != nil {
		// Let the year be the same.
		t, err = time.ParseInLocation(layoutISOShort, o.OnString, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --on %q: %w", o.OnString, err)
		}
		t = t.AddDate(now.Year(), 0, 0)
		// 1/3 said on 12/5 means next year, not eleven months ago.
		if t.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)) {
			t = t.AddDate(1, 0, 0)
		}
	}
	return t, nil
}

// Apply overlays the flags on p.
func (o *RangeOptions) Apply(p prefs.Preferences) (prefs.Preferences, error) {
	if o.View != "" {
		v, ok := calendar.ParseView(o.View)
		if !ok {
			return p, fmt.Errorf("invalid --view %q: want month, week, day or list", o.View)
		}
		p.View = v
	}
	if o.Overlays && o.NoOverlays {
		return p, fmt.Errorf("--overlays and --no-overlays are mutually exclusive")
	}
	if o.Overlays {
		p.ShowOverlays = true
	}
	if o.NoOverlays {
		p.ShowOverlays = false
	}
	if o.OnlyImportant {
		p.OnlyImportant = true
	}
	return p, nil
}
