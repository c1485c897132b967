package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/runner/list"
)

func addList(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	io := &options.IDOptions{}
	calendarView := false

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "get"},
		Short:   "List the events, notes and invoice due dates of a range",
		Example: `
agenda list
agenda list --view week --on 2/3
agenda list --important --table
agenda list -q acme --json
`,
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(os.Stderr, false)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			store, err := e.scoped(ro)
			if err != nil {
				return oo.HandleError(err)
			}
			coord, err := e.coordinator(coordinatorOptions{Prefs: store, Range: ro})
			if err != nil {
				return oo.HandleError(err)
			}
			l := list.List{
				Agenda:    coord,
				Output:    oo,
				ShowID:    io.ShowID,
				Calendar:  calendarView,
				WeekStart: e.cfg.WeekStart,
			}
			return oo.HandleError(l.Do(context.Background()))
		},
	}

	options.AddRangeArgs(cmd, ro)
	options.AddFilterArgs(cmd, ro)
	options.AddShowIDArgs(cmd, io)
	options.AddOutputArg(cmd, oo)
	options.AddTableArg(cmd, oo)
	cmd.Flags().BoolVar(&calendarView, "calendar", false, "Print a month grid above the listing.")
	_ = cmd.RegisterFlagCompletionFunc("view", viewCompletions)

	topLevel.AddCommand(cmd)
}

func viewCompletions(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(calendar.ViewMonth),
		string(calendar.ViewWeek),
		string(calendar.ViewDay),
		string(calendar.ViewList),
	}, cobra.ShellCompDirectiveNoFileComp
}
