package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/runner/watch"
)

func addWatch(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	io := &options.IDOptions{}
	schedule := ""

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload a range on a schedule and print what changed",
		Long: options.Wrap80(`Keeps the range loaded and refreshes it on a cron schedule
(the refresh setting, five minutes by default). Each committed load prints a
summary with the items that appeared since the previous one.`),
		Example: `
agenda watch
agenda watch --view day --schedule "*/1 * * * *"
`,
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(os.Stderr, false)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.scoped(ro)
			if err != nil {
				return err
			}
			coord, err := e.coordinator(coordinatorOptions{Prefs: store, Range: ro})
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = e.cfg.Refresh
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := watch.Watch{
				Agenda:   coord,
				Schedule: schedule,
				ShowID:   io.ShowID,
				Logger:   e.logger,
			}
			return w.Do(ctx)
		},
	}

	options.AddRangeArgs(cmd, ro)
	options.AddFilterArgs(cmd, ro)
	options.AddShowIDArgs(cmd, io)
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule; defaults to the refresh setting.")

	topLevel.AddCommand(cmd)
}
