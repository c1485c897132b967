package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/tui"
)

func addUI(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "open the text-based user interface",
		Long: options.Wrap80(`Opens the interactive agenda. Hover an item with the mouse
to preview it, right-click for actions. View and filter changes are saved.
Logs are written to log_file when it is configured.`),
		Example: `
agenda ui
agenda ui --on 2025-3-1
`,
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(os.Stderr, true)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			store := e.store()
			bridge := tui.NewBridge()
			coord, err := e.coordinator(coordinatorOptions{
				Prefs:     store,
				Confirmer: bridge,
				Modal:     bridge,
				Range:     ro,
			})
			if err != nil {
				return err
			}

			// Follow `agenda prefs set` from other shells.
			if changes, err := store.Watch(ctx); err != nil {
				e.logger.Warn("preferences watch unavailable", "err", err)
			} else {
				go func() {
					for p := range changes {
						if err := coord.ApplyPreferences(ctx, p); err != nil {
							e.logger.Warn("applying preferences failed", "err", err)
						}
					}
				}()
			}

			return tui.Run(ctx, tui.Options{
				Agenda: coord,
				Bridge: bridge,
				Saver:  e.client,
				Logger: e.logger,
			})
		},
	}

	options.AddOnArgs(cmd, ro)

	topLevel.AddCommand(cmd)
}
