package commands

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
)

func addMove(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	io := &options.IDOptions{}
	mo := &options.MoveOptions{}

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Reschedule an event or note",
		Long: options.Wrap80(`Moves an item to another day or time. The duration is kept.
Notes move their due date. Invoice overlays are read-only.`),
		Example: `
agenda move 42 --to 2025-2-3
agenda move 42 --days 1 --at 14:30
agenda move 42 --all-day --on 1/10
`,
		Args: func(cmd *cobra.Command, args []string) error {
			return io.ParseID(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, err := loadEnv(os.Stderr, false)
			if err != nil {
				return oo.HandleError(err)
			}
			defer e.Close()

			coord, err := e.loaded(ctx, ro, nil)
			if err != nil {
				return oo.HandleError(err)
			}
			it, err := lookup(coord, io.ID)
			if err != nil {
				return oo.HandleError(err)
			}
			start, end, allDay, err := mo.Target(it, time.Now())
			if err != nil {
				return oo.HandleError(err)
			}
			if err := coord.Executor().Move(ctx, io.ID, start, end, allDay); err != nil {
				return oo.HandleError(err)
			}
			printItem(coord, io.ID)
			return nil
		},
	}

	options.AddOnArgs(cmd, ro)
	options.AddMoveArgs(cmd, mo)
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
