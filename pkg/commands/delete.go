package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/mutate"
	"tableflip.dev/agenda/pkg/snake"
)

func addDelete(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	io := &options.IDOptions{}
	yes := false

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an event or note after confirming",
		Example: `
agenda delete 42
agenda delete 17 --on 1/15 --yes
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

			coord, err := e.loaded(ctx, ro, snake.Confirmer(yes))
			if err != nil {
				return oo.HandleError(err)
			}
			it, err := lookup(coord, io.ID)
			if err != nil {
				return oo.HandleError(err)
			}
			err = coord.Executor().Delete(ctx, io.ID)
			if errors.Is(err, mutate.ErrDeclined) {
				_, _ = color.New(color.Faint).Fprintln(color.Output, "canceled")
				return nil
			}
			if err != nil {
				return oo.HandleError(err)
			}
			_, _ = fmt.Fprintf(color.Output, "deleted %q\n", it.Title)
			return nil
		},
	}

	options.AddOnArgs(cmd, ro)
	options.AddOutputArg(cmd, oo)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation.")

	topLevel.AddCommand(cmd)
}
