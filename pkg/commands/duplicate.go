package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/mutate"
)

func addDuplicate(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	io := &options.IDOptions{}

	cmd := &cobra.Command{
		Use:     "duplicate <id>",
		Aliases: []string{"dup", "copy"},
		Short:   "Copy an event or note on the same day",
		Example: `
agenda duplicate 42
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
			if err := coord.Executor().Duplicate(ctx, io.ID); err != nil {
				return oo.HandleError(err)
			}
			_, _ = fmt.Fprintf(color.Output, "created %q\n", it.Title+mutate.CopySuffix)
			return nil
		},
	}

	options.AddOnArgs(cmd, ro)
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}
