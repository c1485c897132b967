package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/runner/export"
)

func addExport(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	out := ""
	name := ""

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a range as an iCalendar (.ics) file",
		Example: `
agenda export > january.ics
agenda export --view week --out week.ics
agenda export --overlays --on 2025-3-1 --out march.ics
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
			x := export.Export{
				Agenda: coord,
				Path:   out,
				Name:   name,
				Domain: e.cfg.Org,
			}
			return x.Do(context.Background())
		},
	}

	options.AddRangeArgs(cmd, ro)
	options.AddFilterArgs(cmd, ro)
	cmd.Flags().StringVarP(&out, "out", "o", "", "File to write; stdout when empty.")
	cmd.Flags().StringVar(&name, "name", "", "Calendar name; defaults to the range title.")
	_ = cmd.RegisterFlagCompletionFunc("view", viewCompletions)

	topLevel.AddCommand(cmd)
}
