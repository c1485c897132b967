package commands

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
)

var (
	oo = &options.OutputOptions{}
)

func New() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: options.Wrap80("Events, notes and invoice due dates of an ERP organization on one calendar."),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				color.NoColor = true
			}
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addList(topLevel)
	addUI(topLevel)
	addWatch(topLevel)
	addExport(topLevel)
	addMove(topLevel)
	addToggle(topLevel)
	addStatus(topLevel)
	addDuplicate(topLevel)
	addDelete(topLevel)
	addPrefs(topLevel)
	addKey(topLevel)
	addConfig(topLevel)
	addCompletions(topLevel)
	addUpgrade(topLevel)
	addVersion(topLevel)
}
