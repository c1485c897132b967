package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/config"
	"tableflip.dev/agenda/pkg/prefs"
	"tableflip.dev/agenda/pkg/printers"
)

func addPrefs(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show the saved view preferences",
		Example: `
agenda prefs
agenda prefs --json
agenda prefs set --view week --no-overlays
`,
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := prefsStore()
			if err != nil {
				return oo.HandleError(err)
			}
			return oo.HandleError(showPrefs(store.Load()))
		},
	}
	options.AddOutputArg(cmd, oo)

	addPrefsSet(cmd)
	addPrefsReset(cmd)
	topLevel.AddCommand(cmd)
}

func addPrefsSet(parent *cobra.Command) {
	ro := &options.RangeOptions{}
	all := false

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the saved view preferences",
		Example: `
agenda prefs set --view day
agenda prefs set --overlays --important
agenda prefs set --all
`,
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := prefsStore()
			if err != nil {
				return oo.HandleError(err)
			}
			p, err := ro.Apply(store.Load())
			if err != nil {
				return oo.HandleError(err)
			}
			if all {
				if ro.OnlyImportant {
					return oo.HandleError(fmt.Errorf("--all and --important are mutually exclusive"))
				}
				p.OnlyImportant = false
			}
			if err := store.Save(p); err != nil {
				return oo.HandleError(err)
			}
			return oo.HandleError(showPrefs(p))
		},
	}

	cmd.Flags().StringVar(&ro.View, "view", "", "Saved view: month, week, day or list.")
	cmd.Flags().BoolVar(&ro.Overlays, "overlays", false, "Show invoice due-date overlays.")
	cmd.Flags().BoolVar(&ro.NoOverlays, "no-overlays", false, "Hide invoice due-date overlays.")
	cmd.Flags().BoolVar(&ro.OnlyImportant, "important", false, "Only show important items.")
	cmd.Flags().BoolVar(&all, "all", false, "Show every item, not only important ones.")
	options.AddOutputArg(cmd, oo)
	_ = cmd.RegisterFlagCompletionFunc("view", viewCompletions)

	parent.AddCommand(cmd)
}

func addPrefsReset(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:       "reset",
		Short:     "Restore the default view preferences",
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := prefsStore()
			if err != nil {
				return oo.HandleError(err)
			}
			p := prefs.Defaults()
			if err := store.Save(p); err != nil {
				return oo.HandleError(err)
			}
			return oo.HandleError(showPrefs(p))
		},
	}
	options.AddOutputArg(cmd, oo)

	parent.AddCommand(cmd)
}

// prefsStore opens the preference store without requiring server settings.
func prefsStore() (*prefs.Disk, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return prefs.Open(cfg.PrefsPath, slog.New(slog.NewTextHandler(io.Discard, nil))), nil
}

func showPrefs(p prefs.Preferences) error {
	if oo.JSON {
		return oo.WriteJSON(color.Output, p)
	}
	pp := printers.PrettyPrint{}
	pp.Preferences(p)
	return nil
}
