package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tableflip.dev/agenda/pkg/config"
)

// effective is the printable form of config.Config.
type effective struct {
	config.Config `yaml:",inline"`
	WeekStart     string `yaml:"week_start"`
}

func addConfig(topLevel *cobra.Command) {
	validate := false

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Settings are read from .agenda.yaml in $AGENDA_CONFIG_PATH, the current
directory or $HOME, and from AGENDA_* environment variables. The token is
redacted.`,
		Example: `
agenda config
AGENDA_ORG=acme agenda config --validate
`,
		ValidArgs: []string{},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if validate {
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			out, err := renderConfig(cfg)
			if err != nil {
				return err
			}
			if cfg.File != "" {
				_, _ = color.New(color.Faint).Fprintf(color.Output, "# %s\n", cfg.File)
			}
			_, _ = fmt.Fprint(color.Output, out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Fail when required settings are missing.")

	topLevel.AddCommand(cmd)
}

func renderConfig(cfg *config.Config) (string, error) {
	e := effective{Config: cfg.Redacted(), WeekStart: strings.ToLower(cfg.WeekStart.String())}
	data, err := yaml.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("config: marshal: %w", err)
	}
	return string(data), nil
}
