package options

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

// IDOptions
type IDOptions struct {
	ShowID bool
	ID     string
}

func AddShowIDArgs(cmd *cobra.Command, o *IDOptions) {
	cmd.Flags().BoolVarP(&o.ShowID, "show-id", "k", false,
		"Show the ID of each item.")
}

// ParseID takes the item id from the first positional argument.
func (o *IDOptions) ParseID(args []string) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("an item id is required")
	}
	o.ID = strings.TrimSpace(args[0])
	return nil
}
