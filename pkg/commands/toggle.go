package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/commands/options"
)

const (
	toggleImportant = "important"
	toggleCompleted = "completed"
)

func addToggle(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	io := &options.IDOptions{}
	what := ""

	cmd := &cobra.Command{
		Use:   "toggle <important|completed> <id>",
		Short: "Flip the importance of an item or the completion of a note",
		Example: `
agenda toggle important 42
agenda toggle completed 17 --on 1/15
`,
		ValidArgs: []string{toggleImportant, toggleCompleted},
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("what to toggle is required: important or completed")
			}
			what = strings.ToLower(args[0])
			if what != toggleImportant && what != toggleCompleted {
				return fmt.Errorf("can not toggle %q, want important or completed", args[0])
			}
			return io.ParseID(args[1:])
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
			switch what {
			case toggleImportant:
				err = coord.Executor().SetImportant(ctx, io.ID, !it.Important())
			case toggleCompleted:
				if it.Note == nil {
					err = fmt.Errorf("%s is not a note: %w", io.ID, calendar.ErrUnsupported)
					break
				}
				err = coord.Executor().SetCompleted(ctx, io.ID, !it.Note.Completed)
			}
			if err != nil {
				return oo.HandleError(err)
			}
			printItem(coord, io.ID)
			return nil
		},
	}

	options.AddOnArgs(cmd, ro)
	options.AddOutputArg(cmd, oo)

	topLevel.AddCommand(cmd)
}

func addStatus(topLevel *cobra.Command) {
	ro := &options.RangeOptions{}
	io := &options.IDOptions{}
	var status calendar.Status

	valid := make([]string, 0, len(calendar.Statuses))
	for _, s := range calendar.Statuses {
		valid = append(valid, string(s))
	}

	cmd := &cobra.Command{
		Use:   "status <id> <" + strings.Join(valid, "|") + ">",
		Short: "Set the status of an event",
		Example: `
agenda status 42 done
agenda status 42 canceled --on 2/3
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := io.ParseID(args); err != nil {
				return err
			}
			if len(args) < 2 {
				return fmt.Errorf("a status is required: %s", strings.Join(valid, ", "))
			}
			status = calendar.Status(strings.ToLower(args[1]))
			if !status.Valid() {
				return fmt.Errorf("invalid status %q, want one of %s", args[1], strings.Join(valid, ", "))
			}
			return nil
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
			if _, err := lookup(coord, io.ID); err != nil {
				return oo.HandleError(err)
			}
			if err := coord.Executor().SetStatus(ctx, io.ID, status); err != nil {
				return oo.HandleError(err)
			}
			printItem(coord, io.ID)
			return nil
		},
	}

	options.AddOnArgs(cmd, ro)

	topLevel.AddCommand(cmd)
}
