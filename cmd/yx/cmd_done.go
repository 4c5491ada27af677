package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/yak"
)

func newDoneCmd() *cobra.Command {
	var undo bool
	var recursive bool

	cmd := &cobra.Command{
		Use:   "done <name>",
		Short: "Mark a yak as shaved",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := nameArg(args)
			var id string
			if _, err := apply(cmd, func(c *yak.Collection) (*yak.Collection, error) {
				var err error
				if id, err = yak.Resolve(c, query); err != nil {
					return nil, err
				}
				if undo {
					return yak.Undo(c, id)
				}
				return yak.MarkDone(c, id, recursive)
			}); err != nil {
				return err
			}
			if undo {
				fmt.Fprintf(cmd.OutOrStdout(), "reopened %s\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "done %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "clear the done flag instead")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "also mark every descendant done")
	return cmd
}
