package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/yak"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add a yak; slashes nest it under existing or new parents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := nameArg(args)
			if _, err := apply(cmd, func(c *yak.Collection) (*yak.Collection, error) {
				return yak.Add(c, id)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", id)
			return nil
		},
	}
}
