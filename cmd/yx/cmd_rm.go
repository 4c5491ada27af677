package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/yak"
)

func newRmCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a yak",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := nameArg(args)
			var id string
			if _, err := apply(cmd, func(c *yak.Collection) (*yak.Collection, error) {
				var err error
				if id, err = yak.Resolve(c, query); err != nil {
					return nil, err
				}
				return yak.Delete(c, id, recursive)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove the yak and all of its children")
	return cmd
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove every done yak whose children are all done",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed []string
			if _, err := apply(cmd, func(c *yak.Collection) (*yak.Collection, error) {
				next, ids := yak.Prune(c)
				removed = ids
				return next, nil
			}); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(removed) == 0 {
				fmt.Fprintln(out, "nothing to prune")
				return nil
			}
			for _, id := range removed {
				fmt.Fprintf(out, "pruned %s\n", id)
			}
			return nil
		},
	}
}
