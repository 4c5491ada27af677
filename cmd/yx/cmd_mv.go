package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/yak"
)

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <name> <new-id>",
		Short: "Rename a yak or move it under another parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src string
			dst := args[1]
			if _, err := apply(cmd, func(c *yak.Collection) (*yak.Collection, error) {
				var err error
				if src, err = yak.Resolve(c, args[0]); err != nil {
					return nil, err
				}
				return yak.Move(c, src, dst)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %s -> %s\n", src, dst)
			return nil
		},
	}
}
