package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	var format string
	var only string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List yaks as a tree",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch only {
			case onlyAll, onlyDone, onlyNotDone:
			default:
				return fmt.Errorf("unknown --only value %q (want done or not-done)", only)
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()
			c, err := ws.Load(cmdContext(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return renderList(out, c, format, only, isTerminal(out))
		},
	}
	cmd.Flags().StringVar(&format, "format", formatMarkdown, "output format: markdown, plain, json or yaml")
	cmd.Flags().StringVar(&only, "only", onlyAll, "filter: done or not-done")
	return cmd
}
