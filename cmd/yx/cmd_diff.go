package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/diff"
)

func newDiffCmd() *cobra.Command {
	var notes bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show local changes since the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			base, local, err := ws.Pending(cmdContext(cmd))
			if err != nil {
				return err
			}
			changes := diff.Collections(base, local)
			out := cmd.OutOrStdout()
			if len(changes) == 0 {
				fmt.Fprintln(out, "no changes since last sync")
				return nil
			}
			fmt.Fprint(out, diff.FormatSummary(changes))
			if notes {
				if text := diff.FormatNotes(changes); text != "" {
					fmt.Fprintln(out)
					fmt.Fprint(out, text)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notes, "notes", false, "also show line-level note changes")
	return cmd
}
