package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge with the shared remote and publish the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			out := cmd.OutOrStdout()
			if !ws.HasRemote() {
				fmt.Fprintln(out, "no remote configured; nothing to sync")
				return nil
			}
			res, err := ws.Sync(cmdContext(cmd))
			if err != nil {
				return err
			}
			if res.HadConflicts {
				fmt.Fprintf(out, "conflicting edits resolved in favour of local copy: %s\n", strings.Join(res.Conflicts, ", "))
			}
			if res.Published {
				fmt.Fprintf(out, "synced %d yak(s), published %s\n", res.Merged.Len(), shortID(string(res.ContentID)))
			} else {
				fmt.Fprintf(out, "synced %d yak(s), already up to date\n", res.Merged.Len())
			}
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
