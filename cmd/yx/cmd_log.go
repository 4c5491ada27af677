package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int
	var verify bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the history of yak commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			entries, err := ws.Log(cmdContext(cmd), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				if oneline {
					fmt.Fprintf(out, "%s %s\n", shortID(string(e.ID)), e.Message)
					continue
				}
				fmt.Fprintf(out, "snapshot %s\n", e.ID)
				if e.Author != "" {
					fmt.Fprintf(out, "Author: %s\n", e.Author)
				}
				fmt.Fprintf(out, "Date:   %s\n", e.Time.Format("2006-01-02 15:04:05"))
				if verify && e.Signed {
					var fingerprint string
					err := ws.Verify(cmdContext(cmd), e.ID, func(payload []byte, sig string) error {
						fingerprint = signerFingerprint(sig)
						return verifySSHSignature(payload, sig)
					})
					if err != nil {
						fmt.Fprintf(out, "Signature: BAD (%v)\n", err)
					} else {
						fmt.Fprintf(out, "Signature: good %s\n", fingerprint)
					}
				} else if e.Signed {
					fmt.Fprintln(out, "Signed: yes")
				}
				fmt.Fprintf(out, "\n    %s\n\n", e.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per snapshot")
	cmd.Flags().BoolVar(&verify, "verify", false, "check ssh signatures on signed snapshots")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n snapshots")
	return cmd
}
