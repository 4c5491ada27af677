package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/remote"
	"github.com/justindra/yaks/pkg/workspace"
)

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Show or configure the shared remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()
			rc := ws.Config.Remote
			out := cmd.OutOrStdout()
			switch rc.Kind {
			case workspace.RemoteNone:
				fmt.Fprintln(out, "no remote configured")
			case workspace.RemoteGit:
				fmt.Fprintf(out, "git %s\n", rc.Name)
			case workspace.RemoteHTTP:
				// Never echo credentials embedded in the URL.
				ep, err := remote.ParseEndpoint(rc.URL)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "http %s\n", ep.BaseURL)
			default:
				fmt.Fprintf(out, "%s %s\n", rc.Kind, rc.URL)
			}
			return nil
		},
	}
	cmd.AddCommand(newRemoteSetCmd())
	return cmd
}

func newRemoteSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <kind> [name-or-url]",
		Short: "Point the workspace at a git remote, an http server or a directory",
		Long: "Kinds: git <remote-name>, http <url>, dir <path>, none.\n" +
			"Changing the remote resets the sync state.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			rc := workspace.RemoteConfig{Kind: args[0]}
			if rc.Kind == "none" {
				rc.Kind = workspace.RemoteNone
			}
			if len(args) == 2 {
				if rc.Kind == workspace.RemoteGit {
					rc.Name = args[1]
				} else {
					rc.URL = args[1]
				}
			}
			if err := ws.SetRemote(rc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remote set to %s\n", args[0])
			return nil
		},
	}
}
