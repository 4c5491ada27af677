package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/workspace"
)

func newInitCmd() *cobra.Command {
	var store string
	var author string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a yaks workspace in the enclosing repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findRoot(".")
			if err != nil {
				return err
			}
			cfg := workspace.DefaultConfig()
			cfg.Store = store
			cfg.Author = author
			if cfg.Author == "" {
				cfg.Author = os.Getenv("USER")
			}
			if err := workspace.Init(root, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized yaks workspace in %s\n", workspace.StateDir(root))
			return nil
		},
	}
	cmd.Flags().StringVar(&store, "store", workspace.StoreFiles, "local snapshot store: files, bolt or git")
	cmd.Flags().StringVar(&author, "author", "", "author recorded on snapshots (default $USER)")
	return cmd
}
