package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/justindra/yaks/pkg/workspace"
	"github.com/justindra/yaks/pkg/yak"
)

// findRoot walks up from start to the nearest directory holding .git and
// falls back to start itself.
func findRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	for dir := abs; ; {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, error) {
	root, err := findRoot(".")
	if err != nil {
		return nil, err
	}
	cfg, err := workspace.LoadConfig(filepath.Join(workspace.StateDir(root), workspace.ConfigFile))
	if err != nil {
		return nil, err
	}
	var opts []workspace.Option
	if strings.TrimSpace(cfg.SigningKey) != "" {
		signer, _, err := newSSHCommitSigner(cfg.SigningKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, workspace.WithSigner(signer))
	}
	return workspace.Open(cmdContext(cmd), root, opts...)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// apply runs one mutating command against the workspace and closes it.
func apply(cmd *cobra.Command, fn func(*yak.Collection) (*yak.Collection, error)) (*yak.Collection, error) {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return nil, err
	}
	defer ws.Close()
	return ws.Apply(cmdContext(cmd), commandLine(cmd), fn)
}

// commandLine reconstructs the invocation recorded as the snapshot message.
func commandLine(cmd *cobra.Command) string {
	parts := []string{cmd.CommandPath()}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Value.Type() == "bool" {
			parts = append(parts, "--"+f.Name)
			return
		}
		parts = append(parts, "--"+f.Name+"="+f.Value.String())
	})
	parts = append(parts, cmd.Flags().Args()...)
	return strings.Join(parts, " ")
}

// nameArg joins the positional words into one yak id so names with
// spaces need no quoting.
func nameArg(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
