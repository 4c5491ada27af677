package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "yx",
		Short:         "Track a shared tree of yaks to shave",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(setupLogger(cmd.ErrOrStderr()))
		},
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newLsCmd())
	root.AddCommand(newDoneCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newPruneCmd())
	root.AddCommand(newMvCmd())
	root.AddCommand(newContextCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newRemoteCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newImportCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "yx %s\n", version)
		},
	}
}

// setupLogger builds the diagnostic logger. YAKS_LOG_LEVEL selects the
// level; output goes to stderr so it never mixes with command output.
func setupLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(os.Getenv("YAKS_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
