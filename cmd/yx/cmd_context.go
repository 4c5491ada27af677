package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/justindra/yaks/pkg/yak"
)

func newContextCmd() *cobra.Command {
	var show bool
	var text string

	cmd := &cobra.Command{
		Use:   "context <name>",
		Short: "Show or replace the note attached to a yak",
		Long: "Without --show or --text the note is read from stdin. " +
			"An empty note clears it.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := nameArg(args)
			if show {
				ws, err := openWorkspace(cmd)
				if err != nil {
					return err
				}
				defer ws.Close()
				c, err := ws.Load(cmdContext(cmd))
				if err != nil {
					return err
				}
				id, err := yak.Resolve(c, query)
				if err != nil {
					return err
				}
				y, _ := c.Get(id)
				if y.Context != "" {
					fmt.Fprintln(cmd.OutOrStdout(), y.Context)
				}
				return nil
			}

			if !cmd.Flags().Changed("text") {
				in := cmd.InOrStdin()
				if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
					return errors.New("context: pipe the note on stdin or pass --text")
				}
				data, err := io.ReadAll(in)
				if err != nil {
					return fmt.Errorf("context: read stdin: %w", err)
				}
				text = string(data)
			}

			var id string
			if _, err := apply(cmd, func(c *yak.Collection) (*yak.Collection, error) {
				var err error
				if id, err = yak.Resolve(c, query); err != nil {
					return nil, err
				}
				return yak.SetContext(c, id, text)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated context of %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the note")
	cmd.Flags().StringVar(&text, "text", "", "note text")
	return cmd
}
