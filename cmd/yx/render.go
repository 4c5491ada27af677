package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/justindra/yaks/pkg/yak"
)

// Output formats for yx ls.
const (
	formatMarkdown = "markdown"
	formatPlain    = "plain"
	formatJSON     = "json"
	formatYAML     = "yaml"
)

// Done filters for yx ls.
const (
	onlyAll     = ""
	onlyDone    = "done"
	onlyNotDone = "not-done"
)

var doneStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})

type yakRecord struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Done     bool   `json:"done" yaml:"done"`
	Context  string `json:"context,omitempty" yaml:"context,omitempty"`
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// matches reports whether y passes the done filter.
func matches(y yak.Yak, only string) bool {
	switch only {
	case onlyDone:
		return y.Done
	case onlyNotDone:
		return !y.Done
	default:
		return true
	}
}

// visible returns the ids to show: every yak passing the filter plus the
// ancestors needed to place it in the tree.
func visible(c *yak.Collection, only string) map[string]bool {
	show := make(map[string]bool)
	for _, y := range c.All() {
		if !matches(y, only) {
			continue
		}
		show[y.ID] = true
		for _, a := range yak.Ancestors(y.ID) {
			show[a] = true
		}
	}
	return show
}

func renderList(w io.Writer, c *yak.Collection, format, only string, styled bool) error {
	switch format {
	case formatMarkdown, "":
		return renderMarkdown(w, c, visible(c, only), styled)
	case formatPlain:
		for _, y := range c.All() {
			if matches(y, only) {
				fmt.Fprintln(w, y.ID)
			}
		}
		return nil
	case formatJSON, formatYAML:
		records := make([]yakRecord, 0, c.Len())
		for _, y := range c.All() {
			if matches(y, only) {
				records = append(records, yakRecord{ID: y.ID, Name: y.Name, ParentID: y.ParentID, Done: y.Done, Context: y.Context})
			}
		}
		if format == formatJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want markdown, plain, json or yaml)", format)
	}
}

func renderMarkdown(w io.Writer, c *yak.Collection, show map[string]bool, styled bool) error {
	if len(show) == 0 {
		fmt.Fprintln(w, "no yaks")
		return nil
	}
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			if !show[id] {
				continue
			}
			y, _ := c.Get(id)
			box := "[ ]"
			if y.Done {
				box = "[x]"
			}
			line := fmt.Sprintf("%s- %s %s", strings.Repeat("  ", depth), box, y.Name)
			if styled && y.Done {
				line = doneStyle.Render(line)
			}
			fmt.Fprintln(w, line)

			var children []string
			for _, ch := range c.Children(id) {
				children = append(children, ch.ID)
			}
			walk(children, depth+1)
		}
	}
	walk(c.Roots(), 0)
	return nil
}
