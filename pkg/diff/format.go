package diff

import (
	"fmt"
	"sort"
	"strings"
)

func sortChanges(changes []Change) {
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
}

// FormatSummary produces one line per change.
//
// Output format:
//
//   - id           (added)
//     ~ id           (done)
//     ~ id           (reopened, note)
//   - id           (removed)
func FormatSummary(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		var marker string
		var labels []string
		switch c.Type {
		case Added:
			marker = "+"
			labels = append(labels, "added")
		case Removed:
			marker = "-"
			labels = append(labels, "removed")
		case Modified:
			marker = "~"
			if c.DoneChanged() {
				if c.After.Done {
					labels = append(labels, "done")
				} else {
					labels = append(labels, "reopened")
				}
			}
			if c.ContextChanged() {
				labels = append(labels, "note")
			}
		}
		fmt.Fprintf(&b, "%s %s     (%s)\n", marker, c.ID, strings.Join(labels, ", "))
	}
	return b.String()
}

// FormatNotes produces unified-diff-style output for every note that was
// added, removed or edited.
//
//	--- a/id/context.md
//	+++ b/id/context.md
//	-old line
//	+new line
func FormatNotes(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		var before, after string
		if c.Before != nil {
			before = c.Before.Context
		}
		if c.After != nil {
			after = c.After.Context
		}
		if before == after {
			continue
		}
		fmt.Fprintf(&b, "--- a/%s/context.md\n", c.ID)
		fmt.Fprintf(&b, "+++ b/%s/context.md\n", c.ID)
		for _, l := range Lines(before, after) {
			fmt.Fprintf(&b, "%s%s\n", l.Op, l.Text)
		}
	}
	return b.String()
}
