// Package diff reports what changed between two yak collections, yak by
// yak, with line-level detail for edited notes.
package diff

import "github.com/justindra/yaks/pkg/yak"

// ChangeType classifies what happened to a yak between two collections.
type ChangeType int

const (
	Added    ChangeType = iota // Yak exists only in the after collection.
	Removed                    // Yak exists only in the before collection.
	Modified                   // Yak exists in both but its done flag or note changed.
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "modified"
	}
}

// Change records a single yak-level change.
type Change struct {
	Type   ChangeType
	ID     string
	Before *yak.Yak // nil for Added.
	After  *yak.Yak // nil for Removed.
}

// DoneChanged reports whether a Modified change flipped the done flag.
func (c Change) DoneChanged() bool {
	return c.Before != nil && c.After != nil && c.Before.Done != c.After.Done
}

// ContextChanged reports whether a Modified change edited the note.
func (c Change) ContextChanged() bool {
	return c.Before != nil && c.After != nil && c.Before.Context != c.After.Context
}

// Collections returns the changes turning before into after, ordered by id.
func Collections(before, after *yak.Collection) []Change {
	var changes []Change
	seen := make(map[string]bool)
	for _, id := range before.IDs() {
		seen[id] = true
		b, _ := before.Get(id)
		a, ok := after.Get(id)
		switch {
		case !ok:
			changes = append(changes, Change{Type: Removed, ID: id, Before: &b})
		case !a.SameContent(b):
			changes = append(changes, Change{Type: Modified, ID: id, Before: &b, After: &a})
		}
	}
	for _, id := range after.IDs() {
		if seen[id] {
			continue
		}
		a, _ := after.Get(id)
		changes = append(changes, Change{Type: Added, ID: id, After: &a})
	}
	sortChanges(changes)
	return changes
}
