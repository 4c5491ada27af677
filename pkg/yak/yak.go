// Package yak holds the work-item model: a forest of yaks addressed by
// slash-delimited ids, the validation rules every mutation must pass, and
// the mutations themselves. Nothing in this package performs I/O.
package yak

import (
	"sort"
	"strings"
)

// Yak is a single hierarchical work item. ID is the full slash-delimited
// path; Name and ParentID are always derived from it.
type Yak struct {
	ID       string
	Name     string
	ParentID string // empty for roots
	Done     bool
	Context  string
}

// New returns a pending yak for id with Name and ParentID filled in.
func New(id string) Yak {
	return Yak{
		ID:       id,
		Name:     LeafName(id),
		ParentID: ParentPath(id),
	}
}

// SameContent reports whether two yaks carry the same id, done flag and
// context.
func (y Yak) SameContent(other Yak) bool {
	return y.ID == other.ID && y.Done == other.Done && y.Context == other.Context
}

// LeafName returns everything after the last slash of id.
func LeafName(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// ParentPath returns everything before the last slash of id, or "" for a
// root id.
func ParentPath(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[:i]
	}
	return ""
}

// Join builds a child id. An empty parent yields name unchanged.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Ancestors returns the ids of every ancestor of id, outermost first.
func Ancestors(id string) []string {
	var out []string
	for p := ParentPath(id); p != ""; p = ParentPath(p) {
		out = append(out, p)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Depth is the number of ancestors of id.
func Depth(id string) int {
	return strings.Count(id, "/")
}

// Collection owns a set of yaks keyed by id. A Collection is never
// modified after construction; mutations build a new one.
type Collection struct {
	yaks  map[string]Yak
	roots []string
}

// NewCollection builds a collection from yaks. Name and ParentID are
// recomputed from each ID, contexts are trimmed, later duplicates replace
// earlier ones, and the root list is rebuilt.
func NewCollection(yaks ...Yak) *Collection {
	m := make(map[string]Yak, len(yaks))
	for _, y := range yaks {
		y.Name = LeafName(y.ID)
		y.ParentID = ParentPath(y.ID)
		y.Context = strings.TrimSpace(y.Context)
		m[y.ID] = y
	}
	return fromMap(m)
}

// Empty returns a collection with no yaks.
func Empty() *Collection {
	return fromMap(nil)
}

func fromMap(m map[string]Yak) *Collection {
	if m == nil {
		m = make(map[string]Yak)
	}
	roots := make([]string, 0)
	for id, y := range m {
		if y.ParentID == "" {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return &Collection{yaks: m, roots: roots}
}

// clone copies the underlying map so callers can build a modified
// collection without touching c.
func (c *Collection) clone() map[string]Yak {
	m := make(map[string]Yak, len(c.yaks))
	for id, y := range c.yaks {
		m[id] = y
	}
	return m
}

// Len returns the number of yaks.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.yaks)
}

// Get returns the yak stored at id.
func (c *Collection) Get(id string) (Yak, bool) {
	if c == nil {
		return Yak{}, false
	}
	y, ok := c.yaks[id]
	return y, ok
}

// Has reports whether id exists.
func (c *Collection) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// IDs returns every id in lexicographic order.
func (c *Collection) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.yaks))
	for id := range c.yaks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns every yak ordered by id.
func (c *Collection) All() []Yak {
	ids := c.IDs()
	out := make([]Yak, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.yaks[id])
	}
	return out
}

// Roots returns the sorted ids of all yaks without a parent.
func (c *Collection) Roots() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.roots))
	copy(out, c.roots)
	return out
}

// Children returns the direct children of id ordered by id.
func (c *Collection) Children(id string) []Yak {
	if c == nil {
		return nil
	}
	var out []Yak
	for _, y := range c.yaks {
		if y.ParentID == id && y.ParentID != "" {
			out = append(out, y)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Descendants returns every transitive child of id in pre-order.
func (c *Collection) Descendants(id string) []Yak {
	var out []Yak
	var walk func(string)
	walk = func(parent string) {
		for _, child := range c.Children(parent) {
			out = append(out, child)
			walk(child.ID)
		}
	}
	walk(id)
	return out
}

// Subtree returns id itself followed by its descendants. It is empty when
// id does not exist.
func (c *Collection) Subtree(id string) []Yak {
	y, ok := c.Get(id)
	if !ok {
		return nil
	}
	return append([]Yak{y}, c.Descendants(id)...)
}

// HasIncompleteChildren reports whether any direct child of id is not done.
func (c *Collection) HasIncompleteChildren(id string) bool {
	for _, child := range c.Children(id) {
		if !child.Done {
			return true
		}
	}
	return false
}

// IsAncestor reports whether candidate appears on the parent chain of id.
// A yak is not its own ancestor.
func (c *Collection) IsAncestor(candidate, id string) bool {
	if c == nil || candidate == "" {
		return false
	}
	seen := make(map[string]bool)
	cur, ok := c.yaks[id]
	for ok && cur.ParentID != "" {
		if cur.ParentID == candidate {
			return true
		}
		if seen[cur.ParentID] {
			return false
		}
		seen[cur.ParentID] = true
		cur, ok = c.yaks[cur.ParentID]
	}
	return false
}

// Equal reports whether both collections hold the same ids with the same
// done flags and contexts.
func (c *Collection) Equal(other *Collection) bool {
	if c.Len() != other.Len() {
		return false
	}
	for id, y := range c.yaks {
		o, ok := other.Get(id)
		if !ok || !y.SameContent(o) {
			return false
		}
	}
	return true
}
