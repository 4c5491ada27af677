// Package codec maps a yak collection to and from a flat list of tree
// entries. Every yak becomes a directory named by its id holding a marker
// file, an optional done flag and an optional context note.
package codec

import (
	"sort"
	"strings"

	"github.com/justindra/yaks/pkg/yak"
)

const (
	// MarkerFile is present in every yak directory so that yaks without
	// children or notes survive in trees that cannot hold empty directories.
	MarkerFile = ".yak"
	// DoneFile is present iff the yak is done.
	DoneFile = "done"
	// ContextFile holds the yak's note as UTF-8 text.
	ContextFile = "context.md"
)

// Entry is one path in a tree. Dir entries carry no content.
type Entry struct {
	Path    string
	Dir     bool
	Content []byte
}

// Encode returns the file entries for c sorted by path. Equal collections
// always encode to identical entry lists.
func Encode(c *yak.Collection) []Entry {
	entries := make([]Entry, 0, c.Len()*2)
	for _, y := range c.All() {
		entries = append(entries, Entry{Path: y.ID + "/" + MarkerFile, Content: []byte{}})
		if y.Done {
			entries = append(entries, Entry{Path: y.ID + "/" + DoneFile, Content: []byte{}})
		}
		if ctx := strings.TrimSpace(y.Context); ctx != "" {
			entries = append(entries, Entry{Path: y.ID + "/" + ContextFile, Content: []byte(ctx + "\n")})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// Decode rebuilds a collection from tree entries. Any directory is a yak,
// whether it holds the marker, the done flag, a note, unrelated files or
// nothing at all. Files at the top level are ignored.
func Decode(entries []Entry) *yak.Collection {
	found := make(map[string]*yak.Yak)
	ensure := func(id string) *yak.Yak {
		if id == "" {
			return nil
		}
		for _, a := range append(yak.Ancestors(id), id) {
			if _, ok := found[a]; !ok {
				y := yak.New(a)
				found[a] = &y
			}
		}
		return found[id]
	}

	for _, e := range entries {
		p := strings.Trim(e.Path, "/")
		if p == "" {
			continue
		}
		if e.Dir {
			ensure(p)
			continue
		}
		y := ensure(yak.ParentPath(p))
		if y == nil {
			continue
		}
		switch yak.LeafName(p) {
		case DoneFile:
			y.Done = true
		case ContextFile:
			y.Context = strings.TrimSpace(string(e.Content))
		}
	}

	yaks := make([]yak.Yak, 0, len(found))
	for _, y := range found {
		yaks = append(yaks, *y)
	}
	return yak.NewCollection(yaks...)
}
