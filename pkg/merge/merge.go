// Package merge reconciles two independently edited yak collections
// against their common base. Resolution is per whole yak: when both sides
// changed the same yak differently the local version wins.
package merge

import (
	"sort"

	"github.com/justindra/yaks/pkg/yak"
)

// MergeStats tracks counts of yak dispositions during a merge.
type MergeStats struct {
	Total          int
	Unchanged      int
	LocalModified  int
	RemoteModified int
	BothModified   int
	Added          int
	Deleted        int
	Restored       int
	Conflicts      int
}

// Result is the outcome of a three-way merge. HadConflicts is advisory:
// the merge always produces a usable collection.
type Result struct {
	Collection   *yak.Collection
	HadConflicts bool
	// Conflicts lists the ids that were resolved by policy rather than by
	// an unambiguous one-sided change, sorted.
	Conflicts []string
	Stats     MergeStats
}

// Merge combines local and remote relative to base. The result depends
// only on its inputs, and when HadConflicts is false swapping local and
// remote yields the same collection.
func Merge(base, local, remote *yak.Collection) *Result {
	matches := MatchYaks(base, local, remote)

	kept := make(map[string]yak.Yak, len(matches))
	conflicts := make(map[string]bool)
	var stats MergeStats
	stats.Total = len(matches)

	for _, m := range matches {
		switch m.Disposition {
		case Unchanged:
			kept[m.ID] = *m.Local
			stats.Unchanged++
		case LocalOnly:
			kept[m.ID] = *m.Local
			stats.LocalModified++
		case RemoteOnly:
			kept[m.ID] = *m.Remote
			stats.RemoteModified++
		case BothSame:
			kept[m.ID] = *m.Local
			stats.BothModified++
		case Conflict:
			kept[m.ID] = *m.Local
			conflicts[m.ID] = true
		case AddedLocal:
			kept[m.ID] = *m.Local
			stats.Added++
		case AddedRemote:
			kept[m.ID] = *m.Remote
			stats.Added++
		case DeletedLocal, DeletedRemote, DeletedBoth:
			stats.Deleted++
		case DeleteVsModify:
			// A yak edited locally comes back; a local delete beats a
			// remote edit.
			if m.Local != nil {
				kept[m.ID] = *m.Local
			} else {
				stats.Deleted++
			}
			conflicts[m.ID] = true
		}
	}

	for _, id := range repairOrphans(kept, base, local, remote) {
		conflicts[id] = true
		stats.Restored++
	}

	res := &Result{Collection: collect(kept)}
	for id := range conflicts {
		res.Conflicts = append(res.Conflicts, id)
	}
	sort.Strings(res.Conflicts)
	res.HadConflicts = len(res.Conflicts) > 0
	stats.Conflicts = len(res.Conflicts)
	res.Stats = stats
	return res
}

// repairOrphans restores every missing ancestor of a kept yak, preferring
// the local version, then remote, then base, then a bare pending yak. It
// returns the restored ids.
func repairOrphans(kept map[string]yak.Yak, base, local, remote *yak.Collection) []string {
	ids := make([]string, 0, len(kept))
	for id := range kept {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var restored []string
	for _, id := range ids {
		for _, a := range yak.Ancestors(id) {
			if _, ok := kept[a]; ok {
				continue
			}
			kept[a] = pick(a, local, remote, base)
			restored = append(restored, a)
		}
	}
	return restored
}

func pick(id string, sources ...*yak.Collection) yak.Yak {
	for _, c := range sources {
		if y, ok := c.Get(id); ok {
			return y
		}
	}
	return yak.New(id)
}

func collect(m map[string]yak.Yak) *yak.Collection {
	yaks := make([]yak.Yak, 0, len(m))
	for _, y := range m {
		yaks = append(yaks, y)
	}
	return yak.NewCollection(yaks...)
}
