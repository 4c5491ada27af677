package merge

import (
	"fmt"
	"sort"

	"github.com/justindra/yaks/pkg/yak"
)

// Disposition describes how one yak id changed on each side since base.
type Disposition int

const (
	Unchanged      Disposition = iota
	LocalOnly                  // local modified, remote unchanged
	RemoteOnly                 // remote modified, local unchanged
	BothSame                   // both modified identically
	Conflict                   // both modified differently
	AddedLocal                 // new in local, absent from base and remote
	AddedRemote                // new in remote, absent from base and local
	DeletedLocal               // deleted by local, remote unchanged
	DeletedRemote              // deleted by remote, local unchanged
	DeletedBoth                // present only in base
	DeleteVsModify             // one side deleted, the other modified
)

func (d Disposition) String() string {
	switch d {
	case Unchanged:
		return "Unchanged"
	case LocalOnly:
		return "LocalOnly"
	case RemoteOnly:
		return "RemoteOnly"
	case BothSame:
		return "BothSame"
	case Conflict:
		return "Conflict"
	case AddedLocal:
		return "AddedLocal"
	case AddedRemote:
		return "AddedRemote"
	case DeletedLocal:
		return "DeletedLocal"
	case DeletedRemote:
		return "DeletedRemote"
	case DeletedBoth:
		return "DeletedBoth"
	case DeleteVsModify:
		return "DeleteVsModify"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// MatchedYak pairs a yak id with its three-way disposition. A nil side
// means the id is absent there.
type MatchedYak struct {
	ID          string
	Disposition Disposition
	Base        *yak.Yak
	Local       *yak.Yak
	Remote      *yak.Yak
}

// MatchYaks classifies every id in the union of the three collections,
// in sorted id order.
func MatchYaks(base, local, remote *yak.Collection) []MatchedYak {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range []*yak.Collection{base, local, remote} {
		for _, id := range c.IDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	out := make([]MatchedYak, 0, len(ids))
	for _, id := range ids {
		m := MatchedYak{
			ID:     id,
			Base:   lookup(base, id),
			Local:  lookup(local, id),
			Remote: lookup(remote, id),
		}
		m.Disposition = classify(m.Base, m.Local, m.Remote)
		out = append(out, m)
	}
	return out
}

func lookup(c *yak.Collection, id string) *yak.Yak {
	y, ok := c.Get(id)
	if !ok {
		return nil
	}
	return &y
}

func same(a, b *yak.Yak) bool {
	return a != nil && b != nil && a.SameContent(*b)
}

func classify(base, local, remote *yak.Yak) Disposition {
	switch {
	case local != nil && remote != nil:
		switch {
		case same(local, remote):
			if base == nil || same(local, base) {
				return Unchanged
			}
			return BothSame
		case same(local, base):
			return RemoteOnly
		case same(remote, base):
			return LocalOnly
		default:
			return Conflict
		}
	case local != nil:
		switch {
		case base == nil:
			return AddedLocal
		case same(local, base):
			return DeletedRemote
		default:
			return DeleteVsModify
		}
	case remote != nil:
		switch {
		case base == nil:
			return AddedRemote
		case same(remote, base):
			return DeletedLocal
		default:
			return DeleteVsModify
		}
	default:
		return DeletedBoth
	}
}
