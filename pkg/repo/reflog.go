package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/justindra/yaks/pkg/object"
)

// zeroHash stands in for "no value" on either side of a reflog line.
var zeroHash = strings.Repeat("0", 64)

// ReflogEntry is one recorded ref movement. An empty OldHash means the ref
// was created; an empty NewHash means it was removed.
type ReflogEntry struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Time    time.Time
	Reason  string
}

// line renders e as "<old> <new> <unix> <reason>".
func (e ReflogEntry) line() string {
	reason := strings.Join(strings.Fields(e.Reason), " ")
	if reason == "" {
		reason = "update"
	}
	return fmt.Sprintf("%s %s %d %s\n", orZero(e.OldHash), orZero(e.NewHash), e.Time.Unix(), reason)
}

func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	old, rest, ok1 := strings.Cut(strings.TrimSpace(line), " ")
	next, rest, ok2 := strings.Cut(rest, " ")
	stamp, reason, ok3 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || !ok3 {
		return ReflogEntry{}, false
	}
	secs, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{
		Ref:     ref,
		OldHash: unzero(old),
		NewHash: unzero(next),
		Time:    time.Unix(secs, 0),
		Reason:  reason,
	}, true
}

func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.Dir, "logs", filepath.FromSlash(ref))
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	path := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("append reflog: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append reflog: %w", err)
	}
	entry := ReflogEntry{Ref: ref, OldHash: oldHash, NewHash: newHash, Time: time.Now(), Reason: reason}
	if _, err := f.WriteString(entry.line()); err != nil {
		f.Close()
		return fmt.Errorf("append reflog: %w", err)
	}
	return f.Close()
}

// ReadReflog returns the movements of ref, newest first. Lines that do not
// parse are skipped. A ref that never moved has no reflog and yields nil.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	if err := validateRefName(ref); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	f, err := os.Open(r.reflogPath(ref))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if e, ok := parseReflogLine(ref, sc.Text()); ok {
			entries = append(entries, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func orZero(h object.Hash) string {
	if h == "" {
		return zeroHash
	}
	return string(h)
}

func unzero(s string) object.Hash {
	if s == zeroHash {
		return ""
	}
	return object.Hash(s)
}
