package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/justindra/yaks/pkg/object"
)

var (
	ErrRefCASMismatch                  = errors.New("ref compare-and-swap mismatch")
	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
	ErrRefNotFound                     = errors.New("ref not found")
)

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// ErrLockTimeout is returned when a ref lock could not be taken in time.
var ErrLockTimeout = errors.New("timeout waiting for ref lock")

func validateRefName(name string) error {
	if !strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("invalid ref name %q: must start with refs/", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasSuffix(seg, ".lock") {
			return fmt.Errorf("invalid ref name %q", name)
		}
	}
	return nil
}

func (r *Repo) refPath(name string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(name))
}

// ResolveRef reads a full ref name such as "refs/notes/yaks".
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if err := validateRefName(name); err != nil {
		return "", err
	}
	h, err := readRefHash(r.refPath(name))
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	if h == "" {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefNotFound)
	}
	return h, nil
}

// UpdateRefCAS points name at h under the ref's lockfile. With an
// expectedOld argument the update only happens when the ref currently holds
// that value; "" means the ref must not exist yet. The lockfile is renamed
// over the ref, so readers see either the old or the new hash.
//
// The reflog is appended after the rename. If that fails the ref has still
// moved and a *RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, reason string, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if err := object.ValidateHash(h); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	lock, err := lockRef(r.refPath(name))
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	defer lock.release()

	oldHash, err := readRefHash(lock.target)
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf("update ref %q: %w (expected %q, found %q)",
			name, ErrRefCASMismatch, expectedOld[0], oldHash)
	}
	if err := lock.commit(h); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	if err := r.appendReflog(name, oldHash, h, reason); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: h, Err: err}
	}
	return nil
}

// refLock is a held "<ref>.lock" file. commit renames it over the ref;
// release removes it if commit never happened.
type refLock struct {
	target string
	f      *os.File
	done   bool
}

func lockRef(target string) (*refLock, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	path := target + ".lock"
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return &refLock{target: target, f: f}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w %q", ErrLockTimeout, path)
		}
		time.Sleep(refLockRetryDelay)
	}
}

func (l *refLock) commit(h object.Hash) error {
	if _, err := l.f.WriteString(string(h) + "\n"); err != nil {
		return err
	}
	if err := l.f.Sync(); err != nil {
		return err
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	if err := os.Rename(l.path(), l.target); err != nil {
		return err
	}
	l.done = true
	return nil
}

func (l *refLock) path() string { return l.target + ".lock" }

func (l *refLock) release() {
	if l.f != nil {
		l.f.Close()
	}
	if !l.done {
		os.Remove(l.path())
	}
}

// ListRefs lists refs under prefix (e.g. "refs/notes"), keyed by full name.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	refs := make(map[string]object.Hash)
	root := filepath.Join(r.Dir, "refs")
	dir := root
	if p := strings.Trim(strings.TrimPrefix(prefix, "refs"), "/"); p != "" {
		dir = filepath.Join(root, filepath.FromSlash(p))
	}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(r.Dir, path)
		if err != nil {
			return err
		}
		h, err := readRefHash(path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = h
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	h := object.Hash(strings.TrimSpace(string(data)))
	if h == "" {
		return "", nil
	}
	if err := object.ValidateHash(h); err != nil {
		return "", fmt.Errorf("ref %s: %w", refPath, err)
	}
	return h, nil
}
