// Package repo is a self-contained file store for yak snapshots: the
// fan-out object store plus ref files with lockfile compare-and-swap and a
// reflog, all under one hidden directory.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justindra/yaks/pkg/object"
)

// DefaultDir is where a workspace keeps its store, relative to the
// repository root. Git ignores unknown directories inside .git.
const DefaultDir = ".git/yaks"

// ErrNotARepo is returned by Open when the directory holds no store.
var ErrNotARepo = errors.New("not a yaks store")

// Repo is an opened store directory.
type Repo struct {
	Dir   string        // store root holding objects/, refs/ and logs/
	Store *object.Store // content-addressed object store
}

// Init creates the store layout under dir. It fails if a store already
// exists there.
func Init(dir string) (*Repo, error) {
	if _, err := os.Stat(filepath.Join(dir, "refs")); err == nil {
		return nil, fmt.Errorf("init: store already exists at %s", dir)
	}
	for _, d := range []string{
		filepath.Join(dir, "objects"),
		filepath.Join(dir, "refs"),
		filepath.Join(dir, "logs", "refs"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	return &Repo{Dir: dir, Store: object.NewStore(dir)}, nil
}

// Open opens an existing store directory.
func Open(dir string) (*Repo, error) {
	info, err := os.Stat(filepath.Join(dir, "refs"))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open %s: %w", dir, ErrNotARepo)
	}
	return &Repo{Dir: dir, Store: object.NewStore(dir)}, nil
}

// OpenOrInit opens dir, creating the layout first when missing.
func OpenOrInit(dir string) (*Repo, error) {
	r, err := Open(dir)
	if errors.Is(err, ErrNotARepo) {
		return Init(dir)
	}
	return r, err
}
