package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/storage"
)

// Backend adapts a Repo to storage.Backend.
type Backend struct {
	repo *Repo
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend wraps r.
func NewBackend(r *Repo) *Backend {
	return &Backend{repo: r}
}

// Repo returns the wrapped store.
func (b *Backend) Repo() *Repo {
	return b.repo
}

func (b *Backend) ResolveRef(ctx context.Context, name string) (object.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, err := b.repo.ResolveRef(name)
	return h, classify(err)
}

func (b *Backend) ReadBlob(ctx context.Context, id object.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := b.repo.Store.ReadBlob(id)
	if err != nil {
		return nil, classify(err)
	}
	return blob.Data, nil
}

func (b *Backend) ReadTree(ctx context.Context, id object.Hash) (*object.TreeObj, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := b.repo.Store.ReadTree(id)
	return tree, classify(err)
}

func (b *Backend) ReadCommit(ctx context.Context, id object.Hash) (*object.CommitObj, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit, err := b.repo.Store.ReadCommit(id)
	return commit, classify(err)
}

func (b *Backend) WriteBlob(ctx context.Context, data []byte) (object.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.repo.Store.WriteBlob(&object.Blob{Data: data})
}

func (b *Backend) WriteTree(ctx context.Context, tree *object.TreeObj) (object.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.repo.Store.WriteTree(tree)
}

func (b *Backend) WriteCommit(ctx context.Context, commit *object.CommitObj) (object.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.repo.Store.WriteCommit(commit)
}

func (b *Backend) UpdateRef(ctx context.Context, name string, next, expectedOld object.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(b.repo.UpdateRefCAS(name, next, "update", expectedOld))
}

func (b *Backend) ForceRef(ctx context.Context, name string, next object.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(b.repo.UpdateRefCAS(name, next, "force"))
}

// classify maps repo errors onto the storage error classes. A failed
// reflog append after a successful ref move still counts as success.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRefUpdatedButReflogAppendFailed):
		return nil
	case errors.Is(err, ErrRefNotFound), errors.Is(err, object.ErrObjectNotFound):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case errors.Is(err, ErrRefCASMismatch):
		return fmt.Errorf("%w: %w", storage.ErrRefConflict, err)
	case errors.Is(err, ErrLockTimeout):
		return storage.Transient(err)
	default:
		return err
	}
}
