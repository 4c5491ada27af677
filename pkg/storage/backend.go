// Package storage persists yak collections as commits of a hidden ref.
//
// A Backend supplies the primitive object and ref operations; Store layers
// the tree codec on top so callers only ever see collections and content
// ids. Backends write objects and move refs, nothing else: no working copy,
// no index.
package storage

import (
	"context"
	"errors"

	"github.com/justindra/yaks/pkg/object"
)

var (
	// ErrNotFound reports a missing ref or object.
	ErrNotFound = errors.New("not found")
	// ErrRefConflict reports that a conditional ref update lost a race: the
	// ref no longer holds the expected id.
	ErrRefConflict = errors.New("ref conflict")
	// ErrTransient marks failures worth retrying unchanged (network,
	// timeouts, lock contention).
	ErrTransient = errors.New("transient storage failure")
)

// Backend is the set of primitives a content store must offer. Ids are
// opaque to callers; each backend chooses its own hash function.
type Backend interface {
	// ResolveRef returns the id a ref points at, or ErrNotFound.
	ResolveRef(ctx context.Context, name string) (object.Hash, error)

	ReadBlob(ctx context.Context, id object.Hash) ([]byte, error)
	ReadTree(ctx context.Context, id object.Hash) (*object.TreeObj, error)
	ReadCommit(ctx context.Context, id object.Hash) (*object.CommitObj, error)

	WriteBlob(ctx context.Context, data []byte) (object.Hash, error)
	WriteTree(ctx context.Context, tree *object.TreeObj) (object.Hash, error)
	WriteCommit(ctx context.Context, commit *object.CommitObj) (object.Hash, error)

	// UpdateRef moves name to next only if it currently holds expectedOld.
	// An empty expectedOld means the ref must not exist yet. A mismatch
	// yields ErrRefConflict.
	UpdateRef(ctx context.Context, name string, next, expectedOld object.Hash) error
	// ForceRef moves name to next unconditionally.
	ForceRef(ctx context.Context, name string, next object.Hash) error
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (e *transientError) Is(target error) bool {
	return target == ErrTransient
}

// Transient marks err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
