// Package engine runs the fetch, reconcile, publish cycle that keeps a
// local yak collection converged with a shared ref. The only coordination
// between participants is the conditional ref update at publish time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/justindra/yaks/pkg/merge"
	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/storage"
	"github.com/justindra/yaks/pkg/yak"
)

const (
	// DefaultRef is the hidden ref yak snapshots are published under.
	DefaultRef = "refs/notes/yaks"
	// DefaultMaxAttempts bounds the fetch-merge-publish loop.
	DefaultMaxAttempts = 5
	// SyncMessage is the commit message of published merge snapshots.
	SyncMessage = "sync"
)

// ErrRetriesExhausted means every publish attempt lost the ref race.
var ErrRetriesExhausted = errors.New("sync retries exhausted")

// Engine synchronizes against one ref of a shared store.
type Engine struct {
	store       *storage.Store
	ref         string
	author      string
	maxAttempts int
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRef overrides DefaultRef.
func WithRef(ref string) Option { return func(e *Engine) { e.ref = ref } }

// WithAuthor sets the author recorded on published snapshots.
func WithAuthor(author string) Option { return func(e *Engine) { e.author = author } }

// WithMaxAttempts overrides DefaultMaxAttempts. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithLogger sets the logger phase transitions are reported to.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New returns an engine publishing to store. A nil store means no shared
// remote is configured and Sync returns the local collection unchanged.
func New(store *storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		ref:         DefaultRef,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ref returns the ref the engine publishes to.
func (e *Engine) Ref() string { return e.ref }

// Result describes a completed sync.
type Result struct {
	// Merged is the collection the caller should adopt as both its local
	// state and its new base.
	Merged *yak.Collection
	// ContentID identifies Merged in the shared store; pass it back as
	// baseID on the next sync. Empty when no store is configured.
	ContentID    object.Hash
	HadConflicts bool
	Conflicts    []string
	// Published is false when the shared ref already held Merged.
	Published bool
	Attempts  int
}

// Sync reconciles local with the shared ref. base is the collection as of
// the last successful sync and baseID its content id ("" before the first
// sync). Nothing becomes visible to other participants unless the final
// conditional ref update succeeds.
func (e *Engine) Sync(ctx context.Context, local, base *yak.Collection, baseID object.Hash) (*Result, error) {
	if e.store == nil {
		e.logger.Debug("sync skipped: no remote configured")
		return &Result{Merged: local}, nil
	}
	if local == nil {
		local = yak.Empty()
	}
	if base == nil {
		base = yak.Empty()
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remote, remoteID, err := e.store.Read(ctx, e.ref)
		if err != nil {
			return nil, fmt.Errorf("sync: fetch: %w", err)
		}
		e.logger.Debug("sync fetched", "ref", e.ref, "attempt", attempt, "remote", remoteID, "base", baseID)

		res := &Result{Attempts: attempt}
		switch {
		case remoteID == "":
			res.Merged = local
		case remoteID == baseID:
			res.Merged = local
			e.logger.Debug("sync fast-forward", "ref", e.ref)
		default:
			m := merge.Merge(base, local, remote)
			res.Merged = m.Collection
			res.HadConflicts = m.HadConflicts
			res.Conflicts = m.Conflicts
			e.logger.Debug("sync merged", "ref", e.ref, "yaks", m.Collection.Len(),
				"local", m.Stats.LocalModified, "remote", m.Stats.RemoteModified,
				"added", m.Stats.Added, "deleted", m.Stats.Deleted,
				"restored", m.Stats.Restored, "conflicts", len(m.Conflicts))
		}

		if remoteID != "" && res.Merged.Equal(remote) {
			res.Merged = remote
			res.ContentID = remoteID
			e.logger.Debug("sync up to date", "ref", e.ref, "id", remoteID)
			return res, nil
		}

		id, err := e.store.Write(ctx, res.Merged, SyncMessage, e.author, remoteID)
		if err != nil {
			return nil, fmt.Errorf("sync: publish: %w", err)
		}
		err = e.store.AdvanceRef(ctx, e.ref, id, remoteID)
		if errors.Is(err, storage.ErrRefConflict) {
			e.logger.Debug("sync lost ref race, retrying", "ref", e.ref, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sync: publish: %w", err)
		}
		res.ContentID = id
		res.Published = true
		e.logger.Debug("sync published", "ref", e.ref, "id", id, "prev", remoteID)
		return res, nil
	}
	return nil, fmt.Errorf("%w after %d attempts on %s", ErrRetriesExhausted, e.maxAttempts, e.ref)
}
