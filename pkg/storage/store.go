package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justindra/yaks/pkg/codec"
	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/yak"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string.
type CommitSigner func(payload []byte) (string, error)

// CommitVerifier checks a signature produced by a CommitSigner against the
// payload it was made over.
type CommitVerifier func(payload []byte, signature string) error

// ErrUnsigned is returned by Verify for a snapshot without a signature.
var ErrUnsigned = errors.New("snapshot is not signed")

// Store reads and writes yak collections through a Backend.
type Store struct {
	backend Backend
	signer  CommitSigner
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSigner signs every snapshot commit the store writes.
func WithSigner(signer CommitSigner) Option {
	return func(s *Store) { s.signer = signer }
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore wraps a backend.
func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{backend: b, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Read loads the collection a ref points at together with its content id.
// A missing ref is not an error: it yields an empty collection and "".
func (s *Store) Read(ctx context.Context, ref string) (*yak.Collection, object.Hash, error) {
	id, err := s.backend.ResolveRef(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return yak.Empty(), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", ref, err)
	}
	c, err := s.ReadCommit(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", ref, err)
	}
	return c, id, nil
}

// ReadCommit loads the collection stored in a specific snapshot.
func (s *Store) ReadCommit(ctx context.Context, id object.Hash) (*yak.Collection, error) {
	commit, err := s.backend.ReadCommit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", id, err)
	}
	entries, err := flattenTree(ctx, s.backend, commit.TreeHash, "")
	if err != nil {
		return nil, err
	}
	return codec.Decode(entries), nil
}

// Write stores c as a new snapshot commit and returns its id. Refs are not
// moved; pair it with AdvanceRef or ForceRef.
func (s *Store) Write(ctx context.Context, c *yak.Collection, message, author string, parents ...object.Hash) (object.Hash, error) {
	treeHash, err := newTreeBuilder(s.backend, codec.Encode(c)).build(ctx)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	commit := &object.CommitObj{
		TreeHash:  treeHash,
		Author:    author,
		Timestamp: s.now().Unix(),
		Message:   message,
	}
	for _, p := range parents {
		if p != "" {
			commit.Parents = append(commit.Parents, p)
		}
	}
	if s.signer != nil {
		sig, err := s.signer(object.CommitSigningPayload(commit))
		if err != nil {
			return "", fmt.Errorf("write snapshot: sign commit: %w", err)
		}
		commit.Signature = sig
	}

	h, err := s.backend.WriteCommit(ctx, commit)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return h, nil
}

// AdvanceRef moves ref from expectedPrev to id. It fails with
// ErrRefConflict when the ref moved underneath the caller.
func (s *Store) AdvanceRef(ctx context.Context, ref string, id, expectedPrev object.Hash) error {
	if err := s.backend.UpdateRef(ctx, ref, id, expectedPrev); err != nil {
		return fmt.Errorf("advance %s: %w", ref, err)
	}
	return nil
}

// ForceRef moves ref to id unconditionally.
func (s *Store) ForceRef(ctx context.Context, ref string, id object.Hash) error {
	if err := s.backend.ForceRef(ctx, ref, id); err != nil {
		return fmt.Errorf("force %s: %w", ref, err)
	}
	return nil
}

// Verify checks the signature on snapshot id.
func (s *Store) Verify(ctx context.Context, id object.Hash, verify CommitVerifier) error {
	commit, err := s.backend.ReadCommit(ctx, id)
	if err != nil {
		return fmt.Errorf("verify %s: %w", id, err)
	}
	if commit.Signature == "" {
		return fmt.Errorf("verify %s: %w", id, ErrUnsigned)
	}
	if err := verify(object.CommitSigningPayload(commit), commit.Signature); err != nil {
		return fmt.Errorf("verify %s: %w", id, err)
	}
	return nil
}

// LogEntry describes one snapshot in a ref's history.
type LogEntry struct {
	ID      object.Hash
	Author  string
	Time    time.Time
	Message string
	Signed  bool
}

// Log walks first parents from the ref's current snapshot, newest first.
// A limit of zero or less walks the whole history.
func (s *Store) Log(ctx context.Context, ref string, limit int) ([]LogEntry, error) {
	id, err := s.backend.ResolveRef(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", ref, err)
	}

	var out []LogEntry
	for id != "" {
		if limit > 0 && len(out) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		commit, err := s.backend.ReadCommit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("log %s: %w", ref, err)
		}
		out = append(out, LogEntry{
			ID:      id,
			Author:  commit.Author,
			Time:    time.Unix(commit.Timestamp, 0),
			Message: strings.TrimRight(commit.Message, "\n"),
			Signed:  commit.Signature != "",
		})
		id = ""
		if len(commit.Parents) > 0 {
			id = commit.Parents[0]
		}
	}
	return out, nil
}
