// Package workspace ties a working directory to its yak stores: the local
// snapshot store holding the user's edits and the last synced base, and
// the optional shared remote the sync engine publishes to.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/justindra/yaks/pkg/boltstore"
	"github.com/justindra/yaks/pkg/codec"
	"github.com/justindra/yaks/pkg/engine"
	"github.com/justindra/yaks/pkg/gitcli"
	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/remote"
	"github.com/justindra/yaks/pkg/repo"
	"github.com/justindra/yaks/pkg/storage"
	"github.com/justindra/yaks/pkg/yak"
)

// BaseRef keeps the last synced snapshot reachable in the local store.
const BaseRef = "refs/yaks/base"

// ErrNotInitialized is returned by Open when no workspace exists at root.
var ErrNotInitialized = errors.New("not a yaks workspace (run yx init)")

// transientBackoff is the delay before the first transient retry of a sync.
var transientBackoff = 500 * time.Millisecond

// Workspace is an opened yaks workspace.
type Workspace struct {
	Root   string
	Dir    string // state directory holding config, state and local objects
	Config *Config

	local   *storage.Store
	remote  *storage.Store
	closers []io.Closer
	logger  *slog.Logger
	signer  storage.CommitSigner
	now     func() time.Time
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger used by the workspace and its sync engine.
func WithLogger(l *slog.Logger) Option { return func(w *Workspace) { w.logger = l } }

// WithSigner signs every snapshot the workspace writes.
func WithSigner(s storage.CommitSigner) Option { return func(w *Workspace) { w.signer = s } }

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option { return func(w *Workspace) { w.now = now } }

// StateDir returns the state directory for a workspace rooted at root.
func StateDir(root string) string {
	return filepath.Join(root, repo.DefaultDir)
}

// Init creates the state directory under root and writes cfg (or the
// defaults) unless a config already exists.
func Init(root string, cfg *Config) error {
	dir := StateDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}
	return WriteConfig(path, cfg)
}

// Open loads the workspace config under root and opens its stores.
func Open(ctx context.Context, root string, opts ...Option) (*Workspace, error) {
	dir := StateDir(root)
	if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, err
	}

	w := &Workspace{Root: root, Dir: dir, Config: cfg, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	storeOpts := []storage.Option{storage.WithClock(w.now)}
	if w.signer != nil {
		storeOpts = append(storeOpts, storage.WithSigner(w.signer))
	}

	localBackend, err := w.openLocal(ctx)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.local = storage.NewStore(localBackend, storeOpts...)

	remoteBackend, err := w.openRemote(ctx)
	if err != nil {
		w.Close()
		return nil, err
	}
	if remoteBackend != nil {
		w.remote = storage.NewStore(remoteBackend, storeOpts...)
	}
	return w, nil
}

func (w *Workspace) openLocal(ctx context.Context) (storage.Backend, error) {
	switch w.Config.Store {
	case StoreGit:
		b, err := gitcli.Open(ctx, w.Root)
		if err != nil {
			return nil, fmt.Errorf("open git store: %w", err)
		}
		return b, nil
	case StoreBolt:
		db, err := boltstore.Open(filepath.Join(w.Dir, boltstore.DefaultFile))
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		w.closers = append(w.closers, db)
		return db, nil
	default:
		r, err := repo.OpenOrInit(w.Dir)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return repo.NewBackend(r), nil
	}
}

func (w *Workspace) openRemote(ctx context.Context) (storage.Backend, error) {
	rc := w.Config.Remote
	switch rc.Kind {
	case RemoteGit:
		b, err := gitcli.Open(ctx, w.Root, gitcli.WithRemote(rc.Name))
		if err != nil {
			return nil, fmt.Errorf("open git remote %s: %w", rc.Name, err)
		}
		return b, nil
	case RemoteHTTP:
		client, err := remote.NewClient(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("open http remote: %w", err)
		}
		return remote.NewBackend(client), nil
	case RemoteDir:
		path := rc.URL
		if !filepath.IsAbs(path) {
			path = filepath.Join(w.Root, path)
		}
		r, err := repo.OpenOrInit(path)
		if err != nil {
			return nil, fmt.Errorf("open dir remote: %w", err)
		}
		return repo.NewBackend(r), nil
	default:
		return nil, nil
	}
}

// Close releases the stores.
func (w *Workspace) Close() error {
	var errs []error
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	w.closers = nil
	return errors.Join(errs...)
}

// HasRemote reports whether a shared remote is configured.
func (w *Workspace) HasRemote() bool { return w.remote != nil }

func (w *Workspace) statePath() string { return filepath.Join(w.Dir, StateFile) }

// State returns the persisted sync state.
func (w *Workspace) State() (*State, error) { return loadState(w.statePath()) }

// Load returns the current local collection.
func (w *Workspace) Load(ctx context.Context) (*yak.Collection, error) {
	c, _, err := w.local.Read(ctx, w.Config.Ref)
	return c, err
}

// Apply loads the local collection, runs fn on it and records the result
// as a snapshot whose message is command. Nothing is written when fn
// leaves the collection unchanged.
func (w *Workspace) Apply(ctx context.Context, command string, fn func(*yak.Collection) (*yak.Collection, error)) (*yak.Collection, error) {
	cur, curID, err := w.local.Read(ctx, w.Config.Ref)
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if curID != "" && next.Equal(cur) {
		return cur, nil
	}
	if err := w.record(ctx, next, command, curID); err != nil {
		return nil, err
	}
	w.logger.Debug("applied", "command", command, "yaks", next.Len())
	return next, nil
}

func (w *Workspace) record(ctx context.Context, c *yak.Collection, message string, prev object.Hash) error {
	id, err := w.local.Write(ctx, c, message, w.Config.Author, prev)
	if err != nil {
		return err
	}
	return w.local.AdvanceRef(ctx, w.Config.Ref, id, prev)
}

// Sync reconciles the local collection with the shared remote and makes
// the merged result both the new local state and the new base.
func (w *Workspace) Sync(ctx context.Context) (*engine.Result, error) {
	local, localID, err := w.local.Read(ctx, w.Config.Ref)
	if err != nil {
		return nil, err
	}
	if w.remote == nil {
		w.logger.Debug("sync skipped: no remote configured")
		return &engine.Result{Merged: local}, nil
	}
	st, err := w.State()
	if err != nil {
		return nil, err
	}
	base, err := w.loadBase(ctx, st)
	if err != nil {
		return nil, err
	}

	eng := engine.New(w.remote,
		engine.WithRef(w.Config.Ref),
		engine.WithAuthor(w.Config.Author),
		engine.WithMaxAttempts(w.Config.Sync.MaxAttempts),
		engine.WithLogger(w.logger),
	)
	var res *engine.Result
	err = engine.RetryTransient(ctx, w.Config.Sync.TransientRetries, transientBackoff, func(ctx context.Context) error {
		var err error
		res, err = eng.Sync(ctx, local, base, st.RemoteID)
		if storage.IsTransient(err) {
			w.logger.Debug("sync transient failure", "err", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if localID == "" || !res.Merged.Equal(local) {
		if err := w.record(ctx, res.Merged, engine.SyncMessage, localID); err != nil {
			return nil, fmt.Errorf("sync: materialize: %w", err)
		}
	}
	_, baseID, err := w.local.Read(ctx, w.Config.Ref)
	if err != nil {
		return nil, err
	}
	if err := w.local.ForceRef(ctx, BaseRef, baseID); err != nil {
		return nil, fmt.Errorf("sync: materialize: %w", err)
	}
	if err := saveState(w.statePath(), &State{RemoteID: res.ContentID, BaseID: baseID, SyncedAt: w.now().UTC()}); err != nil {
		return nil, err
	}
	return res, nil
}

func (w *Workspace) loadBase(ctx context.Context, st *State) (*yak.Collection, error) {
	if st.BaseID == "" {
		return yak.Empty(), nil
	}
	base, err := w.local.ReadCommit(ctx, st.BaseID)
	if err != nil {
		return nil, fmt.Errorf("load base: %w", err)
	}
	return base, nil
}

// Pending returns the collection as of the last sync together with the
// current local collection.
func (w *Workspace) Pending(ctx context.Context) (base, local *yak.Collection, err error) {
	st, err := w.State()
	if err != nil {
		return nil, nil, err
	}
	if base, err = w.loadBase(ctx, st); err != nil {
		return nil, nil, err
	}
	if local, err = w.Load(ctx); err != nil {
		return nil, nil, err
	}
	return base, local, nil
}

// Log returns up to limit local snapshots, newest first.
func (w *Workspace) Log(ctx context.Context, limit int) ([]storage.LogEntry, error) {
	return w.local.Log(ctx, w.Config.Ref, limit)
}

// Verify checks the signature on local snapshot id.
func (w *Workspace) Verify(ctx context.Context, id object.Hash, verify storage.CommitVerifier) error {
	return w.local.Verify(ctx, id, verify)
}

// Export writes the local collection to dir as a plain directory tree.
func (w *Workspace) Export(ctx context.Context, dir string) error {
	c, err := w.Load(ctx)
	if err != nil {
		return err
	}
	return codec.WriteDir(dir, c)
}

// Import replaces the local collection with the plain directory tree at dir.
func (w *Workspace) Import(ctx context.Context, dir string) (*yak.Collection, error) {
	imported, err := codec.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := yak.CheckInvariants(imported); err != nil {
		return nil, fmt.Errorf("import %s: %w", dir, err)
	}
	return w.Apply(ctx, "import", func(*yak.Collection) (*yak.Collection, error) {
		return imported, nil
	})
}

// SetRemote updates the remote settings and rewrites the config file. The
// sync state is reset since it described the previous remote.
func (w *Workspace) SetRemote(rc RemoteConfig) error {
	cfg := *w.Config
	cfg.Remote = rc
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := WriteConfig(filepath.Join(w.Dir, ConfigFile), &cfg); err != nil {
		return err
	}
	w.Config = &cfg
	if err := os.Remove(w.statePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}
