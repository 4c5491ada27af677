package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/storage"
)

// TrackingPrefix is where fetched remote refs are kept locally.
const TrackingPrefix = "refs/yaks/remotes/"

// Backend implements storage.Backend on a local Git repository. With a
// remote configured, refs are resolved by fetching and updated by pushing;
// objects always live in the local object database.
type Backend struct {
	dir    string
	remote string
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithRemote makes refs resolve against and publish to the named remote.
func WithRemote(name string) Option {
	return func(b *Backend) { b.remote = strings.TrimSpace(name) }
}

// Open checks that git is installed and dir is inside a repository.
func Open(ctx context.Context, dir string, opts ...Option) (*Backend, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("gitcli: git binary not found: %w", err)
	}
	if _, err := runGitCapture(ctx, dir, invocation{}, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("gitcli: %s is not a git repository: %w", dir, err)
	}
	b := &Backend{dir: dir}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Remote returns the configured remote name, if any.
func (b *Backend) Remote() string {
	return b.remote
}

func (b *Backend) git(ctx context.Context, args ...string) ([]byte, error) {
	return runGitCapture(ctx, b.dir, invocation{}, args...)
}

func (b *Backend) trackingRef(name string) string {
	return TrackingPrefix + b.remote + "/" + strings.TrimPrefix(name, "refs/")
}

func (b *Backend) ResolveRef(ctx context.Context, name string) (object.Hash, error) {
	if b.remote == "" {
		return b.revParse(ctx, name)
	}
	tracking := b.trackingRef(name)
	_, err := b.git(ctx, "fetch", "--quiet", "--no-tags", "--no-write-fetch-head", b.remote, "+"+name+":"+tracking)
	switch {
	case err == nil:
		return b.revParse(ctx, tracking)
	case outputContains(err, "couldn't find remote ref"):
		_, _ = b.git(ctx, "update-ref", "-d", tracking)
		return "", fmt.Errorf("resolve %s on %s: %w", name, b.remote, storage.ErrNotFound)
	case outputContains(err, transientMarkers...):
		return "", storage.Transient(fmt.Errorf("fetch %s: %w", b.remote, err))
	default:
		return "", fmt.Errorf("fetch %s: %w", b.remote, err)
	}
}

func (b *Backend) revParse(ctx context.Context, name string) (object.Hash, error) {
	out, err := b.git(ctx, "rev-parse", "--verify", "--quiet", name+"^{commit}")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && outputOf(err) == "" {
			return "", fmt.Errorf("resolve %s: %w", name, storage.ErrNotFound)
		}
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return object.Hash(strings.TrimSpace(string(out))), nil
}

func (b *Backend) catFile(ctx context.Context, kind string, id object.Hash) ([]byte, error) {
	out, err := b.git(ctx, "cat-file", kind, string(id))
	if err != nil {
		if outputContains(err, "not a valid object name", "bad file", "bad object", "could not get object") {
			return nil, fmt.Errorf("read %s %s: %w", kind, id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s %s: %w", kind, id, err)
	}
	return out, nil
}

func (b *Backend) ReadBlob(ctx context.Context, id object.Hash) ([]byte, error) {
	return b.catFile(ctx, "blob", id)
}

func (b *Backend) ReadTree(ctx context.Context, id object.Hash) (*object.TreeObj, error) {
	kind, err := b.catFile(ctx, "-t", id)
	if err != nil {
		return nil, err
	}
	// ls-tree would peel a commit to its root tree; insist on a tree.
	if err := object.CheckType(id, object.ObjectType(strings.TrimSpace(string(kind))), object.TypeTree); err != nil {
		return nil, err
	}
	out, err := b.git(ctx, "ls-tree", "-z", string(id))
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", id, err)
	}
	return parseLsTree(out)
}

func (b *Backend) ReadCommit(ctx context.Context, id object.Hash) (*object.CommitObj, error) {
	out, err := b.catFile(ctx, "commit", id)
	if err != nil {
		return nil, err
	}
	return parseCommit(out)
}

func (b *Backend) WriteBlob(ctx context.Context, data []byte) (object.Hash, error) {
	if data == nil {
		data = []byte{}
	}
	out, err := runGitCapture(ctx, b.dir, invocation{stdin: data}, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return object.Hash(strings.TrimSpace(string(out))), nil
}

func (b *Backend) WriteTree(ctx context.Context, tree *object.TreeObj) (object.Hash, error) {
	var buf bytes.Buffer
	for _, e := range tree.Entries {
		mode, kind := object.TreeModeFile, "blob"
		if e.IsDir {
			mode, kind = object.TreeModeDir, "tree"
		}
		fmt.Fprintf(&buf, "%s %s %s\t%s\x00", mode, kind, e.Target(), e.Name)
	}
	out, err := runGitCapture(ctx, b.dir, invocation{stdin: buf.Bytes()}, "mktree", "-z")
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	return object.Hash(strings.TrimSpace(string(out))), nil
}

// WriteCommit records commit with git commit-tree. Git has no slot for the
// snapshot signature format, so signatures are not stored.
func (b *Backend) WriteCommit(ctx context.Context, commit *object.CommitObj) (object.Hash, error) {
	args := []string{"commit-tree", string(commit.TreeHash)}
	for _, p := range commit.Parents {
		args = append(args, "-p", string(p))
	}
	args = append(args, "-F", "-")

	name, email := splitAuthor(commit.Author)
	date := "@" + strconv.FormatInt(commit.Timestamp, 10) + " +0000"
	env := []string{
		"GIT_AUTHOR_NAME=" + name,
		"GIT_AUTHOR_EMAIL=" + email,
		"GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_NAME=" + name,
		"GIT_COMMITTER_EMAIL=" + email,
		"GIT_COMMITTER_DATE=" + date,
	}
	out, err := runGitCapture(ctx, b.dir, invocation{stdin: []byte(commit.Message), env: env}, args...)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return object.Hash(strings.TrimSpace(string(out))), nil
}

func (b *Backend) UpdateRef(ctx context.Context, name string, next, expectedOld object.Hash) error {
	if b.remote != "" {
		lease := "--force-with-lease=" + name + ":" + string(expectedOld)
		return b.push(ctx, name, next, lease)
	}
	_, err := b.git(ctx, "update-ref", "-m", "yaks", name, string(next), string(expectedOld))
	if err != nil {
		if outputContains(err, "but expected", "reference already exists") {
			return fmt.Errorf("update %s: %w: %w", name, storage.ErrRefConflict, err)
		}
		if outputContains(err, "unable to create", ".lock") {
			return storage.Transient(fmt.Errorf("update %s: %w", name, err))
		}
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}

func (b *Backend) ForceRef(ctx context.Context, name string, next object.Hash) error {
	if b.remote != "" {
		return b.push(ctx, name, next, "--force")
	}
	if _, err := b.git(ctx, "update-ref", "-m", "yaks", name, string(next)); err != nil {
		return fmt.Errorf("force %s: %w", name, err)
	}
	return nil
}

func (b *Backend) push(ctx context.Context, name string, next object.Hash, mode string) error {
	_, err := b.git(ctx, "push", "--quiet", mode, b.remote, string(next)+":"+name)
	if err != nil {
		switch {
		case outputContains(err, "stale info", "[rejected]", "fetch first", "non-fast-forward", "already exists"):
			return fmt.Errorf("push %s to %s: %w: %w", name, b.remote, storage.ErrRefConflict, err)
		case outputContains(err, transientMarkers...):
			return storage.Transient(fmt.Errorf("push %s to %s: %w", name, b.remote, err))
		default:
			return fmt.Errorf("push %s to %s: %w", name, b.remote, err)
		}
	}
	// Keep the tracking ref in step so the next resolve starts from what we published.
	_, _ = b.git(ctx, "update-ref", b.trackingRef(name), string(next))
	return nil
}
