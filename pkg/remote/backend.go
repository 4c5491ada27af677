package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/storage"
)

// Backend adapts a Client to storage.Backend. Objects written through it
// are buffered locally and uploaded in one batch right before the next ref
// update, so a snapshot costs one object request and one ref request.
type Backend struct {
	client *Client

	mu      sync.Mutex
	pending []ObjectRecord
	known   map[object.Hash]ObjectRecord
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend wraps client.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client, known: make(map[object.Hash]ObjectRecord)}
}

func (b *Backend) ResolveRef(ctx context.Context, name string) (object.Hash, error) {
	refs, err := b.client.ListRefs(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	h, ok := refs[name]
	if !ok {
		return "", fmt.Errorf("resolve %s: %w", name, storage.ErrNotFound)
	}
	return h, nil
}

func (b *Backend) read(ctx context.Context, h object.Hash, want object.ObjectType) ([]byte, error) {
	b.mu.Lock()
	rec, ok := b.known[h]
	b.mu.Unlock()
	if !ok {
		var err error
		rec, err = b.client.GetObject(ctx, h)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.known[h] = rec
		b.mu.Unlock()
	}
	if err := object.CheckType(h, rec.Type, want); err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (b *Backend) ReadBlob(ctx context.Context, id object.Hash) ([]byte, error) {
	data, err := b.read(ctx, id, object.TypeBlob)
	if err != nil {
		return nil, err
	}
	blob, err := object.UnmarshalBlob(data)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

func (b *Backend) ReadTree(ctx context.Context, id object.Hash) (*object.TreeObj, error) {
	data, err := b.read(ctx, id, object.TypeTree)
	if err != nil {
		return nil, err
	}
	return object.UnmarshalTree(data)
}

func (b *Backend) ReadCommit(ctx context.Context, id object.Hash) (*object.CommitObj, error) {
	data, err := b.read(ctx, id, object.TypeCommit)
	if err != nil {
		return nil, err
	}
	return object.UnmarshalCommit(data)
}

func (b *Backend) write(objType object.ObjectType, data []byte) object.Hash {
	h := object.HashObject(objType, data)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.known[h]; !ok {
		rec := ObjectRecord{Hash: h, Type: objType, Data: data}
		b.known[h] = rec
		b.pending = append(b.pending, rec)
	}
	return h
}

func (b *Backend) WriteBlob(_ context.Context, data []byte) (object.Hash, error) {
	return b.write(object.TypeBlob, object.MarshalBlob(&object.Blob{Data: data})), nil
}

func (b *Backend) WriteTree(_ context.Context, tree *object.TreeObj) (object.Hash, error) {
	return b.write(object.TypeTree, object.MarshalTree(tree)), nil
}

func (b *Backend) WriteCommit(_ context.Context, commit *object.CommitObj) (object.Hash, error) {
	return b.write(object.TypeCommit, object.MarshalCommit(commit)), nil
}

// Flush uploads buffered objects. It is called before every ref update.
func (b *Backend) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	if err := b.client.PushObjects(ctx, batch); err != nil {
		b.mu.Lock()
		b.pending = append(batch, b.pending...)
		b.mu.Unlock()
		return fmt.Errorf("upload objects: %w", err)
	}
	return nil
}

func (b *Backend) UpdateRef(ctx context.Context, name string, next, expectedOld object.Hash) error {
	if err := b.Flush(ctx); err != nil {
		return err
	}
	old := expectedOld
	if err := b.client.UpdateRefs(ctx, []RefUpdate{{Name: name, Old: &old, New: next}}); err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}

func (b *Backend) ForceRef(ctx context.Context, name string, next object.Hash) error {
	if err := b.Flush(ctx); err != nil {
		return err
	}
	if err := b.client.UpdateRefs(ctx, []RefUpdate{{Name: name, New: next}}); err != nil {
		return fmt.Errorf("force %s: %w", name, err)
	}
	return nil
}
