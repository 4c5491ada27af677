// Package boltstore keeps yak snapshot objects and refs in a single bbolt
// database file. Ref compare-and-swap runs inside one read-write
// transaction, so concurrent writers serialize on the database lock.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/justindra/yaks/pkg/object"
	"github.com/justindra/yaks/pkg/storage"
)

// Buckets
var (
	BucketObjects = []byte("objects") // hash -> "type len\0content"
	BucketRefs    = []byte("refs")    // full ref name -> hash
)

// DefaultFile is the database file name inside a workspace directory.
const DefaultFile = "yaks.db"

var errRefMismatch = errors.New("ref compare-and-swap mismatch")

// DB is an opened store.
type DB struct{ *bbolt.DB }

var _ storage.Backend = (*DB)(nil)

// Open opens or creates the database at path, waiting up to a second for
// another process to release it.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: time.Second})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, storage.Transient(fmt.Errorf("open %s: %w", path, err))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{BucketObjects, BucketRefs} {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{db}, nil
}

func (db *DB) Close() error { return db.DB.Close() }

func (db *DB) ResolveRef(ctx context.Context, name string) (object.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var h object.Hash
	err := db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(BucketRefs).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("resolve %s: %w", name, storage.ErrNotFound)
		}
		h = object.Hash(v)
		return nil
	})
	return h, err
}

func (db *DB) readObject(ctx context.Context, h object.Hash, want object.ObjectType) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var content []byte
	err := db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(BucketObjects).Get([]byte(h))
		if raw == nil {
			return fmt.Errorf("object %s: %w", h, storage.ErrNotFound)
		}
		objType, data, err := object.ParseEnvelope(raw)
		if err != nil {
			return fmt.Errorf("object %s: %w", h, err)
		}
		if err := object.CheckType(h, objType, want); err != nil {
			return err
		}
		// Values are only valid for the life of the transaction.
		content = append([]byte(nil), data...)
		return nil
	})
	return content, err
}

func (db *DB) ReadBlob(ctx context.Context, id object.Hash) ([]byte, error) {
	data, err := db.readObject(ctx, id, object.TypeBlob)
	if err != nil {
		return nil, err
	}
	blob, err := object.UnmarshalBlob(data)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

func (db *DB) ReadTree(ctx context.Context, id object.Hash) (*object.TreeObj, error) {
	data, err := db.readObject(ctx, id, object.TypeTree)
	if err != nil {
		return nil, err
	}
	return object.UnmarshalTree(data)
}

func (db *DB) ReadCommit(ctx context.Context, id object.Hash) (*object.CommitObj, error) {
	data, err := db.readObject(ctx, id, object.TypeCommit)
	if err != nil {
		return nil, err
	}
	return object.UnmarshalCommit(data)
}

func (db *DB) writeObject(ctx context.Context, objType object.ObjectType, data []byte) (object.Hash, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := object.HashObject(objType, data)
	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(BucketObjects)
		if b.Get([]byte(h)) != nil {
			return nil
		}
		return b.Put([]byte(h), object.Envelope(objType, data))
	})
	if err != nil {
		return "", fmt.Errorf("write %s: %w", objType, err)
	}
	return h, nil
}

func (db *DB) WriteBlob(ctx context.Context, data []byte) (object.Hash, error) {
	return db.writeObject(ctx, object.TypeBlob, object.MarshalBlob(&object.Blob{Data: data}))
}

func (db *DB) WriteTree(ctx context.Context, tree *object.TreeObj) (object.Hash, error) {
	return db.writeObject(ctx, object.TypeTree, object.MarshalTree(tree))
}

func (db *DB) WriteCommit(ctx context.Context, commit *object.CommitObj) (object.Hash, error) {
	return db.writeObject(ctx, object.TypeCommit, object.MarshalCommit(commit))
}

func (db *DB) UpdateRef(ctx context.Context, name string, next, expectedOld object.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(BucketRefs)
		if cur := object.Hash(b.Get([]byte(name))); cur != expectedOld {
			return fmt.Errorf("%w (expected %q, found %q)", errRefMismatch, expectedOld, cur)
		}
		return b.Put([]byte(name), []byte(next))
	})
	if errors.Is(err, errRefMismatch) {
		return fmt.Errorf("update %s: %w: %w", name, storage.ErrRefConflict, err)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}

func (db *DB) ForceRef(ctx context.Context, name string, next object.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketRefs).Put([]byte(name), []byte(next))
	})
}

// Refs returns every stored ref.
func (db *DB) Refs() (map[string]object.Hash, error) {
	refs := make(map[string]object.Hash)
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketRefs).ForEach(func(k, v []byte) error {
			refs[string(k)] = object.Hash(v)
			return nil
		})
	})
	return refs, err
}
