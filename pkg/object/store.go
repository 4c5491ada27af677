package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrObjectNotFound is returned when a hash has no object in the store.
	ErrObjectNotFound = errors.New("object not found")
	// ErrCorruptObject is returned when stored bytes do not hash to their name
	// or their envelope is malformed.
	ErrCorruptObject = errors.New("corrupt object")
	// ErrTypeMismatch is returned when an object is read as the wrong kind.
	ErrTypeMismatch = errors.New("object type mismatch")
)

// Store keeps one file per object under objects/<first two hex>/<rest>.
type Store struct {
	root string
}

// NewStore returns a Store rooted at root. Directories appear on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether h is present.
func (s *Store) Has(h Hash) bool {
	if ValidateHash(h) != nil {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores data under its content hash and returns the hash. Existing
// objects are left alone; new ones land via temp file and rename.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)
	if s.Has(h) {
		return h, nil
	}
	path := s.objectPath(h)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("write object %s: %w", h, err)
	}
	if err := writeTemp(path, Envelope(objType, data)); err != nil {
		return "", fmt.Errorf("write object %s: %w", h, err)
	}
	return h, nil
}

func writeTemp(path string, raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	_, err = tmp.Write(raw)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		os.Remove(name)
	}
	return err
}

// Read returns the type and content of h. The content is re-hashed, so a
// damaged file is reported as ErrCorruptObject rather than returned.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if err := ValidateHash(h); err != nil {
		return "", nil, fmt.Errorf("read object: %w", err)
	}
	raw, err := os.ReadFile(s.objectPath(h))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, fmt.Errorf("read object %s: %w", h, ErrObjectNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read object %s: %w", h, err)
	}
	objType, content, err := ParseEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("read object %s: %w", h, err)
	}
	if got := HashObject(objType, content); got != h {
		return "", nil, fmt.Errorf("read object %s: %w: content hashes to %s", h, ErrCorruptObject, got)
	}
	return objType, content, nil
}

// Envelope frames data as "type len\0content", the form that is hashed.
func Envelope(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	return append([]byte(header), data...)
}

// ParseEnvelope splits a framed object into its type and content. Errors
// wrap ErrCorruptObject.
func ParseEnvelope(raw []byte) (ObjectType, []byte, error) {
	header, content, ok := bytes.Cut(raw, []byte{0})
	if !ok {
		return "", nil, fmt.Errorf("%w: no header terminator", ErrCorruptObject)
	}
	typ, size, ok := strings.Cut(string(header), " ")
	if !ok || typ == "" {
		return "", nil, fmt.Errorf("%w: header %q", ErrCorruptObject, header)
	}
	n, err := strconv.Atoi(size)
	if err != nil || n != len(content) {
		return "", nil, fmt.Errorf("%w: header says %q bytes, have %d", ErrCorruptObject, size, len(content))
	}
	return ObjectType(typ), content, nil
}

// CheckType returns an ErrTypeMismatch error when got is not want.
func CheckType(h Hash, got, want ObjectType) error {
	if got != want {
		return fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, got, want)
	}
	return nil
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if err := CheckType(h, objType, want); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}
