package codec

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/justindra/yaks/pkg/yak"
)

// ReadDir decodes a plain directory tree such as a legacy .yaks folder.
// A missing root yields an empty collection.
func ReadDir(root string) (*yak.Collection, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			entries = append(entries, Entry{Path: rel, Dir: true})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		var content []byte
		if filepath.Base(path) == ContextFile {
			content, err = os.ReadFile(path)
			if err != nil {
				return err
			}
		}
		entries = append(entries, Entry{Path: rel, Content: content})
		return nil
	})
	if os.IsNotExist(err) {
		return yak.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read yak dir: %w", err)
	}
	return Decode(entries), nil
}

// WriteDir materializes c under root. Existing yak directories are
// replaced; root must not contain unrelated files the caller cares about.
func WriteDir(root string, c *yak.Collection) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("write yak dir: mkdir: %w", err)
	}
	for _, id := range c.Roots() {
		if err := os.RemoveAll(filepath.Join(root, filepath.FromSlash(id))); err != nil {
			return fmt.Errorf("write yak dir: clear %s: %w", id, err)
		}
	}
	for _, e := range Encode(c) {
		path := filepath.Join(root, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("write yak dir: mkdir %s: %w", e.Path, err)
		}
		if err := os.WriteFile(path, e.Content, 0o644); err != nil {
			return fmt.Errorf("write yak dir: %s: %w", strings.TrimSuffix(e.Path, "/"), err)
		}
	}
	return nil
}
