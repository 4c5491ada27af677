package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/justindra/yaks/pkg/codec"
	"github.com/justindra/yaks/pkg/object"
)

// treeBuilder writes codec entries as nested trees, deduplicating blobs
// within one snapshot.
type treeBuilder struct {
	backend Backend
	files   map[string][]byte
	blobs   map[object.Hash]object.Hash
}

func newTreeBuilder(b Backend, entries []codec.Entry) *treeBuilder {
	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if !e.Dir {
			files[e.Path] = e.Content
		}
	}
	return &treeBuilder{backend: b, files: files, blobs: make(map[object.Hash]object.Hash)}
}

func (tb *treeBuilder) build(ctx context.Context) (object.Hash, error) {
	return tb.buildDir(ctx, "")
}

func (tb *treeBuilder) buildDir(ctx context.Context, prefix string) (object.Hash, error) {
	files := make(map[string][]byte)
	subdirs := make(map[string]struct{})
	for p, content := range tb.files {
		rel := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}
		if slash := strings.IndexByte(rel, '/'); slash >= 0 {
			subdirs[rel[:slash]] = struct{}{}
		} else {
			files[rel] = content
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isFile := files[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]object.TreeEntry, 0, len(names))
	for _, name := range names {
		if content, isFile := files[name]; isFile {
			h, err := tb.blob(ctx, content)
			if err != nil {
				return "", err
			}
			entries = append(entries, object.TreeEntry{Name: name, Mode: object.TreeModeFile, BlobHash: h})
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		sub, err := tb.buildDir(ctx, childPrefix)
		if err != nil {
			return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
		}
		entries = append(entries, object.TreeEntry{Name: name, IsDir: true, Mode: object.TreeModeDir, SubtreeHash: sub})
	}

	h, err := tb.backend.WriteTree(ctx, &object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

func (tb *treeBuilder) blob(ctx context.Context, content []byte) (object.Hash, error) {
	key := object.HashObject(object.TypeBlob, content)
	if h, ok := tb.blobs[key]; ok {
		return h, nil
	}
	h, err := tb.backend.WriteBlob(ctx, content)
	if err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	tb.blobs[key] = h
	return h, nil
}

// flattenTree walks a stored tree into codec entries. Directories are
// reported too so that empty yak directories survive decoding. Only note
// blobs are fetched; marker and done files carry no content.
func flattenTree(ctx context.Context, b Backend, h object.Hash, prefix string) ([]codec.Entry, error) {
	tree, err := b.ReadTree(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var out []codec.Entry
	for _, entry := range tree.Entries {
		full := entry.Name
		if prefix != "" {
			full = path.Join(prefix, entry.Name)
		}
		if entry.IsDir {
			out = append(out, codec.Entry{Path: full, Dir: true})
			sub, err := flattenTree(ctx, b, entry.SubtreeHash, full)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		e := codec.Entry{Path: full}
		if entry.Name == codec.ContextFile {
			data, err := b.ReadBlob(ctx, entry.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("flatten tree: read %s: %w", full, err)
			}
			e.Content = data
		}
		out = append(out, e)
	}
	return out, nil
}
