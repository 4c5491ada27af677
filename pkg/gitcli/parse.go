package gitcli

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/justindra/yaks/pkg/object"
)

// parseLsTree reads `git ls-tree -z` output: "mode type hash\tname\0".
func parseLsTree(out []byte) (*object.TreeObj, error) {
	tree := &object.TreeObj{}
	for _, rec := range bytes.Split(out, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		meta, name, ok := bytes.Cut(rec, []byte{'\t'})
		if !ok {
			return nil, fmt.Errorf("ls-tree: malformed entry %q", rec)
		}
		fields := strings.Fields(string(meta))
		if len(fields) != 3 {
			return nil, fmt.Errorf("ls-tree: malformed entry %q", rec)
		}
		entry := object.TreeEntry{Name: string(name)}
		switch fields[1] {
		case "tree":
			entry.IsDir = true
			entry.Mode = object.TreeModeDir
			entry.SubtreeHash = object.Hash(fields[2])
		case "blob":
			entry.Mode = object.TreeModeFile
			entry.BlobHash = object.Hash(fields[2])
		default:
			// Submodules and other entry kinds never hold yak data.
			continue
		}
		tree.Entries = append(tree.Entries, entry)
	}
	return tree, nil
}

// parseCommit reads a raw git commit object.
func parseCommit(raw []byte) (*object.CommitObj, error) {
	header, message, ok := bytes.Cut(raw, []byte("\n\n"))
	if !ok {
		header = bytes.TrimRight(raw, "\n")
	}
	c := &object.CommitObj{Message: string(message)}
	for _, line := range strings.Split(string(header), "\n") {
		if strings.HasPrefix(line, " ") {
			continue // continuation of a multi-line header such as gpgsig
		}
		key, val, _ := strings.Cut(line, " ")
		switch key {
		case "tree":
			c.TreeHash = object.Hash(val)
		case "parent":
			c.Parents = append(c.Parents, object.Hash(val))
		case "author":
			who, ts, err := splitIdent(val)
			if err != nil {
				return nil, fmt.Errorf("parse commit: %w", err)
			}
			c.Author, c.Timestamp = who, ts
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("parse commit: missing tree header")
	}
	return c, nil
}

// splitIdent splits "Name <email> 1700000000 +0000" into identity and time.
func splitIdent(val string) (string, int64, error) {
	end := strings.LastIndex(val, ">")
	if end < 0 {
		return "", 0, fmt.Errorf("malformed ident %q", val)
	}
	who := strings.TrimSpace(val[:end+1])
	fields := strings.Fields(val[end+1:])
	if len(fields) == 0 {
		return who, 0, nil
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed ident time %q: %w", val, err)
	}
	return who, ts, nil
}

// splitAuthor splits "Name <email>" for git's environment variables. A bare
// name gets an empty email.
func splitAuthor(author string) (string, string) {
	author = strings.TrimSpace(author)
	open := strings.LastIndex(author, "<")
	end := strings.LastIndex(author, ">")
	if open < 0 || end < open {
		if author == "" {
			author = "yaks"
		}
		return author, ""
	}
	name := strings.TrimSpace(author[:open])
	if name == "" {
		name = "yaks"
	}
	return name, strings.TrimSpace(author[open+1 : end])
}
