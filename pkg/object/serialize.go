package object

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MarshalBlob returns a copy of the blob's bytes.
func MarshalBlob(b *Blob) []byte {
	return bytes.Clone(b.Data)
}

// UnmarshalBlob wraps a copy of data. It never fails.
func UnmarshalBlob(data []byte) (*Blob, error) {
	return &Blob{Data: bytes.Clone(data)}, nil
}

// MarshalTree writes one "mode hash name" line per entry, sorted by name,
// so equal trees always hash the same. Names go last and may hold spaces.
func MarshalTree(tr *TreeObj) []byte {
	entries := slices.Clone(tr.Entries)
	slices.SortFunc(entries, func(a, b TreeEntry) int { return strings.Compare(a.Name, b.Name) })

	var buf bytes.Buffer
	for _, e := range entries {
		mode := TreeModeFile
		if e.IsDir {
			mode = TreeModeDir
		}
		buf.WriteString(mode + " " + string(e.Target()) + " " + e.Name + "\n")
	}
	return buf.Bytes()
}

// UnmarshalTree parses MarshalTree output. It rejects unknown modes, bad
// hashes, names with a slash and entries that are unsorted or repeated.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		e, err := parseTreeLine(line)
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		if n := len(tr.Entries); n > 0 && e.Name <= tr.Entries[n-1].Name {
			return nil, fmt.Errorf("unmarshal tree: entry %q out of order or duplicated", e.Name)
		}
		tr.Entries = append(tr.Entries, e)
	}
	return tr, nil
}

func parseTreeLine(line string) (TreeEntry, error) {
	mode, rest, _ := strings.Cut(line, " ")
	h, name, ok := strings.Cut(rest, " ")
	if !ok || name == "" || strings.Contains(name, "/") {
		return TreeEntry{}, fmt.Errorf("malformed entry %q", line)
	}
	if err := ValidateHash(Hash(h)); err != nil {
		return TreeEntry{}, fmt.Errorf("entry %q: %w", name, err)
	}
	switch mode {
	case TreeModeDir:
		return TreeEntry{Name: name, IsDir: true, Mode: TreeModeDir, SubtreeHash: Hash(h)}, nil
	case TreeModeFile, "100755":
		return TreeEntry{Name: name, Mode: TreeModeFile, BlobHash: Hash(h)}, nil
	}
	return TreeEntry{}, fmt.Errorf("entry %q: unknown mode %q", name, mode)
}

// oneLine flattens a header value so it cannot start a new header.
var oneLine = strings.NewReplacer("\r", " ", "\n", " ")

// MarshalCommit writes the commit headers, a blank line, then the message:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	timestamp T
//	signature S  (optional)
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	header := func(key, val string) {
		buf.WriteString(key + " " + oneLine.Replace(val) + "\n")
	}
	header("tree", string(c.TreeHash))
	for _, p := range c.Parents {
		header("parent", string(p))
	}
	header("author", c.Author)
	header("timestamp", strconv.FormatInt(c.Timestamp, 10))
	if strings.TrimSpace(c.Signature) != "" {
		header("signature", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses MarshalCommit output. The tree header is required
// and every hash must be well formed.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	head, msg, ok := bytes.Cut(data, []byte("\n\n"))
	if !ok {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	c := &CommitObj{Message: string(msg)}
	for _, line := range strings.Split(string(head), "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		var err error
		switch key {
		case "tree":
			c.TreeHash, err = Hash(val), ValidateHash(Hash(val))
		case "parent":
			c.Parents, err = append(c.Parents, Hash(val)), ValidateHash(Hash(val))
		case "author":
			c.Author = val
		case "timestamp":
			c.Timestamp, err = strconv.ParseInt(val, 10, 64)
		case "signature":
			c.Signature = val
		default:
			err = fmt.Errorf("unknown header")
		}
		if err != nil {
			return nil, fmt.Errorf("unmarshal commit: %s header: %w", key, err)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("unmarshal commit: missing tree header")
	}
	return c, nil
}
