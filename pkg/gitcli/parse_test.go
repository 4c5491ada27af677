package gitcli

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/justindra/yaks/pkg/object"
)

func TestParseLsTree(t *testing.T) {
	out := []byte("100644 blob aaa\t.yak\x0040000 tree bbb\twriting docs\x00160000 commit ccc\tsub\x00")
	tree, err := parseLsTree(out)
	if err != nil {
		t.Fatalf("parseLsTree: %v", err)
	}
	if len(tree.Entries) != 2 {
		t.Fatalf("entries = %+v", tree.Entries)
	}
	if tree.Entries[0].BlobHash != "aaa" || tree.Entries[0].IsDir {
		t.Fatalf("blob entry = %+v", tree.Entries[0])
	}
	if tree.Entries[1].Name != "writing docs" || !tree.Entries[1].IsDir || tree.Entries[1].SubtreeHash != "bbb" {
		t.Fatalf("tree entry = %+v", tree.Entries[1])
	}
	if _, err := parseLsTree([]byte("garbage\x00")); err == nil {
		t.Fatal("expected malformed entry error")
	}
}

func TestParseCommit(t *testing.T) {
	raw := []byte("tree ttt\nparent p1\nparent p2\n" +
		"author Ada Lovelace <ada@example.com> 1700000000 +0100\n" +
		"committer Ada Lovelace <ada@example.com> 1700000001 +0100\n" +
		"gpgsig -----BEGIN-----\n abc\n -----END-----\n\nyx done \"a\"\n")
	c, err := parseCommit(raw)
	if err != nil {
		t.Fatalf("parseCommit: %v", err)
	}
	want := object.CommitObj{
		TreeHash:  "ttt",
		Parents:   []object.Hash{"p1", "p2"},
		Author:    "Ada Lovelace <ada@example.com>",
		Timestamp: 1700000000,
		Message:   "yx done \"a\"\n",
	}
	if c.TreeHash != want.TreeHash || len(c.Parents) != 2 || c.Author != want.Author || c.Timestamp != want.Timestamp || c.Message != want.Message {
		t.Fatalf("commit = %+v, want %+v", c, want)
	}
	if _, err := parseCommit([]byte("parent x\n\nmsg")); err == nil {
		t.Fatal("expected missing tree error")
	}
}

func TestSplitAuthor(t *testing.T) {
	tests := []struct {
		in, name, email string
	}{
		{"Ada <ada@example.com>", "Ada", "ada@example.com"},
		{"ada", "ada", ""},
		{"", "yaks", ""},
		{"<ada@example.com>", "yaks", "ada@example.com"},
	}
	for _, tc := range tests {
		name, email := splitAuthor(tc.in)
		if name != tc.name || email != tc.email {
			t.Fatalf("splitAuthor(%q) = %q, %q, want %q, %q", tc.in, name, email, tc.name, tc.email)
		}
	}
}

func TestOutputClassification(t *testing.T) {
	err := &GitError{Args: []string{"push"}, Stdout: "!\trefs/notes/yaks\t[rejected] (stale info)", Err: &exec.ExitError{}}
	if !outputContains(err, "stale info") {
		t.Fatal("stdout should be searched too")
	}
	if outputContains(errors.New("plain"), "plain") {
		t.Fatal("only git errors carry output")
	}
}
