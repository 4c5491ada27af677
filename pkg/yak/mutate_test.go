package yak

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	valid := []string{"simple-name", "parent/child", "with spaces", "a/b/c"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Fatalf("ValidateName(%q): %v", name, err)
		}
	}

	invalidNames := []string{
		"",
		"/leading",
		"trailing/",
		"a//b",
		"with\\backslash",
		"with:colon",
		"with*asterisk",
		"with?question",
		"with|pipe",
		"with<less",
		"with>greater",
		"with\"quote",
		"with\nnewline",
		"tab\there",
		" padded",
		"a/padded ",
		".",
		"a/..",
		"a/done",
		"context.md",
		"x/.yak",
	}
	for _, name := range invalidNames {
		err := ValidateName(name)
		if !errors.Is(err, ErrInvalidName) {
			t.Fatalf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestAddCreatesMissingParents(t *testing.T) {
	c, err := Add(Empty(), "parent/child")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !c.Has("parent") || !c.Has("parent/child") {
		t.Fatalf("ids = %v, want parent and parent/child", c.IDs())
	}
	if got := c.Roots(); !reflect.DeepEqual(got, []string{"parent"}) {
		t.Fatalf("Roots = %v", got)
	}
}

func TestAddRejectsDuplicatesAndLeavesReceiverUntouched(t *testing.T) {
	c := mustAdd(t, Empty(), "a")
	if _, err := Add(c, "a"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Add duplicate = %v, want ErrAlreadyExists", err)
	}
	if _, err := Add(c, "a/b"); err != nil {
		t.Fatalf("Add(a/b): %v", err)
	}
	if c.Has("a/b") {
		t.Fatalf("Add mutated the receiver")
	}
}

func TestValidateAddRequiresParent(t *testing.T) {
	if err := ValidateAdd(Empty(), "missing", "child"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ValidateAdd = %v, want ErrNotFound", err)
	}
}

func TestMarkDoneScenario(t *testing.T) {
	c := mustAdd(t, Empty(), "parent", "parent/child")

	_, err := MarkDone(c, "parent", false)
	if !errors.Is(err, ErrHasIncompleteChildren) {
		t.Fatalf("MarkDone(parent) = %v, want ErrHasIncompleteChildren", err)
	}

	c, err = MarkDone(c, "parent/child", false)
	if err != nil {
		t.Fatalf("MarkDone(child): %v", err)
	}
	c, err = MarkDone(c, "parent", false)
	if err != nil {
		t.Fatalf("MarkDone(parent): %v", err)
	}
	if y, _ := c.Get("parent"); !y.Done {
		t.Fatalf("parent not done")
	}
}

func TestMarkDoneRecursiveMarksSubtree(t *testing.T) {
	c := mustAdd(t, Empty(), "a/b/c", "a/d", "other")
	c, err := MarkDone(c, "a", true)
	if err != nil {
		t.Fatalf("MarkDone recursive: %v", err)
	}
	for _, y := range c.Subtree("a") {
		if !y.Done {
			t.Fatalf("%s not done after recursive mark", y.ID)
		}
	}
	if y, _ := c.Get("other"); y.Done {
		t.Fatalf("unrelated yak marked done")
	}
}

func TestMarkDoneFailsExactlyWithIncompleteChildren(t *testing.T) {
	c := mustAdd(t, Empty(), "p/a", "p/b", "q")
	c, _ = MarkDone(c, "p/a", false)
	for _, id := range c.IDs() {
		_, err := MarkDone(c, id, false)
		if got, want := err != nil, c.HasIncompleteChildren(id); got != want {
			t.Fatalf("MarkDone(%s) failed=%v, HasIncompleteChildren=%v", id, got, want)
		}
	}
}

func TestUndo(t *testing.T) {
	c := mustAdd(t, Empty(), "a")
	c, _ = MarkDone(c, "a", false)
	c, err := Undo(c, "a")
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if y, _ := c.Get("a"); y.Done {
		t.Fatalf("a still done")
	}
	if _, err := Undo(c, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Undo(nope) = %v", err)
	}
}

func TestMoveCarriesSubtree(t *testing.T) {
	c := mustAdd(t, Empty(), "old/child", "dest")
	c, _ = MarkDone(c, "old/child", false)
	c, _ = SetContext(c, "old", "notes")

	moved, err := Move(c, "old", "dest/new")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.Has("old") || moved.Has("old/child") {
		t.Fatalf("old ids survived: %v", moved.IDs())
	}
	y, ok := moved.Get("dest/new")
	if !ok || y.Context != "notes" || y.ParentID != "dest" {
		t.Fatalf("dest/new = %+v, ok=%v", y, ok)
	}
	child, ok := moved.Get("dest/new/child")
	if !ok || !child.Done {
		t.Fatalf("dest/new/child = %+v, ok=%v", child, ok)
	}
	if err := CheckInvariants(moved); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}
}

func TestMoveRejections(t *testing.T) {
	c := mustAdd(t, Empty(), "a/b/c", "x")

	tests := []struct {
		name string
		src  string
		dst  string
		want error
	}{
		{name: "missing source", src: "nope", dst: "y", want: ErrNotFound},
		{name: "missing destination parent", src: "x", dst: "ghost/x", want: ErrNotFound},
		{name: "same as source", src: "x", dst: "x", want: ErrAlreadyExists},
		{name: "collides with existing", src: "x", dst: "a", want: ErrAlreadyExists},
		{name: "into itself", src: "a", dst: "a/a", want: ErrWouldCreateCycle},
		{name: "into descendant", src: "a", dst: "a/b/c/a", want: ErrWouldCreateCycle},
		{name: "invalid name", src: "x", dst: "bad:name", want: ErrInvalidName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Move(c, tc.src, tc.dst)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Move(%q, %q) = %v, want %v", tc.src, tc.dst, err, tc.want)
			}
		})
	}
}

func TestMoveNeverIntoOwnSubtreeAtAnyDepth(t *testing.T) {
	ids := []string{"r"}
	for i := 1; i < 8; i++ {
		ids = append(ids, ids[i-1]+fmt.Sprintf("/n%d", i))
	}
	c := mustAdd(t, Empty(), ids[len(ids)-1])
	for _, src := range ids {
		for _, parent := range ids {
			if parent != src && !c.IsAncestor(src, parent) {
				continue
			}
			if _, err := Move(c, src, parent+"/moved"); err == nil {
				t.Fatalf("Move(%s -> %s/moved) succeeded", src, parent)
			}
		}
	}
}

func TestDelete(t *testing.T) {
	c := mustAdd(t, Empty(), "a/b", "c")
	if _, err := Delete(c, "a", false); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("Delete(a) = %v, want ErrHasChildren", err)
	}
	next, err := Delete(c, "a", true)
	if err != nil {
		t.Fatalf("Delete recursive: %v", err)
	}
	if got := next.IDs(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("ids = %v, want [c]", got)
	}
	if _, err := Delete(c, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) = %v", err)
	}
}

func TestSetContextTrimsAndClears(t *testing.T) {
	c := mustAdd(t, Empty(), "a")
	c, err := SetContext(c, "a", "\n  some notes \n")
	if err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	if y, _ := c.Get("a"); y.Context != "some notes" {
		t.Fatalf("context = %q", y.Context)
	}
	c, _ = SetContext(c, "a", "   ")
	if y, _ := c.Get("a"); y.Context != "" {
		t.Fatalf("context not cleared: %q", y.Context)
	}
}

func TestPrune(t *testing.T) {
	c := NewCollection(
		Yak{ID: "done-tree", Done: true},
		Yak{ID: "done-tree/leaf", Done: true},
		Yak{ID: "mixed", Done: true},
		Yak{ID: "mixed/pending"},
		Yak{ID: "mixed/finished", Done: true},
		Yak{ID: "open"},
		Yak{ID: "open/finished", Done: true},
	)
	pruned, removed := Prune(c)

	wantRemoved := []string{"done-tree", "done-tree/leaf", "mixed/finished", "open/finished"}
	if !reflect.DeepEqual(removed, wantRemoved) {
		t.Fatalf("removed = %v, want %v", removed, wantRemoved)
	}
	if got, want := pruned.IDs(), []string{"mixed", "mixed/pending", "open"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
	if err := CheckInvariants(pruned); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}
}

func TestResolve(t *testing.T) {
	c := mustAdd(t, Empty(), "dx/rust", "dx/go", "ops/go", "Writing docs")

	tests := []struct {
		query string
		want  string
		fail  bool
	}{
		{query: "dx/rust", want: "dx/rust"},
		{query: "rust", want: "dx/rust"},
		{query: "writing", want: "Writing docs"},
		{query: "go", fail: true},
		{query: "nothing", fail: true},
	}
	for _, tc := range tests {
		got, err := Resolve(c, tc.query)
		if tc.fail {
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Resolve(%q) = %q, %v, want ErrNotFound", tc.query, got, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tc.query, err)
		}
		if got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := MarkDone(mustAdd(t, Empty(), "p/c"), "p", false)
	if err == nil {
		t.Fatalf("expected error")
	}
	if msg := err.Error(); !strings.Contains(msg, "'p'") || !strings.Contains(msg, "incomplete children") {
		t.Fatalf("message = %q", msg)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.ID != "p" {
		t.Fatalf("errors.As = %+v", ve)
	}
}
