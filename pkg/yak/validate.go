package yak

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Validation failure kinds. Match them with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidName           = errors.New("invalid name")
	ErrHasIncompleteChildren = errors.New("has incomplete children")
	ErrHasChildren           = errors.New("has children")
	ErrWouldCreateCycle      = errors.New("would create a cycle")
	ErrAlreadyExists         = errors.New("already exists")
)

// ValidationError reports which yak broke which rule.
type ValidationError struct {
	Kind   error
	ID     string
	Detail string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var msg string
	switch e.Kind {
	case ErrNotFound:
		msg = fmt.Sprintf("yak '%s' does not exist", e.ID)
	case ErrInvalidName:
		msg = fmt.Sprintf("invalid yak name '%s'", e.ID)
	case ErrHasIncompleteChildren:
		msg = fmt.Sprintf("cannot mark '%s' as done - it has incomplete children", e.ID)
	case ErrHasChildren:
		msg = fmt.Sprintf("cannot remove '%s' - it has children", e.ID)
	case ErrWouldCreateCycle:
		msg = fmt.Sprintf("cannot move '%s' into itself", e.ID)
	case ErrAlreadyExists:
		msg = fmt.Sprintf("yak '%s' already exists", e.ID)
	default:
		msg = fmt.Sprintf("yak '%s': %v", e.ID, e.Kind)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func invalid(kind error, id, detail string) *ValidationError {
	return &ValidationError{Kind: kind, ID: id, Detail: detail}
}

// ReservedNames are path segments that collide with tree metadata files or
// with relative path components.
var ReservedNames = []string{".", "..", "done", "context.md", ".yak"}

const forbiddenChars = `\:*?|<>"`

// ValidateName checks a full id against the naming grammar.
func ValidateName(id string) error {
	if id == "" {
		return invalid(ErrInvalidName, id, "name cannot be empty")
	}
	if strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/") {
		return invalid(ErrInvalidName, id, "leading or trailing '/'")
	}
	if strings.ContainsAny(id, forbiddenChars) {
		return invalid(ErrInvalidName, id, `contains forbidden characters (\ : * ? | < > ")`)
	}
	if strings.ContainsFunc(id, unicode.IsControl) {
		return invalid(ErrInvalidName, id, "contains control characters")
	}
	for _, seg := range strings.Split(id, "/") {
		if seg == "" {
			return invalid(ErrInvalidName, id, "empty path segment")
		}
		if strings.TrimSpace(seg) != seg {
			return invalid(ErrInvalidName, id, fmt.Sprintf("segment %q has surrounding whitespace", seg))
		}
		for _, reserved := range ReservedNames {
			if seg == reserved {
				return invalid(ErrInvalidName, id, fmt.Sprintf("segment %q is reserved", seg))
			}
		}
	}
	return nil
}

// ValidateExists fails with ErrNotFound when id is absent.
func ValidateExists(c *Collection, id string) error {
	if !c.Has(id) {
		return invalid(ErrNotFound, id, "")
	}
	return nil
}

// ValidateAdd checks that name may be created under parentID. Missing
// intermediate ancestors are the caller's concern.
func ValidateAdd(c *Collection, parentID, name string) error {
	if strings.Contains(name, "/") {
		return invalid(ErrInvalidName, name, "name must be a single segment")
	}
	id := Join(parentID, name)
	if err := ValidateName(id); err != nil {
		return err
	}
	if parentID != "" && !c.Has(parentID) {
		return invalid(ErrNotFound, parentID, "parent")
	}
	if c.Has(id) {
		return invalid(ErrAlreadyExists, id, "")
	}
	return nil
}

// ValidateMove checks that srcID may be re-homed under dstParentID with
// the leaf name newName.
func ValidateMove(c *Collection, srcID, dstParentID, newName string) error {
	if err := ValidateExists(c, srcID); err != nil {
		return err
	}
	if dstParentID != "" && !c.Has(dstParentID) {
		return invalid(ErrNotFound, dstParentID, "destination parent")
	}
	if strings.Contains(newName, "/") {
		return invalid(ErrInvalidName, newName, "name must be a single segment")
	}
	dstID := Join(dstParentID, newName)
	if err := ValidateName(dstID); err != nil {
		return err
	}
	if dstID == srcID {
		return invalid(ErrAlreadyExists, dstID, "destination is the same as the source")
	}
	if dstParentID == srcID || c.IsAncestor(srcID, dstParentID) {
		return invalid(ErrWouldCreateCycle, srcID, fmt.Sprintf("destination '%s' is inside it", dstID))
	}
	if c.Has(dstID) {
		return invalid(ErrAlreadyExists, dstID, "")
	}
	return nil
}

// ValidateMarkDone checks that id may transition to done. Recursive mode
// skips the child check because the whole subtree is marked together.
func ValidateMarkDone(c *Collection, id string, recursive bool) error {
	if err := ValidateExists(c, id); err != nil {
		return err
	}
	if !recursive && c.HasIncompleteChildren(id) {
		return invalid(ErrHasIncompleteChildren, id, "")
	}
	return nil
}

// ValidateDelete checks that id may be removed. A non-recursive delete
// requires a childless yak.
func ValidateDelete(c *Collection, id string, recursive bool) error {
	if err := ValidateExists(c, id); err != nil {
		return err
	}
	if !recursive && len(c.Children(id)) > 0 {
		return invalid(ErrHasChildren, id, "")
	}
	return nil
}

// CheckInvariants verifies the structural rules of a whole collection:
// non-empty ids, ids consistent with names and parents, and no dangling
// parents. Names from foreign trees are not re-validated against the
// grammar.
func CheckInvariants(c *Collection) error {
	for _, y := range c.All() {
		if y.ID == "" {
			return fmt.Errorf("yak with empty id")
		}
		if y.Name != LeafName(y.ID) || y.ParentID != ParentPath(y.ID) {
			return fmt.Errorf("yak %q: name/parent do not match id", y.ID)
		}
		if y.ParentID != "" && !c.Has(y.ParentID) {
			return fmt.Errorf("yak %q: parent %q does not exist", y.ID, y.ParentID)
		}
	}
	return nil
}
