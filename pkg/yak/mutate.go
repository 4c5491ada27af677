package yak

import (
	"fmt"
	"sort"
	"strings"
)

// Add creates id, creating any missing ancestors first. The receiver is
// left untouched; the returned collection holds the new yaks.
func Add(c *Collection, id string) (*Collection, error) {
	if err := ValidateName(id); err != nil {
		return nil, err
	}
	if c.Has(id) {
		return nil, invalid(ErrAlreadyExists, id, "")
	}
	m := c.clone()
	next := fromMap(m)
	for _, ancestor := range append(Ancestors(id), id) {
		if next.Has(ancestor) {
			continue
		}
		if err := ValidateAdd(next, ParentPath(ancestor), LeafName(ancestor)); err != nil {
			return nil, err
		}
		m[ancestor] = New(ancestor)
		next = fromMap(m)
	}
	return next, nil
}

// Move re-homes src and its whole subtree at dst, a full destination id.
// Done flags and contexts travel with the subtree.
func Move(c *Collection, src, dst string) (*Collection, error) {
	if err := ValidateMove(c, src, ParentPath(dst), LeafName(dst)); err != nil {
		return nil, err
	}

	subtree := c.Subtree(src)
	renamed := make([]Yak, 0, len(subtree))
	for _, y := range subtree {
		moved := New(dst + strings.TrimPrefix(y.ID, src))
		moved.Done = y.Done
		moved.Context = y.Context
		renamed = append(renamed, moved)
	}
	for _, y := range renamed {
		if c.Has(y.ID) {
			return nil, invalid(ErrAlreadyExists, y.ID, "")
		}
	}

	m := c.clone()
	for _, y := range subtree {
		delete(m, y.ID)
	}
	for _, y := range renamed {
		m[y.ID] = y
	}
	return fromMap(m), nil
}

// MarkDone flags id as done. With recursive set, every descendant is
// flagged in the same step.
func MarkDone(c *Collection, id string, recursive bool) (*Collection, error) {
	if err := ValidateMarkDone(c, id, recursive); err != nil {
		return nil, err
	}
	targets := []Yak{}
	if recursive {
		targets = c.Subtree(id)
	} else {
		y, _ := c.Get(id)
		targets = append(targets, y)
	}
	m := c.clone()
	for _, y := range targets {
		y.Done = true
		m[y.ID] = y
	}
	return fromMap(m), nil
}

// Undo clears the done flag of id.
func Undo(c *Collection, id string) (*Collection, error) {
	if err := ValidateExists(c, id); err != nil {
		return nil, err
	}
	m := c.clone()
	y := m[id]
	y.Done = false
	m[id] = y
	return fromMap(m), nil
}

// Delete removes id. A recursive delete removes the whole subtree.
func Delete(c *Collection, id string, recursive bool) (*Collection, error) {
	if err := ValidateDelete(c, id, recursive); err != nil {
		return nil, err
	}
	m := c.clone()
	for _, y := range c.Subtree(id) {
		delete(m, y.ID)
	}
	return fromMap(m), nil
}

// SetContext replaces the note attached to id. Surrounding whitespace is
// trimmed and an empty text clears the note.
func SetContext(c *Collection, id, text string) (*Collection, error) {
	if err := ValidateExists(c, id); err != nil {
		return nil, err
	}
	m := c.clone()
	y := m[id]
	y.Context = strings.TrimSpace(text)
	m[id] = y
	return fromMap(m), nil
}

// Prune removes every done yak whose entire subtree is done and returns
// the removed ids in order.
func Prune(c *Collection) (*Collection, []string) {
	prunable := make(map[string]bool)
	for _, y := range c.All() {
		if !y.Done {
			continue
		}
		allDone := true
		for _, d := range c.Descendants(y.ID) {
			if !d.Done {
				allDone = false
				break
			}
		}
		if allDone {
			prunable[y.ID] = true
		}
	}

	m := c.clone()
	removed := make([]string, 0, len(prunable))
	for id := range prunable {
		delete(m, id)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return fromMap(m), removed
}

// Resolve maps a user-supplied query to an existing id. An exact id wins,
// then a unique leaf-name match, then a unique case-insensitive substring
// match.
func Resolve(c *Collection, query string) (string, error) {
	query = strings.TrimSpace(query)
	if c.Has(query) {
		return query, nil
	}

	var byLeaf []string
	for _, id := range c.IDs() {
		if LeafName(id) == query {
			byLeaf = append(byLeaf, id)
		}
	}
	if len(byLeaf) == 1 {
		return byLeaf[0], nil
	}
	if len(byLeaf) > 1 {
		return "", invalid(ErrNotFound, query, fmt.Sprintf("ambiguous, matches %s", strings.Join(byLeaf, ", ")))
	}

	lower := strings.ToLower(query)
	var bySub []string
	for _, id := range c.IDs() {
		if query != "" && strings.Contains(strings.ToLower(id), lower) {
			bySub = append(bySub, id)
		}
	}
	switch len(bySub) {
	case 1:
		return bySub[0], nil
	case 0:
		return "", invalid(ErrNotFound, query, "")
	default:
		return "", invalid(ErrNotFound, query, fmt.Sprintf("ambiguous, matches %s", strings.Join(bySub, ", ")))
	}
}
