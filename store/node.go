package store

import (
	"cmp"
	"slices"
	"strings"

	"github.com/brettbedarf/deskfs"
)

// entry is the in-memory tree node. All fields are protected by Store.mu.
type entry struct {
	deskfs.Node
	parent   *entry            // nil for the root
	children map[string]*entry // child entries by name; nil for files
}

func newEntry(n deskfs.Node) *entry {
	e := &entry{Node: n}
	if n.Kind == deskfs.KindFolder {
		e.children = make(map[string]*entry)
	}
	return e
}

// snapshot returns a copy safe to hand out to callers
func (e *entry) snapshot() deskfs.Node {
	return e.Node.Clone()
}

// addChild links child under e and sets the child's parent to e
func (e *entry) addChild(child *entry) {
	e.children[child.Name] = child
	child.parent = e
	child.ParentID = e.ID
}

// removeChild detaches the named child; returns false if it was not present
func (e *entry) removeChild(name string) bool {
	child, ok := e.children[name]
	if !ok {
		return false
	}
	delete(e.children, name)
	child.parent = nil
	return true
}

// isAncestorOf returns true if e is other or one of other's ancestors
func (e *entry) isAncestorOf(other *entry) bool {
	for p := other; p != nil; p = p.parent {
		if p == e {
			return true
		}
	}
	return false
}

// subtree returns e and all of its descendants, children before parents
func (e *entry) subtree() []*entry {
	var out []*entry
	for _, child := range e.children {
		out = append(out, child.subtree()...)
	}
	return append(out, e)
}

// sortedChildren returns the children ordered folders first, then files,
// each group by ascending byte-wise name.
func (e *entry) sortedChildren() []*entry {
	out := make([]*entry, 0, len(e.children))
	for _, child := range e.children {
		out = append(out, child)
	}
	slices.SortFunc(out, compareEntries)
	return out
}

func compareEntries(a, b *entry) int {
	if a.Kind != b.Kind {
		if a.Kind == deskfs.KindFolder {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Name, b.Name)
}

// splitPath breaks a slash separated path into names, ignoring empty segments
// so "/a//b/" and "a/b" are equivalent.
func splitPath(p string) []string {
	return slices.DeleteFunc(strings.Split(p, "/"), func(s string) bool { return s == "" })
}
