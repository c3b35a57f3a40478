// Package explorer is the presentation boundary over the node store: a
// current-folder cursor with listing, navigation and breadcrumb helpers, and
// a line-oriented shell on top of it.
package explorer

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/store"
)

// Display markers
const (
	FolderMarker = "📁"
	FileMarker   = "📄"
)

// UpName is the name of the entry leading to the parent folder
const UpName = ".."

// Entry is one row of a folder listing
type Entry struct {
	Node deskfs.Node
	Up   bool // the ".." entry; Node is the parent folder
}

// Name returns the name shown for the entry
func (e Entry) Name() string {
	if e.Up {
		return UpName
	}
	return e.Node.Name
}

// Marker returns the display marker for the entry's kind
func (e Entry) Marker() string {
	if e.Node.IsFolder() {
		return FolderMarker
	}
	return FileMarker
}

func (e Entry) String() string {
	return e.Marker() + " " + e.Name()
}

// Explorer tracks the folder a user is looking at. It holds nothing but the
// cursor; every listing is read from the store.
type Explorer struct {
	store *store.Store
	cwd   deskfs.NodeID
}

// New returns an Explorer positioned at the root, creating it if needed
func New(s *store.Store) (*Explorer, error) {
	root, err := s.GetOrCreateRoot()
	if err != nil {
		return nil, err
	}
	return &Explorer{store: s, cwd: root.ID}, nil
}

// Cwd returns the current folder. If it was removed by someone else the
// cursor falls back to the root.
func (x *Explorer) Cwd() (deskfs.Node, error) {
	n, err := x.store.Get(x.cwd)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, deskfs.ErrNotFound) {
		return deskfs.Node{}, err
	}

	logger := util.GetLogger("Explorer.Cwd")
	logger.Warn().Str("id", x.cwd.String()).Msg("Current folder vanished, returning to root")
	root, err := x.store.GetOrCreateRoot()
	if err != nil {
		return deskfs.Node{}, err
	}
	x.cwd = root.ID
	return root, nil
}

// Entries lists the current folder, preceded by a ".." entry unless at the root
func (x *Explorer) Entries() ([]Entry, error) {
	cwd, err := x.Cwd()
	if err != nil {
		return nil, err
	}
	children, err := x.store.ListChildren(cwd.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(children)+1)
	if !cwd.IsRoot() {
		parent, err := x.store.Parent(cwd.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Node: parent, Up: true})
	}
	for _, child := range children {
		entries = append(entries, Entry{Node: child})
	}
	return entries, nil
}

// Enter opens the named child folder of the current folder
func (x *Explorer) Enter(name string) error {
	if name == UpName {
		return x.Back()
	}
	cwd, err := x.Cwd()
	if err != nil {
		return err
	}
	n, err := x.store.Lookup(cwd.ID, name)
	if err != nil {
		return err
	}
	return x.jumpTo(n)
}

// Back moves to the parent folder; at the root it does nothing
func (x *Explorer) Back() error {
	cwd, err := x.Cwd()
	if err != nil {
		return err
	}
	if cwd.IsRoot() {
		return nil
	}
	parent, err := x.store.Parent(cwd.ID)
	if err != nil {
		return err
	}
	x.cwd = parent.ID
	return nil
}

// Breadcrumb returns the folders from the root down to the current folder
func (x *Explorer) Breadcrumb() ([]deskfs.Node, error) {
	cwd, err := x.Cwd()
	if err != nil {
		return nil, err
	}
	return x.store.PathTo(cwd.ID)
}

// Jump moves the cursor to folder id, as when clicking a breadcrumb
func (x *Explorer) Jump(id deskfs.NodeID) error {
	n, err := x.store.Get(id)
	if err != nil {
		return err
	}
	return x.jumpTo(n)
}

// Cd moves to the folder at p
func (x *Explorer) Cd(p string) error {
	n, err := x.Resolve(p)
	if err != nil {
		return err
	}
	return x.jumpTo(n)
}

func (x *Explorer) jumpTo(n deskfs.Node) error {
	if !n.IsFolder() {
		return &deskfs.NodeError{Op: "enter", ID: n.ID, Name: n.Name, Err: fmt.Errorf("%w: not a folder", deskfs.ErrInvalidOperation)}
	}
	x.cwd = n.ID
	return nil
}

// Resolve finds the node at p. Paths starting with "/" are taken from the
// root, others from the current folder; "." and ".." behave as in a shell
// and ".." at the root stays at the root.
func (x *Explorer) Resolve(p string) (deskfs.Node, error) {
	cur, err := x.Cwd()
	if err != nil {
		return deskfs.Node{}, err
	}
	if strings.HasPrefix(p, "/") {
		if cur, err = x.store.GetOrCreateRoot(); err != nil {
			return deskfs.Node{}, err
		}
	}

	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case UpName:
			if cur.IsRoot() {
				continue
			}
			cur, err = x.store.Parent(cur.ID)
		default:
			cur, err = x.store.Lookup(cur.ID, seg)
		}
		if err != nil {
			return deskfs.Node{}, err
		}
	}
	return cur, nil
}

// resolveParent resolves the folder part of p and returns it with the final name
func (x *Explorer) resolveParent(p string) (deskfs.Node, string, error) {
	dir, name := path.Split(strings.TrimRight(p, "/"))
	if dir == "" {
		dir = "."
	}
	parent, err := x.Resolve(dir)
	if err != nil {
		return deskfs.Node{}, "", err
	}
	return parent, name, nil
}

// Mkdir creates a folder at p
func (x *Explorer) Mkdir(p string) (deskfs.Node, error) {
	parent, name, err := x.resolveParent(p)
	if err != nil {
		return deskfs.Node{}, err
	}
	return x.store.CreateFolder(parent.ID, name)
}

// Touch creates a file at p holding content
func (x *Explorer) Touch(p string, content []byte) (deskfs.Node, error) {
	parent, name, err := x.resolveParent(p)
	if err != nil {
		return deskfs.Node{}, err
	}
	return x.store.CreateFile(parent.ID, name, content)
}

// Write replaces the content of the file at p, creating it if missing
func (x *Explorer) Write(p string, content []byte) (deskfs.Node, error) {
	n, err := x.Resolve(p)
	switch {
	case err == nil:
		return x.store.WriteContent(n.ID, content)
	case errors.Is(err, deskfs.ErrNotFound):
		return x.Touch(p, content)
	default:
		return deskfs.Node{}, err
	}
}

// Cat returns the content of the file at p
func (x *Explorer) Cat(p string) ([]byte, error) {
	n, err := x.Resolve(p)
	if err != nil {
		return nil, err
	}
	return x.store.ReadContent(n.ID)
}

// Rename gives the node at p a new name in the same folder
func (x *Explorer) Rename(p, newName string) (deskfs.Node, error) {
	n, err := x.Resolve(p)
	if err != nil {
		return deskfs.Node{}, err
	}
	return x.store.Rename(n.ID, newName)
}

// MoveTo moves the node at p into the folder at dest
func (x *Explorer) MoveTo(p, dest string) (deskfs.Node, error) {
	n, err := x.Resolve(p)
	if err != nil {
		return deskfs.Node{}, err
	}
	target, err := x.Resolve(dest)
	if err != nil {
		return deskfs.Node{}, err
	}
	return x.store.Move(n.ID, target.ID)
}

// Remove deletes the node at p and everything under it. If the current
// folder was inside, the cursor moves to the removed node's parent.
func (x *Explorer) Remove(p string) error {
	n, err := x.Resolve(p)
	if err != nil {
		return err
	}
	if n.IsRoot() {
		return x.store.Delete(n.ID) // reports InvalidOperation
	}
	parent, err := x.store.Parent(n.ID)
	if err != nil {
		return err
	}
	if err := x.store.Delete(n.ID); err != nil {
		return err
	}
	if _, err := x.store.Get(x.cwd); errors.Is(err, deskfs.ErrNotFound) {
		x.cwd = parent.ID
	}
	return nil
}
