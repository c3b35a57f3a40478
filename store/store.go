// Package store implements the hierarchical node store: a tree of folders and
// files whose invariants (single root, acyclic, unique sibling names, cascading
// deletes) are enforced on every call.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/internal/util"
)

// Store owns the node tree.
//
// Every mutating operation validates, commits its change set to the
// repository and only then updates memory, all under the write lock, so a
// failed call leaves the tree exactly as it was and readers never observe a
// half applied change.
type Store struct {
	cfg   *config.Config
	repo  deskfs.Repository
	mu    sync.RWMutex
	root  *entry                   // nil until first created
	nodes map[deskfs.NodeID]*entry // every live entry by ID, root included
	now   func() time.Time
}

// Open builds a Store from everything persisted in repo.
// The loaded records must form a valid tree, otherwise ErrCorrupted is returned.
// A nil cfg uses the defaults.
func Open(cfg *config.Config, repo deskfs.Repository) (*Store, error) {
	logger := util.GetLogger("Store.Open")

	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if repo == nil {
		return nil, errors.New("store requires a repository")
	}
	s := &Store{
		cfg:   cfg,
		repo:  repo,
		nodes: make(map[deskfs.NodeID]*entry),
		now:   time.Now,
	}
	if err := s.checkName("open", deskfs.NilID, cfg.RootName); err != nil {
		return nil, fmt.Errorf("root name: %w", err)
	}

	records, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	if err := s.build(records); err != nil {
		logger.Error().Err(err).Int("records", len(records)).Msg("Persisted tree is corrupted")
		return nil, err
	}
	logger.Debug().Int("nodes", len(s.nodes)).Msg("Store opened")
	return s, nil
}

// build links loaded records into the tree, checking every structural invariant
func (s *Store) build(records []deskfs.Node) error {
	corrupt := func(format string, args ...any) error {
		return &deskfs.NodeError{Op: "open", Err: fmt.Errorf("%w: "+format, append([]any{deskfs.ErrCorrupted}, args...)...)}
	}

	for _, rec := range records {
		if !rec.Kind.Valid() {
			return corrupt("node %s has unknown kind %q", rec.ID, rec.Kind)
		}
		if _, dup := s.nodes[rec.ID]; dup {
			return corrupt("duplicate node id %s", rec.ID)
		}
		if rec.ParentID == deskfs.NilID {
			if s.root != nil {
				return corrupt("multiple roots %s and %s", s.root.ID, rec.ID)
			}
			if rec.Kind != deskfs.KindFolder {
				return corrupt("root %s is not a folder", rec.ID)
			}
		}
		e := newEntry(rec.Clone())
		s.nodes[rec.ID] = e
		if rec.ParentID == deskfs.NilID {
			s.root = e
		}
	}

	for _, e := range s.nodes {
		if e == s.root {
			continue
		}
		parent, ok := s.nodes[e.ParentID]
		if !ok {
			return corrupt("node %s references missing parent %s", e.ID, e.ParentID)
		}
		if parent.Kind != deskfs.KindFolder {
			return corrupt("node %s has file %s as parent", e.ID, parent.ID)
		}
		if _, dup := parent.children[e.Name]; dup {
			return corrupt("folder %s has duplicate child name %q", parent.ID, e.Name)
		}
		parent.addChild(e)
	}

	// Anything not reachable from the root sits on a parent cycle
	if len(s.nodes) > 0 {
		if s.root == nil {
			return corrupt("no root among %d nodes", len(s.nodes))
		}
		if reachable := len(s.root.subtree()); reachable != len(s.nodes) {
			return corrupt("%d nodes unreachable from root", len(s.nodes)-reachable)
		}
	}
	return nil
}

// Len returns the number of nodes in the tree including the root
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// GetOrCreateRoot returns the root folder, creating it on first call.
// The only possible error is a repository failure while creating it.
func (s *Store) GetOrCreateRoot() (deskfs.Node, error) {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()
	if root != nil {
		return s.snapshot(root), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != nil {
		return s.root.snapshot(), nil
	}

	n := s.newNode(deskfs.NilID, s.cfg.RootName, deskfs.KindFolder, nil)
	if err := s.commitLocked("root", &deskfs.ChangeSet{Put: []deskfs.Node{n}}); err != nil {
		return deskfs.Node{}, err
	}
	s.insertLocked(n)

	logger := util.GetLogger("Store.GetOrCreateRoot")
	logger.Info().Str("id", n.ID.String()).Str("name", n.Name).Msg("Created root folder")
	return s.root.snapshot(), nil
}

// Get returns the node with the given ID
func (s *Store) Get(id deskfs.NodeID) (deskfs.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.entryLocked("get", id)
	if err != nil {
		return deskfs.Node{}, err
	}
	return e.snapshot(), nil
}

// ListChildren returns the direct children of folder: folders first, then
// files, each group in ascending byte-wise name order.
func (s *Store) ListChildren(folder deskfs.NodeID) ([]deskfs.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.folderLocked("list", folder)
	if err != nil {
		return nil, err
	}
	children := f.sortedChildren()
	out := make([]deskfs.Node, len(children))
	for i, child := range children {
		out[i] = child.snapshot()
	}
	return out, nil
}

// Lookup finds a child of folder by name
func (s *Store) Lookup(folder deskfs.NodeID, name string) (deskfs.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.folderLocked("lookup", folder)
	if err != nil {
		return deskfs.Node{}, err
	}
	child, ok := f.children[name]
	if !ok {
		return deskfs.Node{}, &deskfs.NodeError{Op: "lookup", ID: folder, Name: name, Err: deskfs.ErrNotFound}
	}
	return child.snapshot(), nil
}

// Parent returns the folder containing id. The root has no parent.
func (s *Store) Parent(id deskfs.NodeID) (deskfs.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.entryLocked("parent", id)
	if err != nil {
		return deskfs.Node{}, err
	}
	if e.parent == nil {
		return deskfs.Node{}, &deskfs.NodeError{Op: "parent", ID: id, Err: fmt.Errorf("%w: root has no parent", deskfs.ErrInvalidOperation)}
	}
	return e.parent.snapshot(), nil
}

// PathTo returns the breadcrumb for id: the folders a user clicks through to
// reach it, root first. A folder's breadcrumb ends with the folder itself; a
// file's ends with the folder containing it.
func (s *Store) PathTo(id deskfs.NodeID) ([]deskfs.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.entryLocked("path", id)
	if err != nil {
		return nil, err
	}
	if e.Kind == deskfs.KindFile {
		e = e.parent
	}

	// A well formed chain is never longer than the number of nodes
	var chain []deskfs.Node
	for steps := 0; e != nil; e = e.parent {
		if steps++; steps > len(s.nodes) {
			logger := util.GetLogger("Store.PathTo")
			logger.Error().Str("id", id.String()).Int("steps", steps).Msg("Parent cycle detected while walking breadcrumb")
			return nil, &deskfs.NodeError{Op: "path", ID: id, Err: fmt.Errorf("%w: parent cycle", deskfs.ErrCorrupted)}
		}
		chain = append(chain, e.snapshot())
	}
	slices.Reverse(chain)
	return chain, nil
}

// ReadContent returns a copy of a file's content
func (s *Store) ReadContent(id deskfs.NodeID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.fileLocked("read", id)
	if err != nil {
		return nil, err
	}
	return e.snapshot().Content, nil
}

// CreateFolder creates a new folder named name under parent
func (s *Store) CreateFolder(parent deskfs.NodeID, name string) (deskfs.Node, error) {
	return s.create("create folder", parent, name, deskfs.KindFolder, nil)
}

// CreateFile creates a new file named name under parent holding content
func (s *Store) CreateFile(parent deskfs.NodeID, name string, content []byte) (deskfs.Node, error) {
	return s.create("create file", parent, name, deskfs.KindFile, content)
}

func (s *Store) create(op string, parentID deskfs.NodeID, name string, kind deskfs.Kind, content []byte) (deskfs.Node, error) {
	logger := util.GetLogger("Store.Create")

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.folderLocked(op, parentID)
	if err != nil {
		return deskfs.Node{}, err
	}
	if err := s.checkName(op, parentID, name); err != nil {
		return deskfs.Node{}, err
	}
	if _, exists := parent.children[name]; exists {
		return deskfs.Node{}, &deskfs.NodeError{Op: op, ID: parentID, Name: name, Err: deskfs.ErrDuplicateName}
	}

	n := s.newNode(parentID, name, kind, content)
	if err := s.commitLocked(op, &deskfs.ChangeSet{Put: []deskfs.Node{n}}); err != nil {
		return deskfs.Node{}, err
	}
	e := s.insertLocked(n)

	logger.Debug().Str("id", n.ID.String()).Str("parent", parentID.String()).Str("name", name).Str("kind", string(kind)).Msg("Created node")
	return e.snapshot(), nil
}

// Rename changes the name of id. Renaming to the current name is a no-op.
func (s *Store) Rename(id deskfs.NodeID, newName string) (deskfs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked("rename", id)
	if err != nil {
		return deskfs.Node{}, err
	}
	return s.relocateLocked("rename", e, e.ParentID, newName, false)
}

// Move re-parents id under newParent keeping its name
func (s *Store) Move(id, newParent deskfs.NodeID) (deskfs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked("move", id)
	if err != nil {
		return deskfs.Node{}, err
	}
	return s.relocateLocked("move", e, newParent, e.Name, false)
}

// Relocate moves id under newParent and names it newName as one atomic operation
func (s *Store) Relocate(id, newParent deskfs.NodeID, newName string) (deskfs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked("relocate", id)
	if err != nil {
		return deskfs.Node{}, err
	}
	return s.relocateLocked("relocate", e, newParent, newName, false)
}

// Replace is Relocate that overwrites an existing node at the target name.
// The target must have the same kind as id and, if a folder, be empty.
// Removing the target and relocating id are committed as one change.
func (s *Store) Replace(id, newParent deskfs.NodeID, newName string) (deskfs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked("replace", id)
	if err != nil {
		return deskfs.Node{}, err
	}
	return s.relocateLocked("replace", e, newParent, newName, true)
}

func (s *Store) relocateLocked(op string, e *entry, newParentID deskfs.NodeID, newName string, replace bool) (deskfs.Node, error) {
	logger := util.GetLogger("Store.Relocate")

	if err := s.checkName(op, e.ID, newName); err != nil {
		return deskfs.Node{}, err
	}
	if newParentID == e.ID {
		return deskfs.Node{}, &deskfs.NodeError{Op: op, ID: e.ID, Err: fmt.Errorf("%w: node cannot contain itself", deskfs.ErrCycleDetected)}
	}

	if e == s.root {
		if newParentID != deskfs.NilID || op == "move" {
			dst, err := s.folderLocked(op, newParentID)
			if err != nil {
				return deskfs.Node{}, err
			}
			if e.isAncestorOf(dst) {
				return deskfs.Node{}, &deskfs.NodeError{Op: op, ID: e.ID, Err: fmt.Errorf("%w: %s is a descendant", deskfs.ErrCycleDetected, dst.ID)}
			}
			return deskfs.Node{}, &deskfs.NodeError{Op: op, ID: e.ID, Err: fmt.Errorf("%w: root cannot be moved", deskfs.ErrInvalidOperation)}
		}
		if newName == e.Name {
			return e.snapshot(), nil
		}
		updated := e.Node
		updated.Name = newName
		updated.Modified = s.now()
		if err := s.commitLocked(op, &deskfs.ChangeSet{Put: []deskfs.Node{updated}}); err != nil {
			return deskfs.Node{}, err
		}
		e.Node = updated
		logger.Debug().Str("id", e.ID.String()).Str("name", newName).Msg("Renamed root")
		return e.snapshot(), nil
	}

	dst, err := s.folderLocked(op, newParentID)
	if err != nil {
		return deskfs.Node{}, err
	}
	if dst == e.parent && newName == e.Name {
		return e.snapshot(), nil
	}
	if e.isAncestorOf(dst) {
		return deskfs.Node{}, &deskfs.NodeError{Op: op, ID: e.ID, Err: fmt.Errorf("%w: %s is a descendant", deskfs.ErrCycleDetected, dst.ID)}
	}
	var victim *entry
	if other, exists := dst.children[newName]; exists && other != e {
		if !replace {
			return deskfs.Node{}, &deskfs.NodeError{Op: op, ID: e.ID, Name: newName, Err: deskfs.ErrDuplicateName}
		}
		if err := replaceableLocked(op, e, other); err != nil {
			return deskfs.Node{}, err
		}
		victim = other
	}

	updated := e.Node
	updated.ParentID = dst.ID
	updated.Name = newName
	updated.Modified = s.now()
	cs := &deskfs.ChangeSet{Put: []deskfs.Node{updated}}
	if victim != nil {
		cs.Delete = []deskfs.NodeID{victim.ID}
	}
	if err := s.commitLocked(op, cs); err != nil {
		return deskfs.Node{}, err
	}

	if victim != nil {
		dst.removeChild(victim.Name)
		delete(s.nodes, victim.ID)
		logger.Debug().Str("id", victim.ID.String()).Msg("Replaced node")
	}
	e.parent.removeChild(e.Name)
	e.Node = updated
	dst.addChild(e)

	logger.Debug().Str("id", e.ID.String()).Str("parent", dst.ID.String()).Str("name", newName).Msg("Relocated node")
	return e.snapshot(), nil
}

// Delete removes id. Folders are removed together with their whole subtree.
// The root cannot be deleted.
func (s *Store) Delete(id deskfs.NodeID) error {
	logger := util.GetLogger("Store.Delete")

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entryLocked("delete", id)
	if err != nil {
		return err
	}
	if e == s.root {
		return &deskfs.NodeError{Op: "delete", ID: id, Err: fmt.Errorf("%w: root cannot be deleted", deskfs.ErrInvalidOperation)}
	}

	doomed := e.subtree()
	cs := &deskfs.ChangeSet{Delete: make([]deskfs.NodeID, len(doomed))}
	for i, d := range doomed {
		cs.Delete[i] = d.ID
	}
	if err := s.commitLocked("delete", cs); err != nil {
		return err
	}

	e.parent.removeChild(e.Name)
	for _, d := range doomed {
		delete(s.nodes, d.ID)
		d.children = nil
	}

	logger.Debug().Str("id", id.String()).Int("removed", len(doomed)).Msg("Deleted node")
	return nil
}

// WriteContent replaces a file's content
func (s *Store) WriteContent(id deskfs.NodeID, data []byte) (deskfs.Node, error) {
	logger := util.GetLogger("Store.WriteContent")

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.fileLocked("write", id)
	if err != nil {
		return deskfs.Node{}, err
	}

	updated := e.Node
	updated.Content = cloneContent(data)
	updated.Modified = s.now()
	if err := s.commitLocked("write", &deskfs.ChangeSet{Put: []deskfs.Node{updated}}); err != nil {
		return deskfs.Node{}, err
	}
	e.Node = updated

	logger.Trace().Str("id", id.String()).Int("size", len(data)).Msg("Wrote content")
	return e.snapshot(), nil
}

// EnsureFolderPath creates all missing folders along a slash separated path
// starting at the root (creating the root too if needed) and returns the leaf.
// It is equivalent to `mkdir -p`: existing folders are reused and the whole
// path is committed as one change. An empty path returns the root.
func (s *Store) EnsureFolderPath(p string) (deskfs.Node, error) {
	logger := util.GetLogger("Store.EnsureFolderPath")
	const op = "ensure path"

	names := splitPath(p)
	for _, name := range names {
		if err := s.checkName(op, deskfs.NilID, name); err != nil {
			return deskfs.Node{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.root
	i := 0
	if cur != nil {
		for ; i < len(names); i++ {
			child, ok := cur.children[names[i]]
			if !ok {
				break
			}
			if child.Kind != deskfs.KindFolder {
				return deskfs.Node{}, &deskfs.NodeError{Op: op, ID: child.ID, Name: names[i], Err: fmt.Errorf("%w: not a folder", deskfs.ErrInvalidOperation)}
			}
			cur = child
		}
		if i == len(names) {
			return cur.snapshot(), nil
		}
	}

	cs := &deskfs.ChangeSet{}
	var parentID deskfs.NodeID
	if cur == nil {
		root := s.newNode(deskfs.NilID, s.cfg.RootName, deskfs.KindFolder, nil)
		cs.Put = append(cs.Put, root)
		parentID = root.ID
	} else {
		parentID = cur.ID
	}
	for _, name := range names[i:] {
		n := s.newNode(parentID, name, deskfs.KindFolder, nil)
		cs.Put = append(cs.Put, n)
		parentID = n.ID
	}
	if err := s.commitLocked(op, cs); err != nil {
		return deskfs.Node{}, err
	}

	// Puts are ordered parent first so each insert finds its parent
	var leaf *entry
	for _, n := range cs.Put {
		leaf = s.insertLocked(n)
	}
	logger.Debug().Str("path", p).Int("created", len(cs.Put)).Msg("Created missing folder(s)")
	return leaf.snapshot(), nil
}

/* helpers; callers hold s.mu */

// replaceableLocked checks that src may take the place of dst: same kind,
// and dst empty when it is a folder
func replaceableLocked(op string, src, dst *entry) error {
	var reason string
	switch {
	case src.Kind != dst.Kind:
		reason = fmt.Sprintf("cannot replace a %s with a %s", dst.Kind, src.Kind)
	case len(dst.children) > 0:
		reason = "target folder is not empty"
	default:
		return nil
	}
	return &deskfs.NodeError{Op: op, ID: dst.ID, Name: dst.Name, Err: fmt.Errorf("%w: %s", deskfs.ErrInvalidOperation, reason)}
}

func (s *Store) snapshot(e *entry) deskfs.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.snapshot()
}

func (s *Store) entryLocked(op string, id deskfs.NodeID) (*entry, error) {
	e, ok := s.nodes[id]
	if !ok {
		return nil, &deskfs.NodeError{Op: op, ID: id, Err: deskfs.ErrNotFound}
	}
	return e, nil
}

func (s *Store) folderLocked(op string, id deskfs.NodeID) (*entry, error) {
	e, err := s.entryLocked(op, id)
	if err != nil {
		return nil, err
	}
	if e.Kind != deskfs.KindFolder {
		return nil, &deskfs.NodeError{Op: op, ID: id, Err: fmt.Errorf("%w: not a folder", deskfs.ErrInvalidOperation)}
	}
	return e, nil
}

func (s *Store) fileLocked(op string, id deskfs.NodeID) (*entry, error) {
	e, err := s.entryLocked(op, id)
	if err != nil {
		return nil, err
	}
	if e.Kind != deskfs.KindFile {
		return nil, &deskfs.NodeError{Op: op, ID: id, Err: fmt.Errorf("%w: not a file", deskfs.ErrInvalidOperation)}
	}
	return e, nil
}

// checkName rejects names the tree cannot hold
func (s *Store) checkName(op string, id deskfs.NodeID, name string) error {
	var reason string
	switch {
	case name == "":
		reason = "empty"
	case s.cfg.MaxNameLen > 0 && len(name) > s.cfg.MaxNameLen:
		reason = fmt.Sprintf("longer than %d bytes", s.cfg.MaxNameLen)
	case strings.ContainsAny(name, "/\x00"):
		reason = "contains '/' or NUL"
	case name == "." || name == "..":
		reason = "reserved"
	default:
		return nil
	}
	return &deskfs.NodeError{Op: op, ID: id, Name: name, Err: fmt.Errorf("%w: %s", deskfs.ErrInvalidName, reason)}
}

func (s *Store) newNode(parentID deskfs.NodeID, name string, kind deskfs.Kind, content []byte) deskfs.Node {
	now := s.now()
	n := deskfs.Node{
		ID:       deskfs.NewNodeID(),
		ParentID: parentID,
		Name:     name,
		Kind:     kind,
		Created:  now,
		Modified: now,
	}
	if kind == deskfs.KindFile {
		n.Content = cloneContent(content)
	}
	return n
}

// insertLocked adds a committed node to the tree. Its parent must already be present.
func (s *Store) insertLocked(n deskfs.Node) *entry {
	e := newEntry(n)
	s.nodes[n.ID] = e
	if n.ParentID == deskfs.NilID {
		s.root = e
	} else {
		s.nodes[n.ParentID].addChild(e)
	}
	return e
}

func (s *Store) commitLocked(op string, cs *deskfs.ChangeSet) error {
	if err := s.repo.Commit(cs); err != nil {
		logger := util.GetLogger("Store.Commit")
		logger.Error().Err(err).Str("op", op).Int("puts", len(cs.Put)).Int("deletes", len(cs.Delete)).Msg("Repository commit failed")
		return &deskfs.NodeError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// cloneContent copies data, normalizing empty content to nil
func cloneContent(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return append([]byte(nil), data...)
}
