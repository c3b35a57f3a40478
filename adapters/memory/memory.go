// Package memory is a map backed [deskfs.Repository] that lives for the
// duration of the process.
package memory

import (
	"sync"

	"github.com/brettbedarf/deskfs"
)

// Repository keeps committed nodes in memory
type Repository struct {
	mu    sync.RWMutex
	nodes map[deskfs.NodeID]deskfs.Node
}

func New() *Repository {
	return &Repository{nodes: make(map[deskfs.NodeID]deskfs.Node)}
}

func (r *Repository) Load() ([]deskfs.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]deskfs.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n.Clone())
	}
	return out, nil
}

func (r *Repository) Commit(cs *deskfs.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range cs.Delete {
		delete(r.nodes, id)
	}
	for _, n := range cs.Put {
		r.nodes[n.ID] = n.Clone()
	}
	return nil
}

// Len returns the number of committed nodes
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func (r *Repository) Close() error {
	return nil
}

var _ deskfs.Repository = (*Repository)(nil)
