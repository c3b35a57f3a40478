package fusefs

import (
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/deskfs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// inode ties a kernel inode number to a node ID. lookups counts the
// references the kernel holds, released through Forget.
type inode struct {
	ino     uint64
	id      deskfs.NodeID
	lookups atomic.Int64
}

// inodeRegistry maps kernel inode numbers to node IDs and back.
// Reads are lock-free; register and forget are serialized by mu so a
// lookup never hands out an inode that is being dropped.
type inodeRegistry struct {
	byIno *xsync.Map[uint64, *inode]
	byID  *xsync.Map[deskfs.NodeID, *inode]
	next  atomic.Uint64
	mu    sync.Mutex
}

func newInodeRegistry(root deskfs.NodeID) *inodeRegistry {
	r := &inodeRegistry{
		byIno: xsync.NewMap[uint64, *inode](),
		byID:  xsync.NewMap[deskfs.NodeID, *inode](),
	}
	r.next.Store(fuse.FUSE_ROOT_ID)
	rootIno := &inode{ino: fuse.FUSE_ROOT_ID, id: root}
	r.byIno.Store(rootIno.ino, rootIno)
	r.byID.Store(root, rootIno)
	return r
}

// register returns the inode for id, allocating one on first sight, and
// counts one kernel lookup against it
func (r *inodeRegistry) register(id deskfs.NodeID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.byID.Load(id)
	if !ok {
		in = &inode{ino: r.next.Add(1), id: id}
		r.byID.Store(id, in)
		r.byIno.Store(in.ino, in)
	}
	in.lookups.Add(1)
	return in.ino
}

// nodeID resolves an inode number
func (r *inodeRegistry) nodeID(ino uint64) (deskfs.NodeID, bool) {
	in, ok := r.byIno.Load(ino)
	if !ok {
		return deskfs.NilID, false
	}
	return in.id, true
}

// ino returns the inode already assigned to id without counting a lookup
func (r *inodeRegistry) ino(id deskfs.NodeID) (uint64, bool) {
	in, ok := r.byID.Load(id)
	if !ok {
		return 0, false
	}
	return in.ino, true
}

// forget drops n kernel references; the inode is released when none remain.
// The root is never released.
func (r *inodeRegistry) forget(ino, n uint64) {
	if ino == fuse.FUSE_ROOT_ID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.byIno.Load(ino)
	if !ok {
		return
	}
	if in.lookups.Add(-int64(n)) <= 0 {
		r.byIno.Delete(ino)
		r.byID.Delete(in.id)
	}
}

// len returns the number of live inodes, root included
func (r *inodeRegistry) len() int {
	return r.byIno.Size()
}
