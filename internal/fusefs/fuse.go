// Package fusefs bridges the low-level FUSE wire protocol to the node store.
// Kernel inode numbers are mapped to node IDs; every operation reads or
// mutates the store directly so the mounted tree and the store never diverge.
package fusefs

import (
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/store"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const (
	folderMode = syscall.S_IFDIR | 0o755
	fileMode   = syscall.S_IFREG | 0o644
	blockSize  = 4096

	// renameNoReplace is RENAME_NOREPLACE from renameat2(2)
	renameNoReplace = 0x1
)

// FuseRaw implements the low-level FUSE wire protocol
// It serves as protocol adapter between the FUSE and the node store
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	store  *store.Store
	cfg    *config.Config
	inodes *inodeRegistry
	owner  fuse.Owner
	server *fuse.Server
	// writeMu serializes read-modify-write cycles on file content
	writeMu sync.Mutex
}

// NewFuseRaw creates the protocol bridge over s, creating the root if needed
func NewFuseRaw(s *store.Store, cfg *config.Config) (*FuseRaw, error) {
	root, err := s.GetOrCreateRoot()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	return &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		store:         s,
		cfg:           cfg,
		inodes:        newInodeRegistry(root.ID),
		owner:         fuse.Owner{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())},
	}, nil
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "FuseRaw"
}

// Access called when the kernel wants to know if the user has permission to access the node.
// If the 'default_permissions' mount option is given, this method is not called.
// Everything in the tree is owned by the mounting user.
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	if _, st := r.node(input.NodeId); !st.Ok() {
		return st
	}
	return fuse.OK
}

// Lookup is called by the kernel when the VFS wants to know
// about a file inside a directory. Many lookup calls can
// occur in parallel, but only one call happens for each (dir,
// name) pair.
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	parent, st := r.folder(header.NodeId)
	if !st.Ok() {
		return st
	}
	n, err := r.store.Lookup(parent.ID, name)
	if err != nil {
		return toStatus(err)
	}
	r.fillEntry(n, out)
	return fuse.OK
}

// Forget is called when the kernel discards entries from its
// dentry cache. This happens on unmount, and when the kernel
// is short on memory. Since it is not guaranteed to occur at
// any moment, and since there is no return value, Forget
// should not do I/O, as there is no channel to report back
// I/O errors.
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {
	r.inodes.forget(nodeid, nlookup)
}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	n, st := r.node(input.NodeId)
	if !st.Ok() {
		return st
	}
	r.fillAttr(input.NodeId, n, &out.Attr)
	out.SetTimeout(seconds(r.cfg.AttrTimeout))
	return fuse.OK
}

// SetAttr supports truncation; mode, owner and time changes are accepted and ignored
func (r *FuseRaw) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	logger := util.GetLogger("Fuse.SetAttr")

	n, st := r.node(input.NodeId)
	if !st.Ok() {
		return st
	}
	if input.Valid&fuse.FATTR_SIZE != 0 {
		if n.IsFolder() {
			return fuse.Status(syscall.EISDIR)
		}
		r.writeMu.Lock()
		data, err := r.store.ReadContent(n.ID)
		if err == nil {
			n, err = r.store.WriteContent(n.ID, resize(data, int(input.Size)))
		}
		r.writeMu.Unlock()
		if err != nil {
			return toStatus(err)
		}
		logger.Debug().Str("id", n.ID.String()).Uint64("size", input.Size).Msg("Truncated file")
	}
	r.fillAttr(input.NodeId, n, &out.Attr)
	out.SetTimeout(seconds(r.cfg.AttrTimeout))
	return fuse.OK
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	_, st := r.folder(input.NodeId)
	return st
}

func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")
	logger.Trace().Uint64("inode", input.NodeId).Uint64("offset", input.Offset).Msg("ReadDir called")

	entries, st := r.dirEntries(input.NodeId)
	if !st.Ok() {
		return st
	}
	for i := input.Offset; i < uint64(len(entries)); i++ {
		if !out.AddDirEntry(entries[i]) {
			// The buffer is full; the kernel calls again with a new offset
			break
		}
	}
	return fuse.OK
}

// dirEntries lists a folder as the kernel sees it: ".", ".." then the
// children in store order. Plain readdir does not count lookups, so children
// the kernel has not looked up yet report a stable placeholder inode.
func (r *FuseRaw) dirEntries(ino uint64) ([]fuse.DirEntry, fuse.Status) {
	folder, st := r.folder(ino)
	if !st.Ok() {
		return nil, st
	}
	children, err := r.store.ListChildren(folder.ID)
	if err != nil {
		return nil, toStatus(err)
	}

	parentIno := uint64(fuse.FUSE_ROOT_ID)
	if !folder.IsRoot() {
		if pino, ok := r.inodes.ino(folder.ParentID); ok {
			parentIno = pino
		}
	}
	entries := make([]fuse.DirEntry, 0, len(children)+2)
	entries = append(entries,
		fuse.DirEntry{Name: ".", Mode: folderMode, Ino: ino},
		fuse.DirEntry{Name: "..", Mode: folderMode, Ino: parentIno},
	)
	for _, child := range children {
		childIno, ok := r.inodes.ino(child.ID)
		if !ok {
			childIno = placeholderIno(child.ID)
		}
		entries = append(entries, fuse.DirEntry{Name: child.Name, Mode: modeOf(child), Ino: childIno})
	}
	return entries, fuse.OK
}

func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	n, st := r.node(input.NodeId)
	if !st.Ok() {
		return st
	}
	if n.IsFolder() {
		return fuse.Status(syscall.EISDIR)
	}
	if input.Flags&syscall.O_TRUNC != 0 {
		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		if _, err := r.store.WriteContent(n.ID, nil); err != nil {
			return toStatus(err)
		}
	}
	r.fillOpen(out)
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	n, st := r.node(input.NodeId)
	if !st.Ok() {
		return nil, st
	}
	data, err := r.store.ReadContent(n.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	if input.Offset >= uint64(len(data)) {
		return fuse.ReadResultData(nil), fuse.OK
	}
	end := min(input.Offset+uint64(len(buf)), uint64(len(data)))
	return fuse.ReadResultData(data[input.Offset:end]), fuse.OK
}

func (r *FuseRaw) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	logger := util.GetLogger("Fuse.Write")

	n, st := r.node(input.NodeId)
	if !st.Ok() {
		return 0, st
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	content, err := r.store.ReadContent(n.ID)
	if err != nil {
		return 0, toStatus(err)
	}
	end := int(input.Offset) + len(data)
	if end > len(content) {
		content = resize(content, end)
	}
	copy(content[input.Offset:], data)
	if _, err := r.store.WriteContent(n.ID, content); err != nil {
		return 0, toStatus(err)
	}

	logger.Trace().Str("id", n.ID.String()).Uint64("offset", input.Offset).Int("len", len(data)).Msg("Wrote data")
	return uint32(len(data)), fuse.OK
}

func (r *FuseRaw) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	logger := util.GetLogger("Fuse.Create")

	parent, st := r.folder(input.NodeId)
	if !st.Ok() {
		return st
	}
	n, err := r.store.CreateFile(parent.ID, name, nil)
	if err != nil {
		logger.Debug().Err(err).Str("name", name).Msg("Create failed")
		return toStatus(err)
	}
	r.fillEntry(n, &out.EntryOut)
	r.fillOpen(&out.OpenOut)
	return fuse.OK
}

func (r *FuseRaw) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Mkdir")

	parent, st := r.folder(input.NodeId)
	if !st.Ok() {
		return st
	}
	n, err := r.store.CreateFolder(parent.ID, name)
	if err != nil {
		logger.Debug().Err(err).Str("name", name).Msg("Mkdir failed")
		return toStatus(err)
	}
	r.fillEntry(n, out)
	return fuse.OK
}

func (r *FuseRaw) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	n, st := r.child(header.NodeId, name)
	if !st.Ok() {
		return st
	}
	if n.IsFolder() {
		return fuse.Status(syscall.EISDIR)
	}
	return toStatus(r.store.Delete(n.ID))
}

// Rmdir removes an empty folder; unlike the store's cascading delete the
// POSIX call refuses folders with children
func (r *FuseRaw) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	n, st := r.child(header.NodeId, name)
	if !st.Ok() {
		return st
	}
	if !n.IsFolder() {
		return fuse.Status(syscall.ENOTDIR)
	}
	children, err := r.store.ListChildren(n.ID)
	if err != nil {
		return toStatus(err)
	}
	if len(children) > 0 {
		return fuse.Status(syscall.ENOTEMPTY)
	}
	return toStatus(r.store.Delete(n.ID))
}

// Rename moves and renames in one store operation. As rename(2) an existing
// target file, or empty target folder, is replaced unless RENAME_NOREPLACE is
// set; the replace and the move commit together.
func (r *FuseRaw) Rename(cancel <-chan struct{}, input *fuse.RenameIn, oldName string, newName string) fuse.Status {
	logger := util.GetLogger("Fuse.Rename")

	src, st := r.child(input.NodeId, oldName)
	if !st.Ok() {
		return st
	}
	dstFolder, st := r.folder(input.Newdir)
	if !st.Ok() {
		return st
	}

	existing, err := r.store.Lookup(dstFolder.ID, newName)
	switch {
	case err == nil && existing.ID == src.ID:
		return fuse.OK
	case err == nil:
		if input.Flags&renameNoReplace != 0 {
			return fuse.Status(syscall.EEXIST)
		}
		if st := r.replaceable(src, existing); !st.Ok() {
			return st
		}
	case !errors.Is(err, deskfs.ErrNotFound):
		return toStatus(err)
	}

	relocate := r.store.Replace
	if input.Flags&renameNoReplace != 0 {
		relocate = r.store.Relocate
	}
	if _, err := relocate(src.ID, dstFolder.ID, newName); err != nil {
		logger.Debug().Err(err).Str("from", oldName).Str("to", newName).Msg("Rename failed")
		return toStatus(err)
	}
	return fuse.OK
}

// replaceable checks whether src may overwrite dst in a rename
func (r *FuseRaw) replaceable(src, dst deskfs.Node) fuse.Status {
	switch {
	case src.IsFolder() && !dst.IsFolder():
		return fuse.Status(syscall.ENOTDIR)
	case !src.IsFolder() && dst.IsFolder():
		return fuse.Status(syscall.EISDIR)
	case dst.IsFolder():
		children, err := r.store.ListChildren(dst.ID)
		if err != nil {
			return toStatus(err)
		}
		if len(children) > 0 {
			return fuse.Status(syscall.ENOTEMPTY)
		}
	}
	return fuse.OK
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	out.Bsize = blockSize
	out.Frsize = blockSize
	out.NameLen = uint32(r.cfg.MaxNameLen)
	out.Files = uint64(r.store.Len())
	return fuse.OK
}

/* helpers */

// node resolves an inode to the current store node
func (r *FuseRaw) node(ino uint64) (deskfs.Node, fuse.Status) {
	id, ok := r.inodes.nodeID(ino)
	if !ok {
		return deskfs.Node{}, fuse.ENOENT
	}
	n, err := r.store.Get(id)
	if err != nil {
		return deskfs.Node{}, toStatus(err)
	}
	return n, fuse.OK
}

func (r *FuseRaw) folder(ino uint64) (deskfs.Node, fuse.Status) {
	n, st := r.node(ino)
	if !st.Ok() {
		return n, st
	}
	if !n.IsFolder() {
		return deskfs.Node{}, fuse.Status(syscall.ENOTDIR)
	}
	return n, fuse.OK
}

func (r *FuseRaw) child(parentIno uint64, name string) (deskfs.Node, fuse.Status) {
	parent, st := r.folder(parentIno)
	if !st.Ok() {
		return parent, st
	}
	n, err := r.store.Lookup(parent.ID, name)
	if err != nil {
		return deskfs.Node{}, toStatus(err)
	}
	return n, fuse.OK
}

// fillEntry registers n with the kernel and describes it in out
func (r *FuseRaw) fillEntry(n deskfs.Node, out *fuse.EntryOut) {
	ino := r.inodes.register(n.ID)
	out.NodeId = ino
	r.fillAttr(ino, n, &out.Attr)
	out.SetEntryTimeout(seconds(r.cfg.EntryTimeout))
	out.SetAttrTimeout(seconds(r.cfg.AttrTimeout))
}

func (r *FuseRaw) fillAttr(ino uint64, n deskfs.Node, a *fuse.Attr) {
	a.Ino = ino
	a.Mode = modeOf(n)
	if n.IsFolder() {
		a.Nlink = 2
		a.Size = blockSize
	} else {
		a.Nlink = 1
		a.Size = uint64(len(n.Content))
	}
	a.Blksize = blockSize
	a.Blocks = (a.Size + 511) / 512
	a.Owner = r.owner
	a.SetTimes(&n.Modified, &n.Modified, &n.Modified)
}

func (r *FuseRaw) fillOpen(out *fuse.OpenOut) {
	if r.cfg.DirectIO {
		out.OpenFlags |= fuse.FOPEN_DIRECT_IO
	}
}

// placeholderIno derives an inode number from id with the top bit set so it
// never collides with an allocated one
func placeholderIno(id deskfs.NodeID) uint64 {
	return binary.BigEndian.Uint64(id[:8]) | 1<<63
}

func modeOf(n deskfs.Node) uint32 {
	if n.IsFolder() {
		return folderMode
	}
	return fileMode
}

// toStatus maps store error kinds to errno values
func toStatus(err error) fuse.Status {
	switch {
	case err == nil:
		return fuse.OK
	case errors.Is(err, deskfs.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, deskfs.ErrDuplicateName):
		return fuse.Status(syscall.EEXIST)
	case errors.Is(err, deskfs.ErrInvalidName), errors.Is(err, deskfs.ErrCycleDetected):
		return fuse.EINVAL
	case errors.Is(err, deskfs.ErrInvalidOperation):
		return fuse.EPERM
	default:
		logger := util.GetLogger("Fuse.Status")
		logger.Error().Err(err).Msg("Store failure")
		return fuse.EIO
	}
}

// resize returns data truncated or zero-extended to size
func resize(data []byte, size int) []byte {
	if size <= len(data) {
		return data[:size]
	}
	return append(data, make([]byte, size-len(data))...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
