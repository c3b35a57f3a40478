package server

import (
	"path/filepath"
	"testing"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/adapters"
	"github.com/brettbedarf/deskfs/adapters/memory"
	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/internal/mocks"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFs(t *testing.T) *DeskFs {
	t.Helper()
	fs, err := NewWithRepository(config.NewDefaultConfig(), memory.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func folderReq(p string) *deskfs.FolderCreateRequest {
	return &deskfs.FolderCreateRequest{NodeRequest: deskfs.NodeRequest{Path: p, Type: deskfs.FolderNodeType}}
}

func fileReq(p, content string) *deskfs.FileCreateRequest {
	return &deskfs.FileCreateRequest{
		NodeRequest: deskfs.NodeRequest{Path: p, Type: deskfs.FileNodeType},
		Content:     []byte(content),
	}
}

func TestDeskFs_AddNodes(t *testing.T) {
	t.Parallel()

	fs := createTestFs(t)

	folder, err := fs.AddFolderNode(folderReq("Documents/Work"))
	require.NoError(t, err)
	assert.Equal(t, "Work", folder.Name)

	file, err := fs.AddFileNode(fileReq("Pictures/2024/trip.txt", "sunny"))
	require.NoError(t, err)
	path, err := fs.PathTo(file.ID)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, "2024", path[2].Name)

	rootFile, err := fs.AddFileNode(fileReq("top.txt", ""))
	require.NoError(t, err)
	parent, err := fs.Parent(rootFile.ID)
	require.NoError(t, err)
	assert.True(t, parent.IsRoot())

	_, err = fs.AddFileNode(fileReq("Documents/Work", "clash"))
	assert.ErrorIs(t, err, deskfs.ErrDuplicateName)
}

func TestDeskFs_Seed(t *testing.T) {
	t.Parallel()

	fs := createTestFs(t)
	b := &requests.Batch{
		Folders: []*deskfs.FolderCreateRequest{folderReq("Music"), folderReq("Music"), folderReq("bad/..")},
		Files: []*deskfs.FileCreateRequest{
			fileReq("Music/a.mp3", "a"),
			fileReq("Music/a.mp3", "again"),
			fileReq("Videos/b.mkv", "b"),
		},
	}

	folders, files := fs.Seed(b)

	assert.Equal(t, 2, folders, "existing folders are confirmed, invalid ones skipped")
	assert.Equal(t, 2, files)
	root, err := fs.GetOrCreateRoot()
	require.NoError(t, err)
	music, err := fs.Lookup(root.ID, "Music")
	require.NoError(t, err)
	a, err := fs.Lookup(music.ID, "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), a.Content, "an existing file is not overwritten")
}

func TestDeskFs_UnmountWithoutMount(t *testing.T) {
	t.Parallel()

	fs := createTestFs(t)
	assert.NoError(t, fs.Unmount())
}

func TestDeskFs_CloseReleasesRepository(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockRepository{}
	repo.On("Load").Return(nil, nil)
	repo.On("Close").Return(nil)
	fs, err := NewWithRepository(config.NewDefaultConfig(), repo)
	require.NoError(t, err)

	require.NoError(t, fs.Close())
	repo.AssertCalled(t, "Close")
}

func TestNew_PersistsThroughBolt(t *testing.T) {
	t.Parallel()
	adapters.RegisterBuiltins()

	cfg := config.NewConfig(&config.ConfigOverride{
		Backend: util.Pointer(config.BoltBackend),
		DBPath:  util.Pointer(filepath.Join(t.TempDir(), "desk.db")),
	})

	fs, err := New(cfg)
	require.NoError(t, err)
	_, err = fs.AddFileNode(fileReq("Documents/cv.txt", "Jane Doe"))
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	reopened, err := New(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	docs, err := reopened.EnsureFolderPath("Documents")
	require.NoError(t, err)
	cv, err := reopened.Lookup(docs.ID, "cv.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("Jane Doe"), cv.Content)
	assert.Equal(t, 3, reopened.Len())
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig(&config.ConfigOverride{Backend: util.Pointer("tape")})

	_, err := New(cfg)
	assert.Error(t, err)
}
