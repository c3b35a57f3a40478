package explorer

import (
	"testing"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/adapters/memory"
	"github.com/brettbedarf/deskfs/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestExplorer(t *testing.T) (*Explorer, *store.Store) {
	t.Helper()
	s, err := store.Open(nil, memory.New())
	require.NoError(t, err)
	x, err := New(s)
	require.NoError(t, err)
	return x, s
}

func entryNames(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}
	return out
}

func crumbNames(t *testing.T, x *Explorer) []string {
	t.Helper()
	crumbs, err := x.Breadcrumb()
	require.NoError(t, err)
	out := make([]string, len(crumbs))
	for i, n := range crumbs {
		out[i] = n.Name
	}
	return out
}

func TestExplorer_StartsAtRoot(t *testing.T) {
	t.Parallel()

	x, s := createTestExplorer(t)

	cwd, err := x.Cwd()
	require.NoError(t, err)
	assert.True(t, cwd.IsRoot())
	assert.Equal(t, 1, s.Len())

	entries, err := x.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries, "root has no up entry")
}

func TestExplorer_EntriesAndNavigation(t *testing.T) {
	t.Parallel()

	x, _ := createTestExplorer(t)
	_, err := x.Mkdir("Documents")
	require.NoError(t, err)
	_, err = x.Touch("readme.txt", []byte("hi"))
	require.NoError(t, err)
	_, err = x.Mkdir("Documents/Work")
	require.NoError(t, err)

	entries, err := x.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"📁 Documents", "📄 readme.txt"}, entryNames(entries))
	assert.Equal(t, deskfs.KindFolder, entries[0].Node.Kind)

	require.NoError(t, x.Enter("Documents"))
	entries, err = x.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"📁 ..", "📁 Work"}, entryNames(entries))
	assert.True(t, entries[0].Up)
	assert.True(t, entries[0].Node.IsRoot())

	require.NoError(t, x.Enter("Work"))
	assert.Equal(t, []string{"Root", "Documents", "Work"}, crumbNames(t, x))

	require.NoError(t, x.Enter(UpName))
	assert.Equal(t, []string{"Root", "Documents"}, crumbNames(t, x))

	require.NoError(t, x.Back())
	require.NoError(t, x.Back(), "back at root is a no-op")
	assert.Equal(t, []string{"Root"}, crumbNames(t, x))

	t.Run("EnterFile", func(t *testing.T) {
		err := x.Enter("readme.txt")
		assert.ErrorIs(t, err, deskfs.ErrInvalidOperation)
	})

	t.Run("EnterMissing", func(t *testing.T) {
		err := x.Enter("nope")
		assert.ErrorIs(t, err, deskfs.ErrNotFound)
	})
}

func TestExplorer_Jump(t *testing.T) {
	t.Parallel()

	x, _ := createTestExplorer(t)
	a, err := x.Mkdir("A")
	require.NoError(t, err)
	_, err = x.Mkdir("A/B")
	require.NoError(t, err)
	require.NoError(t, x.Cd("A/B"))

	crumbs, err := x.Breadcrumb()
	require.NoError(t, err)
	require.Len(t, crumbs, 3)

	// Clicking the middle crumb
	require.NoError(t, x.Jump(crumbs[1].ID))
	cwd, err := x.Cwd()
	require.NoError(t, err)
	assert.Equal(t, a.ID, cwd.ID)

	f, err := x.Touch("f.txt", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, x.Jump(f.ID), deskfs.ErrInvalidOperation)
	assert.ErrorIs(t, x.Jump(deskfs.NewNodeID()), deskfs.ErrNotFound)
}

func TestExplorer_Resolve(t *testing.T) {
	t.Parallel()

	x, _ := createTestExplorer(t)
	_, err := x.Mkdir("A")
	require.NoError(t, err)
	b, err := x.Mkdir("A/B")
	require.NoError(t, err)
	doc, err := x.Touch("A/B/doc.txt", nil)
	require.NoError(t, err)
	require.NoError(t, x.Cd("A"))

	tests := []struct {
		path string
		want deskfs.NodeID
	}{
		{"B", b.ID},
		{"./B/", b.ID},
		{"B/doc.txt", doc.ID},
		{"/A/B/doc.txt", doc.ID},
		{"../A/B", b.ID},
		{"/../../A/B", b.ID},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, err := x.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.ID)
		})
	}

	t.Run("ThroughFile", func(t *testing.T) {
		_, err := x.Resolve("B/doc.txt/more")
		assert.ErrorIs(t, err, deskfs.ErrInvalidOperation)
	})
}

func TestExplorer_FileOperations(t *testing.T) {
	t.Parallel()

	x, _ := createTestExplorer(t)
	_, err := x.Mkdir("Inbox")
	require.NoError(t, err)
	_, err = x.Mkdir("Archive")
	require.NoError(t, err)

	_, err = x.Write("Inbox/note.txt", []byte("v1"))
	require.NoError(t, err)
	_, err = x.Write("Inbox/note.txt", []byte("v2"))
	require.NoError(t, err)
	data, err := x.Cat("Inbox/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	_, err = x.Touch("Inbox/note.txt", nil)
	assert.ErrorIs(t, err, deskfs.ErrDuplicateName)

	_, err = x.Rename("Inbox/note.txt", "memo.txt")
	require.NoError(t, err)
	moved, err := x.MoveTo("Inbox/memo.txt", "/Archive")
	require.NoError(t, err)

	n, err := x.Resolve("Archive/memo.txt")
	require.NoError(t, err)
	assert.Equal(t, moved.ID, n.ID)

	_, err = x.Cat("Archive")
	assert.ErrorIs(t, err, deskfs.ErrInvalidOperation)

	_, err = x.MoveTo("Archive", "Archive")
	assert.ErrorIs(t, err, deskfs.ErrCycleDetected)
}

func TestExplorer_Remove(t *testing.T) {
	t.Parallel()

	t.Run("CurrentFolderInside", func(t *testing.T) {
		t.Parallel()
		x, s := createTestExplorer(t)
		a, err := x.Mkdir("A")
		require.NoError(t, err)
		_, err = x.Mkdir("A/B")
		require.NoError(t, err)
		require.NoError(t, x.Cd("A/B"))

		require.NoError(t, x.Remove("/A"))

		cwd, err := x.Cwd()
		require.NoError(t, err)
		assert.True(t, cwd.IsRoot())
		assert.Equal(t, 1, s.Len())
		_, err = s.Get(a.ID)
		assert.ErrorIs(t, err, deskfs.ErrNotFound)
	})

	t.Run("Root", func(t *testing.T) {
		t.Parallel()
		x, _ := createTestExplorer(t)
		assert.ErrorIs(t, x.Remove("/"), deskfs.ErrInvalidOperation)
	})

	t.Run("VanishedCwd", func(t *testing.T) {
		t.Parallel()
		x, s := createTestExplorer(t)
		a, err := x.Mkdir("A")
		require.NoError(t, err)
		require.NoError(t, x.Cd("A"))

		// Removed behind the explorer's back
		require.NoError(t, s.Delete(a.ID))

		cwd, err := x.Cwd()
		require.NoError(t, err)
		assert.True(t, cwd.IsRoot())
	})
}
