package store

import (
	"testing"

	"github.com/brettbedarf/deskfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createEntry(parent *entry, name string, kind deskfs.Kind) *entry {
	e := newEntry(deskfs.Node{ID: deskfs.NewNodeID(), Name: name, Kind: kind})
	if parent != nil {
		parent.addChild(e)
	}
	return e
}

func TestNewEntry(t *testing.T) {
	t.Parallel()

	folder := newEntry(deskfs.Node{Kind: deskfs.KindFolder})
	file := newEntry(deskfs.Node{Kind: deskfs.KindFile})

	assert.NotNil(t, folder.children)
	assert.Nil(t, file.children)
}

func TestEntry_AddRemoveChild(t *testing.T) {
	t.Parallel()

	root := createEntry(nil, "root", deskfs.KindFolder)
	child := createEntry(root, "child", deskfs.KindFile)

	assert.Equal(t, root, child.parent)
	assert.Equal(t, root.ID, child.ParentID)
	assert.Same(t, child, root.children["child"])

	assert.True(t, root.removeChild("child"))
	assert.Nil(t, child.parent)
	assert.Empty(t, root.children)
	assert.False(t, root.removeChild("child"))
}

func TestEntry_IsAncestorOf(t *testing.T) {
	t.Parallel()

	root := createEntry(nil, "root", deskfs.KindFolder)
	a := createEntry(root, "a", deskfs.KindFolder)
	b := createEntry(a, "b", deskfs.KindFolder)
	other := createEntry(root, "other", deskfs.KindFolder)

	assert.True(t, root.isAncestorOf(b))
	assert.True(t, a.isAncestorOf(b))
	assert.True(t, b.isAncestorOf(b), "a node counts as its own ancestor")
	assert.False(t, b.isAncestorOf(a))
	assert.False(t, other.isAncestorOf(b))
}

func TestEntry_Subtree(t *testing.T) {
	t.Parallel()

	root := createEntry(nil, "root", deskfs.KindFolder)
	a := createEntry(root, "a", deskfs.KindFolder)
	b := createEntry(a, "b", deskfs.KindFile)
	c := createEntry(root, "c", deskfs.KindFile)

	all := root.subtree()

	require.Len(t, all, 4)
	assert.ElementsMatch(t, []*entry{root, a, b, c}, all)
	assert.Same(t, root, all[len(all)-1], "parent must follow its descendants")
	assert.Less(t, indexOf(all, b), indexOf(all, a))
}

func indexOf(entries []*entry, e *entry) int {
	for i, x := range entries {
		if x == e {
			return i
		}
	}
	return -1
}

func TestEntry_SortedChildren(t *testing.T) {
	t.Parallel()

	root := createEntry(nil, "root", deskfs.KindFolder)
	createEntry(root, "b", deskfs.KindFile)
	createEntry(root, "B", deskfs.KindFolder)
	createEntry(root, "a", deskfs.KindFile)
	createEntry(root, "A", deskfs.KindFolder)
	createEntry(root, "_", deskfs.KindFolder)

	var names []string
	for _, child := range root.sortedChildren() {
		names = append(names, child.Name)
	}

	assert.Equal(t, []string{"A", "B", "_", "a", "b"}, names)
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want []string
	}{
		{"", []string{}},
		{"/", []string{}},
		{"a", []string{"a"}},
		{"/a/b", []string{"a", "b"}},
		{"a//b/", []string{"a", "b"}},
		{"with space/ünï", []string{"with space", "ünï"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitPath(tt.path))
		})
	}
}
