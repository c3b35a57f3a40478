package requests

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/deskfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNodeType(t *testing.T) {
	t.Parallel()

	typ, err := GetNodeType([]byte(`{"type":"folder","path":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, deskfs.FolderNodeType, typ)

	_, err = GetNodeType([]byte(`not json`))
	assert.Error(t, err)
}

func TestUnmarshalFileRequest(t *testing.T) {
	t.Parallel()

	t.Run("WithContent", func(t *testing.T) {
		t.Parallel()
		req, err := UnmarshalFileRequest([]byte(`{"type":"file","path":"/Documents/todo.txt","content":"milk"}`))

		require.NoError(t, err)
		assert.Equal(t, "Documents/todo.txt", req.Path)
		assert.Equal(t, deskfs.FileNodeType, req.Type)
		assert.Equal(t, []byte("milk"), req.Content)
	})

	t.Run("WithoutContent", func(t *testing.T) {
		t.Parallel()
		req, err := UnmarshalFileRequest([]byte(`{"type":"file","path":"empty.txt"}`))

		require.NoError(t, err)
		assert.Nil(t, req.Content)
	})

	t.Run("MissingPath", func(t *testing.T) {
		t.Parallel()
		_, err := UnmarshalFileRequest([]byte(`{"type":"file"}`))
		assert.Error(t, err)
	})

	t.Run("EmptySegment", func(t *testing.T) {
		t.Parallel()
		_, err := UnmarshalFileRequest([]byte(`{"type":"file","path":"a//b"}`))
		assert.Error(t, err)
	})
}

func TestUnmarshalFolderRequest(t *testing.T) {
	t.Parallel()

	req, err := UnmarshalFolderRequest([]byte(`{"type":"folder","path":"Pictures/2024/"}`))

	require.NoError(t, err)
	assert.Equal(t, "Pictures/2024", req.Path)
	assert.Equal(t, deskfs.FolderNodeType, req.Type)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	raw := []json.RawMessage{
		json.RawMessage(`{"type":"folder","path":"Music"}`),
		json.RawMessage(`{"type":"file","path":"Music/playlist.m3u","content":"#EXTM3U"}`),
		json.RawMessage(`{"type":"symlink","path":"nope"}`),
		json.RawMessage(`{"type":"file"}`),
		json.RawMessage(`[1,2]`),
		json.RawMessage(`{"type":"folder","path":"Videos"}`),
	}

	b := Decode(raw)

	require.Len(t, b.Folders, 2)
	require.Len(t, b.Files, 1)
	assert.Equal(t, "Music", b.Folders[0].Path)
	assert.Equal(t, "Videos", b.Folders[1].Path)
	assert.Equal(t, "Music/playlist.m3u", b.Files[0].Path)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	t.Run("JSON", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nodes.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"type": "folder", "path": "Documents"},
			{"type": "file", "path": "Documents/cv.txt", "content": "Jane"}
		]`), 0o644))

		b, err := LoadFile(path)

		require.NoError(t, err)
		require.Len(t, b.Folders, 1)
		require.Len(t, b.Files, 1)
		assert.Equal(t, []byte("Jane"), b.Files[0].Content)
	})

	t.Run("YAML", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nodes.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
- type: folder
  path: Pictures/Holidays
- type: file
  path: Pictures/Holidays/notes.txt
  content: |
    beach
`), 0o644))

		b, err := LoadFile(path)

		require.NoError(t, err)
		require.Len(t, b.Folders, 1)
		require.Len(t, b.Files, 1)
		assert.Equal(t, "Pictures/Holidays", b.Folders[0].Path)
		assert.Equal(t, "beach\n", string(b.Files[0].Content))
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nodes.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"type": "folder"`), 0o644))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}
