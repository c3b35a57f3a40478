package requests

import (
	"github.com/brettbedarf/deskfs"
)

// NodeRequestDTO is the JSON/YAML representation of [deskfs.NodeRequest]
type NodeRequestDTO struct {
	Path string                       `json:"path" yaml:"path"` // i.e. "Documents/notes/todo.txt"
	Type deskfs.NodeCreateRequestType `json:"type" yaml:"type"`
}

// FileRequestDTO is the JSON/YAML representation of [deskfs.FileCreateRequest]
type FileRequestDTO struct {
	NodeRequestDTO `yaml:",inline"`
	Content        *string `json:"content,omitempty" yaml:"content,omitempty"` // Optional text content (Default empty)
}

// FolderRequestDTO is the JSON/YAML representation of [deskfs.FolderCreateRequest]
type FolderRequestDTO struct {
	NodeRequestDTO `yaml:",inline"`
}
