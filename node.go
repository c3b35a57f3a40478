// Package deskfs contains core domain types and interfaces for the desktop
// virtual file system: the nodes of the folder/file tree, the error kinds
// its store reports and the repository contract persistence adapters implement.
package deskfs

import (
	"time"

	"github.com/google/uuid"
)

// NodeID uniquely identifies a node for the lifetime of a store
type NodeID = uuid.UUID

// NilID is the zero NodeID. Only the root has it as ParentID.
var NilID = uuid.Nil

// NewNodeID returns a new random NodeID
func NewNodeID() NodeID {
	return uuid.New()
}

// Kind valid kinds are KindFolder "folder", KindFile "file"
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindFolder || k == KindFile
}

// Node is a snapshot of a folder or file in the tree.
// Values handed out by the store are copies; mutating them has no effect on the tree.
type Node struct {
	ID       NodeID    `json:"id"`
	ParentID NodeID    `json:"parent_id"` // NilID for the root
	Name     string    `json:"name"`
	Kind     Kind      `json:"kind"`
	Content  []byte    `json:"content,omitempty"` // File payload; always nil for folders
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// IsFolder returns true if the node is a folder
func (n Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// IsRoot returns true if the node has no parent
func (n Node) IsRoot() bool {
	return n.ParentID == NilID
}

// Clone returns a deep copy of n
func (n Node) Clone() Node {
	if n.Content != nil {
		n.Content = append([]byte(nil), n.Content...)
	}
	return n
}
