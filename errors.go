package deskfs

import (
	"errors"
	"strconv"
)

// Error kinds returned by store operations. Match them with errors.Is.
var (
	ErrNotFound         = errors.New("node not found")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrInvalidName      = errors.New("invalid name")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrCorrupted means a tree invariant is broken. It is never expected and
	// is not recoverable by the caller.
	ErrCorrupted = errors.New("store corrupted")
)

// NodeError records a failed store operation and the node it was applied to
type NodeError struct {
	Op   string
	ID   NodeID // NilID when the operation has no subject node yet
	Name string // Offending name, if any
	Err  error
}

func (e *NodeError) Error() string {
	s := e.Op
	if e.ID != NilID {
		s += " " + e.ID.String()
	}
	if e.Name != "" {
		s += " " + strconv.Quote(e.Name)
	}
	return s + ": " + e.Err.Error()
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
