package deskfs

// Repository persists the node tree for a store.
// Implementations must apply a ChangeSet atomically: either every put and
// delete is durable or none is.
type Repository interface {
	// Load returns every persisted node in no particular order
	Load() ([]Node, error)

	// Commit applies all changes in cs as a single unit
	Commit(cs *ChangeSet) error

	// Close releases any resources held by the repository
	Close() error
}

// ChangeSet is the unit of work for a single mutating store operation
type ChangeSet struct {
	Put    []Node   // Nodes to insert or overwrite by ID
	Delete []NodeID // Nodes to remove
}

// Empty returns true if the change set contains nothing to apply
func (cs *ChangeSet) Empty() bool {
	return cs == nil || (len(cs.Put) == 0 && len(cs.Delete) == 0)
}
