// Package bolt persists the node tree in a single bbolt file. Every node is
// one JSON record keyed by its ID in the "nodes" bucket and each change set is
// applied in one read-write transaction.
package bolt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/internal/util"
	bolt "go.etcd.io/bbolt"
)

// BucketNodes holds every node record
const BucketNodes = "nodes"

// openTimeout bounds how long Open waits for another process's file lock
const openTimeout = 2 * time.Second

// Repository is a deskfs.Repository backed by bbolt
type Repository struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if needed) the bolt file at path and ensures the node bucket exists
func Open(path string) (*Repository, error) {
	logger := util.GetLogger("BoltRepository.Open")

	if path == "" {
		return nil, errors.New("bolt repository requires a file path")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketNodes)); err != nil {
			return fmt.Errorf("failed to create %s bucket: %w", BucketNodes, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug().Str("path", path).Msg("Opened bolt repository")
	return &Repository{db: db, path: path}, nil
}

// Path returns the database file path
func (r *Repository) Path() string {
	return r.path
}

// Load decodes every record in the nodes bucket
func (r *Repository) Load() ([]deskfs.Node, error) {
	var nodes []deskfs.Node
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketNodes))
		if b == nil {
			return fmt.Errorf("%s bucket not found", BucketNodes)
		}
		return b.ForEach(func(k, v []byte) error {
			var n deskfs.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("failed to decode node %x: %w", k, err)
			}
			nodes = append(nodes, n)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Commit applies cs in a single transaction: deletes first, then puts
func (r *Repository) Commit(cs *deskfs.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketNodes))
		if b == nil {
			return fmt.Errorf("%s bucket not found", BucketNodes)
		}
		for _, id := range cs.Delete {
			if err := b.Delete(id[:]); err != nil {
				return fmt.Errorf("failed to delete node %s: %w", id, err)
			}
		}
		for _, n := range cs.Put {
			data, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("failed to encode node %s: %w", n.ID, err)
			}
			if err := b.Put(n.ID[:], data); err != nil {
				return fmt.Errorf("failed to put node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// Len returns the number of stored records
func (r *Repository) Len() (int, error) {
	var count int
	err := r.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(BucketNodes)).Stats().KeyN
		return nil
	})
	return count, err
}

// Close releases the file lock
func (r *Repository) Close() error {
	return r.db.Close()
}

var _ deskfs.Repository = (*Repository)(nil)
