// Package duckdb persists the node tree in a DuckDB table, one row per node.
// An empty path opens an in-memory database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
)

// TableNodes is the table holding every node row
const TableNodes = "nodes"

const nodesSchema = `
	id VARCHAR PRIMARY KEY,
	parent_id VARCHAR,
	name VARCHAR NOT NULL,
	kind VARCHAR NOT NULL,
	content BLOB,
	created TIMESTAMP NOT NULL,
	modified TIMESTAMP NOT NULL`

const upsertNode = `INSERT INTO ` + TableNodes + ` (id, parent_id, name, kind, content, created, modified)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		parent_id = excluded.parent_id,
		name = excluded.name,
		kind = excluded.kind,
		content = excluded.content,
		modified = excluded.modified`

const deleteNode = `DELETE FROM ` + TableNodes + ` WHERE id = ?`

const selectNodes = `SELECT id, parent_id, name, kind, content, created, modified FROM ` + TableNodes

// Repository is a deskfs.Repository backed by DuckDB
type Repository struct {
	conn   *sql.DB
	ctx    context.Context
	cancel context.CancelFunc
	path   string
}

// Open opens the DuckDB database at path and creates the nodes table if needed
func Open(path string) (*Repository, error) {
	logger := util.GetLogger("DuckDBRepository.Open")

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	// Single writer; also keeps an in-memory database on one connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Repository{conn: conn, ctx: ctx, cancel: cancel, path: path}

	if _, err := conn.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+TableNodes+" ("+nodesSchema+")"); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to create %s table: %w", TableNodes, err)
	}

	logger.Debug().Str("path", path).Msg("Opened duckdb repository")
	return r, nil
}

// Load reads every row of the nodes table
func (r *Repository) Load() ([]deskfs.Node, error) {
	rows, err := r.conn.QueryContext(r.ctx, selectNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []deskfs.Node
	for rows.Next() {
		var (
			id, name, kind    string
			parentID          sql.NullString
			content           []byte
			created, modified time.Time
		)
		if err := rows.Scan(&id, &parentID, &name, &kind, &content, &created, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		n := deskfs.Node{
			Name:     name,
			Kind:     deskfs.Kind(kind),
			Content:  content,
			Created:  created,
			Modified: modified,
		}
		if n.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid node id %q: %w", id, err)
		}
		if parentID.Valid {
			if n.ParentID, err = uuid.Parse(parentID.String); err != nil {
				return nil, fmt.Errorf("invalid parent id %q for node %s: %w", parentID.String, id, err)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Commit applies cs inside one transaction, rolling back on any failure
func (r *Repository) Commit(cs *deskfs.ChangeSet) (err error) {
	if cs.Empty() {
		return nil
	}

	tx, err := r.conn.BeginTx(r.ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, id := range cs.Delete {
		if _, err = tx.ExecContext(r.ctx, deleteNode, id.String()); err != nil {
			return fmt.Errorf("failed to delete node %s: %w", id, err)
		}
	}
	for _, n := range cs.Put {
		var parentID any
		if n.ParentID != deskfs.NilID {
			parentID = n.ParentID.String()
		}
		var content any
		if n.Content != nil {
			content = n.Content
		}
		_, err = tx.ExecContext(r.ctx, upsertNode,
			n.ID.String(), parentID, n.Name, string(n.Kind), content, n.Created.UTC(), n.Modified.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Len returns the number of rows in the nodes table
func (r *Repository) Len() (int, error) {
	var count int
	err := r.conn.QueryRowContext(r.ctx, "SELECT COUNT(*) FROM "+TableNodes).Scan(&count)
	return count, err
}

// Close cancels in-flight queries and closes the connection
func (r *Repository) Close() error {
	r.cancel()
	return r.conn.Close()
}

var _ deskfs.Repository = (*Repository)(nil)
