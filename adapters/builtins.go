package adapters

import (
	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/adapters/bolt"
	"github.com/brettbedarf/deskfs/adapters/duckdb"
	"github.com/brettbedarf/deskfs/adapters/memory"
	"github.com/brettbedarf/deskfs/config"
)

// NOTE: If build bloat becomes a concern (duckdb links a large C++ library)
// look into build tags i.e. +build !noduckdb
// or nested packages with init() and main app can include just importing
// import (_ github.com/.../adapters/duckdb)

type BuiltInBackend = string

const (
	MemoryBackend BuiltInBackend = config.MemoryBackend
	BoltBackend   BuiltInBackend = config.BoltBackend
	DuckDBBackend BuiltInBackend = config.DuckDBBackend
)

// RegisterBuiltins registers all built-in backends in the default registry
// or only the specific ones if keys are provided
func RegisterBuiltins(backends ...BuiltInBackend) {
	RegisterBuiltinsTo(defaultRegistry, backends...)
}

// RegisterBuiltinsTo is RegisterBuiltins for a specific registry
func RegisterBuiltinsTo(r *Registry, backends ...BuiltInBackend) {
	if len(backends) == 0 {
		// Include all built-in backends here when adding implementations
		backends = append(backends, MemoryBackend, BoltBackend, DuckDBBackend)
	}

	for _, key := range backends {
		switch key {
		case MemoryBackend:
			r.Register(MemoryBackend, openMemory)
		case BoltBackend:
			r.Register(BoltBackend, openBolt)
		case DuckDBBackend:
			r.Register(DuckDBBackend, openDuckDB)
		}
	}
}

func openMemory(*config.Config) (deskfs.Repository, error) {
	return memory.New(), nil
}

func openBolt(cfg *config.Config) (deskfs.Repository, error) {
	repo, err := bolt.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openDuckDB(cfg *config.Config) (deskfs.Repository, error) {
	repo, err := duckdb.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
