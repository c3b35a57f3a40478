package adapters

import (
	"fmt"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// Factory opens a repository for the given config
type Factory func(cfg *config.Config) (deskfs.Repository, error)

// Registry maps backend types to repository factories
type Registry struct {
	factories *xsync.Map[string, Factory]
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: xsync.NewMap[string, Factory]()}
}

// Register ties a factory to a backend type. The first registration of a
// type wins; later ones are ignored.
func (r *Registry) Register(backend string, factory Factory) {
	if _, loaded := r.factories.LoadOrStore(backend, factory); loaded {
		logger := util.GetLogger("Registry.Register")
		logger.Warn().Str("backend", backend).Msg("Backend already registered")
	}
}

// GetFactory returns the factory registered for backend
func (r *Registry) GetFactory(backend string) (Factory, error) {
	f, ok := r.factories.Load(backend)
	if !ok {
		return nil, fmt.Errorf("no repository registered for backend %q", backend)
	}
	return f, nil
}

// Open opens the repository selected by cfg.Backend
func (r *Registry) Open(cfg *config.Config) (deskfs.Repository, error) {
	logger := util.GetLogger("Registry.Open")

	f, err := r.GetFactory(cfg.Backend)
	if err != nil {
		return nil, err
	}
	repo, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s repository: %w", cfg.Backend, err)
	}
	logger.Info().Str("backend", cfg.Backend).Str("path", cfg.DBPath).Msg("Opened repository")
	return repo, nil
}

var defaultRegistry = NewRegistry()

// Register adds a factory to the default registry and should be called for
// each backend during app init
func Register(backend string, factory Factory) {
	defaultRegistry.Register(backend, factory)
}

// Open opens the repository selected by cfg from the default registry.
// All expected backends should be registered with [Register] or
// [RegisterBuiltins] before calling this function.
func Open(cfg *config.Config) (deskfs.Repository, error) {
	return defaultRegistry.Open(cfg)
}
