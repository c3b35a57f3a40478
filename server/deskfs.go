package server

import (
	"errors"
	"fmt"
	"path"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/adapters"
	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/internal/fusefs"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/requests"
	"github.com/brettbedarf/deskfs/store"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// DeskFs contains the node store and its repository with abstractions
// over the underlying FUSE wire protocol implementation
type DeskFs struct {
	*store.Store
	cfg    *config.Config
	repo   deskfs.Repository
	server *fuse.Server
}

// New creates a DeskFs instance given your config, opening the configured
// backend through the default adapters registry.
func New(cfg *config.Config) (*DeskFs, error) {
	repo, err := adapters.Open(cfg)
	if err != nil {
		return nil, err
	}
	fs, err := NewWithRepository(cfg, repo)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	return fs, nil
}

// NewWithRepository creates a DeskFs over an already opened repository.
// The DeskFs owns repo from then on and closes it in [DeskFs.Close].
func NewWithRepository(cfg *config.Config, repo deskfs.Repository) (*DeskFs, error) {
	s, err := store.Open(cfg, repo)
	if err != nil {
		return nil, err
	}
	return &DeskFs{
		Store: s,
		cfg:   cfg,
		repo:  repo,
	}, nil
}

// AddFolderNode creates the folder at req.Path with any missing parents
func (fs *DeskFs) AddFolderNode(req *deskfs.FolderCreateRequest) (deskfs.Node, error) {
	return fs.EnsureFolderPath(req.Path)
}

// AddFileNode creates the file at req.Path, creating missing parent folders
func (fs *DeskFs) AddFileNode(req *deskfs.FileCreateRequest) (deskfs.Node, error) {
	dir, name := path.Split(req.Path)
	parent, err := fs.EnsureFolderPath(dir)
	if err != nil {
		return deskfs.Node{}, err
	}
	return fs.CreateFile(parent.ID, name, req.Content)
}

// Seed applies a batch of create requests, folders first. Files that
// already exist are skipped and logged; the returned counts are the nodes
// actually added or confirmed.
func (fs *DeskFs) Seed(b *requests.Batch) (folders, files int) {
	logger := util.GetLogger("DeskFs.Seed")

	for _, req := range b.Folders {
		if _, err := fs.AddFolderNode(req); err != nil {
			logger.Warn().Str("path", req.Path).Err(err).Msg("Failed to add folder request")
			continue
		}
		folders++
	}
	for _, req := range b.Files {
		if _, err := fs.AddFileNode(req); err != nil {
			if errors.Is(err, deskfs.ErrDuplicateName) {
				logger.Info().Str("path", req.Path).Msg("File already exists, skipping")
			} else {
				logger.Warn().Str("path", req.Path).Err(err).Msg("Failed to add file request")
			}
			continue
		}
		files++
	}
	logger.Info().Int("folders", folders).Int("files", files).Msg("Added new nodes to filesystem")
	return folders, files
}

// Serve mounts and serves the filesystem at the given mountPoint.
func (fs *DeskFs) Serve(mountPoint string) error {
	if fs.server != nil {
		return errors.New("filesystem is already mounted")
	}
	raw, err := fusefs.NewFuseRaw(fs.Store, fs.cfg)
	if err != nil {
		return err
	}
	opts := fs.cfg.MountOptions
	srv, err := fuse.NewServer(raw, mountPoint, &fuse.MountOptions{
		Name:               opts.Name,
		FsName:             opts.FsName,
		Debug:              opts.Debug || fs.cfg.LogLvl == util.TraceLevel,
		Logger:             util.NewLogLogger("FuseServer", util.TraceLevel),
		DisableReadDirPlus: true,
	})
	if err != nil {
		return fmt.Errorf("mount %s: %w", mountPoint, err)
	}
	fs.server = srv

	go srv.Serve()
	return srv.WaitMount()
}

func (fs *DeskFs) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- fs.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Unmount cleanly unmounts the filesystem.
func (fs *DeskFs) Unmount() error {
	if fs.server == nil {
		return nil
	}
	if err := fs.server.Unmount(); err != nil {
		return err
	}
	fs.server = nil
	return nil
}

// Close unmounts if needed and releases the repository
func (fs *DeskFs) Close() error {
	return errors.Join(fs.Unmount(), fs.repo.Close())
}
