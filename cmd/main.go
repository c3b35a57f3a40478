package main

import (
	"flag"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/deskfs/adapters"
	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/explorer"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/requests"
	"github.com/brettbedarf/deskfs/server"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		verbose    int
		nodesDef   string
		umount     bool
		shell      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&nodesDef, "nodes", "", "Path to a nodes def file used to seed the tree")
	flag.StringVar(&nodesDef, "n", "", "--nodes (shorthand)")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.BoolVar(&shell, "shell", false, "Browse the tree with the interactive explorer instead of mounting")
	flag.BoolVar(&shell, "s", false, "--shell (shorthand)")
	flag.IntVar(&verbose, "verbose", 3, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", 3, "--verbose (shorthand)")
	flag.Parse()

	// Initialize logger
	logLvl := config.VerboseToLogLevel(verbose)
	util.InitializeLogger(logLvl)
	logger := util.GetLogger("main")

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(configPath); err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
	}
	// the flag wins over the file unless left at its default
	if verbose != 3 || configPath == "" {
		cfg.LogLvl = logLvl
	}
	util.InitializeLogger(cfg.LogLvl)

	mnt := flag.Arg(0)
	logger.Info().
		Int("verbose", verbose).
		Str("nodes", nodesDef).
		Str("mnt", mnt).
		Str("backend", cfg.Backend).
		Bool("shell", shell).
		Msg("DeskFS initializing")
	if mnt == "" && !shell {
		logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
	}
	// Try unmount if requested
	if umount && mnt != "" {
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	// Register all built-in adapters
	adapters.RegisterBuiltins()

	fs, err := server.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open filesystem")
	}
	defer func() {
		if err := fs.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close filesystem")
		}
	}()

	if _, err := fs.GetOrCreateRoot(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create root folder")
	}

	// Seed nodes
	if nodesDef != "" {
		batch, err := requests.LoadFile(nodesDef)
		if err != nil {
			logger.Fatal().Err(err).Str("nodes", nodesDef).Msg("Failed to load nodes file")
		}
		logger.Debug().
			Int("files", len(batch.Files)).
			Int("folders", len(batch.Folders)).
			Msg("Successfully loaded node requests")
		fs.Seed(batch)
	} else {
		logger.Debug().Msg("No nodes file provided")
	}

	if shell {
		x, err := explorer.New(fs.Store)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start explorer")
		}
		if err := explorer.NewShell(x, os.Stdin, os.Stdout).Run(); err != nil {
			logger.Error().Err(err).Msg("Explorer stopped")
		}
		return
	}

	// Serve
	if err := fs.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	// Wait for termination signal
	sig := <-signalChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")

	// Unmount the filesystem
	if err := fs.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().Msg("Filesystem unmounted successfully")
	}
}
