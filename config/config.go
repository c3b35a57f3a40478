package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/deskfs/internal/util"
	"gopkg.in/yaml.v3"
)

// CLI style verbosity values accepted by [ConfigOverride.LogLvl].
// Out of range values are clamped.
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Storage backend types understood by the adapters registry
const (
	MemoryBackend = "memory"
	BoltBackend   = "bolt"
	DuckDBBackend = "duckdb"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName = "deskfs"
	DefaultName   = "deskfs"

	DefaultLogLvl = util.InfoLevel

	// DefaultRootName matches the name the desktop explorer gives its top folder
	DefaultRootName = "Root"

	// DefaultMaxNameLen is the longest allowed node name in bytes
	DefaultMaxNameLen = 255

	DefaultBackend = MemoryBackend
	DefaultDBPath  = ""

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO determines whether to bypass page cache for file reads
	DefaultDirectIO = true
)

// Config contains runtime configuration values for the desktop filesystem.
type Config struct {
	MountOptions
	LogLvl     util.LogLevel // Internal log level (Default info)
	RootName   string        // Name given to the root folder when it is first created (Default "Root")
	MaxNameLen int           // Maximum node name length in bytes (Default 255)
	Backend    string        // Storage backend: "memory", "bolt" or "duckdb" (Default "memory")
	DBPath     string        // Database file for persistent backends

	// NOTE: Low-level FUSE config:

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for file reads (Default true)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
//
// LogLvl is a CLI style verbosity between 1 (error) and 5 (trace).
type ConfigOverride struct {
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug        *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	LogLvl       *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	RootName     *string  `yaml:"root_name,omitempty" json:"root_name,omitempty"`
	MaxNameLen   *int     `yaml:"max_name_len,omitempty" json:"max_name_len,omitempty"`
	Backend      *string  `yaml:"backend,omitempty" json:"backend,omitempty"`
	DBPath       *string  `yaml:"db_path,omitempty" json:"db_path,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO     *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:       DefaultLogLvl,
		RootName:     DefaultRootName,
		MaxNameLen:   DefaultMaxNameLen,
		Backend:      DefaultBackend,
		DBPath:       DefaultDBPath,
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,
		DirectIO:     DefaultDirectIO,
	}
}

// NewConfig creates a Config from defaults with override applied on top.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.RootName != nil {
		c.RootName = *override.RootName
	}
	if override.MaxNameLen != nil {
		c.MaxNameLen = *override.MaxNameLen
	}
	if override.Backend != nil {
		c.Backend = *override.Backend
	}
	if override.DBPath != nil {
		c.DBPath = *override.DBPath
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
}

// VerboseToLogLevel converts CLI verbosity (1 error .. 5 trace) to a log level,
// clamping values outside that range.
func VerboseToLogLevel(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
