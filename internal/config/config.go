// Package config provides configuration loading and management for the data toolkit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the environment variable prefix for toolkit settings
	EnvPrefix = "AADATA"
)

const (
	// FormatGrid is the format for raster data stored as ESRI ASCII grids
	FormatGrid = "grid"

	// FormatTable is the format for tabular data stored as CSV
	FormatTable = "table"
)

// Default fetch tuning values, applied when the config omits them.
const (
	DefaultAttemptTimeout  = 30 * time.Second
	DefaultMaxAttempts     = 4
	DefaultInitialBackoff  = 500 * time.Millisecond
	DefaultMaxBackoff      = 30 * time.Second
	DefaultMaxArtifactSize = 500 * 1024 * 1024
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// CacheDir is the root of the on-disk artifact cache
	CacheDir string `yaml:"cacheDir"`

	// Fetch holds transport and retry tuning
	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// Sources is the declarative list of external data sources
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines transport and retry tuning for artifact downloads.
// Durations are Go duration strings (e.g. "30s", "500ms").
type FetchConfig struct {
	// AttemptTimeout bounds a single fetch attempt
	AttemptTimeout string `yaml:"attemptTimeout,omitempty"`

	// MaxAttempts is the total retry budget, including the first attempt
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// InitialBackoff is the delay before the first retry
	InitialBackoff string `yaml:"initialBackoff,omitempty"`

	// MaxBackoff caps the exponential retry delay
	MaxBackoff string `yaml:"maxBackoff,omitempty"`

	// MaxArtifactSize caps the size of a downloaded artifact in bytes
	MaxArtifactSize int64 `yaml:"maxArtifactSize,omitempty"`
}

// SourceConfig defines a single external data source
type SourceConfig struct {
	// ID is the unique identifier for this source
	ID string `yaml:"id"`

	// URLTemplate is the HTTP(S) endpoint template. The placeholders
	// {version} and {region} are expanded per request; {id} is optional.
	URLTemplate string `yaml:"urlTemplate"`

	// Format specifies the artifact data format (grid or table)
	Format string `yaml:"format"`

	// Checksum declares how downloads are verified. Optional; sources
	// without it are accepted on successful full transfer.
	Checksum *ChecksumConfig `yaml:"checksum,omitempty"`
}

// ChecksumConfig defines integrity verification settings for a source
type ChecksumConfig struct {
	// Algorithm is the digest algorithm name (sha256 or sha512)
	Algorithm string `yaml:"algorithm"`

	// URLTemplate is the endpoint serving the expected digest for an
	// artifact. Supports the same placeholders as the source template.
	URLTemplate string `yaml:"urlTemplate"`
}

// Load creates a Config instance from the given options, validating the
// document against the embedded schema and the semantic rules in Validate.
func Load(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("no configuration source provided")
	}

	//nolint:gosec // Path is resolved and validated by WithConfigPath
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := validateDocument(data); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks semantic constraints the schema cannot express
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cacheDir is required")
	}

	for _, field := range []struct{ name, value string }{
		{"fetch.attemptTimeout", c.Fetch.AttemptTimeout},
		{"fetch.initialBackoff", c.Fetch.InitialBackoff},
		{"fetch.maxBackoff", c.Fetch.MaxBackoff},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]
		if _, ok := seen[src.ID]; ok {
			return fmt.Errorf("duplicate source id %q in config", src.ID)
		}
		seen[src.ID] = struct{}{}

		if src.Format != FormatGrid && src.Format != FormatTable {
			return fmt.Errorf("source %q: unsupported format %q", src.ID, src.Format)
		}
		if src.Checksum != nil && src.Checksum.URLTemplate == "" {
			return fmt.Errorf("source %q: checksum declared without urlTemplate", src.ID)
		}
	}

	return nil
}

// AttemptTimeoutOrDefault returns the per-attempt timeout, falling back to the default
func (f *FetchConfig) AttemptTimeoutOrDefault() time.Duration {
	return durationOrDefault(f.AttemptTimeout, DefaultAttemptTimeout)
}

// MaxAttemptsOrDefault returns the retry budget, falling back to the default
func (f *FetchConfig) MaxAttemptsOrDefault() int {
	if f.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return f.MaxAttempts
}

// InitialBackoffOrDefault returns the first retry delay, falling back to the default
func (f *FetchConfig) InitialBackoffOrDefault() time.Duration {
	return durationOrDefault(f.InitialBackoff, DefaultInitialBackoff)
}

// MaxBackoffOrDefault returns the retry delay cap, falling back to the default
func (f *FetchConfig) MaxBackoffOrDefault() time.Duration {
	return durationOrDefault(f.MaxBackoff, DefaultMaxBackoff)
}

// MaxArtifactSizeOrDefault returns the artifact size cap, falling back to the default
func (f *FetchConfig) MaxArtifactSizeOrDefault() int64 {
	if f.MaxArtifactSize <= 0 {
		return DefaultMaxArtifactSize
	}
	return f.MaxArtifactSize
}

func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
