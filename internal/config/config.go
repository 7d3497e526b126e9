// Package config provides reading and writing of corpus operator
// configuration. Supports both global (~/.foiacorpus/config.yaml) and local
// (.foiacorpus/config.yaml). Reading: uses local if it exists, otherwise
// global. Writing: Save writes back to the file the configuration was
// loaded from; use --local to write the local file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoConfigPath is returned when the config path cannot be determined.
	ErrNoConfigPath = errors.New("cannot determine config path")
	// ErrUnknownKey is returned when getting/setting an unknown config key.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = errors.New("invalid config value")
)

// Scope represents the configuration scope (global or local).
type Scope int

const (
	// ScopeGlobal is user-wide config in ~/.foiacorpus/config.yaml (default)
	ScopeGlobal Scope = iota
	// ScopeLocal is repository-specific config in .foiacorpus/config.yaml
	ScopeLocal
)

// Storage holds the backend selection and connection details (spec 4.I).
type Storage struct {
	Backend string `yaml:"backend,omitempty"` // "sqlite" (default) or "postgres"
	Path    string `yaml:"path,omitempty"`    // sqlite file path
	DSN     string `yaml:"dsn,omitempty"`     // postgres connection string
	CASRoot string `yaml:"cas_root,omitempty"`
}

// RateLimit holds the governor's per-domain delay bounds (spec 4.D).
type RateLimit struct {
	FloorMS   *int64 `yaml:"floor_ms,omitempty"`
	CeilingMS *int64 `yaml:"ceiling_ms,omitempty"`
}

// Pager holds the page extractor's OCR-skip threshold (spec 4.F).
type Pager struct {
	MinCharsPerPage *int `yaml:"min_chars_per_page,omitempty"`
}

// Crawl holds frontier retry and claim-staleness tuning (spec 4.C).
type Crawl struct {
	MaxRetries       *int   `yaml:"max_retries,omitempty"`
	BaseRetryDelayMS *int64 `yaml:"base_retry_delay_ms,omitempty"`
	FetchTimeoutMS   *int64 `yaml:"fetch_timeout_ms,omitempty"`
}

// Default limits applied when not configured.
const (
	DefaultStorageBackend   = "sqlite"
	DefaultCASRoot          = "cas"
	DefaultRateLimitFloorMS = 250
	DefaultRateLimitCeilMS  = 60_000
	DefaultMinCharsPerPage  = 64
	DefaultMaxRetries       = 5
	DefaultBaseRetryDelayMS = 1_000
	DefaultFetchTimeoutMS   = 30_000
)

// Validation bounds for configuration values.
const (
	MinRateLimitMS  = 1
	MaxRateLimitMS  = 24 * 60 * 60 * 1000 // 24h
	MinCharsPerPage = 0
	MaxCharsPerPage = 1 << 20
	MinRetries      = 0
	MaxRetriesBound = 1000
)

// Config contains configuration for the corpus crawler and annotation runner.
type Config struct {
	Storage   Storage   `yaml:"storage,omitempty"`
	RateLimit RateLimit `yaml:"rate_limit,omitempty"`
	Pager     Pager     `yaml:"pager,omitempty"`
	Crawl     Crawl     `yaml:"crawl,omitempty"`

	// path is the file this config was loaded from (for Save)
	path  string
	scope Scope
}

// Validate checks that all configured values are within acceptable bounds.
// Returns nil if all values are valid or not set (defaults will be used).
func (c *Config) Validate() error {
	if c.RateLimit.FloorMS != nil {
		if v := *c.RateLimit.FloorMS; v < MinRateLimitMS || v > MaxRateLimitMS {
			return fmt.Errorf("%w: rate_limit.floor_ms must be between %d and %d, got %d",
				ErrInvalidValue, MinRateLimitMS, MaxRateLimitMS, v)
		}
	}
	if c.RateLimit.CeilingMS != nil {
		if v := *c.RateLimit.CeilingMS; v < MinRateLimitMS || v > MaxRateLimitMS {
			return fmt.Errorf("%w: rate_limit.ceiling_ms must be between %d and %d, got %d",
				ErrInvalidValue, MinRateLimitMS, MaxRateLimitMS, v)
		}
	}
	if c.Pager.MinCharsPerPage != nil {
		if v := *c.Pager.MinCharsPerPage; v < MinCharsPerPage || v > MaxCharsPerPage {
			return fmt.Errorf("%w: pager.min_chars_per_page must be between %d and %d, got %d",
				ErrInvalidValue, MinCharsPerPage, MaxCharsPerPage, v)
		}
	}
	if c.Crawl.MaxRetries != nil {
		if v := *c.Crawl.MaxRetries; v < MinRetries || v > MaxRetriesBound {
			return fmt.Errorf("%w: crawl.max_retries must be between %d and %d, got %d",
				ErrInvalidValue, MinRetries, MaxRetriesBound, v)
		}
	}
	return nil
}

// StorageBackend returns the configured backend name, defaulting to sqlite.
func (c *Config) StorageBackend() string {
	if c.Storage.Backend == "" {
		return DefaultStorageBackend
	}
	return c.Storage.Backend
}

// CASRoot returns the content-addressed storage root, defaulting to "cas".
func (c *Config) CASRoot() string {
	if c.Storage.CASRoot == "" {
		return DefaultCASRoot
	}
	return c.Storage.CASRoot
}

// RateLimitFloorMS returns the governor's minimum per-domain delay.
func (c *Config) RateLimitFloorMS() int64 {
	if c.RateLimit.FloorMS == nil {
		return DefaultRateLimitFloorMS
	}
	return *c.RateLimit.FloorMS
}

// RateLimitCeilingMS returns the governor's maximum per-domain delay.
func (c *Config) RateLimitCeilingMS() int64 {
	if c.RateLimit.CeilingMS == nil {
		return DefaultRateLimitCeilMS
	}
	return *c.RateLimit.CeilingMS
}

// MinCharsPerPage returns the pager's OCR-skip threshold (spec.md 9's Open
// Question, resolved as an explicit configurable).
func (c *Config) MinCharsPerPage() int {
	if c.Pager.MinCharsPerPage == nil {
		return DefaultMinCharsPerPage
	}
	return *c.Pager.MinCharsPerPage
}

// MaxRetries returns the frontier's retry ceiling before a URL is exhausted.
func (c *Config) MaxRetries() int {
	if c.Crawl.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.Crawl.MaxRetries
}

// BaseRetryDelayMS returns the frontier's exponential backoff base interval.
func (c *Config) BaseRetryDelayMS() int64 {
	if c.Crawl.BaseRetryDelayMS == nil {
		return DefaultBaseRetryDelayMS
	}
	return *c.Crawl.BaseRetryDelayMS
}

// FetchTimeoutMS returns the configured per-request timeout, used by the
// crawl command to derive SweepStaleClaims' staleness horizon (4x this
// value, spec.md 9's Open Question).
func (c *Config) FetchTimeoutMS() int64 {
	if c.Crawl.FetchTimeoutMS == nil {
		return DefaultFetchTimeoutMS
	}
	return *c.Crawl.FetchTimeoutMS
}

// LocalPath returns the path to the local (repository) config file.
func LocalPath() string {
	return filepath.Join(".foiacorpus", "config.yaml")
}

// GlobalPath returns the path to the global (user) config file.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".foiacorpus", "config.yaml")
}

// Path returns the local config path (for backwards compatibility).
func Path() string {
	return LocalPath()
}

// Load reads configuration: uses local if it exists, otherwise global.
func Load() (*Config, error) {
	if _, err := os.Stat(LocalPath()); err == nil {
		return LoadScope(ScopeLocal)
	}
	return LoadScope(ScopeGlobal)
}

// LoadScope reads configuration from a specific scope.
func LoadScope(scope Scope) (*Config, error) {
	path := pathForScope(scope)
	if path == "" {
		return &Config{scope: scope}, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{path: path, scope: scope}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w\n\nTo fix: edit the file to correct the YAML syntax, or delete it to use defaults", path, err)
	}
	cfg.path = path
	cfg.scope = scope

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Scope returns which scope this config was loaded from.
func (c *Config) Scope() Scope {
	return c.scope
}

// Save writes the configuration to its original location.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = pathForScope(c.scope)
	}
	if c.path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(c.path)
}

// SaveScope writes the configuration to the specified scope.
func (c *Config) SaveScope(scope Scope) error {
	path := pathForScope(scope)
	if path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(path)
}

// saveToPath writes configuration to a specific filesystem path.
// Creates parent directories as needed with mode 0755.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// pathForScope returns the filesystem path for a given scope.
func pathForScope(scope Scope) string {
	switch scope {
	case ScopeLocal:
		return LocalPath()
	case ScopeGlobal:
		return GlobalPath()
	default:
		return ""
	}
}
