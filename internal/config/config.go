package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the guestlog server configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Store     StoreConfig     `toml:"store" yaml:"store"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string `toml:"host" yaml:"host"`
	Port         int    `toml:"port" yaml:"port"`
	Auth         string `toml:"auth" yaml:"auth"`
	MaxBodyBytes int64  `toml:"max_body_bytes" yaml:"max_body_bytes"`
}

// StoreConfig holds guest file settings.
type StoreConfig struct {
	Path         string `toml:"path" yaml:"path"`
	ArchiveDir   string `toml:"archive_dir,omitempty" yaml:"archive_dir,omitempty"`
	AtomicAppend bool   `toml:"atomic_append" yaml:"atomic_append"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// RateLimitConfig controls the optional per-IP request limiter. A zero
// Rate disables it.
type RateLimitConfig struct {
	Rate  float64 `toml:"rate" yaml:"rate"`
	Burst int     `toml:"burst" yaml:"burst"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// DefaultMaxBodyBytes caps append request bodies unless configured otherwise.
const DefaultMaxBodyBytes int64 = 10 << 20

// defaultBurst applies when rate limiting is enabled without a burst.
const defaultBurst = 30

// Environment variables overlaid on the file configuration.
const (
	EnvPort     = "PORT"
	EnvDestFile = "DEST_FILE"
	EnvAuth     = "AUTH"
	EnvConfig   = "GUESTLOG_CONFIG"
	EnvLogLevel = "GUESTLOG_LOG_LEVEL"
)

// DefaultPath returns the config file path: $GUESTLOG_CONFIG if set,
// otherwise guestlog.toml in the working directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return "guestlog.toml"
}

// Default returns a config with defaults applied and no required values set.
func Default() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// Load reads config from the default path and overlays the environment.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads config from path, applying defaults, then overlays the
// environment. A missing file is not an error. Files ending in .yaml or
// .yml are parsed as YAML; anything else as TOML.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// FromEnv overlays PORT, DEST_FILE, AUTH and GUESTLOG_LOG_LEVEL onto c.
func (c *Config) FromEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvDestFile); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvAuth); v != "" {
		c.Server.Auth = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate reports every required setting that is missing or out of range.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port (or %s) must be between 1 and 65535", EnvPort))
	}
	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path (or %s) is required", EnvDestFile))
	}
	if c.Server.Auth == "" {
		errs = append(errs, fmt.Errorf("server.auth (or %s) is required", EnvAuth))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.rate must not be negative, got %g", c.RateLimit.Rate))
	}
	return errors.Join(errs...)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// StorePath returns the expanded guest file path.
func (c *Config) StorePath() (string, error) {
	return ExpandPath(c.Store.Path)
}

// ArchiveDir returns the expanded prune archive directory, or "" if unset.
func (c *Config) ArchiveDir() (string, error) {
	if c.Store.ArchiveDir == "" {
		return "", nil
	}
	return ExpandPath(c.Store.ArchiveDir)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SaveTo writes config to the given path as TOML, creating directories as needed.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultBurst
	}
}
