package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all run parameters for guardscan. Nothing reads the working
// directory or environment after Load; commands receive this value.
type Config struct {
	// Storage configuration
	StorageDir string `mapstructure:"storage_dir"`

	// Rule catalog path; empty selects the built-in catalog
	Catalog string `mapstructure:"catalog"`

	// Output format (text, json, sarif)
	Format string `mapstructure:"format"`

	// Sampling
	SampleSize int   `mapstructure:"sample_size"`
	Seed       int64 `mapstructure:"seed"`

	// Resource bounds
	Threads     int   `mapstructure:"threads"` // 0 means one per CPU
	MaxFileSize int64 `mapstructure:"max_file_size"`
	TimeoutMS   int   `mapstructure:"timeout_ms"`
	WindowLines int   `mapstructure:"window_lines"`
	MaxExcerpt  int   `mapstructure:"max_excerpt"`

	// Walk scope
	Include   []string `mapstructure:"include"`
	Exclude   []string `mapstructure:"exclude"`
	MultiRepo bool     `mapstructure:"multi_repo"`

	// Persist every scan report under StorageDir
	Store bool `mapstructure:"store"`

	// Fail scans that end incomplete, and cancel runs after RunTimeout (0 = none)
	Strict     bool          `mapstructure:"strict"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`

	// Number of stored runs analyzed by status
	LastRuns int `mapstructure:"last_runs"`

	// Name recorded in the label audit trail
	Actor string `mapstructure:"actor"`

	// Verbose output
	Verbose bool `mapstructure:"verbose"`

	// Debug mode
	Debug bool `mapstructure:"debug"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		StorageDir:  ".guardscan",
		Format:      "text",
		SampleSize:  10,
		Seed:        1,
		Threads:     0,
		MaxFileSize: 2 * 1024 * 1024,
		TimeoutMS:   500,
		WindowLines: 64,
		MaxExcerpt:  200,
		LastRuns:    7,
		Verbose:     false,
		Debug:       false,
	}
}

// Load loads configuration with the following precedence (lowest to highest):
// 1. Default values
// 2. Config file (./guardscan.yaml, ~/guardscan.yaml, $XDG_CONFIG_HOME/guardscan/guardscan.yaml)
// 3. Environment variables (GUARDSCAN_*)
// 4. CLI flags (handled by caller)
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file path
// If path is empty, it searches for config in standard locations
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("storage_dir", defaults.StorageDir)
	v.SetDefault("catalog", defaults.Catalog)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("sample_size", defaults.SampleSize)
	v.SetDefault("seed", defaults.Seed)
	v.SetDefault("threads", defaults.Threads)
	v.SetDefault("max_file_size", defaults.MaxFileSize)
	v.SetDefault("timeout_ms", defaults.TimeoutMS)
	v.SetDefault("window_lines", defaults.WindowLines)
	v.SetDefault("max_excerpt", defaults.MaxExcerpt)
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("multi_repo", defaults.MultiRepo)
	v.SetDefault("store", defaults.Store)
	v.SetDefault("strict", defaults.Strict)
	v.SetDefault("run_timeout", defaults.RunTimeout)
	v.SetDefault("last_runs", defaults.LastRuns)
	v.SetDefault("actor", defaultActor())
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("debug", defaults.Debug)

	v.SetConfigName("guardscan")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			v.AddConfigPath(filepath.Join(xdgConfig, "guardscan"))
		}
	}

	v.SetEnvPrefix("GUARDSCAN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validFormats := map[string]bool{
		"text":  true,
		"json":  true,
		"sarif": true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format: %s (must be text, json, or sarif)", c.Format)
	}

	if c.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive")
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads cannot be negative")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive")
	}
	if c.WindowLines <= 0 {
		return fmt.Errorf("window_lines must be positive")
	}
	if c.MaxExcerpt <= 0 {
		return fmt.Errorf("max_excerpt must be positive")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run_timeout cannot be negative")
	}
	if c.LastRuns <= 0 {
		return fmt.Errorf("last_runs must be positive")
	}
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}

	return nil
}

// GetStoragePath returns the absolute path to the storage directory
func (c *Config) GetStoragePath() (string, error) {
	if strings.HasPrefix(c.StorageDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, c.StorageDir[2:]), nil
	}

	absPath, err := filepath.Abs(c.StorageDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// ConfigPath returns where `guardscan init` writes the user config
func ConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "guardscan", "guardscan.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "guardscan", "guardscan.yaml")
	}
	return "guardscan.yaml"
}

// WriteSampleConfig writes GenerateSampleConfig to path, creating parent
// directories. An existing file is left untouched unless force is set.
func WriteSampleConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateSampleConfig()), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func defaultActor() string {
	for _, key := range []string{"GUARDSCAN_ACTOR", "USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

// GenerateSampleConfig generates a sample configuration file content
func GenerateSampleConfig() string {
	return `# guardscan configuration
# Save this file as ./guardscan.yaml, ~/guardscan.yaml or
# $XDG_CONFIG_HOME/guardscan/guardscan.yaml

# Directory for stored runs and labels
storage_dir: .guardscan

# Rule catalog (YAML). Leave empty to use the built-in catalog.
# catalog: rules.yaml

# Output format: text, json, or sarif
format: text

# Evidence sampled per (rule, repository), and the sampling seed
sample_size: 10
seed: 1

# Worker threads (0 = one per CPU)
threads: 0

# Files larger than this many bytes are skipped as too_large
max_file_size: 2097152

# Per-file matching budget in milliseconds
timeout_ms: 500

# Lines spanned by multiline rules
window_lines: 64

# Maximum bytes of matched text kept per finding
max_excerpt: 200

# Walk scope globs (exclude wins)
include: []
exclude: []

# Treat each top-level directory under the root as its own repository
multi_repo: false

# Persist every scan report under storage_dir
store: false

# Exit 3 when a scan ends incomplete (cancelled or timed-out files)
strict: false

# Cancel the whole scan after this duration, e.g. 10m (0 = no limit)
run_timeout: 0s

# Number of stored runs analyzed by status
last_runs: 7

# Name recorded in the label audit trail (defaults to $USER)
# actor: alice

# Enable verbose output
verbose: false

# Enable debug mode
debug: false
`
}
