// ABOUTME: Configuration loading and parsing for coven-research
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-research/internal/conversation"
)

// Environment variables consulted by the loader.
const (
	EnvConfigPath = "COVEN_RESEARCH_CONFIG"
	EnvBackendURL = "COVEN_RESEARCH_BACKEND_URL"
)

const appDir = "coven-research"

// Config represents the complete coven-research configuration
type Config struct {
	Backend  BackendConfig  `yaml:"backend" toml:"backend"`
	Research ResearchConfig `yaml:"research" toml:"research"`
	Archive  ArchiveConfig  `yaml:"archive" toml:"archive"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// BackendConfig holds research backend connection settings
type BackendConfig struct {
	BaseURL     string        `yaml:"base_url" toml:"base_url"`
	Concurrency int           `yaml:"concurrency" toml:"concurrency"`
	Timeout     time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling; bounds the clarification call only
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// ResearchConfig holds research defaults
type ResearchConfig struct {
	Effort        string `yaml:"effort" toml:"effort"`
	MaxFrameBytes int    `yaml:"max_frame_bytes" toml:"max_frame_bytes"`
}

// ArchiveConfig holds the session archive settings
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:     "http://localhost:8000",
			Concurrency: conversation.DefaultConcurrency,
			Timeout:     time.Minute,
			TimeoutRaw:  "1m",
		},
		Research: ResearchConfig{
			Effort:        string(conversation.LevelMedium),
			MaxFrameBytes: 16 << 20,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    filepath.Join(dataHome(), appDir, "sessions.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML. Values not
// present in the file keep their defaults. Environment variables in the format
// ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or the default location when path is empty.
// A missing file at the default location yields Default(); a missing file
// that was asked for explicitly is an error.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	path = DefaultPath()
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// finish applies environment overrides, parses durations, and validates.
func (c *Config) finish() error {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.BaseURL = v
	}
	c.Archive.Path = expandHome(c.Archive.Path)

	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// DefaultPath resolves the config file location: $COVEN_RESEARCH_CONFIG,
// then config.yaml (or config.toml) under the XDG config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	dir := filepath.Join(configHome(), appDir)
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err != nil {
		tomlPath := filepath.Join(dir, "config.toml")
		if _, err := os.Stat(tomlPath); err == nil {
			return tomlPath
		}
	}
	return yamlPath
}

func configHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

func dataHome() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https scheme")
	}

	if c.Backend.Concurrency < 1 {
		return fmt.Errorf("backend.concurrency must be at least 1")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}

	if _, err := conversation.ParseLevel(c.Research.Effort); err != nil {
		return fmt.Errorf("research.effort: %w", err)
	}
	if c.Research.MaxFrameBytes < 0 {
		return fmt.Errorf("research.max_frame_bytes must not be negative")
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when the archive is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// Effort returns the configured default effort level.
func (c *Config) Effort() conversation.Level {
	level, err := conversation.ParseLevel(c.Research.Effort)
	if err != nil {
		return conversation.LevelMedium
	}
	return level
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Backend.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend.timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
		cfg.Backend.Timeout = d
	}
	return nil
}
