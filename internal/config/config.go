// Package config loads and saves the shelf configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "shelf"
	configFileName = "config.yaml"

	// TokenEnv overrides the token from the file.
	TokenEnv = "SHELF_TOKEN"

	defaultFeedURL        = "https://api.github.com/repos/shelf-content/library/releases/latest"
	defaultAssetPattern   = "content-package"
	defaultPollInterval   = time.Hour
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = time.Second
	defaultHTTPTimeout    = 30 * time.Second
	defaultMaxDownload    = 512 << 20
	defaultLogLevel       = "info"
)

type Config struct {
	FeedURL      string `yaml:"feed_url" json:"feed_url"`
	AssetPattern string `yaml:"asset_pattern" json:"asset_pattern"`
	Token        string `yaml:"token,omitempty" json:"token,omitempty"`

	// DataDir holds the database and the asset cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" json:"http_timeout"`

	MaxDownloadBytes int64 `yaml:"max_download_bytes" json:"max_download_bytes"`

	// QuotaBytes caps local storage; zero means the free disk space.
	QuotaBytes int64 `yaml:"quota_bytes" json:"quota_bytes"`

	AutoInstall bool   `yaml:"auto_install" json:"auto_install"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
}

// DefaultPath returns $XDG_CONFIG_HOME/shelf/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, configFileName)
}

// DefaultDataDir returns $XDG_DATA_HOME/shelf.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		FeedURL:          defaultFeedURL,
		AssetPattern:     defaultAssetPattern,
		DataDir:          DefaultDataDir(),
		PollInterval:     defaultPollInterval,
		MaxRetries:       defaultMaxRetries,
		RetryBaseDelay:   defaultRetryBaseDelay,
		HTTPTimeout:      defaultHTTPTimeout,
		MaxDownloadBytes: defaultMaxDownload,
		LogLevel:         defaultLogLevel,
	}
}

// Load reads configuration from path. A missing file yields the
// defaults. The SHELF_TOKEN environment variable overrides the token.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.Token = token
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills fields a partial file left empty.
func (c *Config) applyDefaults() {
	if c.FeedURL == "" {
		c.FeedURL = defaultFeedURL
	}
	if c.AssetPattern == "" {
		c.AssetPattern = defaultAssetPattern
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.MaxDownloadBytes <= 0 {
		c.MaxDownloadBytes = defaultMaxDownload
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Validate rejects values no default can repair.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.FeedURL, "http://") && !strings.HasPrefix(c.FeedURL, "https://") {
		return fmt.Errorf("feed_url must be an http(s) URL, got %q", c.FeedURL)
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("quota_bytes must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Save persists the configuration to path. The token is written only
// if it did not come from the environment.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	if env := os.Getenv(TokenEnv); env != "" && env == c.Token {
		out.Token = ""
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold a token.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
