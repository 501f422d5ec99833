// ABOUTME: healthdash configuration management with backend selection.
// ABOUTME: Reads TOML from the XDG config dir and provides the storage backend factory.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/harperreed/healthdash/internal/render"
	"github.com/harperreed/healthdash/internal/storage"
)

// Config stores healthdash configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite" (default) or "badger".
	Backend string `toml:"backend,omitempty"`

	// DataDir is the root directory for data storage.
	// SQLite puts healthdash.db here. Badger uses a badger/ subdirectory.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/healthdash.
	DataDir string `toml:"data_dir,omitempty"`

	// Subject is the default subject for imports and dashboards.
	Subject string `toml:"subject,omitempty"`

	Log       LogConfig          `toml:"log"`
	Server    ServerConfig       `toml:"server"`
	Fit       FitConfig          `toml:"fit"`
	Dashboard DashboardConfig    `toml:"dashboard"`
	Charts    []render.ChartSpec `toml:"charts,omitempty"`
}

type LogConfig struct {
	Level  string `toml:"level,omitempty"`
	File   string `toml:"file,omitempty"`
	JSON   bool   `toml:"json,omitempty"`
	Stdout bool   `toml:"stdout,omitempty"`
}

type ServerConfig struct {
	Addr string `toml:"addr,omitempty"`
}

// FitConfig points at the OAuth client secret and cached token for the fitness API.
type FitConfig struct {
	ClientSecret string `toml:"client_secret,omitempty"`
	TokenFile    string `toml:"token_file,omitempty"`
	Timeout      string `toml:"timeout,omitempty"`
	WindowDays   int    `toml:"window_days,omitempty"`
	BaseURL      string `toml:"base_url,omitempty"`
}

type DashboardConfig struct {
	Title   string `toml:"title,omitempty"`
	Columns int    `toml:"columns,omitempty"`
	Height  int    `toml:"height,omitempty"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return "sqlite"
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetSubject returns the default subject, falling back to $USER.
func (c *Config) GetSubject() string {
	if c.Subject != "" {
		return c.Subject
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "me"
}

// GetServerAddr returns the HTTP listen address.
func (c *Config) GetServerAddr() string {
	if c.Server.Addr == "" {
		return "127.0.0.1:8080"
	}
	return c.Server.Addr
}

// GetFitTimeout parses the fitness client timeout, defaulting to 30s.
func (c *Config) GetFitTimeout() (time.Duration, error) {
	if c.Fit.Timeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Fit.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse fit.timeout: %w", err)
	}
	return d, nil
}

// GetFitWindowDays returns how many days each aggregate request covers.
func (c *Config) GetFitWindowDays() int {
	if c.Fit.WindowDays <= 0 {
		return 30
	}
	return c.Fit.WindowDays
}

// GetClientSecretPath returns the OAuth client secret file location.
func (c *Config) GetClientSecretPath() string {
	if c.Fit.ClientSecret == "" {
		return filepath.Join(configDir(), "client_secret.json")
	}
	return ExpandPath(c.Fit.ClientSecret)
}

// GetTokenPath returns where the OAuth token is cached.
func (c *Config) GetTokenPath() string {
	if c.Fit.TokenFile == "" {
		return filepath.Join(c.GetDataDir(), "fit_token.json")
	}
	return ExpandPath(c.Fit.TokenFile)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage creates a Repository implementation based on the configured backend.
func (c *Config) OpenStorage() (storage.Repository, error) {
	return OpenBackend(c.GetBackend(), c.GetDataDir())
}

// OpenBackend opens the named backend rooted at dataDir.
func OpenBackend(backend, dataDir string) (storage.Repository, error) {
	switch backend {
	case "sqlite":
		return storage.Open(filepath.Join(dataDir, "healthdash.db"))
	case "badger":
		return storage.OpenBadger(storage.BadgerConfig{Path: filepath.Join(dataDir, "badger")})
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, _ := os.UserHomeDir()
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "healthdash")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// Load reads config from disk. A missing file yields defaults.
func Load() (*Config, error) {
	return LoadFile(GetConfigPath())
}

// LoadFile reads config from path.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for i, chart := range cfg.Charts {
		if err := chart.Validate(); err != nil {
			return nil, fmt.Errorf("config chart %d: %w", i, err)
		}
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}
