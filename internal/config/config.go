// Package config loads the client configuration from its three layers:
// built-in defaults, the user's config file, and environment variables, in
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultServerURL       = "https://chat.devnexus.app"
	defaultLogLevel        = "info"
	defaultHistoryPageSize = 30

	configFileName = "config.toml"
)

type Config struct {
	// ServerURL is the base URL of the DevNexus server (socket endpoint).
	ServerURL string `toml:"server_url"`
	// APIBaseURL is the REST base URL. Defaults to ServerURL + "/api".
	APIBaseURL string `toml:"api_base_url"`
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// HistoryPageSize is the default page size for history loads.
	HistoryPageSize int `toml:"history_page_size"`

	// Home is the directory where DevNexus stores local state.
	Home string `toml:"-"`
	// AccessKey is the path to the access token file.
	AccessKey string `toml:"-"`
}

// Load loads configuration from defaults, ~/.devnexus/config.toml, and
// DEVNEXUS_* environment variables. A .env file in the working directory is
// honored for development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	home := os.Getenv("DEVNEXUS_HOME_DIR")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		home = filepath.Join(userHome, ".devnexus")
	}
	if err := os.MkdirAll(home, 0700); err != nil {
		return nil, fmt.Errorf("failed to create devnexus home: %w", err)
	}

	cfg := &Config{
		ServerURL:       defaultServerURL,
		LogLevel:        defaultLogLevel,
		HistoryPageSize: defaultHistoryPageSize,
		Home:            home,
		AccessKey:       filepath.Join(home, "access.key"),
	}

	if err := cfg.readFile(); err != nil {
		return nil, err
	}

	if v := os.Getenv("DEVNEXUS_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("DEVNEXUS_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("DEVNEXUS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DEVNEXUS_HISTORY_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DEVNEXUS_HISTORY_PAGE_SIZE %q", v)
		}
		cfg.HistoryPageSize = n
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = cfg.ServerURL + "/api"
	}
	return cfg, nil
}

// Path returns the location of the config file.
func (c *Config) Path() string {
	return filepath.Join(c.Home, configFileName)
}

func (c *Config) readFile() error {
	data, err := os.ReadFile(c.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Path(), err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.Path(), err)
	}
	return nil
}

// Save writes the persistable settings back to the config file.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Home, 0700); err != nil {
		return fmt.Errorf("failed to create devnexus home: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(c.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Path(), err)
	}
	return nil
}

// Set updates a named setting. Used by the config subcommand.
func (c *Config) Set(key, value string) error {
	switch key {
	case "server_url":
		c.ServerURL = value
	case "api_base_url":
		c.APIBaseURL = value
	case "log_level":
		c.LogLevel = value
	case "history_page_size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid history_page_size %q", value)
		}
		c.HistoryPageSize = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
