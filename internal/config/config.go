// Package config defines the RadioWatch configuration format and helpers for
// loading or saving it to disk.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// AppConfigSubdir is the OS-specific directory that holds the config file.
	AppConfigSubdir = "RadioWatch"
	// AppConfigName is the JSON file stored on disk.
	AppConfigName = "config.json"

	// DefaultVolume sets the safe initial playback level.
	DefaultVolume = 70
	// DefaultSuppressionWindowSec keeps repeated titles quiet for this long.
	DefaultSuppressionWindowSec = 45
	// DefaultLazyPollSec is the relaxed metadata poll cadence.
	DefaultLazyPollSec = 20
	// DefaultActivePollSec is the tightened cadence around track transitions.
	DefaultActivePollSec = 5
	// DefaultCommandLockMs is how long announcements yield to a fresh command.
	DefaultCommandLockMs = 1500
	// DefaultFetchTimeoutSec bounds every metadata fetch.
	DefaultFetchTimeoutSec = 5
)

// Config aggregates every user-facing preference persisted between sessions.
// Announcements are stored as a "muted" flag so the JSON zero value keeps
// them enabled.
type Config struct {
	Volume               int    `json:"volume"`
	AnnouncementsMuted   bool   `json:"announcementsMuted"`
	DefaultStation       string `json:"defaultStation,omitempty"`
	StationsFile         string `json:"stationsFile,omitempty"`
	SuppressionWindowSec int    `json:"suppressionWindowSec"`
	LazyPollSec          int    `json:"lazyPollSec"`
	ActivePollSec        int    `json:"activePollSec"`
	CommandLockMs        int    `json:"commandLockMs"`
	FetchTimeoutSec      int    `json:"fetchTimeoutSec"`
}

// ConfigDir resolves the writable directory that should contain the config file.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppConfigSubdir), nil
}

// ConfigPath is a helper that returns the full path to config.json.
func ConfigPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, AppConfigName), nil
}

// Load reads the config from the default location, creating it with defaults
// on first run.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := newDefaultConfig()
			// Try saving an initial config, but still return defaults even if it fails.
			_ = cfg.Save()
			return cfg, nil
		}
		return nil, err
	}
	return parse(b)
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(b)
}

func parse(b []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config parse error: %w", err)
	}
	cfg.applyRuntimeDefaults()
	return cfg, nil
}

// Save persists the configuration to disk, creating directories as needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// AnnouncementsEnabled reports whether track announcements should fire.
func (c *Config) AnnouncementsEnabled() bool { return !c.AnnouncementsMuted }

// SuppressionWindow returns the duplicate-suppression window as a duration.
func (c *Config) SuppressionWindow() time.Duration {
	return time.Duration(c.SuppressionWindowSec) * time.Second
}

// LazyPoll returns the relaxed polling interval.
func (c *Config) LazyPoll() time.Duration {
	return time.Duration(c.LazyPollSec) * time.Second
}

// ActivePoll returns the tightened polling interval.
func (c *Config) ActivePoll() time.Duration {
	return time.Duration(c.ActivePollSec) * time.Second
}

// CommandLockHold returns how long a command defers announcements.
func (c *Config) CommandLockHold() time.Duration {
	return time.Duration(c.CommandLockMs) * time.Millisecond
}

// FetchTimeout returns the per-fetch deadline for metadata sources.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// newDefaultConfig builds an in-memory config populated with safe defaults.
func newDefaultConfig() *Config {
	cfg := &Config{Volume: DefaultVolume}
	cfg.applyRuntimeDefaults()
	return cfg
}

// applyRuntimeDefaults normalizes config values after a load or when defaults
// are constructed, so downstream components always receive sane inputs.
func (c *Config) applyRuntimeDefaults() {
	if c.Volume < 0 || c.Volume > 100 {
		c.Volume = DefaultVolume
	}
	if c.SuppressionWindowSec <= 0 {
		c.SuppressionWindowSec = DefaultSuppressionWindowSec
	}
	if c.LazyPollSec <= 0 {
		c.LazyPollSec = DefaultLazyPollSec
	}
	if c.ActivePollSec <= 0 {
		c.ActivePollSec = DefaultActivePollSec
	}
	if c.ActivePollSec > c.LazyPollSec {
		c.ActivePollSec = c.LazyPollSec
	}
	if c.CommandLockMs <= 0 {
		c.CommandLockMs = DefaultCommandLockMs
	}
	if c.FetchTimeoutSec <= 0 {
		c.FetchTimeoutSec = DefaultFetchTimeoutSec
	}
}
