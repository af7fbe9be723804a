// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppName is used for config and data directory names.
const AppName = "niriurgent"

// Default configuration values.
const (
	DefaultAncestryTimeout    = 250 * time.Millisecond
	DefaultMaxAncestryDepth   = 64
	DefaultLookupTimeout      = 500 * time.Millisecond
	DefaultCacheTTL           = 24 * time.Hour
	DefaultCacheSweepInterval = 60 * time.Second
	DefaultMaxTooltipEntries  = 10
	DefaultLogKeep            = 1000
)

// Config represents the niriurgent configuration.
type Config struct {
	Notifications NotificationConfig `toml:"notifications"`
	Attribution   AttributionConfig  `toml:"attribution"`
	Windows       WindowsConfig      `toml:"windows"`
	Status        StatusConfig       `toml:"status"`
	Log           LogConfig          `toml:"log"`
}

// NotificationConfig controls how notifications are matched to windows.
type NotificationConfig struct {
	Enabled          bool              `toml:"enabled"`            // Listen for notifications at all
	UseDesktopEntry  bool              `toml:"use_desktop_entry"`  // Fall back to desktop-entry matching
	UseFuzzyMatching bool              `toml:"use_fuzzy_matching"` // Case-insensitive and suffix matches
	MapAppIDs        map[string]string `toml:"map_app_ids"`        // desktop-entry -> app_id remapping
}

// AttributionConfig bounds bus and process lookups.
type AttributionConfig struct {
	AncestryTimeout    Duration `toml:"ancestry_timeout"`     // Whole parent walk per notification
	MaxAncestryDepth   int      `toml:"max_ancestry_depth"`   // Parents visited per notification
	LookupTimeout      Duration `toml:"lookup_timeout"`       // Single bus daemon call
	CacheTTL           Duration `toml:"cache_ttl"`            // Sliding expiry of sender -> pid entries
	CacheSweepInterval Duration `toml:"cache_sweep_interval"` // Purge cadence for expired entries
}

// WindowsConfig controls which windows can be marked.
type WindowsConfig struct {
	IgnoreAppIDs   []string `toml:"ignore_app_ids"`   // Never marked
	ShowAllOutputs bool     `toml:"show_all_outputs"` // Track windows on every output
	Output         string   `toml:"output"`           // Output to track when show_all_outputs is false
	ClearOnFocus   bool     `toml:"clear_on_focus"`   // Focusing a window acknowledges it
}

// StatusConfig controls the Waybar status line.
type StatusConfig struct {
	Stdout            bool `toml:"stdout"`              // Print a JSON line per change
	MaxTooltipEntries int  `toml:"max_tooltip_entries"` // Urgent windows listed in the tooltip
}

// LogConfig controls the attribution log.
type LogConfig struct {
	Enabled bool `toml:"enabled"`
	Keep    int  `toml:"keep"` // Records kept when compacting (0 = unlimited)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Notifications: NotificationConfig{
			Enabled:          true,
			UseDesktopEntry:  true,
			UseFuzzyMatching: false,
			MapAppIDs:        make(map[string]string),
		},
		Attribution: AttributionConfig{
			AncestryTimeout:    Duration(DefaultAncestryTimeout),
			MaxAncestryDepth:   DefaultMaxAncestryDepth,
			LookupTimeout:      Duration(DefaultLookupTimeout),
			CacheTTL:           Duration(DefaultCacheTTL),
			CacheSweepInterval: Duration(DefaultCacheSweepInterval),
		},
		Windows: WindowsConfig{
			IgnoreAppIDs:   []string{},
			ShowAllOutputs: true,
			ClearOnFocus:   true,
		},
		Status: StatusConfig{
			Stdout:            true,
			MaxTooltipEntries: DefaultMaxTooltipEntries,
		},
		Log: LogConfig{
			Enabled: true,
			Keep:    DefaultLogKeep,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName, "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppName)
}

// AttributionLogPath returns the path to the attribution JSONL log.
func AttributionLogPath() string {
	return filepath.Join(DataPath(), "attributions.jsonl")
}

// StatePath returns the path to the shared urgent-state file.
func StatePath() string {
	return filepath.Join(DataPath(), "state.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Start with defaults
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Attribution.AncestryTimeout.Duration() <= 0 {
		return fmt.Errorf("ancestry_timeout must be positive, got %s", c.Attribution.AncestryTimeout.Duration())
	}
	if c.Attribution.LookupTimeout.Duration() <= 0 {
		return fmt.Errorf("lookup_timeout must be positive, got %s", c.Attribution.LookupTimeout.Duration())
	}
	if c.Attribution.MaxAncestryDepth < 1 || c.Attribution.MaxAncestryDepth > 4096 {
		return fmt.Errorf("max_ancestry_depth must be between 1 and 4096, got %d", c.Attribution.MaxAncestryDepth)
	}
	if c.Attribution.CacheTTL.Duration() < time.Second {
		return fmt.Errorf("cache_ttl must be at least 1s, got %s", c.Attribution.CacheTTL.Duration())
	}
	if c.Attribution.CacheSweepInterval.Duration() < time.Second {
		return fmt.Errorf("cache_sweep_interval must be at least 1s, got %s", c.Attribution.CacheSweepInterval.Duration())
	}
	if c.Status.MaxTooltipEntries < 0 {
		return fmt.Errorf("max_tooltip_entries must not be negative, got %d", c.Status.MaxTooltipEntries)
	}
	if c.Log.Keep < 0 {
		return fmt.Errorf("log keep must not be negative, got %d", c.Log.Keep)
	}
	for entry, appID := range c.Notifications.MapAppIDs {
		if entry == "" || appID == "" {
			return fmt.Errorf("map_app_ids entries must be non-empty, got %q = %q", entry, appID)
		}
	}
	return nil
}

// MapAppID returns the configured app_id for a desktop entry, if any.
func (c *NotificationConfig) MapAppID(desktopEntry string) (string, bool) {
	appID, ok := c.MapAppIDs[desktopEntry]
	return appID, ok
}

// ShouldIgnore reports whether windows of appID are never marked.
func (c *WindowsConfig) ShouldIgnore(appID string) bool {
	for _, id := range c.IgnoreAppIDs {
		if id == appID {
			return true
		}
	}
	return false
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}
