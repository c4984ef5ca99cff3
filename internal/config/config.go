package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "shelf"

type Config struct {
	Database string   `koanf:"database"` // path to the library database
	Folders  []string `koanf:"folders"`  // folders registered on first run

	Scan       ScanConfig       `koanf:"scan"`
	Duplicates DuplicatesConfig `koanf:"duplicates"`
	Artwork    ArtworkConfig    `koanf:"artwork"`
	Log        LogConfig        `koanf:"log"`
}

// ScanConfig holds library scanning settings.
type ScanConfig struct {
	BatchSize             int      `koanf:"batch_size"`             // files per write transaction (10-500, default: 50)
	Workers               int      `koanf:"workers"`                // concurrent metadata reads (default: 8)
	AutoScan              string   `koanf:"auto_scan"`              // "never", "launch_once", "launch_always", "periodic"
	IntervalMinutes       int      `koanf:"interval_minutes"`       // periodic scan interval (default: 60)
	Watch                 bool     `koanf:"watch"`                  // rescan folders on filesystem changes
	ProgressIntervalMs    int      `koanf:"progress_interval_ms"`   // minimum delay between progress events (default: 500)
	SupportedExtensions   []string `koanf:"supported_extensions"`   // overrides the default supported set
	UnsupportedExtensions []string `koanf:"unsupported_extensions"` // overrides the default unsupported set
}

// DuplicatesConfig holds duplicate detection settings.
type DuplicatesConfig struct {
	DurationToleranceSeconds float64 `koanf:"duration_tolerance_seconds"` // default: 2
}

// ArtworkConfig holds aggregate artwork settings.
type ArtworkConfig struct {
	MaxSize int `koanf:"max_size"` // longest edge in pixels (default: 600)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `koanf:"level"` // "debug", "info", "warn", "error"
	File       string `koanf:"file"`  // empty means stderr only
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// AutoScan policies.
const (
	AutoScanNever        = "never"
	AutoScanLaunchOnce   = "launch_once"
	AutoScanLaunchAlways = "launch_always"
	AutoScanPeriodic     = "periodic"
)

// Default supported and unsupported audio extensions.
var (
	DefaultSupportedExtensions = []string{
		"mp3", "m4a", "m4b", "aac", "alac", "flac", "ogg", "oga", "opus", "wav", "aif", "aiff",
	}
	DefaultUnsupportedExtensions = []string{
		"wma", "ape", "wv", "mpc", "dsf", "dff", "ra", "rm", "mid", "midi", "ac3", "dts", "amr",
	}
)

func Load() (*Config, error) {
	return LoadFrom(getConfigPaths())
}

// LoadFrom loads configuration from the given files in order (last wins).
// Missing files are ignored.
func LoadFrom(configPaths []string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.Database == "" {
		dbPath, err := defaultDatabasePath()
		if err != nil {
			return nil, err
		}
		cfg.Database = dbPath
	}
	cfg.Database = expandPath(cfg.Database)

	for i, folder := range cfg.Folders {
		cfg.Folders[i] = expandPath(folder)
	}

	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}

	cfg.Scan.AutoScan = strings.ToLower(strings.TrimSpace(cfg.Scan.AutoScan))

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. $XDG_CONFIG_HOME/shelf/config.toml
	paths = append(paths, filepath.Join(xdg.ConfigHome, appName, "config.toml"))

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func defaultDatabasePath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, "library.db"))
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetScanConfig returns the scan configuration with defaults applied.
func (c *Config) GetScanConfig() ScanConfig {
	cfg := c.Scan

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	cfg.BatchSize = min(max(cfg.BatchSize, 10), 500)
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	switch cfg.AutoScan {
	case AutoScanNever, AutoScanLaunchOnce, AutoScanLaunchAlways, AutoScanPeriodic:
	default:
		cfg.AutoScan = AutoScanLaunchOnce
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 60
	}
	if cfg.ProgressIntervalMs <= 0 {
		cfg.ProgressIntervalMs = 500
	}
	if len(cfg.SupportedExtensions) == 0 {
		cfg.SupportedExtensions = DefaultSupportedExtensions
	}
	if len(cfg.UnsupportedExtensions) == 0 {
		cfg.UnsupportedExtensions = DefaultUnsupportedExtensions
	}

	return cfg
}

// Interval returns the periodic scan interval.
func (s ScanConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// ProgressInterval returns the minimum delay between progress events.
func (s ScanConfig) ProgressInterval() time.Duration {
	return time.Duration(s.ProgressIntervalMs) * time.Millisecond
}

// DurationTolerance returns the duplicate duration tolerance with defaults applied.
func (c *Config) DurationTolerance() time.Duration {
	secs := c.Duplicates.DurationToleranceSeconds
	if secs <= 0 {
		secs = 2
	}
	return time.Duration(secs * float64(time.Second))
}

// ArtworkMaxSize returns the aggregate artwork edge size with defaults applied.
func (c *Config) ArtworkMaxSize() int {
	if c.Artwork.MaxSize <= 0 {
		return 600
	}
	return c.Artwork.MaxSize
}

// GetLogConfig returns the log configuration with defaults applied.
func (c *Config) GetLogConfig() LogConfig {
	cfg := c.Log
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 28
	}
	return cfg
}
