// Package config loads the monitor CLI configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/unkn0wn-root/freshness"
	"github.com/unkn0wn-root/freshness/chartsync"
)

// Config holds the resolved monitor settings.
type Config struct {
	APIBase         string
	CacheExpiry     time.Duration
	CleanupInterval time.Duration
	GraceWindow     time.Duration
	PollInterval    time.Duration
	SyncDebounce    time.Duration
	SyncSettle      time.Duration
	LogLevel        string
	LogFormat       string // "console" or "json"
}

const (
	DefaultPath = "~/.config/monitor/config.toml"

	defaultAPIBase      = "127.0.0.1:8080"
	defaultPollInterval = 30 * time.Second
	defaultLogLevel     = "info"
	defaultLogFormat    = "console"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBase:         defaultAPIBase,
		CacheExpiry:     freshness.DefaultExpiry,
		CleanupInterval: freshness.DefaultCleanupInterval,
		GraceWindow:     freshness.DefaultGraceWindow,
		PollInterval:    defaultPollInterval,
		SyncDebounce:    chartsync.DefaultDebounce,
		SyncSettle:      chartsync.DefaultSettle,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
	}
}

// Settings returns the cache settings for freshness.Options.Defaults.
func (c Config) Settings() freshness.Settings {
	return freshness.Settings{
		Expiry:          c.CacheExpiry,
		CleanupInterval: c.CleanupInterval,
		GraceWindow:     c.GraceWindow,
	}
}

type rawConfig struct {
	APIBase         string `toml:"api_base"`
	CacheExpiry     string `toml:"cache_expiry"`
	CleanupInterval string `toml:"cleanup_interval"`
	GraceWindow     string `toml:"grace_window"`
	PollInterval    string `toml:"poll_interval"`
	SyncDebounce    string `toml:"sync_debounce"`
	SyncSettle      string `toml:"sync_settle"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
}

// Load reads path (DefaultPath when empty), falling back to defaults when the
// file is missing. Unset keys keep their defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse decodes TOML from r over the defaults.
func Parse(r io.Reader) (Config, error) {
	bytes, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if v := strings.TrimSpace(raw.APIBase); v != "" {
		cfg.APIBase = v
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"cache_expiry", raw.CacheExpiry, &cfg.CacheExpiry},
		{"cleanup_interval", raw.CleanupInterval, &cfg.CleanupInterval},
		{"grace_window", raw.GraceWindow, &cfg.GraceWindow},
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
		{"sync_debounce", raw.SyncDebounce, &cfg.SyncDebounce},
		{"sync_settle", raw.SyncSettle, &cfg.SyncSettle},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.raw, d.dst); err != nil {
			return Config{}, err
		}
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}
	switch v := strings.ToLower(strings.TrimSpace(raw.LogFormat)); v {
	case "":
	case "console", "json":
		cfg.LogFormat = v
	default:
		return Config{}, fmt.Errorf("log_format: unsupported value %q", raw.LogFormat)
	}
	return cfg, nil
}

func parseDuration(key, raw string, dst *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, raw)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
