// Package config provides application configuration management for cdrintel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the cdrintel configuration.
type Config struct {
	Lang      string          `toml:"lang,omitempty"` // UI language (e.g. "en", "es")
	LogLevel  string          `toml:"log_level"`      // debug, info, warn or error
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Ingest    IngestConfig    `toml:"ingest"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Lookup    LookupConfig    `toml:"lookup"`
	Geofence  GeofenceConfig  `toml:"geofence"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	Token string `toml:"token,omitempty"` // Bearer token; empty disables auth
	Quiet bool   `toml:"quiet"`           // Suppress HTTP access logs
}

// StoreConfig holds record store settings.
type StoreConfig struct {
	Path      string `toml:"path,omitempty"` // DuckDB file (default: <dir>/cdrintel.duckdb)
	BatchSize int    `toml:"batch_size"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	ChunkSize int    `toml:"chunk_size"`
	DropDir   string `toml:"drop_dir,omitempty"` // Watched directory (default: <dir>/drop)
	Watch     bool   `toml:"watch"`              // Watch the drop directory while serving
	Debounce  string `toml:"debounce"`           // e.g. "2s"
}

// AnalyticsConfig holds analyzer defaults.
type AnalyticsConfig struct {
	ColocationWindow string `toml:"colocation_window"` // e.g. "15m"
	HomeRegion       string `toml:"home_region"`       // ISO region of national numbers
}

// LookupConfig holds device and cell lookup settings.
type LookupConfig struct {
	Timeout          string `toml:"timeout"`
	IMEIPrimaryURL   string `toml:"imei_primary_url"`
	IMEISecondaryURL string `toml:"imei_secondary_url"`
	OpenCellIDURL    string `toml:"opencellid_url"`
	OpenCellIDKeyEnv string `toml:"opencellid_key_env"` // Env var holding the API key
	CellDB           string `toml:"cell_db,omitempty"`  // sqlite cell DB (default: <dir>/cells.db)
	EnrichOnIngest   bool   `toml:"enrich_on_ingest"`
}

// GeofenceConfig holds geofence settings.
type GeofenceConfig struct {
	File     string `toml:"file,omitempty"` // YAML imported at startup
	CacheTTL string `toml:"cache_ttl"`
}

// DebounceDuration returns the parsed debounce duration (default: 2s).
func (c IngestConfig) DebounceDuration() time.Duration {
	return parseDuration(c.Debounce, 2*time.Second)
}

// WindowDuration returns the parsed co-location window (default: 15m).
func (c AnalyticsConfig) WindowDuration() time.Duration {
	return parseDuration(c.ColocationWindow, 15*time.Minute)
}

// TimeoutDuration returns the parsed provider timeout (default: 5s).
func (c LookupConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 5*time.Second)
}

// OpenCellIDKey returns the API key from the configured environment
// variable.
func (c LookupConfig) OpenCellIDKey() string {
	if c.OpenCellIDKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.OpenCellIDKeyEnv)
}

// CacheTTLDuration returns the parsed geofence cache TTL (default: 30s).
func (c GeofenceConfig) CacheTTLDuration() time.Duration {
	return parseDuration(c.CacheTTL, 30*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// StorePath returns the record store path, defaulting into Dir.
func (c Config) StorePath() (string, error) {
	return inDir(c.Store.Path, "cdrintel.duckdb")
}

// DropDir returns the drop directory, defaulting into Dir.
func (c Config) DropDir() (string, error) {
	return inDir(c.Ingest.DropDir, "drop")
}

// CellDBPath returns the local cell database path, defaulting into Dir.
func (c Config) CellDBPath() (string, error) {
	return inDir(c.Lookup.CellDB, "cells.db")
}

func inDir(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Dir returns the path to the .cdrintel directory. CDRINTEL_HOME overrides
// the default under the user's home directory.
func Dir() (string, error) {
	if dir := os.Getenv("CDRINTEL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cdrintel"), nil
}

// Path returns the path to the main config file.
func Path() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from ~/.cdrintel/config.toml and applies
// CDRINTEL_* environment overrides. A missing file yields (and persists)
// the defaults.
func Load() (Config, error) {
	config, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadFile loads the configuration file without environment overrides.
// Use it when the result is written back with Save.
func LoadFile() (Config, error) {
	configPath, err := Path()
	if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing keys get correct values.
	config := Default()
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
		}
		// Persist the initial config; return defaults even if save fails.
		_ = Save(config)
	}
	return config, nil
}

// applyEnv overrides settings from CDRINTEL_* environment variables.
func applyEnv(c *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("CDRINTEL_LANG", &c.Lang)
	str("CDRINTEL_LOG_LEVEL", &c.LogLevel)
	str("CDRINTEL_HOST", &c.Server.Host)
	str("CDRINTEL_TOKEN", &c.Server.Token)
	str("CDRINTEL_STORE", &c.Store.Path)
	str("CDRINTEL_DROP_DIR", &c.Ingest.DropDir)
	str("CDRINTEL_COLOCATION_WINDOW", &c.Analytics.ColocationWindow)
	str("CDRINTEL_HOME_REGION", &c.Analytics.HomeRegion)
	str("CDRINTEL_CELL_DB", &c.Lookup.CellDB)
	str("CDRINTEL_GEOFENCE_FILE", &c.Geofence.File)

	if v, ok := os.LookupEnv("CDRINTEL_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid CDRINTEL_PORT %q", v)
		}
		c.Server.Port = port
	}
	return nil
}

// Default returns a default configuration with all defaults set.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8790,
		},
		Store: StoreConfig{
			BatchSize: 64,
		},
		Ingest: IngestConfig{
			ChunkSize: 1000,
			Debounce:  "2s",
		},
		Analytics: AnalyticsConfig{
			ColocationWindow: "15m",
			HomeRegion:       "IN",
		},
		Lookup: LookupConfig{
			Timeout:          "5s",
			IMEIPrimaryURL:   "https://imei.info/api/imei/%s",
			IMEISecondaryURL: "https://www.tacdb.info/api/v1/tac/%s",
			OpenCellIDURL:    "https://opencellid.org/cell/get",
			OpenCellIDKeyEnv: "OPENCELLID_API_KEY",
			EnrichOnIngest:   true,
		},
		Geofence: GeofenceConfig{
			CacheTTL: "30s",
		},
	}
}

// Save saves the configuration to ~/.cdrintel/config.toml.
func Save(config Config) error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(configPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(config); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
