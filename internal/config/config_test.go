package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8790 {
		t.Errorf("expected default port 8790, got %d", cfg.Server.Port)
	}
	if cfg.Ingest.DebounceDuration() != 2*time.Second {
		t.Errorf("expected 2s debounce, got %v", cfg.Ingest.DebounceDuration())
	}
	if cfg.Analytics.WindowDuration() != 15*time.Minute {
		t.Errorf("expected 15m co-location window, got %v", cfg.Analytics.WindowDuration())
	}
	if cfg.Lookup.TimeoutDuration() != 5*time.Second {
		t.Errorf("expected 5s lookup timeout, got %v", cfg.Lookup.TimeoutDuration())
	}
	if !strings.Contains(cfg.Lookup.IMEIPrimaryURL, "%s") {
		t.Errorf("primary URL should carry an IMEI placeholder: %q", cfg.Lookup.IMEIPrimaryURL)
	}
}

func TestDurationFallbacks(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 2 * time.Second},
		{"garbage", 2 * time.Second},
		{"-1s", 2 * time.Second},
		{"500ms", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := (IngestConfig{Debounce: tt.in}).DebounceDuration(); got != tt.want {
				t.Errorf("DebounceDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadCreatesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CDRINTEL_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
	if _, err := os.Stat(filepath.Join(home, ".cdrintel", "config.toml")); err != nil {
		t.Errorf("config.toml was not persisted: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("CDRINTEL_HOME", t.TempDir())

	cfg := Default()
	cfg.Lang = "es"
	cfg.Server.Port = 9100
	cfg.Store.Path = "/data/cdr.duckdb"
	cfg.Analytics.ColocationWindow = "10m"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Lang != "es" || got.Server.Port != 9100 {
		t.Errorf("unexpected round trip: lang=%q port=%d", got.Lang, got.Server.Port)
	}
	if p, _ := got.StorePath(); p != "/data/cdr.duckdb" {
		t.Errorf("StorePath = %q", p)
	}
	if got.Analytics.WindowDuration() != 10*time.Minute {
		t.Errorf("window = %v", got.Analytics.WindowDuration())
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CDRINTEL_HOME", dir)

	content := "[server]\nport = 9200\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
	if cfg.Store.BatchSize != 64 {
		t.Errorf("batch size = %d, want default", cfg.Store.BatchSize)
	}
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CDRINTEL_HOME", dir)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[server\nport="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CDRINTEL_HOME", dir)
	t.Setenv("CDRINTEL_PORT", "9300")
	t.Setenv("CDRINTEL_TOKEN", "s3cret")
	t.Setenv("CDRINTEL_LANG", "es")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9300 || cfg.Server.Token != "s3cret" || cfg.Lang != "es" {
		t.Errorf("overrides not applied: %+v", cfg.Server)
	}

	drop, _ := cfg.DropDir()
	if drop != filepath.Join(dir, "drop") {
		t.Errorf("DropDir = %q", drop)
	}

	file, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if file.Server.Token != "" || file.Server.Port != 8790 {
		t.Errorf("LoadFile applied env overrides: %+v", file.Server)
	}

	t.Setenv("CDRINTEL_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid CDRINTEL_PORT")
	}
}

func TestOpenCellIDKeyFromEnv(t *testing.T) {
	t.Setenv("MY_OCID_KEY", "abc")
	c := LookupConfig{OpenCellIDKeyEnv: "MY_OCID_KEY"}
	if c.OpenCellIDKey() != "abc" {
		t.Errorf("OpenCellIDKey = %q", c.OpenCellIDKey())
	}
	if (LookupConfig{}).OpenCellIDKey() != "" {
		t.Error("expected empty key without env var name")
	}
}
