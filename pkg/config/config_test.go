package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Expected default config, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`logger:
  level: debug
  json: true
http-server:
  port: 9090
store:
  path: /var/lib/lsmdb
  flush_threshold: 4096
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Fatalf("unexpected logger config %+v", cfg.Logger)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadHeaderTimeout != Default().Server.ReadHeaderTimeout {
		t.Fatalf("Expected unset timeout to keep its default, got %v", cfg.Server.ReadHeaderTimeout)
	}
	if cfg.Store.Path != "/var/lib/lsmdb" || cfg.Store.FlushThresholdBytes != 4096 {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("store:\n  flush_threshold: 0\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Expected validation error for zero threshold")
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Logger.Level = "loud"
	cfg.Server.Port = 0
	cfg.Store.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok || len(joined.Unwrap()) != 3 {
		t.Fatalf("Expected 3 joined errors, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q): expected %v, got %v (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("Expected error for unknown level")
	}
}
