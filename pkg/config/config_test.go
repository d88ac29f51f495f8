package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Version != CurrentConfigVersion {
		t.Errorf("Expected version %d, got %d", CurrentConfigVersion, cfg.Version)
	}
	if cfg.ReadBufferSize != 64*1024 {
		t.Errorf("Unexpected read buffer size %d", cfg.ReadBufferSize)
	}
	if cfg.ProgressDuration() != 2*time.Second {
		t.Errorf("Unexpected progress interval %s", cfg.ProgressDuration())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero version", func(c *Config) { c.Version = 0 }},
		{"zero buffer size", func(c *Config) { c.ReadBufferSize = 0 }},
		{"negative progress interval", func(c *Config) { c.ProgressInterval = -1 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tc := range cases {
		cfg := NewDefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockaudit.json")

	cfg := NewDefaultConfig()
	cfg.Update(func(c *Config) {
		c.CompressBroken = true
		c.LogLevel = "debug"
		c.ProgressInterval = 500
	})

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file left behind after save")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.CompressBroken {
		t.Error("CompressBroken not persisted")
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", loaded.LogLevel)
	}
	if loaded.ProgressDuration() != 500*time.Millisecond {
		t.Errorf("Unexpected progress interval %s", loaded.ProgressDuration())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad-values.json")
	content := `{"version": 1, "read_buffer_size": -5, "progress_interval_ms": 2000, "log_level": "info"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
