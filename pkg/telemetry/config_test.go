package telemetry

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "blockaudit" {
		t.Errorf("Unexpected service name %q", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("Telemetry should be disabled by default")
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
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }},
		{"sample rate above one", func(c *Config) { c.SampleRate = 1.1 }},
		{"zero export interval", func(c *Config) { c.ExportInterval = 0 }},
		{"zero batch timeout", func(c *Config) { c.BatchTimeout = 0 }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BLOCKAUDIT_TELEMETRY_SERVICE_NAME", "blockaudit-nightly")
	t.Setenv("BLOCKAUDIT_TELEMETRY_ENABLED", "true")
	t.Setenv("BLOCKAUDIT_TELEMETRY_SAMPLE_RATE", "0.25")
	t.Setenv("BLOCKAUDIT_TELEMETRY_EXPORT_INTERVAL", "30s")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.ServiceName != "blockaudit-nightly" {
		t.Errorf("Service name override not applied: %q", cfg.ServiceName)
	}
	if !cfg.Enabled {
		t.Error("Enabled override not applied")
	}
	if cfg.SampleRate != 0.25 {
		t.Errorf("Sample rate override not applied: %f", cfg.SampleRate)
	}
	if cfg.ExportInterval != 30*time.Second {
		t.Errorf("Export interval override not applied: %s", cfg.ExportInterval)
	}
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("BLOCKAUDIT_TELEMETRY_ENABLED", "not-a-bool")
	t.Setenv("BLOCKAUDIT_TELEMETRY_SAMPLE_RATE", "not-a-float")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.Enabled {
		t.Error("Unparseable enabled value should keep the default")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("Unparseable sample rate should keep the default: %f", cfg.SampleRate)
	}
}
