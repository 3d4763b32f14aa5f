package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"runreel/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Generation.PollInitialSeconds != 2 || cfg.Generation.TimeoutSeconds != 600 {
		t.Fatalf("unexpected generation defaults: %+v", cfg.Generation)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging default: %+v", cfg.Logging)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[owner]
id = "  owner-42  "

[tavus]
api_key = "key-123"
identity_ref = "replica-7"
base_url = "https://example.test/v2/"

[generation]
poll_initial_seconds = 3
poll_max_seconds = 8
queued_max_seconds = 4

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config, got exists=%v path=%q", exists, resolved)
	}
	if cfg.Owner.ID != "owner-42" {
		t.Fatalf("owner id not trimmed: %q", cfg.Owner.ID)
	}
	if cfg.Tavus.BaseURL != "https://example.test/v2" {
		t.Fatalf("base url not normalized: %q", cfg.Tavus.BaseURL)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not lowercased: %+v", cfg.Logging)
	}
	// Queued cap below the processing cap would invert the backoff ordering.
	if cfg.Generation.QueuedMaxSeconds < cfg.Generation.PollMaxSeconds {
		t.Fatalf("queued cap %d below processing cap %d", cfg.Generation.QueuedMaxSeconds, cfg.Generation.PollMaxSeconds)
	}
	if !cfg.TavusConfigured() {
		t.Fatal("expected TavusConfigured with key and identity set")
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format validation error, got %v", err)
	}
}

func TestLoadRejectsArchiveWithoutEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[archive]\nenabled = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "archive.endpoint") {
		t.Fatalf("expected archive validation error, got %v", err)
	}
}

func TestEnvOverridesApplied(t *testing.T) {
	t.Setenv("RUNREEL_TAVUS_API_KEY", "env-key")
	t.Setenv("RUNREEL_OWNER_ID", "env-owner")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tavus.APIKey != "env-key" || cfg.Owner.ID != "env-owner" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Tavus, cfg.Owner)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error writing over existing config")
	}
}
