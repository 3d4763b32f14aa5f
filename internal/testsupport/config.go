package testsupport

import (
	"path/filepath"
	"testing"

	"runreel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults provider credentials so orchestration preconditions pass.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Owner.ID = "owner-test"
	cfg.Tavus.APIKey = "test-key"
	cfg.Tavus.IdentityRef = "replica-test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithoutTavusKey clears the provider API key on the test config.
func WithoutTavusKey() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tavus.APIKey = ""
	}
}

// WithOwner overrides the owner id on the test config.
func WithOwner(id string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Owner.ID = id
	}
}
