package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Owner identifies the authenticated account job records belong to.
type Owner struct {
	ID string `toml:"id"`
}

// Tavus contains configuration for the AI video rendering provider.
type Tavus struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	IdentityRef    string `toml:"identity_ref"`
	FastRender     bool   `toml:"fast_render"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Generation contains poll policy and progress heuristics for the
// orchestration core.
type Generation struct {
	PollInitialSeconds       int     `toml:"poll_initial_seconds"`
	PollBackoffFactor        float64 `toml:"poll_backoff_factor"`
	PollMaxSeconds           int     `toml:"poll_max_seconds"`
	QueuedIntervalMultiplier float64 `toml:"queued_interval_multiplier"`
	QueuedMaxSeconds         int     `toml:"queued_max_seconds"`
	TimeoutSeconds           int     `toml:"timeout_seconds"`
	MaxPollAttempts          int     `toml:"max_poll_attempts"`
	PeakThresholdSeconds     int     `toml:"peak_threshold_seconds"`
}

// Archive contains configuration for mirroring completed renders into
// S3-compatible object storage. Provider hosted URLs expire, so an archive
// keeps a durable copy.
type Archive struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Janitor contains configuration for the stale-record sweeper.
type Janitor struct {
	Schedule          string `toml:"schedule"`
	StaleAfterSeconds int    `toml:"stale_after_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for RunReel.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Owner: authenticated account identifier
//   - Tavus: video rendering provider credentials and defaults
//   - Generation: poll policy, timeout ceiling, peak-load heuristic
//   - Archive: S3-compatible mirror of completed renders
//   - Notifications: ntfy push notification settings
//   - Janitor: stale record sweep schedule
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Owner         Owner         `toml:"owner"`
	Tavus         Tavus         `toml:"tavus"`
	Generation    Generation    `toml:"generation"`
	Archive       Archive       `toml:"archive"`
	Notifications Notifications `toml:"notifications"`
	Janitor       Janitor       `toml:"janitor"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/runreel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. Environment overrides
// are applied after the file so secrets can stay out of it.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv("RUNREEL_TAVUS_API_KEY")); key != "" {
		cfg.Tavus.APIKey = key
	}
	if owner := strings.TrimSpace(os.Getenv("RUNREEL_OWNER_ID")); owner != "" {
		cfg.Owner.ID = owner
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("runreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for store and daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to the given path,
// refusing to clobber an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
