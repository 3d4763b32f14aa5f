package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration consistency. Provider credentials are not
// required here so read-only commands work on an unconfigured install; the
// orchestrator enforces them before any network call.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unsupported value %q", c.Logging.Level))
	}

	if c.Generation.QueuedMaxSeconds < c.Generation.PollMaxSeconds {
		problems = append(problems, "generation.queued_max_seconds must be >= generation.poll_max_seconds")
	}
	if c.Generation.TimeoutSeconds < c.Generation.PollInitialSeconds {
		problems = append(problems, "generation.timeout_seconds must exceed the initial poll interval")
	}

	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			problems = append(problems, "archive.endpoint is required when archive.enabled is true")
		}
		if c.Archive.Bucket == "" {
			problems = append(problems, "archive.bucket is required when archive.enabled is true")
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// TavusConfigured reports whether provider credentials are present.
func (c *Config) TavusConfigured() bool {
	return strings.TrimSpace(c.Tavus.APIKey) != "" && strings.TrimSpace(c.Tavus.IdentityRef) != ""
}
