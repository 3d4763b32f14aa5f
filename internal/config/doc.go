// Package config loads, normalizes, and validates RunReel's TOML
// configuration. Defaults cover a working local install; provider
// credentials come from the config file or environment overrides.
package config
