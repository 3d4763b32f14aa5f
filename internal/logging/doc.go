// Package logging provides slog construction and shared helpers: a compact
// console handler for interactive use, JSON output for aggregation, attr
// shorthands, standardized field keys, and context-derived fields so record
// and phase identifiers follow every log line through the orchestration core.
package logging
