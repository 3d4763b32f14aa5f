// Package generation drives achievement videos from submission to a terminal
// outcome. The Orchestrator owns one session at a time: it persists phase
// boundaries to the record store, polls the provider with adaptive backoff,
// and projects heuristic progress for the UI. The durable record, not the
// in-memory session, is the source of truth after a crash.
package generation
