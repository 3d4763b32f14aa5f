// Package services provides shared helpers for external service
// integrations: the sentinel-error taxonomy used to classify generation
// failures, and context annotations that flow into structured logs.
//
// Provider-specific clients live in subpackages (see tavus).
package services
