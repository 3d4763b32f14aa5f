// Package daemon hosts the long-running runreel process: a single-instance
// lock, the local HTTP API over the orchestrator and record store, a
// websocket progress feed, and the janitor that fails abandoned records.
package daemon
