// Command runreel is the CLI entry point: one-shot generation, job record
// inspection, configuration helpers, and the foreground daemon.
package main
