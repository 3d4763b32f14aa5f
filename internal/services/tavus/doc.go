// Package tavus provides the HTTP client for the AI video rendering
// provider: job submission and status polling. The wire payload is kept
// minimal because the provider rejects unrecognized or null fields.
package tavus
