package tavus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://tavusapi.com/v2"
	defaultHTTPTimeout = 30 * time.Second
	apiKeyHeader       = "x-api-key"
)

// Client wraps the Tavus video generation API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the Tavus client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a Tavus API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// SubmitRequest is the exact wire payload for job submission. The provider
// rejects unrecognized fields with HTTP 400, so nothing beyond these may ever
// be serialized; optional fields are omitted rather than sent null.
type SubmitRequest struct {
	IdentityRef string `json:"identity_ref"`
	Script      string `json:"script"`
	Name        string `json:"name"`
	Fast        bool   `json:"fast,omitempty"`
}

// SubmitResponse captures the provider's acknowledgement of a new job.
type SubmitResponse struct {
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
}

// VideoStatus is the provider's view of a job returned by status polls.
type VideoStatus struct {
	VideoID      string `json:"video_id"`
	Status       string `json:"status"`
	HostedURL    string `json:"hosted_url,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// MediaURL returns the usable media URL, preferring the hosted variant.
func (v VideoStatus) MediaURL() string {
	if strings.TrimSpace(v.HostedURL) != "" {
		return v.HostedURL
	}
	return v.DownloadURL
}

// StatusError is returned when the provider responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("tavus: http %d", e.StatusCode)
	}
	return fmt.Sprintf("tavus: http %d: %s", e.StatusCode, body)
}

// Submit creates a new render job. No retries happen at this layer; retry
// policy belongs to the orchestrator.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var empty SubmitResponse
	if strings.TrimSpace(c.apiKey) == "" {
		return empty, errors.New("tavus submit: api key required")
	}
	if strings.TrimSpace(req.IdentityRef) == "" {
		return empty, errors.New("tavus submit: identity ref required")
	}
	if strings.TrimSpace(req.Script) == "" {
		return empty, errors.New("tavus submit: script required")
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return empty, fmt.Errorf("tavus submit: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("tavus submit: request: %w", err)
	}
	httpReq.Header.Set(apiKeyHeader, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, fmt.Errorf("tavus submit: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("tavus submit: read body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed SubmitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, fmt.Errorf("tavus submit: decode response: %w", err)
	}
	if strings.TrimSpace(parsed.VideoID) == "" {
		return empty, errors.New("tavus submit: response missing video_id")
	}
	return parsed, nil
}

// Status fetches the current state of a render job.
func (c *Client) Status(ctx context.Context, videoID string) (VideoStatus, error) {
	var empty VideoStatus
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return empty, errors.New("tavus status: video id required")
	}
	if strings.TrimSpace(c.apiKey) == "" {
		return empty, errors.New("tavus status: api key required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+videoID, nil)
	if err != nil {
		return empty, fmt.Errorf("tavus status: request: %w", err)
	}
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, fmt.Errorf("tavus status: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("tavus status: read body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed VideoStatus
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, fmt.Errorf("tavus status: decode response: %w", err)
	}
	parsed.Status = strings.ToLower(strings.TrimSpace(parsed.Status))
	return parsed, nil
}
