package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"runreel/internal/config"
)

const userAgent = "RunReel/0.1.0"

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	NotifyGenerationCompleted(ctx context.Context, subjectID, mediaURL string) error
	NotifyGenerationFailed(ctx context.Context, subjectID, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (s *ntfyService) NotifyGenerationCompleted(ctx context.Context, subjectID, mediaURL string) error {
	if !s.completion {
		return nil
	}
	message := fmt.Sprintf("Your achievement video for %s is ready: %s", subjectID, mediaURL)
	return s.publish(ctx, "Video ready", message, "tada")
}

func (s *ntfyService) NotifyGenerationFailed(ctx context.Context, subjectID, message string) error {
	if !s.errors {
		return nil
	}
	body := fmt.Sprintf("Video generation for %s failed: %s", subjectID, message)
	return s.publish(ctx, "Video generation failed", body, "warning")
}

func (s *ntfyService) TestNotification(ctx context.Context) error {
	return s.publish(ctx, "RunReel test", "Notifications are configured correctly.", "white_check_mark")
}

func (s *ntfyService) publish(ctx context.Context, title, message, tags string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Title", title)
	if tags != "" {
		req.Header.Set("Tags", tags)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification rejected: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyGenerationCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyGenerationFailed(context.Context, string, string) error    { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
