package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for generation failure classification. Callers wrap raw
// errors with one of these so downstream code can branch with errors.Is
// instead of matching message text.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrAuth           = errors.New("auth error")
	ErrValidation     = errors.New("validation error")
	ErrSubmission     = errors.New("submission error")
	ErrPoll           = errors.New("poll error")
	ErrPollTimeout    = errors.New("poll timeout")
	ErrMissingResult  = errors.New("missing result")
	ErrProviderFailed = errors.New("provider reported failure")
	ErrConcurrent     = errors.New("concurrent generation")
	ErrCancelled      = errors.New("generation cancelled")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPoll
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the string classification persisted alongside failed job
// records and surfaced to the UI.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSubmission):
		return "submission"
	case errors.Is(err, ErrPollTimeout):
		return "poll_timeout"
	case errors.Is(err, ErrMissingResult):
		return "missing_result"
	case errors.Is(err, ErrProviderFailed):
		return "provider_failed"
	case errors.Is(err, ErrConcurrent):
		return "concurrent"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrPoll):
		return "poll"
	default:
		return "unknown"
	}
}

// Guidance returns the user-facing next step for a classified failure. The
// wording distinguishes conditions that resolve by waiting from attempts that
// are dead and need a fresh generation.
func Guidance(err error) string {
	switch {
	case errors.Is(err, ErrPollTimeout):
		return "The render service is taking longer than usual. Check the provider dashboard or retry during off-peak hours."
	case errors.Is(err, ErrConfiguration):
		return "Video generation is not configured. Set the provider API key and try again."
	case errors.Is(err, ErrAuth):
		return "Sign in before generating a video."
	case errors.Is(err, ErrConcurrent):
		return "A video is already being generated. Wait for it to finish or cancel it first."
	case errors.Is(err, ErrCancelled):
		return "Generation was cancelled. Start a new one whenever you like."
	default:
		return "This attempt failed. Start a new generation to retry."
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
