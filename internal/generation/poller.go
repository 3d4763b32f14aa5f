package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"runreel/internal/logging"
	"runreel/internal/services/tavus"
)

// StatusClient is the subset of the provider client the poller needs.
type StatusClient interface {
	Status(ctx context.Context, videoID string) (tavus.VideoStatus, error)
}

// Observation reports a single non-terminal poll to the orchestrator so it
// can update session state and progress.
type Observation struct {
	Attempt         int
	Phase           Phase
	Elapsed         time.Duration
	QueuePhaseEnded bool
	QueueDuration   time.Duration
}

// TerminalStatus is the successful outcome of a poll loop.
type TerminalStatus struct {
	MediaURL      string
	ThumbnailURL  string
	Attempts      int
	QueueDuration time.Duration
}

// PollTimeoutError reports that the cumulative wait exceeded the hard ceiling
// or the attempt ceiling. It is a caller-visible condition distinct from the
// provider reporting failure.
type PollTimeoutError struct {
	ElapsedSeconds int
	Attempts       int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("render not finished after %ds and %d status checks", e.ElapsedSeconds, e.Attempts)
}

// ProviderFailureError reports that the provider returned a terminal failure
// status for the job.
type ProviderFailureError struct {
	Status string
}

func (e *ProviderFailureError) Error() string {
	return fmt.Sprintf("provider reported terminal status %q", e.Status)
}

// ErrNoMediaURL indicates the provider reported completion without a usable
// media URL. Treated as failure, never success.
var ErrNoMediaURL = errors.New("provider reported completion without a media url")

// Poller repeatedly queries the provider for job status until a terminal
// outcome, widening its interval adaptively.
type Poller struct {
	client StatusClient
	policy PollPolicy
	logger *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewPoller constructs a poller. A nil logger disables logging.
func NewPoller(client StatusClient, policy PollPolicy, logger *slog.Logger) *Poller {
	return &Poller{
		client: client,
		policy: policy.normalized(),
		logger: logging.NewComponentLogger(logger, "poller"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollUntilTerminal drives the poll loop for a submitted job. startedAt is
// the submission time; the wall-clock timeout is measured against it at the
// top of each iteration, so a restart-resumed job inherits the time already
// spent. Transient fetch errors are swallowed and retried on schedule; only
// the final allowed attempt's error surfaces. observe may be nil.
func (p *Poller) PollUntilTerminal(ctx context.Context, videoID string, startedAt time.Time, observe func(Observation)) (TerminalStatus, error) {
	var empty TerminalStatus
	phase := PhaseQueued
	interval := p.policy.InitialInterval
	var queueDuration time.Duration

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return empty, err
		}

		elapsed := p.now().Sub(startedAt)
		if elapsed >= p.policy.Timeout || attempt > p.policy.MaxAttempts {
			return empty, &PollTimeoutError{
				ElapsedSeconds: int(elapsed.Seconds()),
				Attempts:       attempt - 1,
			}
		}

		status, err := p.client.Status(ctx, videoID)
		if err != nil {
			if attempt >= p.policy.MaxAttempts {
				return empty, err
			}
			p.logger.Debug(
				"status check failed, will retry",
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			if err := p.sleep(ctx, p.policy.IntervalFor(interval, phase)); err != nil {
				return empty, err
			}
			interval = p.policy.Advance(interval)
			continue
		}

		switch classifyStatus(status.Status) {
		case statusCompleted:
			if status.MediaURL() == "" {
				return empty, ErrNoMediaURL
			}
			return TerminalStatus{
				MediaURL:      status.MediaURL(),
				ThumbnailURL:  status.ThumbnailURL,
				Attempts:      attempt,
				QueueDuration: queueDuration,
			}, nil
		case statusFailed:
			return empty, &ProviderFailureError{Status: status.Status}
		case statusProcessing:
			if phase == PhaseQueued {
				// First processing poll ends the queue phase; record how
				// long the job sat waiting separately from total elapsed.
				queueDuration = elapsed
				phase = PhaseProcessing
				if observe != nil {
					observe(Observation{
						Attempt:         attempt,
						Phase:           phase,
						Elapsed:         elapsed,
						QueuePhaseEnded: true,
						QueueDuration:   queueDuration,
					})
				}
			} else if observe != nil {
				observe(Observation{Attempt: attempt, Phase: phase, Elapsed: elapsed})
			}
		case statusQueued:
			if observe != nil {
				observe(Observation{Attempt: attempt, Phase: phase, Elapsed: elapsed})
			}
		}

		if err := p.sleep(ctx, p.policy.IntervalFor(interval, phase)); err != nil {
			return empty, err
		}
		interval = p.policy.Advance(interval)
	}
}

type statusClass int

const (
	statusQueued statusClass = iota
	statusProcessing
	statusCompleted
	statusFailed
)

func classifyStatus(value string) statusClass {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "queued", "pending":
		return statusQueued
	case "completed", "ready":
		return statusCompleted
	case "failed", "error":
		return statusFailed
	default:
		// Unknown statuses are treated as still rendering rather than
		// failing a job the provider may yet finish.
		return statusProcessing
	}
}
