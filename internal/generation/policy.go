package generation

import (
	"time"

	"runreel/internal/config"
)

// PollPolicy bounds the status polling loop: adaptive intervals, a hard
// wall-clock ceiling, and a secondary attempt ceiling.
type PollPolicy struct {
	InitialInterval   time.Duration
	BackoffFactor     float64
	MaxInterval       time.Duration
	QueuedMultiplier  float64
	QueuedMaxInterval time.Duration
	Timeout           time.Duration
	MaxAttempts       int
}

// DefaultPollPolicy returns the policy used when no configuration overrides
// are present.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialInterval:   2 * time.Second,
		BackoffFactor:     1.25,
		MaxInterval:       10 * time.Second,
		QueuedMultiplier:  1.5,
		QueuedMaxInterval: 15 * time.Second,
		Timeout:           10 * time.Minute,
		MaxAttempts:       150,
	}
}

// PolicyFromConfig builds a PollPolicy from application configuration.
func PolicyFromConfig(cfg *config.Config) PollPolicy {
	if cfg == nil {
		return DefaultPollPolicy()
	}
	gen := cfg.Generation
	return PollPolicy{
		InitialInterval:   time.Duration(gen.PollInitialSeconds) * time.Second,
		BackoffFactor:     gen.PollBackoffFactor,
		MaxInterval:       time.Duration(gen.PollMaxSeconds) * time.Second,
		QueuedMultiplier:  gen.QueuedIntervalMultiplier,
		QueuedMaxInterval: time.Duration(gen.QueuedMaxSeconds) * time.Second,
		Timeout:           time.Duration(gen.TimeoutSeconds) * time.Second,
		MaxAttempts:       gen.MaxPollAttempts,
	}.normalized()
}

func (p PollPolicy) normalized() PollPolicy {
	defaults := DefaultPollPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaults.InitialInterval
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = defaults.BackoffFactor
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = defaults.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.QueuedMultiplier < 1 {
		p.QueuedMultiplier = defaults.QueuedMultiplier
	}
	// Queued waits are longer than processing waits, never shorter.
	if p.QueuedMaxInterval < p.MaxInterval {
		p.QueuedMaxInterval = p.MaxInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = defaults.Timeout
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	return p
}

// IntervalFor returns the wait before the next poll given the backoff base
// and the current phase. Queue waits stretch further because queue positions
// move slowly and polling them tightly buys nothing.
func (p PollPolicy) IntervalFor(base time.Duration, phase Phase) time.Duration {
	if base < p.InitialInterval {
		base = p.InitialInterval
	}
	if base > p.MaxInterval {
		base = p.MaxInterval
	}
	if phase != PhaseQueued {
		return base
	}
	widened := time.Duration(float64(base) * p.QueuedMultiplier)
	if widened > p.QueuedMaxInterval {
		widened = p.QueuedMaxInterval
	}
	return widened
}

// Advance grows the backoff base after a non-terminal poll, capped at the
// maximum interval.
func (p PollPolicy) Advance(base time.Duration) time.Duration {
	next := time.Duration(float64(base) * p.BackoffFactor)
	if next > p.MaxInterval {
		next = p.MaxInterval
	}
	if next < base {
		next = base
	}
	return next
}
