package generation

import (
	"testing"
	"time"

	"runreel/internal/testsupport"
)

func TestAdvanceNeverDecreasesAndCaps(t *testing.T) {
	policy := DefaultPollPolicy()
	base := policy.InitialInterval
	for i := 0; i < 40; i++ {
		next := policy.Advance(base)
		if next < base {
			t.Fatalf("backoff shrank on step %d: %s -> %s", i, base, next)
		}
		if next > policy.MaxInterval {
			t.Fatalf("backoff exceeded cap on step %d: %s", i, next)
		}
		base = next
	}
	if base != policy.MaxInterval {
		t.Fatalf("backoff should saturate at %s, got %s", policy.MaxInterval, base)
	}
}

func TestIntervalForQueuedIsAtLeastProcessing(t *testing.T) {
	policy := DefaultPollPolicy()
	for base := policy.InitialInterval; base <= policy.MaxInterval; base += time.Second {
		queued := policy.IntervalFor(base, PhaseQueued)
		processing := policy.IntervalFor(base, PhaseProcessing)
		if queued < processing {
			t.Fatalf("queued interval %s below processing interval %s at base %s", queued, processing, base)
		}
		if queued > policy.QueuedMaxInterval {
			t.Fatalf("queued interval %s over cap %s", queued, policy.QueuedMaxInterval)
		}
	}
}

func TestIntervalForClampsBase(t *testing.T) {
	policy := DefaultPollPolicy()
	if got := policy.IntervalFor(time.Millisecond, PhaseProcessing); got != policy.InitialInterval {
		t.Fatalf("tiny base should clamp up to %s, got %s", policy.InitialInterval, got)
	}
	if got := policy.IntervalFor(time.Hour, PhaseProcessing); got != policy.MaxInterval {
		t.Fatalf("huge base should clamp down to %s, got %s", policy.MaxInterval, got)
	}
}

func TestPolicyFromConfigNormalizesQueuedCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Generation.PollMaxSeconds = 20
	cfg.Generation.QueuedMaxSeconds = 5

	policy := PolicyFromConfig(cfg)
	if policy.QueuedMaxInterval < policy.MaxInterval {
		t.Fatalf("queued cap %s must not undercut poll cap %s", policy.QueuedMaxInterval, policy.MaxInterval)
	}
}

func TestPolicyFromConfigRejectsNonsense(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Generation.PollBackoffFactor = 0.5
	cfg.Generation.MaxPollAttempts = -1

	policy := PolicyFromConfig(cfg)
	defaults := DefaultPollPolicy()
	if policy.BackoffFactor != defaults.BackoffFactor {
		t.Fatalf("sub-1 factor should fall back to %v, got %v", defaults.BackoffFactor, policy.BackoffFactor)
	}
	if policy.MaxAttempts != defaults.MaxAttempts {
		t.Fatalf("negative attempts should fall back to %d, got %d", defaults.MaxAttempts, policy.MaxAttempts)
	}
}
