package generation

import (
	"testing"
	"time"
)

func TestEstimatePercentageIsMonotonicAndCapped(t *testing.T) {
	last := 0
	for elapsed := time.Duration(0); elapsed <= 20*time.Minute; elapsed += 5 * time.Second {
		got := Estimate(elapsed, PhaseProcessing, false)
		if got.Percentage < last {
			t.Fatalf("percentage decreased at %s: %d -> %d", elapsed, last, got.Percentage)
		}
		if got.Percentage > 95 {
			t.Fatalf("percentage exceeded heuristic cap at %s: %d", elapsed, got.Percentage)
		}
		last = got.Percentage
	}
	if last != 95 {
		t.Fatalf("long-running session should saturate at 95, got %d", last)
	}
}

func TestEstimateMessageTracksPhase(t *testing.T) {
	queued := Estimate(45*time.Second, PhaseQueued, false)
	processing := Estimate(45*time.Second, PhaseProcessing, false)
	if queued.Message == processing.Message {
		t.Fatalf("queued and processing messages should differ at 45s, both %q", queued.Message)
	}
}

func TestEstimatePeakLoadMessaging(t *testing.T) {
	normal := Estimate(3*time.Minute, PhaseProcessing, false)
	peak := Estimate(3*time.Minute, PhaseProcessing, true)
	if normal.Message == peak.Message {
		t.Fatalf("peak load should change the message at 3m, both %q", normal.Message)
	}
	latePeak := Estimate(6*time.Minute, PhaseProcessing, true)
	if latePeak.Message == "" {
		t.Fatal("expected a message for a long peak-hours session")
	}
}

func TestRemainingEstimateShrinksWithProgress(t *testing.T) {
	early := remainingEstimate(30*time.Second, 20)
	late := remainingEstimate(4*time.Minute, 85)
	if early <= 0 {
		t.Fatalf("expected positive early estimate, got %d", early)
	}
	if late >= early {
		t.Fatalf("estimate should shrink as progress climbs: early=%d late=%d", early, late)
	}
	if got := remainingEstimate(time.Minute, 0); got != 0 {
		t.Fatalf("zero progress yields no estimate, got %d", got)
	}
}
