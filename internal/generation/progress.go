package generation

import "time"

// Phase distinguishes a job accepted but not yet rendering from one actively
// rendering.
type Phase string

const (
	PhaseQueued     Phase = "queued"
	PhaseProcessing Phase = "processing"
)

// DefaultPeakThreshold is how long a session stays in an active phase before
// the peak-load flag turns on.
const DefaultPeakThreshold = 120 * time.Second

// Progress is a human-readable message plus a completion estimate.
type Progress struct {
	Message    string
	Percentage int
}

// Estimate derives progress purely from elapsed time, phase, and the sticky
// peak-load flag. The provider exposes no ground-truth progress signal, so
// this is a heuristic: percentages grow with elapsed time and cap at 95
// until the orchestrator observes a terminal status and snaps to 100 or 0.
//
// The function is pure and its percentage is non-decreasing in elapsed time
// for a fixed phase; the orchestrator additionally clamps against the
// previous value so a phase change never regresses the bar.
func Estimate(elapsed time.Duration, phase Phase, peakLoad bool) Progress {
	return Progress{
		Message:    progressMessage(elapsed, phase, peakLoad),
		Percentage: progressPercent(elapsed),
	}
}

func progressPercent(elapsed time.Duration) int {
	seconds := elapsed.Seconds()
	var pct float64
	switch {
	case seconds <= 0:
		pct = 2
	case seconds <= 30:
		pct = 2 + seconds/30*18
	case seconds <= 120:
		pct = 20 + (seconds-30)/90*35
	case seconds <= 300:
		pct = 55 + (seconds-120)/180*30
	case seconds <= 600:
		pct = 85 + (seconds-300)/300*10
	default:
		pct = 95
	}
	if pct > 95 {
		pct = 95
	}
	return int(pct)
}

func progressMessage(elapsed time.Duration, phase Phase, peakLoad bool) string {
	seconds := elapsed.Seconds()
	switch {
	case seconds < 15:
		return "Sending your highlight to the studio"
	case seconds < 30:
		return "Starting the render"
	case seconds < 90:
		if phase == PhaseQueued {
			return "Waiting in the render queue"
		}
		return "Rendering your video"
	case seconds < 120:
		if phase == PhaseQueued {
			return "Still queued, this can take a couple of minutes"
		}
		return "Rendering scenes"
	case seconds < 300:
		if peakLoad {
			return "High demand right now, renders take a little longer"
		}
		return "Adding the finishing touches"
	default:
		if peakLoad {
			return "Peak hours at the render service, hang tight"
		}
		return "Finalizing your video"
	}
}

// remainingEstimate projects seconds left from the completion percentage.
// Rough by construction; it exists only to give the UI a countdown feel.
func remainingEstimate(elapsed time.Duration, percent int) int {
	if percent <= 0 || percent >= 95 {
		return 0
	}
	remaining := elapsed.Seconds() * float64(95-percent) / float64(percent)
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}
