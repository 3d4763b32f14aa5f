package generation

import "time"

// State represents the lifecycle of a generation session.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateSubmitting   State = "submitting"
	StateQueued       State = "queued"
	StateProcessing   State = "processing"
	StateFinalizing   State = "finalizing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// stateOrder enforces forward-only transitions. Completed and Failed share a
// rank: both are terminal and neither follows the other.
var stateOrder = map[State]int{
	StateIdle:         0,
	StateInitializing: 1,
	StateSubmitting:   2,
	StateQueued:       3,
	StateProcessing:   4,
	StateFinalizing:   5,
	StateCompleted:    6,
	StateFailed:       6,
}

// IsTerminal reports whether no further transitions follow the state except
// an explicit reset.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsActive reports whether a generation is currently being driven.
func (s State) IsActive() bool {
	return !s.IsTerminal() && s != StateIdle
}

// Snapshot is the read-only session projection the UI renders. All fields
// are value copies; mutating a snapshot has no effect on the session.
type Snapshot struct {
	State                     State  `json:"state"`
	RecordID                  string `json:"record_id,omitempty"`
	ProviderJobID             string `json:"provider_job_id,omitempty"`
	ProgressMessage           string `json:"progress_message,omitempty"`
	ProgressPercent           int    `json:"progress_percent"`
	PeakLoad                  bool   `json:"peak_load"`
	ElapsedSeconds            int    `json:"elapsed_seconds"`
	EstimatedRemainingSeconds int    `json:"estimated_remaining_seconds,omitempty"`
	QueueSeconds              int    `json:"queue_seconds,omitempty"`
	ResultMediaURL            string `json:"result_media_url,omitempty"`
	ResultThumbnailURL        string `json:"result_thumbnail_url,omitempty"`
	ErrorMessage              string `json:"error_message,omitempty"`
	ErrorKind                 string `json:"error_kind,omitempty"`
}

// session is the mutable per-attempt state owned exclusively by the
// orchestrator. Access is guarded by the orchestrator's mutex.
type session struct {
	state              State
	recordID           string
	providerJobID      string
	startedAt          time.Time
	finishedAt         time.Time
	queueDuration      time.Duration
	peakLoad           bool
	progressMessage    string
	progressPercent    int
	estimatedRemaining int
	resultMediaURL     string
	resultThumbnailURL string
	errorMessage       string
	errorKind          string
}

func (s *session) reset() {
	*s = session{state: StateIdle}
}

// advance moves the session forward. Backward transitions are ignored so the
// state can never regress within an attempt.
func (s *session) advance(to State) bool {
	if stateOrder[to] <= stateOrder[s.state] && to != s.state {
		return false
	}
	s.state = to
	return true
}

func (s *session) elapsed(now time.Time) time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	if !s.finishedAt.IsZero() {
		return s.finishedAt.Sub(s.startedAt)
	}
	return now.Sub(s.startedAt)
}

func (s *session) snapshot(now time.Time) Snapshot {
	return Snapshot{
		State:                     s.state,
		RecordID:                  s.recordID,
		ProviderJobID:             s.providerJobID,
		ProgressMessage:           s.progressMessage,
		ProgressPercent:           s.progressPercent,
		PeakLoad:                  s.peakLoad,
		ElapsedSeconds:            int(s.elapsed(now).Seconds()),
		EstimatedRemainingSeconds: s.estimatedRemaining,
		QueueSeconds:              int(s.queueDuration.Seconds()),
		ResultMediaURL:            s.resultMediaURL,
		ResultThumbnailURL:        s.resultThumbnailURL,
		ErrorMessage:              s.errorMessage,
		ErrorKind:                 s.errorKind,
	}
}
