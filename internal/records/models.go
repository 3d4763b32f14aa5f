package records

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job record. Transitions are strictly
// ordered pending -> processing -> completed|failed; the store rejects any
// write that would skip or reorder them.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transitions follow the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether the status represents an unfinished attempt.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusProcessing
}

// Record is the durable row representing one generation attempt, independent
// of in-memory session state. The store is the source of truth for "what was
// the last known status of this subject's generation" across app restarts.
type Record struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	SubjectID     string    `json:"subject_id"`
	Status        Status    `json:"status"`
	ScriptContent string    `json:"script_content,omitempty"`
	ProviderJobID string    `json:"provider_job_id,omitempty"`
	ResultURL     string    `json:"result_url,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Stats describes aggregated record counts per lifecycle state.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
