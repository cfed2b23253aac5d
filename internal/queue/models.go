package queue

import (
	"strings"
	"time"

	"shuttle/internal/capture"
)

// Status represents the lifecycle of an upload task.
type Status string

const (
	StatusPending        Status = "pending"
	StatusUploading      Status = "uploading"
	StatusRetryScheduled Status = "retry_scheduled"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusRetryScheduled,
	StatusSucceeded,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// persistedStatuses are the statuses a stored row may carry. Terminal tasks
// are deleted rather than archived, so succeeded and failed never appear in
// the database.
var persistedStatuses = map[Status]struct{}{
	StatusPending:        {},
	StatusUploading:      {},
	StatusRetryScheduled: {},
}

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

// IsTerminal reports whether a status ends a task's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// IsPersisted reports whether a status may appear on a stored row.
func IsPersisted(status Status) bool {
	_, ok := persistedStatuses[status]
	return ok
}

// Item describes one capture to deliver: where the payload lives, where it
// goes, and the recording metadata that travels with it. Items are immutable
// once admitted.
type Item struct {
	MediaID     string
	ContentRef  string
	Endpoint    string
	Size        int64
	Fingerprint string
	Metadata    capture.Metadata
}

// Task wraps an Item with the mutable delivery state the worker drives:
// status, retry bookkeeping, and admission order.
type Task struct {
	Item
	Status        Status
	RetryCount    int
	LastError     string
	EnqueuedAt    time.Time
	NextAttemptAt *time.Time
	Position      int64
	UpdatedAt     time.Time
}

// RetryEligible reports whether a retry-scheduled task's backoff has elapsed.
func (t *Task) RetryEligible(now time.Time) bool {
	if t.Status != StatusRetryScheduled || t.NextAttemptAt == nil {
		return false
	}
	return !t.NextAttemptAt.After(now)
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total          int
	Pending        int
	Uploading      int
	RetryScheduled int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}
