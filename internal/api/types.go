package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a queued upload in a transport-friendly format.
type Task struct {
	MediaID       string   `json:"mediaId"`
	ContentRef    string   `json:"contentRef"`
	Endpoint      string   `json:"endpoint"`
	SizeBytes     int64    `json:"sizeBytes"`
	Fingerprint   string   `json:"fingerprint"`
	Status        string   `json:"status"`
	RetryCount    int      `json:"retryCount"`
	LastError     string   `json:"lastError,omitempty"`
	EnqueuedAt    string   `json:"enqueuedAt,omitempty"`
	NextAttemptAt string   `json:"nextAttemptAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
	CapturedAt    string   `json:"capturedAt,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Orientation   string   `json:"orientation,omitempty"`
}

// StatusLine is a labeled severity/detail pair used by status rendering.
// Severity is one of "ok", "warn", "error", or "info".
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}
