package ipc

import "shuttle/internal/api"

// Task mirrors the API task DTO for internal IPC callers.
type Task = api.Task

// PingRequest probes daemon liveness.
type PingRequest struct{}

// PingResponse carries the responding daemon's process id.
type PingResponse struct {
	PID int `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse summarizes daemon, queue, and spool state.
type StatusResponse struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	QueueDBPath     string         `json:"queueDbPath"`
	LockPath        string         `json:"lockPath"`
	InFlightMediaID string         `json:"inFlightMediaId,omitempty"`
	LastError       string         `json:"lastError,omitempty"`
	QueueStats      map[string]int `json:"queueStats"`
	SpoolFiles      int            `json:"spoolFiles"`
	SpoolBytes      int64          `json:"spoolBytes"`
}

// QueueListRequest filters the queue listing by status names. An empty
// filter returns every task.
type QueueListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// QueueListResponse carries queue tasks ordered by enqueue position.
type QueueListResponse struct {
	Tasks []Task `json:"tasks"`
}

// QueueClearRequest removes every queued upload and its spooled payload.
type QueueClearRequest struct{}

// QueueClearResponse reports how many tasks were removed.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// CancelAllRequest aborts the in-flight upload and discards pending work.
type CancelAllRequest struct{}

// CancelAllResponse reports how many tasks were canceled.
type CancelAllResponse struct {
	Canceled int `json:"canceled"`
}

// SubmitRequest enqueues a capture file by filesystem path. CapturedAt uses
// RFC 3339; omitted fields fall back to the payload's sidecar and then to
// file modification time.
type SubmitRequest struct {
	Path        string   `json:"path"`
	CapturedAt  string   `json:"capturedAt,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Orientation string   `json:"orientation,omitempty"`
}

// SubmitResponse reports the admission outcome. Accepted is false when the
// payload was already queued under the same media id or fingerprint.
type SubmitResponse struct {
	MediaID     string `json:"mediaId"`
	Accepted    bool   `json:"accepted"`
	SizeBytes   int64  `json:"sizeBytes"`
	Fingerprint string `json:"fingerprint"`
}

// TestNotifyRequest triggers a test notification.
type TestNotifyRequest struct{}

// TestNotifyResponse indicates whether the test notification was sent.
type TestNotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit cleanly.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
