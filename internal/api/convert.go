package api

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shuttle/internal/queue"
)

// FromTask converts a queue record to its API representation.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}

	dto := Task{
		MediaID:     task.MediaID,
		ContentRef:  task.ContentRef,
		Endpoint:    task.Endpoint,
		SizeBytes:   task.Size,
		Fingerprint: task.Fingerprint,
		Status:      string(task.Status),
		RetryCount:  task.RetryCount,
		LastError:   task.LastError,
		EnqueuedAt:  FormatTime(task.EnqueuedAt),
		UpdatedAt:   FormatTime(task.UpdatedAt),
		CapturedAt:  FormatTime(task.Metadata.CapturedAt),
		Orientation: string(task.Metadata.Orientation),
	}
	if task.NextAttemptAt != nil {
		dto.NextAttemptAt = FormatTime(*task.NextAttemptAt)
	}
	if loc := task.Metadata.Location; loc != nil {
		lat := loc.Latitude
		lon := loc.Longitude
		dto.Latitude = &lat
		dto.Longitude = &lon
	}
	return dto
}

// FromTasks converts a slice of queue records into API DTOs.
func FromTasks(tasks []*queue.Task) []Task {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// StatusLabel renders an internal enum value for display, so
// "retry_scheduled" becomes "Retry Scheduled".
func StatusLabel(status string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(status), "_", " ")
	if cleaned == "" {
		return ""
	}
	return cases.Title(language.Und).String(cleaned)
}
