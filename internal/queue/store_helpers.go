package queue

import (
	"database/sql"
	"errors"
	"time"

	"shuttle/internal/capture"
)

const taskColumns = "position, media_id, content_ref, endpoint, size_bytes, fingerprint, captured_at, latitude, longitude, orientation, status, retry_count, last_error, enqueued_at, next_attempt_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		position       int64
		mediaID        string
		contentRef     string
		endpoint       string
		sizeBytes      int64
		fingerprint    string
		capturedRaw    string
		latitude       sql.NullFloat64
		longitude      sql.NullFloat64
		orientationRaw sql.NullString
		statusStr      string
		retryCount     int
		lastError      sql.NullString
		enqueuedRaw    string
		nextAttemptMS  sql.NullInt64
		updatedRaw     string
	)

	if err := scanner.Scan(
		&position,
		&mediaID,
		&contentRef,
		&endpoint,
		&sizeBytes,
		&fingerprint,
		&capturedRaw,
		&latitude,
		&longitude,
		&orientationRaw,
		&statusStr,
		&retryCount,
		&lastError,
		&enqueuedRaw,
		&nextAttemptMS,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		Item: Item{
			MediaID:     mediaID,
			ContentRef:  contentRef,
			Endpoint:    endpoint,
			Size:        sizeBytes,
			Fingerprint: fingerprint,
			Metadata: capture.Metadata{
				Orientation: capture.Orientation(orientationRaw.String),
			},
		},
		Status:     Status(statusStr),
		RetryCount: retryCount,
		LastError:  lastError.String,
		Position:   position,
	}
	if task.Metadata.Orientation == "" {
		task.Metadata.Orientation = capture.OrientationUnknown
	}
	if latitude.Valid && longitude.Valid {
		task.Metadata.Location = &capture.Location{
			Latitude:  latitude.Float64,
			Longitude: longitude.Float64,
		}
	}

	if captured, err := parseTimeString(capturedRaw); err == nil {
		task.Metadata.CapturedAt = captured
	}
	if enqueued, err := parseTimeString(enqueuedRaw); err == nil {
		task.EnqueuedAt = enqueued
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	if nextAttemptMS.Valid {
		next := millisToTime(nextAttemptMS.Int64)
		task.NextAttemptAt = &next
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableMillis(value *time.Time) any {
	if value == nil {
		return nil
	}
	return timeToMillis(*value)
}

func timeToMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func millisToTime(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
