package queue

import (
	"context"
	"fmt"
	"time"
)

// MarkUploading claims a runnable task for an attempt. The guard on current
// status keeps a stale caller from resurrecting a task that was removed or
// already claimed.
func (s *Store) MarkUploading(ctx context.Context, mediaID string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE upload_tasks
         SET status = ?, next_attempt_at = NULL, updated_at = ?
         WHERE media_id = ? AND status IN (?, ?)`,
		StatusUploading,
		time.Now().UTC().Format(time.RFC3339Nano),
		mediaID,
		StatusPending,
		StatusRetryScheduled,
	)
	if err != nil {
		return fmt.Errorf("mark uploading: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, mediaID)
	}
	return nil
}

// ScheduleRetry parks a task after a failed attempt until nextAttempt. The
// recorded retry count is the number of failed attempts so far.
func (s *Store) ScheduleRetry(ctx context.Context, mediaID string, retryCount int, nextAttempt time.Time, lastError string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE upload_tasks
         SET status = ?, retry_count = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
         WHERE media_id = ? AND status = ?`,
		StatusRetryScheduled,
		retryCount,
		timeToMillis(nextAttempt),
		nullableString(lastError),
		time.Now().UTC().Format(time.RFC3339Nano),
		mediaID,
		StatusUploading,
	)
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, mediaID)
	}
	return nil
}

// RequeueInFlight returns tasks stranded in uploading state to pending.
// Runs once at startup: an attempt that was in flight when the process died
// produced no observable result, so it does not count against the retry
// budget.
func (s *Store) RequeueInFlight(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE upload_tasks
         SET status = ?, next_attempt_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusUploading,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue in-flight tasks: %w", err)
	}
	return res.RowsAffected()
}
