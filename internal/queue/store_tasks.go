package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Insert admits a new task in pending state at the back of the queue.
// Colliding with a live task maps to ErrDuplicateMediaID or
// ErrDuplicateFingerprint.
func (s *Store) Insert(ctx context.Context, item Item) (*Task, error) {
	if item.MediaID == "" {
		return nil, errors.New("media id is required")
	}
	if item.ContentRef == "" {
		return nil, errors.New("content ref is required")
	}
	if item.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if item.Fingerprint == "" {
		return nil, errors.New("fingerprint is required")
	}

	meta := item.Metadata.Normalized()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var latitude, longitude any
	if meta.Location != nil {
		latitude = meta.Location.Latitude
		longitude = meta.Location.Longitude
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO upload_tasks (
            media_id, content_ref, endpoint, size_bytes, fingerprint,
            captured_at, latitude, longitude, orientation,
            status, retry_count, last_error, enqueued_at, next_attempt_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.MediaID,
		item.ContentRef,
		item.Endpoint,
		item.Size,
		item.Fingerprint,
		meta.CapturedAt.Format(time.RFC3339Nano),
		latitude,
		longitude,
		string(meta.Orientation),
		StatusPending,
		0,
		nil,
		timestamp,
		nil,
		timestamp,
	)
	if err != nil {
		if classified := classifyConstraint(err); classified != err {
			return nil, classified
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return s.GetByMediaID(ctx, item.MediaID)
}

// GetByMediaID fetches a task by media ID. Absent tasks return nil without
// an error.
func (s *Store) GetByMediaID(ctx context.Context, mediaID string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM upload_tasks WHERE media_id = ?`, mediaID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// FindByFingerprint returns the live task matching a content fingerprint.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM upload_tasks WHERE fingerprint = ? LIMIT 1`,
		fingerprint,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return task, nil
}

// List returns tasks filtered by status set (or all tasks when no status is
// provided) in admission order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM upload_tasks`
	orderClause := ` ORDER BY position`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// NextEligible returns the task the worker should attempt next: a
// retry-scheduled task whose backoff has elapsed takes precedence over fresh
// pending work, then admission order decides. Returns nil when nothing is
// runnable at now.
func (s *Store) NextEligible(ctx context.Context, now time.Time) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM upload_tasks
        WHERE status = ? OR (status = ? AND next_attempt_at <= ?)
        ORDER BY CASE status WHEN ? THEN 0 ELSE 1 END, position
        LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, StatusPending, StatusRetryScheduled, timeToMillis(now), StatusRetryScheduled)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next eligible task: %w", err)
	}
	return task, nil
}

// NextRetryAt returns the earliest moment any retry-scheduled task becomes
// runnable, or nil when no retries are waiting.
func (s *Store) NextRetryAt(ctx context.Context) (*time.Time, error) {
	row := s.db.QueryRowContext(ctx, `SELECT MIN(next_attempt_at) FROM upload_tasks WHERE status = ?`, StatusRetryScheduled)
	var minMS sql.NullInt64
	if err := row.Scan(&minMS); err != nil {
		return nil, fmt.Errorf("next retry at: %w", err)
	}
	if !minMS.Valid {
		return nil, nil
	}
	at := millisToTime(minMS.Int64)
	return &at, nil
}

// Remove deletes a task by media ID. Terminal tasks leave the store this
// way; there is no archived history.
func (s *Store) Remove(ctx context.Context, mediaID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_tasks WHERE media_id = ?`, mediaID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all tasks from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
