package pipeline

import (
	"context"
	"errors"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/transport"
)

// Start launches the serial upload worker. It is a no-op when the worker
// is already running.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancelRun = cancel
	q.running = true
	q.wg.Add(1)
	go q.runWorker(runCtx)
	return nil
}

// Stop halts the worker and waits for the in-flight attempt to unwind.
// The interrupted attempt is returned to pending and does not consume
// retry budget.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	cancel := q.cancelRun
	q.running = false
	q.cancelRun = nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	q.logger.Info("upload worker stopped",
		logging.String(logging.FieldEventType, "worker_stopped"),
	)
}

func (q *Queue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	q.logger.Info("upload worker started",
		logging.Duration("poll_interval", q.pollInterval),
		logging.String(logging.FieldEventType, "worker_started"),
	)
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := q.store.NextEligible(ctx, time.Now())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.setLastError(err)
			q.logger.Error("queue fetch failed", logging.Error(err))
			if !q.sleep(ctx, q.pollInterval) {
				return
			}
			continue
		}
		if task == nil {
			if !q.waitForWork(ctx) {
				return
			}
			continue
		}
		q.processTask(ctx, task)
	}
}

// waitForWork blocks until a new task may be eligible: an enqueue kick, the
// next scheduled retry coming due, or the poll interval elapsing. Backoff
// waits happen here, off the upload lane, so a due task never queues behind
// a sleeping one.
func (q *Queue) waitForWork(ctx context.Context) bool {
	wait := q.pollInterval
	if next, err := q.store.NextRetryAt(ctx); err == nil && next != nil {
		if until := time.Until(*next); until < wait {
			wait = until
		}
	}
	if wait < 10*time.Millisecond {
		wait = 10 * time.Millisecond
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-q.kick:
		return true
	case <-timer.C:
		return true
	}
}

func (q *Queue) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// processTask runs one upload attempt for a claimed task and applies the
// outcome. Attempts started before a CancelAll are detected through the
// generation stamp and their results discarded.
func (q *Queue) processTask(ctx context.Context, task *queue.Task) {
	gen := q.generation.Load()

	if err := q.store.MarkUploading(ctx, task.MediaID); err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			// Cancelled or completed out from under the fetch.
			return
		}
		q.setLastError(err)
		q.logger.Error("claim task for upload",
			logging.String(logging.FieldMediaID, task.MediaID),
			logging.Error(err),
		)
		q.sleep(ctx, q.pollInterval)
		return
	}

	attemptCtx, cancelAttempt := context.WithCancel(ctx)
	q.mu.Lock()
	if q.generation.Load() != gen {
		q.mu.Unlock()
		cancelAttempt()
		return
	}
	q.attemptCancel = cancelAttempt
	q.currentMediaID = task.MediaID
	_, alreadyStarted := q.started[task.MediaID]
	if !alreadyStarted {
		q.started[task.MediaID] = struct{}{}
	}
	q.mu.Unlock()

	attempt := task.RetryCount + 1
	q.logger.Info("upload attempt started",
		logging.String(logging.FieldMediaID, task.MediaID),
		logging.Int(logging.FieldAttempt, attempt),
		logging.Int64("size_bytes", task.Size),
		logging.String(logging.FieldEventType, "upload_attempt"),
	)
	if !alreadyStarted {
		mediaID := task.MediaID
		q.emit(func(ev Events) { ev.UploadStarted(mediaID) })
	}

	progress := func(fraction float64) {
		if q.generation.Load() != gen {
			return
		}
		mediaID := task.MediaID
		q.emit(func(ev Events) { ev.UploadProgress(mediaID, fraction) })
	}

	uploadErr := q.uploader.Upload(attemptCtx, transport.Upload{
		MediaID:  task.MediaID,
		Path:     task.ContentRef,
		Endpoint: task.Endpoint,
		Size:     task.Size,
		Metadata: task.Metadata,
	}, progress)
	cancelAttempt()

	q.mu.Lock()
	q.attemptCancel = nil
	q.currentMediaID = ""
	stale := q.generation.Load() != gen
	q.mu.Unlock()
	if stale {
		q.logger.Info("attempt result discarded after cancel",
			logging.String(logging.FieldMediaID, task.MediaID),
		)
		return
	}

	if uploadErr != nil && ctx.Err() != nil {
		// Shutdown, not a task failure. Return the claim so the next run
		// resumes the task with its retry budget intact.
		requeueCtx, cancelRequeue := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelRequeue()
		if _, err := q.store.RequeueInFlight(requeueCtx); err != nil {
			q.logger.Warn("requeue interrupted upload", logging.Error(err))
		}
		return
	}

	if uploadErr == nil {
		q.applySuccess(ctx, task)
		return
	}
	q.applyFailure(ctx, task, uploadErr)
}

func (q *Queue) applySuccess(ctx context.Context, task *queue.Task) {
	if _, err := q.store.Remove(ctx, task.MediaID); err != nil {
		q.setLastError(err)
		q.logger.Error("remove completed task",
			logging.String(logging.FieldMediaID, task.MediaID),
			logging.Error(err),
		)
	}
	q.forgetStarted(task.MediaID)
	q.removePayload(task.MediaID)
	q.logger.Info("upload succeeded",
		logging.String(logging.FieldMediaID, task.MediaID),
		logging.Int("attempts", task.RetryCount+1),
		logging.String(logging.FieldEventType, "upload_succeeded"),
	)
	mediaID := task.MediaID
	retryCount := task.RetryCount
	size := task.Size
	q.emit(func(ev Events) {
		ev.UploadFinished(mediaID, Result{Success: true, RetryCount: retryCount, Size: size})
	})
}

// applyFailure consumes one unit of retry budget. Retryable failures go
// back to the store with an exponential delay; exhausted or permanent ones
// drop the task, emit the terminal result, and leave the payload on disk
// for manual recovery.
func (q *Queue) applyFailure(ctx context.Context, task *queue.Task, attemptErr error) {
	attempt := task.RetryCount + 1
	permanent := errors.Is(attemptErr, capture.ErrPayloadMissing)

	if !permanent && task.RetryCount < q.policy.MaxRetries {
		newCount := task.RetryCount + 1
		delay := q.policy.Delay(newCount)
		nextAttempt := time.Now().Add(delay)
		if err := q.store.ScheduleRetry(ctx, task.MediaID, newCount, nextAttempt, attemptErr.Error()); err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				return
			}
			q.setLastError(err)
			q.logger.Error("schedule retry",
				logging.String(logging.FieldMediaID, task.MediaID),
				logging.Error(err),
			)
			return
		}
		q.logger.Warn("upload attempt failed; retry scheduled",
			logging.String(logging.FieldMediaID, task.MediaID),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration("delay", delay),
			logging.Error(attemptErr),
			logging.String(logging.FieldEventType, "upload_retry_scheduled"),
		)
		return
	}

	if _, err := q.store.Remove(ctx, task.MediaID); err != nil {
		q.setLastError(err)
		q.logger.Error("remove failed task",
			logging.String(logging.FieldMediaID, task.MediaID),
			logging.Error(err),
		)
		return
	}
	q.forgetStarted(task.MediaID)
	q.setLastError(attemptErr)
	q.logger.Error("upload failed permanently",
		logging.String(logging.FieldMediaID, task.MediaID),
		logging.Int(logging.FieldAttempt, attempt),
		logging.String("content_ref", task.ContentRef),
		logging.Error(attemptErr),
		logging.String(logging.FieldEventType, "upload_failed"),
	)
	mediaID := task.MediaID
	retryCount := task.RetryCount
	size := task.Size
	q.emit(func(ev Events) {
		ev.UploadFinished(mediaID, Result{Success: false, RetryCount: retryCount, Size: size, Err: attemptErr})
	})
}

func (q *Queue) forgetStarted(mediaID string) {
	q.mu.Lock()
	delete(q.started, mediaID)
	q.mu.Unlock()
}
