package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/transport"
)

// Uploader delivers one payload and reports progress. *transport.Client
// satisfies this; tests substitute their own.
type Uploader interface {
	Upload(ctx context.Context, up transport.Upload, progress func(float64)) error
}

// ContentStore is the slice of the capture spool the pipeline needs:
// payload cleanup once a task is done with its content.
type ContentStore interface {
	Remove(mediaID string) error
}

// Queue coordinates upload tasks over a persistent store and a serial
// worker.
type Queue struct {
	cfg      *config.Config
	store    *queue.Store
	content  ContentStore
	uploader Uploader
	events   Events
	logger   *slog.Logger
	policy   RetryPolicy

	pollInterval time.Duration

	// generation stamps each attempt; CancelAll bumps it so stale attempts
	// and their late callbacks are discarded.
	generation atomic.Int64

	mu             sync.Mutex
	running        bool
	cancelRun      context.CancelFunc
	attemptCancel  context.CancelFunc
	currentMediaID string
	started        map[string]struct{}
	lastErr        error
	wg             sync.WaitGroup

	// eventMu serializes delegate callbacks across goroutines.
	eventMu sync.Mutex

	kick chan struct{}
}

// Option configures optional Queue behavior.
type Option func(*Queue)

// WithEvents registers the delegate that observes queue lifecycle.
func WithEvents(events Events) Option {
	return func(q *Queue) {
		if events != nil {
			q.events = events
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithRetryPolicy overrides the config-derived retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(q *Queue) {
		q.policy = policy
	}
}

// WithPollInterval overrides how often the idle worker re-checks the store.
func WithPollInterval(interval time.Duration) Option {
	return func(q *Queue) {
		if interval > 0 {
			q.pollInterval = interval
		}
	}
}

// New constructs an upload queue over the given store, spool, and transport.
func New(cfg *config.Config, store *queue.Store, content ContentStore, uploader Uploader, opts ...Option) *Queue {
	q := &Queue{
		cfg:          cfg,
		store:        store,
		content:      content,
		uploader:     uploader,
		events:       NopEvents{},
		logger:       logging.NewNop(),
		policy:       PolicyFromConfig(cfg),
		pollInterval: 2 * time.Second,
		started:      make(map[string]struct{}),
		kick:         make(chan struct{}, 1),
	}
	if cfg != nil && cfg.Workflow.QueuePollInterval > 0 {
		q.pollInterval = time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logging.NewComponentLogger(q.logger, "pipeline")
	return q
}

// Enqueue admits a capture for delivery. It returns false, without error,
// when the media ID or content fingerprint is already tracked; the caller
// already owns a live task for the same capture.
func (q *Queue) Enqueue(ctx context.Context, item queue.Item) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.store.GetByMediaID(ctx, item.MediaID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if item.Fingerprint != "" {
		duplicate, err := q.store.FindByFingerprint(ctx, item.Fingerprint)
		if err != nil {
			return false, err
		}
		if duplicate != nil {
			return false, nil
		}
	}

	if _, err := q.store.Insert(ctx, item); err != nil {
		if errors.Is(err, queue.ErrDuplicateMediaID) || errors.Is(err, queue.ErrDuplicateFingerprint) {
			return false, nil
		}
		return false, fmt.Errorf("admit task: %w", err)
	}

	q.logger.Info("task admitted",
		logging.String(logging.FieldMediaID, item.MediaID),
		logging.Int64("size_bytes", item.Size),
		logging.String(logging.FieldEventType, "task_admitted"),
	)
	q.kickWorker()
	return true, nil
}

// Resume restores persisted tasks at startup: interrupted attempts return
// to pending, tasks whose payload vanished are dropped and reported failed,
// and the delegate hears a single QueueResumed for whatever survived.
func (q *Queue) Resume(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	requeued, err := q.store.RequeueInFlight(ctx)
	if err != nil {
		return fmt.Errorf("requeue interrupted uploads: %w", err)
	}
	if requeued > 0 {
		q.logger.Info("returned interrupted uploads to pending",
			logging.Int64("count", requeued),
			logging.String(logging.FieldEventType, "resume_requeue"),
		)
	}

	tasks, err := q.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list persisted tasks: %w", err)
	}

	restored := 0
	for _, task := range tasks {
		if _, statErr := os.Stat(task.ContentRef); statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				if _, err := q.store.Remove(ctx, task.MediaID); err != nil {
					return fmt.Errorf("drop task with missing payload: %w", err)
				}
				q.logger.Error("payload missing at resume; task dropped",
					logging.String(logging.FieldMediaID, task.MediaID),
					logging.String("content_ref", task.ContentRef),
					logging.String(logging.FieldEventType, "resume_content_missing"),
				)
				missingErr := fmt.Errorf("%w: %s", capture.ErrPayloadMissing, task.ContentRef)
				q.emit(func(ev Events) {
					ev.UploadFinished(task.MediaID, Result{Success: false, RetryCount: task.RetryCount, Size: task.Size, Err: missingErr})
				})
				continue
			}
			// Unreadable is not gone: keep the task and let the attempt
			// surface the real error.
			q.logger.Warn("payload unreadable at resume",
				logging.String(logging.FieldMediaID, task.MediaID),
				logging.Error(statErr),
			)
		}
		restored++
	}

	if restored > 0 {
		q.logger.Info("resumed persisted queue",
			logging.Int("restored", restored),
			logging.String(logging.FieldEventType, "queue_resumed"),
		)
		q.emit(func(ev Events) { ev.QueueResumed(restored) })
		q.kickWorker()
	}
	return nil
}

// CancelAll aborts the in-flight attempt, discards every live task, and
// persists the now-empty queue. Each discarded task gets a cancelled notice
// and nothing further; results from the aborted attempt are ignored.
func (q *Queue) CancelAll(ctx context.Context) (int, error) {
	q.mu.Lock()
	q.generation.Add(1)
	abort := q.attemptCancel
	tasks, err := q.store.List(ctx)
	if err != nil {
		q.mu.Unlock()
		return 0, fmt.Errorf("list tasks for cancel: %w", err)
	}
	if _, err := q.store.Clear(ctx); err != nil {
		q.mu.Unlock()
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	q.started = make(map[string]struct{})
	q.mu.Unlock()

	if abort != nil {
		abort()
	}

	for _, task := range tasks {
		q.logger.Info("task cancelled",
			logging.String(logging.FieldMediaID, task.MediaID),
			logging.String(logging.FieldEventType, "task_cancelled"),
		)
		if q.content != nil {
			if err := q.content.Remove(task.MediaID); err != nil {
				q.logger.Warn("payload cleanup failed",
					logging.String(logging.FieldMediaID, task.MediaID),
					logging.Error(err),
				)
			}
		}
		mediaID := task.MediaID
		q.emit(func(ev Events) { ev.UploadCanceled(mediaID) })
	}
	return len(tasks), nil
}

// CompleteExternal applies the outcome of an attempt that finished outside
// the worker, such as a hand-off the host completed after the previous
// process exited. Success removes the task; failure consumes retry budget
// exactly like a worker attempt.
func (q *Queue) CompleteExternal(ctx context.Context, mediaID string, uploadErr error) error {
	q.mu.Lock()
	inFlight := q.currentMediaID == mediaID && mediaID != ""
	q.mu.Unlock()
	if inFlight {
		return fmt.Errorf("task %s has an attempt in flight", mediaID)
	}

	task, err := q.store.GetByMediaID(ctx, mediaID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, mediaID)
	}

	if uploadErr == nil {
		if _, err := q.store.Remove(ctx, mediaID); err != nil {
			return fmt.Errorf("remove externally completed task: %w", err)
		}
		q.forgetStarted(mediaID)
		q.removePayload(task.MediaID)
		q.logger.Info("external completion applied",
			logging.String(logging.FieldMediaID, mediaID),
			logging.String(logging.FieldEventType, "external_success"),
		)
		retryCount := task.RetryCount
		size := task.Size
		q.emit(func(ev Events) {
			ev.UploadFinished(mediaID, Result{Success: true, RetryCount: retryCount, Size: size})
		})
		q.kickWorker()
		return nil
	}

	// Route the failure through the normal claim so the status guards hold.
	if err := q.store.MarkUploading(ctx, mediaID); err != nil {
		return fmt.Errorf("claim task for external failure: %w", err)
	}
	q.applyFailure(ctx, task, uploadErr)
	q.kickWorker()
	return nil
}

// Status reports the pipeline's runtime state.
type StatusSummary struct {
	Running   bool
	InFlight  string
	LastError string
}

// Status returns a snapshot of worker state for diagnostics.
func (q *Queue) Status() StatusSummary {
	q.mu.Lock()
	defer q.mu.Unlock()
	summary := StatusSummary{
		Running:  q.running,
		InFlight: q.currentMediaID,
	}
	if q.lastErr != nil {
		summary.LastError = q.lastErr.Error()
	}
	return summary
}

// Store exposes the backing task store for read-side consumers.
func (q *Queue) Store() *queue.Store {
	return q.store
}

func (q *Queue) kickWorker() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

func (q *Queue) emit(fn func(Events)) {
	if q.events == nil {
		return
	}
	q.eventMu.Lock()
	defer q.eventMu.Unlock()
	fn(q.events)
}

func (q *Queue) removePayload(mediaID string) {
	if q.content == nil {
		return
	}
	if err := q.content.Remove(mediaID); err != nil {
		q.logger.Warn("payload cleanup failed",
			logging.String(logging.FieldMediaID, mediaID),
			logging.Error(err),
		)
	}
}

func (q *Queue) setLastError(err error) {
	q.mu.Lock()
	q.lastErr = err
	q.mu.Unlock()
}
