package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/ingest"
	"shuttle/internal/logging"
	"shuttle/internal/notifications"
	"shuttle/internal/pipeline"
	"shuttle/internal/preflight"
	"shuttle/internal/queue"
)

// notifyTimeout bounds lifecycle notification sends so startup and shutdown
// never hang on a slow ntfy server.
const notifyTimeout = 5 * time.Second

// Daemon coordinates the upload pipeline, the inbox watcher, and the
// notification bridge, and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	pipeline *pipeline.Queue
	gate     *ingest.Gate
	watcher  *ingest.Watcher
	notifier notifications.Service
	bridge   *notifications.Bridge

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	Pipeline     pipeline.StatusSummary
	QueueStats   map[queue.Status]int
	Spool        preflight.SpoolProbe
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, pipe *pipeline.Queue, gate *ingest.Gate, watcher *ingest.Watcher, notifier notifications.Service, bridge *notifications.Bridge) (*Daemon, error) {
	if cfg == nil || store == nil || pipe == nil || gate == nil || watcher == nil {
		return nil, errors.New("daemon requires config, store, pipeline, gate, and watcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		pipeline:   pipe,
		gate:       gate,
		watcher:    watcher,
		notifier:   notifier,
		bridge:     bridge,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Start acquires the daemon lock, resumes interrupted work, and launches the
// upload pipeline and inbox watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shuttle daemon instance is already running")
	}

	if recovered := d.store.RecoveredFrom(); recovered != "" {
		d.logger.Warn("queue database was unreadable and has been recreated",
			logging.String("moved_to", recovered),
			logging.String(logging.FieldEventType, "queue_db_recreated"))
	}

	if err := d.runPreflight(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.pipeline.Resume(d.ctx); err != nil {
		d.teardownAfterStartFailure()
		return fmt.Errorf("resume queue: %w", err)
	}
	if err := d.pipeline.Start(d.ctx); err != nil {
		d.teardownAfterStartFailure()
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.watcher.Start(d.ctx); err != nil {
		d.pipeline.Stop()
		d.teardownAfterStartFailure()
		return fmt.Errorf("start inbox watcher: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("shuttle daemon started", logging.String("lock", d.lockPath))
	d.publish(d.ctx, notifications.EventDaemonStarted)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	d.pipeline.Stop()
	if d.bridge != nil {
		d.bridge.Wait()
	}
	d.publish(context.Background(), notifications.EventDaemonStopped)
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("shuttle daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestShutdown signals the run loop to exit. Safe to call more than once.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// ShutdownRequested is closed once a shutdown has been requested over IPC.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}

// ListQueue returns queue tasks filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// CancelAll aborts the in-flight upload, discards every queued task, and
// removes the spooled payloads.
func (d *Daemon) CancelAll(ctx context.Context) (int, error) {
	count, err := d.pipeline.CancelAll(ctx)
	if err != nil {
		return count, err
	}
	if count > 0 && d.bridge != nil {
		d.bridge.QueueCleared(count)
	}
	return count, nil
}

// QueueStats returns per-status task counts.
func (d *Daemon) QueueStats(ctx context.Context) (map[queue.Status]int, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.Stats(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Submit spools a capture file and enqueues it for upload. Metadata gaps are
// filled from the payload's sidecar and then from file modification time.
func (d *Daemon) Submit(ctx context.Context, sourcePath string, meta capture.Metadata) (ingest.Receipt, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return ingest.Receipt{}, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return ingest.Receipt{}, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return ingest.Receipt{}, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return ingest.Receipt{}, fmt.Errorf("source path %q is a directory", absPath)
	}
	resolved := ingest.ResolveSubmitMetadata(absPath, meta)
	receipt, err := d.gate.SubmitFile(ctx, absPath, resolved)
	if err != nil {
		return receipt, err
	}
	if receipt.Accepted {
		d.logger.Info("manual capture queued",
			logging.String(logging.FieldMediaID, receipt.MediaID),
			logging.String("source", absPath))
	}
	return receipt, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("queue stats unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Pipeline:     d.pipeline.Status(),
		QueueStats:   stats,
		Spool:        preflight.ProbeSpool(d.cfg.SpoolContentDir()),
	}
}

// runPreflight logs every failed check and refuses startup when a fatal one
// fails.
func (d *Daemon) runPreflight(ctx context.Context) error {
	var fatal *preflight.Result
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.Bool("fatal", result.Fatal))
		if result.Fatal && fatal == nil {
			r := result
			fatal = &r
		}
	}
	if fatal != nil {
		return fmt.Errorf("preflight: %s: %s", fatal.Name, fatal.Detail)
	}
	return nil
}

func (d *Daemon) teardownAfterStartFailure() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event) {
	if d.notifier == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := d.notifier.Publish(sendCtx, event, nil); err != nil {
		d.logger.Warn("notification failed",
			logging.String(logging.FieldEventType, string(event)),
			logging.Error(err))
	}
}
