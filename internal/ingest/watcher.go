package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/logging"
)

const (
	sidecarSuffix  = ".json"
	rejectedSuffix = ".rejected"
)

// Watcher scans the spool inbox for payload/sidecar pairs and submits them
// through the gate. Capture sources write the payload first and the sidecar
// last, so a payload without its sidecar is a write still in progress and
// is left alone.
type Watcher struct {
	cfg      *config.Config
	gate     *Gate
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher constructs an inbox watcher feeding the given gate.
func NewWatcher(cfg *config.Config, gate *Gate, logger *slog.Logger) *Watcher {
	interval := 5 * time.Second
	if cfg != nil && cfg.Workflow.SpoolScanInterval > 0 {
		interval = time.Duration(cfg.Workflow.SpoolScanInterval) * time.Second
	}
	return &Watcher{
		cfg:      cfg,
		gate:     gate,
		logger:   logging.NewComponentLogger(logger, "inbox"),
		interval: interval,
	}
}

// Start launches the scan loop. It is a no-op when already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx)
	return nil
}

// Stop halts the scan loop and waits for an in-progress scan to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	w.logger.Info("inbox watcher started",
		logging.String("dir", w.cfg.SpoolInboxDir()),
		logging.Duration("interval", w.interval),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("inbox scan failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce walks the inbox a single time and submits every complete
// payload/sidecar pair, returning how many captures were submitted.
// Pairs whose sidecar cannot be parsed are set aside so they stop
// matching, with the payload left in place for the operator.
func (w *Watcher) ScanOnce(ctx context.Context) (int, error) {
	inbox := w.cfg.SpoolInboxDir()
	entries, err := os.ReadDir(inbox)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
	}

	submitted := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}
		if !isPayloadCandidate(name) {
			continue
		}
		sidecarName := name + sidecarSuffix
		if _, ok := present[sidecarName]; !ok {
			continue
		}
		if w.ingestPair(ctx, filepath.Join(inbox, name), filepath.Join(inbox, sidecarName)) {
			submitted++
		}
	}
	return submitted, nil
}

// ingestPair reads the sidecar, submits the payload, and removes the
// sidecar once its payload has been consumed.
func (w *Watcher) ingestPair(ctx context.Context, payloadPath, sidecarPath string) bool {
	meta, err := capture.ReadSidecar(sidecarPath)
	if err != nil {
		w.setAside(sidecarPath, err)
		return false
	}

	receipt, err := w.gate.SubmitFile(ctx, payloadPath, meta)
	if err != nil {
		w.setAside(sidecarPath, err)
		return false
	}
	if err := os.Remove(sidecarPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("remove sidecar", logging.String("path", sidecarPath), logging.Error(err))
	}

	if !receipt.Accepted {
		w.logger.Info("inbox capture was a duplicate",
			logging.String("payload", filepath.Base(payloadPath)),
		)
		return false
	}
	w.logger.Info("inbox capture submitted",
		logging.String("payload", filepath.Base(payloadPath)),
		logging.String(logging.FieldMediaID, receipt.MediaID),
		logging.Int64("size_bytes", receipt.Size),
	)
	return true
}

// setAside renames a bad sidecar so the pair stops matching on later scans.
func (w *Watcher) setAside(sidecarPath string, cause error) {
	w.logger.Error("inbox pair rejected",
		logging.String("sidecar", filepath.Base(sidecarPath)),
		logging.Error(cause),
	)
	if err := os.Rename(sidecarPath, sidecarPath+rejectedSuffix); err != nil {
		w.logger.Warn("set aside sidecar", logging.String("path", sidecarPath), logging.Error(err))
	}
}

func isPayloadCandidate(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.HasSuffix(name, sidecarSuffix) || strings.HasSuffix(name, rejectedSuffix) {
		return false
	}
	return true
}
