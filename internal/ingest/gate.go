package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
)

// Admitter is the pipeline surface the gate needs: admission with
// duplicate detection.
type Admitter interface {
	Enqueue(ctx context.Context, item queue.Item) (bool, error)
}

// Receipt reports what happened to a submission. MediaID identifies the
// spooled capture when Accepted is true.
type Receipt struct {
	MediaID     string
	Accepted    bool
	Size        int64
	Fingerprint string
}

// Gate sits between capture sources and the upload queue. It owns media id
// assignment and payload spooling; the queue owns duplicate detection, so a
// rejected submission leaves no spooled payload behind.
type Gate struct {
	cfg    *config.Config
	spool  *capture.Spool
	queue  Admitter
	logger *slog.Logger
}

// NewGate constructs an ingest gate over the given spool and queue.
func NewGate(cfg *config.Config, spool *capture.Spool, admitter Admitter, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		spool:  spool,
		queue:  admitter,
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
}

// Submit spools the payload bytes and offers the capture to the queue.
// Duplicate captures are reported through Receipt.Accepted, not an error;
// their spooled payload is removed again.
func (g *Gate) Submit(ctx context.Context, payload io.Reader, meta capture.Metadata) (Receipt, error) {
	if payload == nil {
		return Receipt{}, errors.New("payload reader required")
	}
	meta, err := sanitizeMetadata(meta)
	if err != nil {
		return Receipt{}, err
	}

	mediaID := uuid.NewString()
	size, err := g.spool.Store(mediaID, payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("spool payload: %w", err)
	}
	return g.admit(ctx, mediaID, size, meta)
}

// SubmitFile moves an existing payload file into the spool and offers the
// capture to the queue. The source file is consumed whether or not the
// capture is accepted; a duplicate's payload is discarded.
func (g *Gate) SubmitFile(ctx context.Context, path string, meta capture.Metadata) (Receipt, error) {
	meta, err := sanitizeMetadata(meta)
	if err != nil {
		return Receipt{}, err
	}

	mediaID := uuid.NewString()
	size, err := g.spool.ImportFile(mediaID, path)
	if err != nil {
		return Receipt{}, fmt.Errorf("import payload: %w", err)
	}
	return g.admit(ctx, mediaID, size, meta)
}

func (g *Gate) admit(ctx context.Context, mediaID string, size int64, meta capture.Metadata) (Receipt, error) {
	fingerprint := capture.Fingerprint(size, meta.CapturedAt)
	item := queue.Item{
		MediaID:     mediaID,
		ContentRef:  g.spool.Path(mediaID),
		Endpoint:    g.cfg.Uploader.Endpoint,
		Size:        size,
		Fingerprint: fingerprint,
		Metadata:    meta,
	}

	admitted, err := g.queue.Enqueue(ctx, item)
	if err != nil {
		g.discard(mediaID)
		return Receipt{}, fmt.Errorf("enqueue capture: %w", err)
	}
	if !admitted {
		g.discard(mediaID)
		g.logger.Info("duplicate capture rejected",
			logging.String(logging.FieldMediaID, mediaID),
			logging.String("fingerprint", fingerprint),
			logging.String(logging.FieldEventType, "duplicate_rejected"),
		)
		return Receipt{MediaID: mediaID, Accepted: false, Size: size, Fingerprint: fingerprint}, nil
	}

	g.logger.Info("capture admitted",
		logging.String(logging.FieldMediaID, mediaID),
		logging.Int64("size_bytes", size),
		logging.String("fingerprint", fingerprint),
		logging.String(logging.FieldEventType, "capture_admitted"),
	)
	return Receipt{MediaID: mediaID, Accepted: true, Size: size, Fingerprint: fingerprint}, nil
}

func (g *Gate) discard(mediaID string) {
	if err := g.spool.Remove(mediaID); err != nil {
		g.logger.Warn("discard spooled payload",
			logging.String(logging.FieldMediaID, mediaID),
			logging.Error(err),
		)
	}
}

// sanitizeMetadata applies the admission rules: the capture timestamp is
// required, coordinates outside their valid ranges collapse to absent, and
// an unrecognized orientation collapses to unknown.
func sanitizeMetadata(meta capture.Metadata) (capture.Metadata, error) {
	if meta.CapturedAt.IsZero() {
		return meta, errors.New("capture timestamp required")
	}
	meta = meta.Normalized()
	if meta.Location != nil {
		if err := meta.Location.Validate(); err != nil {
			meta.Location = nil
		}
	}
	if _, ok := capture.ParseOrientation(string(meta.Orientation)); !ok {
		meta.Orientation = capture.OrientationUnknown
	}
	return meta, nil
}
