package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"shuttle/internal/logging"
	"shuttle/internal/pipeline"
)

// Bridge adapts the pipeline's event stream to the notification service.
// Pipeline callbacks must return quickly, so each publish runs on its own
// goroutine with a bounded deadline; Wait drains them at shutdown.
type Bridge struct {
	service Service
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

var _ pipeline.Events = (*Bridge)(nil)

// NewBridge wires a notification service into the pipeline event stream.
func NewBridge(service Service, logger *slog.Logger) *Bridge {
	return &Bridge{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notify"),
		timeout: 10 * time.Second,
	}
}

func (b *Bridge) UploadStarted(string) {}

func (b *Bridge) UploadProgress(string, float64) {}

func (b *Bridge) UploadFinished(mediaID string, result pipeline.Result) {
	if result.Success {
		b.publish(EventUploadSucceeded, Payload{
			"mediaId": mediaID,
			"size":    humanize.IBytes(uint64(result.Size)),
			"retries": strconv.Itoa(result.RetryCount),
		})
		return
	}
	errText := "unknown"
	if result.Err != nil {
		errText = result.Err.Error()
	}
	b.publish(EventUploadFailed, Payload{
		"mediaId": mediaID,
		"error":   errText,
		"retries": strconv.Itoa(result.RetryCount),
	})
}

// UploadCanceled stays quiet per task; CancelAll publishes one
// queue-cleared summary instead.
func (b *Bridge) UploadCanceled(string) {}

func (b *Bridge) QueueResumed(restored int) {
	b.publish(EventQueueResumed, Payload{"count": strconv.Itoa(restored)})
}

// QueueCleared publishes the cancel summary. The daemon calls this after
// CancelAll rather than per discarded task.
func (b *Bridge) QueueCleared(count int) {
	b.publish(EventQueueCleared, Payload{"count": strconv.Itoa(count)})
}

// Wait blocks until in-flight publishes have finished.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

func (b *Bridge) publish(event Event, payload Payload) {
	if b == nil || b.service == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.service.Publish(ctx, event, payload); err != nil {
			b.logger.Warn("publish notification",
				logging.String("event", string(event)),
				logging.Error(err),
			)
		}
	}()
}
