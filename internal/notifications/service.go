package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shuttle/internal/config"
)

const userAgent = "Shuttle-Go/0.1.0"

// Event enumerates the notification-worthy pipeline milestones.
type Event string

const (
	EventDaemonStarted   Event = "daemon_started"
	EventDaemonStopped   Event = "daemon_stopped"
	EventUploadSucceeded Event = "upload_succeeded"
	EventUploadFailed    Event = "upload_failed"
	EventQueueResumed    Event = "queue_resumed"
	EventQueueCleared    Event = "queue_cleared"
	EventTest            Event = "test"
)

// Payload carries the template values for an event's message.
type Payload map[string]string

// Service defines the notification surface exposed to pipeline components.
// Publish never blocks on queue internals; suppressed or unknown events
// return nil without a network call.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		queueEvents: cfg.Notifications.Queue,
		errorEvents: cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	queueEvents bool
	errorEvents bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// render maps an event to its ntfy message. The second return reports
// whether the event should be sent at all given the config toggles.
func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventDaemonStarted:
		return message{
			title: "Shuttle - Daemon",
			body:  "Upload daemon started",
			tags:  []string{"shuttle", "daemon"},
		}, true
	case EventDaemonStopped:
		return message{
			title: "Shuttle - Daemon",
			body:  "Upload daemon stopped",
			tags:  []string{"shuttle", "daemon"},
		}, true
	case EventUploadSucceeded:
		if !n.queueEvents {
			return message{}, false
		}
		body := fmt.Sprintf("⬆️ Uploaded: %s", payload.value("mediaId", "unknown"))
		if size := payload.value("size", ""); size != "" {
			body = fmt.Sprintf("%s (%s)", body, size)
		}
		return message{
			title: "Shuttle - Upload Complete",
			body:  body,
			tags:  []string{"shuttle", "upload", "completed"},
		}, true
	case EventUploadFailed:
		if !n.errorEvents {
			return message{}, false
		}
		return message{
			title:    "Shuttle - Upload Failed",
			body:     fmt.Sprintf("❌ Upload failed: %s: %s", payload.value("mediaId", "unknown"), payload.value("error", "unknown")),
			tags:     []string{"shuttle", "upload", "failed"},
			priority: "high",
		}, true
	case EventQueueResumed:
		if !n.queueEvents {
			return message{}, false
		}
		return message{
			title: "Shuttle - Queue Resumed",
			body:  fmt.Sprintf("Resumed %s pending upload(s)", payload.value("count", "0")),
			tags:  []string{"shuttle", "queue", "resumed"},
		}, true
	case EventQueueCleared:
		if !n.queueEvents {
			return message{}, false
		}
		return message{
			title: "Shuttle - Queue Cleared",
			body:  fmt.Sprintf("Discarded %s queued upload(s)", payload.value("count", "0")),
			tags:  []string{"shuttle", "queue", "cleared"},
		}, true
	case EventTest:
		return message{
			title:    "Shuttle - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"shuttle", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) value(key, fallback string) string {
	if p == nil {
		return fallback
	}
	if v := strings.TrimSpace(p[key]); v != "" {
		return v
	}
	return fallback
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
