package notifications_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shuttle/internal/notifications"
	"shuttle/internal/pipeline"
)

type capturingService struct {
	mu     sync.Mutex
	events []notifications.Event
	loads  []notifications.Payload
}

func (c *capturingService) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.loads = append(c.loads, payload)
	return nil
}

func (c *capturingService) published() ([]notifications.Event, []notifications.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]notifications.Event, len(c.events))
	copy(events, c.events)
	loads := make([]notifications.Payload, len(c.loads))
	copy(loads, c.loads)
	return events, loads
}

func TestBridgePublishesTerminalResults(t *testing.T) {
	svc := &capturingService{}
	bridge := notifications.NewBridge(svc, nil)

	bridge.UploadStarted("media-1")
	bridge.UploadProgress("media-1", 0.5)
	bridge.UploadFinished("media-1", pipeline.Result{Success: true, Size: 2048})
	bridge.UploadFinished("media-2", pipeline.Result{Success: false, RetryCount: 3, Err: errors.New("gateway timeout")})
	bridge.QueueResumed(4)
	bridge.QueueCleared(2)
	bridge.Wait()

	events, loads := svc.published()
	if len(events) != 4 {
		t.Fatalf("expected 4 publishes, got %d: %v", len(events), events)
	}

	counts := make(map[notifications.Event]int)
	for _, event := range events {
		counts[event]++
	}
	for _, want := range []notifications.Event{
		notifications.EventUploadSucceeded,
		notifications.EventUploadFailed,
		notifications.EventQueueResumed,
		notifications.EventQueueCleared,
	} {
		if counts[want] != 1 {
			t.Fatalf("expected one %s publish, got %d", want, counts[want])
		}
	}

	for i, event := range events {
		switch event {
		case notifications.EventUploadSucceeded:
			if loads[i]["mediaId"] != "media-1" {
				t.Fatalf("expected media-1, got %q", loads[i]["mediaId"])
			}
			if loads[i]["size"] != "2.0 KiB" {
				t.Fatalf("expected humanized size, got %q", loads[i]["size"])
			}
		case notifications.EventUploadFailed:
			if loads[i]["error"] != "gateway timeout" {
				t.Fatalf("expected error text, got %q", loads[i]["error"])
			}
			if loads[i]["retries"] != "3" {
				t.Fatalf("expected retries 3, got %q", loads[i]["retries"])
			}
		case notifications.EventQueueResumed:
			if loads[i]["count"] != "4" {
				t.Fatalf("expected count 4, got %q", loads[i]["count"])
			}
		case notifications.EventQueueCleared:
			if loads[i]["count"] != "2" {
				t.Fatalf("expected count 2, got %q", loads[i]["count"])
			}
		}
	}
}
