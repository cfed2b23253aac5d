package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/ingest"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
)

type stubAdmitter struct {
	mu     sync.Mutex
	items  []queue.Item
	accept bool
	err    error
}

func (s *stubAdmitter) Enqueue(_ context.Context, item queue.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	s.items = append(s.items, item)
	return s.accept, nil
}

func (s *stubAdmitter) recorded() []queue.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]queue.Item, len(s.items))
	copy(out, s.items)
	return out
}

func newTestGate(t *testing.T, admitter *stubAdmitter) (*ingest.Gate, *capture.Spool, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	spool, err := capture.OpenSpool(cfg)
	if err != nil {
		t.Fatalf("OpenSpool: %v", err)
	}
	return ingest.NewGate(cfg, spool, admitter, nil), spool, cfg
}

func validMetadata() capture.Metadata {
	return capture.Metadata{
		CapturedAt:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Location:    &capture.Location{Latitude: 59.91, Longitude: 10.75},
		Orientation: capture.OrientationPortrait,
	}
}

func TestSubmitSpoolsAndAdmits(t *testing.T) {
	admitter := &stubAdmitter{accept: true}
	gate, spool, cfg := newTestGate(t, admitter)

	payload := "majestic fjord footage"
	receipt, err := gate.Submit(context.Background(), strings.NewReader(payload), validMetadata())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !receipt.Accepted {
		t.Fatal("expected acceptance")
	}
	if _, err := uuid.Parse(receipt.MediaID); err != nil {
		t.Fatalf("expected uuid media id, got %q: %v", receipt.MediaID, err)
	}
	if receipt.Size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), receipt.Size)
	}

	items := admitter.recorded()
	if len(items) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(items))
	}
	item := items[0]
	if item.MediaID != receipt.MediaID {
		t.Fatalf("media id mismatch: %q vs %q", item.MediaID, receipt.MediaID)
	}
	if item.ContentRef != spool.Path(receipt.MediaID) {
		t.Fatalf("expected spool content ref, got %q", item.ContentRef)
	}
	if item.Endpoint != cfg.Uploader.Endpoint {
		t.Fatalf("expected configured endpoint, got %q", item.Endpoint)
	}
	wantFingerprint := capture.Fingerprint(int64(len(payload)), validMetadata().CapturedAt)
	if item.Fingerprint != wantFingerprint {
		t.Fatalf("expected fingerprint %q, got %q", wantFingerprint, item.Fingerprint)
	}

	data, err := os.ReadFile(item.ContentRef)
	if err != nil {
		t.Fatalf("read spooled payload: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("spooled payload mismatch: %q", data)
	}
}

func TestSubmitDuplicateRemovesPayload(t *testing.T) {
	admitter := &stubAdmitter{accept: false}
	gate, spool, _ := newTestGate(t, admitter)

	receipt, err := gate.Submit(context.Background(), strings.NewReader("repeat"), validMetadata())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.Accepted {
		t.Fatal("expected rejection")
	}
	if _, err := os.Stat(spool.Path(receipt.MediaID)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected duplicate payload discarded, stat err=%v", err)
	}
}

func TestSubmitRequiresTimestamp(t *testing.T) {
	admitter := &stubAdmitter{accept: true}
	gate, _, _ := newTestGate(t, admitter)

	meta := validMetadata()
	meta.CapturedAt = time.Time{}
	if _, err := gate.Submit(context.Background(), strings.NewReader("x"), meta); err == nil {
		t.Fatal("expected error for missing timestamp")
	}
	if len(admitter.recorded()) != 0 {
		t.Fatal("expected no enqueue for invalid metadata")
	}
}

func TestSubmitCollapsesInvalidMetadata(t *testing.T) {
	admitter := &stubAdmitter{accept: true}
	gate, _, _ := newTestGate(t, admitter)

	meta := validMetadata()
	meta.Location = &capture.Location{Latitude: 123, Longitude: 10}
	meta.Orientation = capture.Orientation("diagonal")

	receipt, err := gate.Submit(context.Background(), strings.NewReader("x"), meta)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !receipt.Accepted {
		t.Fatal("expected acceptance")
	}
	item := admitter.recorded()[0]
	if item.Metadata.Location != nil {
		t.Fatalf("expected out-of-range location collapsed to absent, got %+v", item.Metadata.Location)
	}
	if item.Metadata.Orientation != capture.OrientationUnknown {
		t.Fatalf("expected unknown orientation, got %q", item.Metadata.Orientation)
	}
}

func TestSubmitFileConsumesSource(t *testing.T) {
	admitter := &stubAdmitter{accept: true}
	gate, spool, _ := newTestGate(t, admitter)

	src := filepath.Join(t.TempDir(), "capture.mov")
	if err := os.WriteFile(src, []byte("file payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	receipt, err := gate.SubmitFile(context.Background(), src, validMetadata())
	if err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	if !receipt.Accepted {
		t.Fatal("expected acceptance")
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source consumed, stat err=%v", err)
	}
	if _, err := os.Stat(spool.Path(receipt.MediaID)); err != nil {
		t.Fatalf("expected spooled payload present: %v", err)
	}
}

func TestSubmitEnqueueErrorDiscardsPayload(t *testing.T) {
	admitter := &stubAdmitter{err: errors.New("store unavailable")}
	gate, spool, _ := newTestGate(t, admitter)

	_, err := gate.Submit(context.Background(), strings.NewReader("x"), validMetadata())
	if err == nil {
		t.Fatal("expected enqueue error to surface")
	}

	entries, readErr := os.ReadDir(spool.Dir())
	if readErr != nil {
		t.Fatalf("read spool dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty spool after failed enqueue, got %d entries", len(entries))
	}
}
