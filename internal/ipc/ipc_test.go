package ipc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/daemon"
	"shuttle/internal/ingest"
	"shuttle/internal/ipc"
	"shuttle/internal/logging"
	"shuttle/internal/notifications"
	"shuttle/internal/pipeline"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
	"shuttle/internal/transport"
)

func TestIPCServerClient(t *testing.T) {
	// The collector rejects every upload so submitted tasks stay queued for
	// the duration of the test.
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(collector.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithEndpoint(collector.URL))
	store := testsupport.MustOpenStore(t, cfg)
	spool, err := capture.OpenSpool(cfg)
	if err != nil {
		t.Fatalf("OpenSpool: %v", err)
	}
	logger := logging.NewNop()
	notifier := notifications.NewService(cfg)
	bridge := notifications.NewBridge(notifier, logger)
	pipe := pipeline.New(cfg, store, spool, transport.NewClient(cfg),
		pipeline.WithEvents(bridge),
		pipeline.WithPollInterval(20*time.Millisecond))
	gate := ingest.NewGate(cfg, spool, pipe, logger)
	watcher := ingest.NewWatcher(cfg, gate, logger)

	d, err := daemon.New(cfg, store, logger, pipe, gate, watcher, notifier, bridge)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	pingResp, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping RPC failed: %v", err)
	}
	if pingResp.PID != os.Getpid() {
		t.Fatalf("expected PID %d, got %d", os.Getpid(), pingResp.PID)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if !strings.HasSuffix(status.QueueDBPath, "queue.db") {
		t.Fatalf("unexpected queue db path: %s", status.QueueDBPath)
	}
	if status.LockPath != cfg.LockPath() {
		t.Fatalf("unexpected lock path: %s", status.LockPath)
	}

	source := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, source, 4096)
	lat, lon := 59.91, 10.75
	submitResp, err := client.Submit(ipc.SubmitRequest{
		Path:        source,
		CapturedAt:  "2026-04-02T08:30:00Z",
		Latitude:    &lat,
		Longitude:   &lon,
		Orientation: "portrait",
	})
	if err != nil {
		t.Fatalf("Submit RPC failed: %v", err)
	}
	if !submitResp.Accepted {
		t.Fatal("expected submission to be accepted")
	}
	if submitResp.SizeBytes != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", submitResp.SizeBytes)
	}
	if submitResp.MediaID == "" || submitResp.Fingerprint == "" {
		t.Fatalf("incomplete submit response: %#v", submitResp)
	}

	// Same size and capture time make the same fingerprint.
	duplicate := filepath.Join(t.TempDir(), "copy.mp4")
	testsupport.WriteFile(t, duplicate, 4096)
	dupResp, err := client.Submit(ipc.SubmitRequest{
		Path:       duplicate,
		CapturedAt: "2026-04-02T08:30:00Z",
	})
	if err != nil {
		t.Fatalf("duplicate Submit RPC failed: %v", err)
	}
	if dupResp.Accepted {
		t.Fatal("expected duplicate submission to be rejected")
	}

	if _, err := client.Submit(ipc.SubmitRequest{Path: source, Orientation: "diagonal"}); err == nil {
		t.Fatal("expected error for unknown orientation")
	}

	listResp, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Tasks) != 1 {
		t.Fatalf("expected 1 queue task, got %d", len(listResp.Tasks))
	}
	if listResp.Tasks[0].MediaID != submitResp.MediaID {
		t.Fatalf("expected task %s, got %s", submitResp.MediaID, listResp.Tasks[0].MediaID)
	}
	if listResp.Tasks[0].Endpoint != collector.URL {
		t.Fatalf("unexpected endpoint: %s", listResp.Tasks[0].Endpoint)
	}

	succeededResp, err := client.QueueList([]string{string(queue.StatusSucceeded)})
	if err != nil {
		t.Fatalf("QueueList filter failed: %v", err)
	}
	if len(succeededResp.Tasks) != 0 {
		t.Fatalf("expected no succeeded tasks, got %d", len(succeededResp.Tasks))
	}

	notifyResp, err := client.TestNotify()
	if err != nil {
		t.Fatalf("TestNotify failed: %v", err)
	}
	if notifyResp.Sent {
		t.Fatal("expected test notification to be skipped without topic")
	}
	if notifyResp.Message == "" {
		t.Fatal("expected notification message")
	}

	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 task cleared, got %d", clearResp.Removed)
	}

	cancelResp, err := client.CancelAll()
	if err != nil {
		t.Fatalf("CancelAll failed: %v", err)
	}
	if cancelResp.Canceled != 0 {
		t.Fatalf("expected empty queue to cancel 0 tasks, got %d", cancelResp.Canceled)
	}

	shutdownResp, err := client.Shutdown()
	if err != nil {
		t.Fatalf("Shutdown RPC failed: %v", err)
	}
	if !shutdownResp.Stopping {
		t.Fatal("expected shutdown acknowledgement")
	}
	select {
	case <-d.ShutdownRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("expected shutdown request to be signaled")
	}
}
