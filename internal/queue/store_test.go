package queue_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	capturedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	task := testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{
		MediaID:    "media-1",
		Size:       2048,
		CapturedAt: capturedAt,
	})
	if task.Position == 0 {
		t.Fatal("expected position to be assigned")
	}
	if task.Status != queue.StatusPending {
		t.Fatalf("status = %q, want %q", task.Status, queue.StatusPending)
	}

	fetched, err := store.GetByMediaID(ctx, "media-1")
	if err != nil {
		t.Fatalf("GetByMediaID failed: %v", err)
	}
	if fetched == nil || fetched.Size != 2048 {
		t.Fatalf("unexpected fetched task: %#v", fetched)
	}
	if !fetched.Metadata.CapturedAt.Equal(capturedAt) {
		t.Fatalf("captured_at = %v, want %v", fetched.Metadata.CapturedAt, capturedAt)
	}

	found, err := store.FindByFingerprint(ctx, capture.Fingerprint(2048, capturedAt))
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil || found.MediaID != "media-1" {
		t.Fatalf("expected to find inserted task, got %#v", found)
	}
}

func TestInsertRoundTripsLocation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := queue.Item{
		MediaID:     "media-loc",
		ContentRef:  filepath.Join(cfg.SpoolContentDir(), "media-loc"),
		Endpoint:    cfg.Uploader.Endpoint,
		Size:        64,
		Fingerprint: "fp-loc",
		Metadata: capture.Metadata{
			CapturedAt:  time.Now().UTC(),
			Location:    &capture.Location{Latitude: 47.6097, Longitude: -122.3331},
			Orientation: capture.OrientationLandscapeLeft,
		},
	}
	if _, err := store.Insert(ctx, item); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	fetched, err := store.GetByMediaID(ctx, "media-loc")
	if err != nil {
		t.Fatalf("GetByMediaID failed: %v", err)
	}
	if fetched.Metadata.Location == nil {
		t.Fatal("expected location to round-trip")
	}
	if fetched.Metadata.Location.Latitude != 47.6097 || fetched.Metadata.Location.Longitude != -122.3331 {
		t.Fatalf("location = %+v", fetched.Metadata.Location)
	}
	if fetched.Metadata.Orientation != capture.OrientationLandscapeLeft {
		t.Fatalf("orientation = %q", fetched.Metadata.Orientation)
	}
}

func TestInsertRejectsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	capturedAt := time.Now().UTC()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-dup", Size: 512, CapturedAt: capturedAt})

	dupID := queue.Item{
		MediaID:     "media-dup",
		ContentRef:  "ref",
		Endpoint:    cfg.Uploader.Endpoint,
		Size:        99,
		Fingerprint: "fp-other",
		Metadata:    capture.Metadata{CapturedAt: capturedAt},
	}
	if _, err := store.Insert(ctx, dupID); !errors.Is(err, queue.ErrDuplicateMediaID) {
		t.Fatalf("expected ErrDuplicateMediaID, got %v", err)
	}

	dupFP := queue.Item{
		MediaID:     "media-dup-2",
		ContentRef:  "ref",
		Endpoint:    cfg.Uploader.Endpoint,
		Size:        512,
		Fingerprint: capture.Fingerprint(512, capturedAt),
		Metadata:    capture.Metadata{CapturedAt: capturedAt},
	}
	if _, err := store.Insert(ctx, dupFP); !errors.Is(err, queue.ErrDuplicateFingerprint) {
		t.Fatalf("expected ErrDuplicateFingerprint, got %v", err)
	}
}

func TestNextEligibleFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{
			MediaID:    fmt.Sprintf("media-%d", i),
			Size:       int64(100 + i),
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	next, err := store.NextEligible(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if next == nil || next.MediaID != "media-0" {
		t.Fatalf("expected media-0 first, got %#v", next)
	}
}

func TestNextEligiblePrefersDueRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-a", Size: 100})
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-b", Size: 200})

	// Fail media-b once and make its retry due in the past: it should jump
	// ahead of the older pending task.
	if err := store.MarkUploading(ctx, "media-b"); err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}
	due := time.Now().UTC().Add(-time.Second)
	if err := store.ScheduleRetry(ctx, "media-b", 1, due, "boom"); err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}

	next, err := store.NextEligible(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if next == nil || next.MediaID != "media-b" {
		t.Fatalf("expected retry task first, got %#v", next)
	}
	if next.RetryCount != 1 || next.LastError != "boom" {
		t.Fatalf("retry bookkeeping lost: %#v", next)
	}
}

func TestNextEligibleRespectsBackoff(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-waiting", Size: 100})

	if err := store.MarkUploading(ctx, "media-waiting"); err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}
	future := time.Now().UTC().Add(time.Hour)
	if err := store.ScheduleRetry(ctx, "media-waiting", 1, future, "later"); err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}

	next, err := store.NextEligible(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no eligible task, got %#v", next)
	}

	retryAt, err := store.NextRetryAt(ctx)
	if err != nil {
		t.Fatalf("NextRetryAt failed: %v", err)
	}
	if retryAt == nil {
		t.Fatal("expected a scheduled retry time")
	}
	if diff := retryAt.Sub(future); diff < -time.Second || diff > time.Second {
		t.Fatalf("retry time %v too far from %v", retryAt, future)
	}
}

func TestMarkUploadingGuardsStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-claim", Size: 100})

	if err := store.MarkUploading(ctx, "media-claim"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if err := store.MarkUploading(ctx, "media-claim"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("second claim should fail with ErrNotFound, got %v", err)
	}
	if err := store.MarkUploading(ctx, "media-absent"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("claiming absent task should fail with ErrNotFound, got %v", err)
	}
}

func TestScheduleRetryRequiresUploading(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-park", Size: 100})

	err := store.ScheduleRetry(ctx, "media-park", 1, time.Now().UTC(), "too early")
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-uploading task, got %v", err)
	}
}

func TestRequeueInFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-r1", Size: 100})
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-r2", Size: 200})
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-r3", Size: 300})

	for _, id := range []string{"media-r1", "media-r2"} {
		if err := store.MarkUploading(ctx, id); err != nil {
			t.Fatalf("MarkUploading(%s) failed: %v", id, err)
		}
	}

	requeued, err := store.RequeueInFlight(ctx)
	if err != nil {
		t.Fatalf("RequeueInFlight failed: %v", err)
	}
	if requeued != 2 {
		t.Fatalf("requeued = %d, want 2", requeued)
	}

	tasks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, task := range tasks {
		if task.Status != queue.StatusPending {
			t.Fatalf("task %s status = %q, want pending", task.MediaID, task.Status)
		}
		if task.NextAttemptAt != nil {
			t.Fatalf("task %s still has next_attempt_at", task.MediaID)
		}
	}
}

func TestRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-x", Size: 100})
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-y", Size: 200})

	removed, err := store.Remove(ctx, "media-x")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected Remove to report a deleted row")
	}
	removed, err = store.Remove(ctx, "media-x")
	if err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if removed {
		t.Fatal("second Remove should be a no-op")
	}

	cleared, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-s1", Size: 100})
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-s2", Size: 200})
	if err := store.MarkUploading(ctx, "media-s1"); err != nil {
		t.Fatalf("MarkUploading failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusUploading] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Uploading != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.DatabaseReadable || !dbHealth.TableExists || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected database health: %#v", dbHealth)
	}
	if dbHealth.TotalTasks != 2 {
		t.Fatalf("TotalTasks = %d, want 2", dbHealth.TotalTasks)
	}
}

func TestOpenRecoversUnusableDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if err := os.WriteFile(cfg.DatabasePath(), []byte("this is not a sqlite file"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	if store.RecoveredFrom() == "" {
		t.Fatal("expected recovery to report the moved database path")
	}
	if _, err := os.Stat(store.RecoveredFrom()); err != nil {
		t.Fatalf("moved database missing: %v", err)
	}

	// The fresh database must be writable.
	testsupport.SeedTask(t, store, cfg, testsupport.TaskSeed{MediaID: "media-after", Size: 100})
	task, err := store.GetByMediaID(context.Background(), "media-after")
	if err != nil || task == nil {
		t.Fatalf("fresh database unusable: task=%v err=%v", task, err)
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := queue.ParseStatus("  Retry_Scheduled ")
	if !ok || status != queue.StatusRetryScheduled {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
	if !queue.StatusFailed.IsTerminal() || queue.StatusPending.IsTerminal() {
		t.Fatal("terminal classification wrong")
	}
	if queue.IsPersisted(queue.StatusSucceeded) || !queue.IsPersisted(queue.StatusRetryScheduled) {
		t.Fatal("persisted classification wrong")
	}
}
