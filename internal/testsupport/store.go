package testsupport

import (
	"context"
	"testing"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/config"
	"shuttle/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// TaskSeed describes the capture a seeded task should represent. Zero
// values are filled with usable defaults.
type TaskSeed struct {
	MediaID    string
	ContentRef string
	Size       int64
	CapturedAt time.Time
}

// SeedTask inserts a pending task built from the seed, deriving the
// fingerprint the way the ingest gate does.
func SeedTask(t testing.TB, store *queue.Store, cfg *config.Config, seed TaskSeed) *queue.Task {
	t.Helper()

	if seed.MediaID == "" {
		t.Fatal("SeedTask requires a media id")
	}
	if seed.Size == 0 {
		seed.Size = 1024
	}
	if seed.CapturedAt.IsZero() {
		seed.CapturedAt = time.Now().UTC()
	}
	if seed.ContentRef == "" {
		seed.ContentRef = cfg.SpoolContentDir() + "/" + seed.MediaID
	}

	item := queue.Item{
		MediaID:     seed.MediaID,
		ContentRef:  seed.ContentRef,
		Endpoint:    cfg.Uploader.Endpoint,
		Size:        seed.Size,
		Fingerprint: capture.Fingerprint(seed.Size, seed.CapturedAt),
		Metadata: capture.Metadata{
			CapturedAt:  seed.CapturedAt,
			Orientation: capture.OrientationUnknown,
		},
	}
	task, err := store.Insert(context.Background(), item)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return task
}
