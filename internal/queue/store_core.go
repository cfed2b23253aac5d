package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shuttle/internal/config"
)

// Store manages upload task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string

	// recoveredFrom holds the path an unusable database was moved to during
	// Open. Empty when the database opened cleanly.
	recoveredFrom string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the queue database. A database that cannot
// be read, or whose schema version no longer matches, is moved aside and a
// fresh one created in its place; RecoveredFrom reports the moved path so
// callers can log it. Queued work is transient, so losing it beats refusing
// to start.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	store, err := openAt(dbPath)
	if err == nil {
		return store, nil
	}
	if !isUnusableDatabase(err) {
		return nil, err
	}

	movedTo, moveErr := moveDatabaseAside(dbPath)
	if moveErr != nil {
		return nil, fmt.Errorf("recover queue database: %w (original error: %v)", moveErr, err)
	}
	store, retryErr := openAt(dbPath)
	if retryErr != nil {
		return nil, fmt.Errorf("reopen queue database after recovery: %w", retryErr)
	}
	store.recoveredFrom = movedTo
	return store, nil
}

func openAt(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// isUnusableDatabase reports whether an open error means the file on disk is
// not a usable queue database, as opposed to an environmental failure.
func isUnusableDatabase(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSchemaMismatch) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "unsupported file format")
}

func moveDatabaseAside(dbPath string) (string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return "", fmt.Errorf("stat queue database: %w", err)
	}
	suffix := time.Now().UTC().Format("20060102T150405Z")
	movedTo := fmt.Sprintf("%s.unusable-%s", dbPath, suffix)
	if err := os.Rename(dbPath, movedTo); err != nil {
		return "", fmt.Errorf("move queue database aside: %w", err)
	}
	// WAL siblings belong to the moved file; a fresh database must not see them.
	for _, ext := range []string{"-wal", "-shm"} {
		sibling := dbPath + ext
		if _, err := os.Stat(sibling); err == nil {
			_ = os.Rename(sibling, movedTo+ext)
		}
	}
	return movedTo, nil
}

// RecoveredFrom returns the path an unusable database was moved to during
// Open, or empty when no recovery happened.
func (s *Store) RecoveredFrom() string {
	if s == nil {
		return ""
	}
	return s.recoveredFrom
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
