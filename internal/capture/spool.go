package capture

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"shuttle/internal/config"
)

// ErrPayloadMissing reports that a spool lookup found no content for the
// requested media ID.
var ErrPayloadMissing = errors.New("capture payload missing")

// Spool stores capture payloads on disk, keyed by media ID, until the upload
// pipeline finishes with them.
type Spool struct {
	contentDir string
}

// OpenSpool prepares the spool content directory from configuration.
func OpenSpool(cfg *config.Config) (*Spool, error) {
	dir := cfg.SpoolContentDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool content dir: %w", err)
	}
	return &Spool{contentDir: dir}, nil
}

// Dir returns the spool content directory.
func (s *Spool) Dir() string {
	return s.contentDir
}

// Path returns the on-disk location for a media ID whether or not content
// exists there yet.
func (s *Spool) Path(mediaID string) string {
	return filepath.Join(s.contentDir, mediaID)
}

// Stat reports the payload size for a media ID. Missing content returns
// ErrPayloadMissing.
func (s *Spool) Stat(mediaID string) (int64, error) {
	info, err := os.Stat(s.Path(mediaID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrPayloadMissing, mediaID)
		}
		return 0, fmt.Errorf("stat payload %s: %w", mediaID, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("payload path %s is a directory", s.Path(mediaID))
	}
	return info.Size(), nil
}

// Open opens the payload for reading. Missing content returns
// ErrPayloadMissing.
func (s *Spool) Open(mediaID string) (*os.File, error) {
	f, err := os.Open(s.Path(mediaID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPayloadMissing, mediaID)
		}
		return nil, fmt.Errorf("open payload %s: %w", mediaID, err)
	}
	return f, nil
}

// Store streams a payload into the spool. The content is written to a temp
// file and renamed into place so readers never observe a partial payload.
func (s *Spool) Store(mediaID string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.contentDir, ".incoming-*")
	if err != nil {
		return 0, fmt.Errorf("create spool temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("write payload %s: %w", mediaID, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("sync payload %s: %w", mediaID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("close payload %s: %w", mediaID, err)
	}
	if err := os.Rename(tmpName, s.Path(mediaID)); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("publish payload %s: %w", mediaID, err)
	}
	return written, nil
}

// ImportFile moves an existing file into the spool. A plain rename is used
// when source and spool share a filesystem; otherwise the content is copied
// with integrity verification and the source removed afterwards.
func (s *Spool) ImportFile(mediaID, src string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat import source: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("import source %s is a directory", src)
	}

	dst := s.Path(mediaID)
	if err := os.Rename(src, dst); err == nil {
		return info.Size(), nil
	}

	if err := copyVerified(src, dst); err != nil {
		return 0, fmt.Errorf("import payload %s: %w", mediaID, err)
	}
	if err := os.Remove(src); err != nil {
		return 0, fmt.Errorf("remove import source: %w", err)
	}
	return info.Size(), nil
}

// Remove deletes the payload for a media ID. Removing absent content is not
// an error.
func (s *Spool) Remove(mediaID string) error {
	if err := os.Remove(s.Path(mediaID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove payload %s: %w", mediaID, err)
	}
	return nil
}

// copyVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func copyVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
