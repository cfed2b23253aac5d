package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Sidecar is the JSON document that accompanies a payload dropped into the
// spool inbox. The watcher reads it to build capture metadata; producers
// write it last so a payload is never picked up without its metadata.
type Sidecar struct {
	CapturedAt  time.Time `json:"captured_at"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Orientation string    `json:"orientation,omitempty"`
}

// Metadata validates the sidecar fields and converts them into capture
// metadata.
func (s Sidecar) Metadata() (Metadata, error) {
	if (s.Latitude == nil) != (s.Longitude == nil) {
		return Metadata{}, errors.New("latitude and longitude must be provided together")
	}
	orientation, ok := ParseOrientation(s.Orientation)
	if !ok {
		return Metadata{}, fmt.Errorf("unknown orientation %q", s.Orientation)
	}
	meta := Metadata{
		CapturedAt:  s.CapturedAt,
		Orientation: orientation,
	}
	if s.Latitude != nil {
		meta.Location = &Location{Latitude: *s.Latitude, Longitude: *s.Longitude}
	}
	meta = meta.Normalized()
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// SidecarFor builds the sidecar document describing the given metadata.
func SidecarFor(meta Metadata) Sidecar {
	side := Sidecar{
		CapturedAt:  meta.CapturedAt.UTC(),
		Orientation: string(meta.Orientation),
	}
	if meta.Location != nil {
		lat := meta.Location.Latitude
		lon := meta.Location.Longitude
		side.Latitude = &lat
		side.Longitude = &lon
	}
	return side
}

// ReadSidecar loads and validates a sidecar file.
func ReadSidecar(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read sidecar: %w", err)
	}
	var side Sidecar
	if err := json.Unmarshal(raw, &side); err != nil {
		return Metadata{}, fmt.Errorf("parse sidecar %s: %w", path, err)
	}
	meta, err := side.Metadata()
	if err != nil {
		return Metadata{}, fmt.Errorf("sidecar %s: %w", path, err)
	}
	return meta, nil
}

// WriteSidecar persists metadata as a sidecar document next to a payload.
func WriteSidecar(path string, meta Metadata) error {
	raw, err := json.MarshalIndent(SidecarFor(meta), "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
