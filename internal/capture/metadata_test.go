package capture

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseOrientation(t *testing.T) {
	cases := []struct {
		input string
		want  Orientation
		ok    bool
	}{
		{"portrait", OrientationPortrait, true},
		{"  Landscape_Left ", OrientationLandscapeLeft, true},
		{"", OrientationUnknown, true},
		{"sideways", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseOrientation(tc.input)
		if ok != tc.ok {
			t.Fatalf("ParseOrientation(%q) ok = %v, want %v", tc.input, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseOrientation(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMetadataValidate(t *testing.T) {
	meta := Metadata{
		CapturedAt:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Location:    &Location{Latitude: 47.6, Longitude: -122.3},
		Orientation: OrientationPortrait,
	}
	if err := meta.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	missing := meta
	missing.CapturedAt = time.Time{}
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error for zero captured_at")
	}

	badLat := meta
	badLat.Location = &Location{Latitude: 99, Longitude: 0}
	if err := badLat.Validate(); err == nil || !strings.Contains(err.Error(), "latitude") {
		t.Fatalf("expected latitude range error, got %v", err)
	}

	badOrientation := meta
	badOrientation.Orientation = "diagonal"
	if err := badOrientation.Validate(); err == nil {
		t.Fatal("expected error for unknown orientation")
	}
}

func TestMetadataNormalized(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	meta := Metadata{CapturedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, loc)}
	normalized := meta.Normalized()
	if normalized.Orientation != OrientationUnknown {
		t.Fatalf("orientation = %q, want %q", normalized.Orientation, OrientationUnknown)
	}
	if normalized.CapturedAt.Location() != time.UTC {
		t.Fatalf("captured_at not normalized to UTC: %v", normalized.CapturedAt)
	}
	if !normalized.CapturedAt.Equal(meta.CapturedAt) {
		t.Fatal("normalization changed the instant")
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip-1.json")

	meta := Metadata{
		CapturedAt:  time.Date(2026, 3, 14, 9, 26, 53, 500000000, time.UTC),
		Location:    &Location{Latitude: -33.86, Longitude: 151.2},
		Orientation: OrientationLandscapeRight,
	}
	if err := WriteSidecar(path, meta); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}

	got, err := ReadSidecar(path)
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if !got.CapturedAt.Equal(meta.CapturedAt) {
		t.Fatalf("captured_at = %v, want %v", got.CapturedAt, meta.CapturedAt)
	}
	if got.Location == nil || got.Location.Latitude != meta.Location.Latitude || got.Location.Longitude != meta.Location.Longitude {
		t.Fatalf("location = %+v, want %+v", got.Location, meta.Location)
	}
	if got.Orientation != meta.Orientation {
		t.Fatalf("orientation = %q, want %q", got.Orientation, meta.Orientation)
	}
}

func TestSidecarRejectsLoneCoordinate(t *testing.T) {
	lat := 10.0
	side := Sidecar{CapturedAt: time.Now(), Latitude: &lat}
	if _, err := side.Metadata(); err == nil {
		t.Fatal("expected error for latitude without longitude")
	}
}
