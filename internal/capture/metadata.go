package capture

import (
	"fmt"
	"strings"
	"time"
)

// Orientation describes the physical device orientation at record time.
type Orientation string

const (
	OrientationUnknown            Orientation = "unknown"
	OrientationPortrait           Orientation = "portrait"
	OrientationPortraitUpsideDown Orientation = "portrait_upside_down"
	OrientationLandscapeLeft      Orientation = "landscape_left"
	OrientationLandscapeRight     Orientation = "landscape_right"
)

var allOrientations = []Orientation{
	OrientationUnknown,
	OrientationPortrait,
	OrientationPortraitUpsideDown,
	OrientationLandscapeLeft,
	OrientationLandscapeRight,
}

var orientationSet = func() map[Orientation]struct{} {
	set := make(map[Orientation]struct{}, len(allOrientations))
	for _, orientation := range allOrientations {
		set[orientation] = struct{}{}
	}
	return set
}()

// ParseOrientation converts a string into a known Orientation. Empty input
// parses as OrientationUnknown.
func ParseOrientation(value string) (Orientation, bool) {
	normalized := Orientation(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return OrientationUnknown, true
	}
	_, ok := orientationSet[normalized]
	return normalized, ok
}

// Location is a GPS fix recorded alongside a capture.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Validate rejects coordinates outside the WGS84 envelope.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", l.Longitude)
	}
	return nil
}

// Metadata carries the recording context for a single capture. Location is
// nil when the device had no fix.
type Metadata struct {
	CapturedAt  time.Time
	Location    *Location
	Orientation Orientation
}

// Validate checks the metadata invariants enforced at ingest: a real capture
// timestamp, a plausible location when one is present, and a known
// orientation value.
func (m Metadata) Validate() error {
	if m.CapturedAt.IsZero() {
		return fmt.Errorf("captured_at is required")
	}
	if m.Location != nil {
		if err := m.Location.Validate(); err != nil {
			return fmt.Errorf("location: %w", err)
		}
	}
	if m.Orientation != "" {
		if _, ok := orientationSet[m.Orientation]; !ok {
			return fmt.Errorf("unknown orientation %q", m.Orientation)
		}
	}
	return nil
}

// Normalized returns a copy with defaults applied: UTC timestamp and an
// explicit OrientationUnknown instead of the empty string.
func (m Metadata) Normalized() Metadata {
	out := m
	out.CapturedAt = m.CapturedAt.UTC()
	if out.Orientation == "" {
		out.Orientation = OrientationUnknown
	}
	return out
}
