package ingest

import (
	"os"

	"shuttle/internal/capture"
)

// ResolveSubmitMetadata fills metadata gaps for a manually submitted payload.
// Explicit values win, then the payload's sidecar at path+".json", then file
// modification time for the capture timestamp.
func ResolveSubmitMetadata(path string, explicit capture.Metadata) capture.Metadata {
	out := explicit
	if sidecar, err := capture.ReadSidecar(path + sidecarSuffix); err == nil {
		if out.CapturedAt.IsZero() {
			out.CapturedAt = sidecar.CapturedAt
		}
		if out.Location == nil {
			out.Location = sidecar.Location
		}
		if out.Orientation == "" || out.Orientation == capture.OrientationUnknown {
			out.Orientation = sidecar.Orientation
		}
	}
	if out.CapturedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			out.CapturedAt = info.ModTime().UTC()
		}
	}
	return out
}
