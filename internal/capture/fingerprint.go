package capture

import (
	"fmt"
	"time"
)

// Fingerprint derives the duplicate-detection key for a capture: payload
// size plus the capture timestamp truncated to whole seconds. Truncation
// keeps sub-second jitter between repeated hand-offs of the same recording
// from defeating the match.
func Fingerprint(size int64, capturedAt time.Time) string {
	return fmt.Sprintf("%d:%d", size, capturedAt.UTC().Unix())
}
