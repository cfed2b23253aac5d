package transport

import (
	"fmt"
	"strings"
	"time"
)

// StatusError reports a non-2xx response from the upload endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("upload rejected: http %d", e.StatusCode)
	}
	return fmt.Sprintf("upload rejected: http %d: %s", e.StatusCode, body)
}
