package pipeline

import (
	"time"

	"shuttle/internal/config"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffUnit = time.Second

	// maxBackoffShift bounds the exponent so a misconfigured retry budget
	// cannot overflow the delay arithmetic.
	maxBackoffShift = 20
)

// RetryPolicy decides how many times a failed upload is retried and how
// long each backoff lasts.
type RetryPolicy struct {
	// MaxRetries bounds retries per task; a task is attempted at most
	// MaxRetries+1 times.
	MaxRetries int
	// BackoffUnit scales the exponential delay: after the n-th failure the
	// task waits 2^n units.
	BackoffUnit time.Duration
}

// DefaultRetryPolicy returns the stock policy: three retries on a
// one-second unit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: defaultMaxRetries, BackoffUnit: defaultBackoffUnit}
}

// PolicyFromConfig builds the retry policy from uploader settings.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg == nil {
		return policy
	}
	if cfg.Uploader.MaxRetries >= 0 {
		policy.MaxRetries = cfg.Uploader.MaxRetries
	}
	if cfg.Uploader.RetryBackoffSeconds > 0 {
		policy.BackoffUnit = time.Duration(cfg.Uploader.RetryBackoffSeconds) * time.Second
	}
	return policy
}

// Delay returns the backoff before the next attempt, given the retry count
// after the just-failed attempt was recorded.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	unit := p.BackoffUnit
	if unit <= 0 {
		unit = defaultBackoffUnit
	}
	if retryCount < 1 {
		retryCount = 1
	}
	shift := retryCount
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return time.Duration(int64(1)<<shift) * unit
}
