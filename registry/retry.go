package registry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"
)

// StatusClass groups upstream HTTP statuses by how the client reacts.
type StatusClass int

const (
	StatusOK StatusClass = iota
	StatusRetry
	StatusFail
)

// ClassifyStatus decides whether a response status is worth another
// attempt. Throttling, timeouts and server errors are; other 4xx are not.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return StatusOK
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return StatusRetry
	case code >= 500:
		return StatusRetry
	default:
		return StatusFail
	}
}

// Backoff returns the delay before retry number attempt (0-based): base
// doubled per attempt, capped at max, with the upper half randomized.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

// IsRetryable reports whether a failed attempt may be repeated. Transport
// errors and per-attempt timeouts are retryable; protocol-level rejections
// and caller cancellation are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.StatusCode) == StatusRetry
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return false
	}

	return !errors.Is(err, ErrUnexpectedBody)
}
