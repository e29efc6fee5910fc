package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want StatusClass
	}{
		{http.StatusOK, StatusOK},
		{http.StatusTooManyRequests, StatusRetry},
		{http.StatusRequestTimeout, StatusRetry},
		{http.StatusInternalServerError, StatusRetry},
		{http.StatusBadGateway, StatusRetry},
		{http.StatusServiceUnavailable, StatusRetry},
		{http.StatusBadRequest, StatusFail},
		{http.StatusUnauthorized, StatusFail},
		{http.StatusForbidden, StatusFail},
		{http.StatusNotFound, StatusFail},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			if got := ClassifyStatus(tt.code); got != tt.want {
				t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestBackoffBounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 0; attempt < 8; attempt++ {
		expected := base << attempt
		if expected > max {
			expected = max
		}
		for range 20 {
			got := Backoff(attempt, base, max)
			if got < expected/2 || got > expected {
				t.Fatalf("Backoff(%d) = %v, want within [%v, %v]", attempt, got, expected/2, expected)
			}
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), false},
		{"attempt timeout", fmt.Errorf("wrap: %w", context.DeadlineExceeded), true},
		{"transport", errors.New("connection reset by peer"), true},
		{"throttled", &StatusError{StatusCode: 429}, true},
		{"server error", &StatusError{StatusCode: 503}, true},
		{"bad request", &StatusError{StatusCode: 400}, false},
		{"upstream", &UpstreamError{Code: "30"}, false},
		{"bad body", fmt.Errorf("%w: x", ErrUnexpectedBody), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
