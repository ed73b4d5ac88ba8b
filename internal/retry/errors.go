package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// RateLimitedError signals that the remote explicitly throttled us. It carries
// the wait the remote asked for (zero when the response gave no hint).
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// RemoteError is a non-2xx response from a remote API. 429 and 5xx are
// transient, other 4xx are terminal.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote API error: %d - %s", e.StatusCode, e.Body)
}

// IsRateLimited extracts the throttle wait from an error chain.
func IsRateLimited(err error) (time.Duration, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	var re *RemoteError
	if errors.As(err, &re) && re.StatusCode == 429 {
		return 0, true
	}
	return 0, false
}

var transientPhrases = []string{
	"temporarily unavailable",
	"throttled",
	"timeout",
	"connection reset",
	"connection refused",
	"too many requests",
}

// IsRetryable classifies an error as transient: throttling, network errors,
// 5xx responses and known "try again" phrases.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if _, ok := IsRateLimited(err); ok {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode >= 500 || re.StatusCode == 429
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
