// ABOUTME: Retry classification and exponential backoff for the run orchestrator
// ABOUTME: IsRetriable is the single place that decides retry versus fatal

package connect

import (
	"context"
	"strings"
	"time"

	"github.com/2389/coven-link/internal/exec"
)

// IsRetriable reports whether a failed attempt may be retried.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if exec.IsLostConnection(err) {
		return true
	}
	return strings.Contains(err.Error(), "NGHTTP2")
}

// Backoff returns the wait before retry number attempt (1-based):
// base, 2*base, 4*base, ... capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
