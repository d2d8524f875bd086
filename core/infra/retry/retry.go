// Package retry provides a small bounded-retry combinator with linear backoff.
package retry

import (
	"context"
	"time"
)

const (
	// DefaultAttempts bounds how often an operation is tried before its error
	// surfaces to the caller.
	DefaultAttempts = 3
	// DefaultBackoff is multiplied by the attempt number between tries.
	DefaultBackoff = 500 * time.Millisecond
)

// Policy bounds how an operation is retried.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultPolicy is the bounded linear-backoff policy used across the OAuth bridge.
var DefaultPolicy = Policy{Attempts: DefaultAttempts, Backoff: DefaultBackoff}

// Do runs fn up to p.Attempts times, sleeping attempt*p.Backoff between tries.
// It returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx is done while waiting.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	backoff := p.Backoff
	if backoff < 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}
	return lastErr
}
