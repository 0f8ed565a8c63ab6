package services

import (
	"context"
	"log/slog"
	"time"
)

const (
	// retryAttempts is how many times a transient external call is tried
	// before the caller degrades or records an error.
	retryAttempts = 3

	// defaultRetryDelay is the backoff before the second attempt. It
	// doubles per attempt.
	defaultRetryDelay = time.Second
)

// withRetry runs fn up to retryAttempts times with doubling backoff.
// Returns the last error when every attempt fails, or the context error
// when cancelled while waiting.
func withRetry(ctx context.Context, logger *slog.Logger, op string, baseDelay time.Duration, fn func() error) error {
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}

	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			logger.Warn("retrying after failure",
				"op", op,
				"attempt", attempt+1,
				"delay", delay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
