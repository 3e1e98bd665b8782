package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry delays between aborted attempts. Contention here is between a
// handful of writers on one document, so the waits stay in milliseconds.
const (
	retryInitialInterval = time.Millisecond
	retryMaxInterval     = 25 * time.Millisecond
)

// RunWithRetry runs attempt until it succeeds, fails with an error other
// than ErrAborted, or maxAttempts runs have aborted. Exhaustion returns an
// error wrapping ErrConflict.
func RunWithRetry(ctx context.Context, maxAttempts int, attempt func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(retryInitialInterval),
		backoff.WithMaxInterval(retryMaxInterval),
		backoff.WithMaxElapsedTime(0),
	)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx)

	attempts := 0
	op := func() error {
		attempts++
		err := attempt(ctx)
		if err == nil || errors.Is(err, ErrAborted) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		slog.Debug("transaction aborted", "attempt", attempts, "max_attempts", maxAttempts,
			"retry_in", next, "error", err)
	}

	err := backoff.RetryNotify(op, b, notify)
	if err == nil || !errors.Is(err, ErrAborted) {
		return err
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConflict, attempts, err)
}
