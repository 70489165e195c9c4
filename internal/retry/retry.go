// Package retry provides a small fixed-attempt retry wrapper with
// exponential backoff, used around datastore queries.
package retry

import (
	"context"
	"time"
)

// Do runs fn up to attempts times. After each failure it waits baseDelay,
// doubling the wait between attempts.  The last error is returned once
// attempts are exhausted; context cancellation aborts the wait.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
