package engine

import (
	"context"
	"time"

	"github.com/justindra/yaks/pkg/storage"
)

// RetryTransient calls fn up to attempts times while it fails with a
// transient storage error, sleeping backoff before the first retry and
// doubling it each time. Any other error is returned immediately.
func RetryTransient(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}
		err = fn(ctx)
		if err == nil || !storage.IsTransient(err) {
			return err
		}
	}
	return err
}
