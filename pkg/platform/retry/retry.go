// Package retry runs an operation with capped exponential backoff.
package retry

import (
	"context"
	"time"
)

// Backoff configures retry behavior for retryable errors.
type Backoff struct {
	InitialDelay time.Duration // default 100ms
	MaxDelay     time.Duration // default 2s
	MaxRetries   int           // default 3; negative disables retries
	Multiplier   float64       // default 2.0
}

// WithDefaults fills zero fields with the defaults.
func (b Backoff) WithDefaults() Backoff {
	if b.InitialDelay <= 0 {
		b.InitialDelay = 100 * time.Millisecond
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = 2 * time.Second
	}
	if b.MaxRetries < 0 {
		b.MaxRetries = 0
	} else if b.MaxRetries == 0 {
		b.MaxRetries = 3
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2.0
	}
	return b
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// retries are used up. A nil retryable retries every error. The last error
// is returned; ctx cancellation during a wait returns ctx.Err().
func Do(ctx context.Context, b Backoff, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	b = b.WithDefaults()
	var lastErr error
	delay := b.InitialDelay

	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * b.Multiplier)
			if delay > b.MaxDelay {
				delay = b.MaxDelay
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}
	}

	return lastErr
}
