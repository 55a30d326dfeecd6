package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds how often and how fast an operation is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy is used for cluster bootstrap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// Backoff returns the delay before the given retry (1-based), doubling from
// InitialBackoff and capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 16 {
		shift = 16
	}
	d := p.InitialBackoff * time.Duration(1<<shift)
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Retry runs fn until it succeeds, the context ends, or MaxAttempts is
// reached (MaxAttempts <= 0 retries until the context ends). onError, when
// set, observes every failed attempt.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error, onError func(attempt int, err error)) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w: %v", err, lastErr)
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if onError != nil {
			onError(attempt, lastErr)
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, lastErr)
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
}
