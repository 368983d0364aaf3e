package retry

import (
	"context"
	"time"

	"github.com/tasknetics/taskcore/errors"
	"github.com/tasknetics/taskcore/result"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt. Default: 1s.
	InitialDelay time.Duration

	// MaxDelay caps the backoff growth. Default: 30s.
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay after each attempt. Default: 2.
	BackoffFactor float64

	// RetryIf decides per-error whether another attempt is worthwhile.
	// Nil means errors.IsRetryable.
	RetryIf func(error) bool
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.BackoffFactor <= 1 {
		p.BackoffFactor = 2
	}
	if p.RetryIf == nil {
		p.RetryIf = errors.IsRetryable
	}
	return p
}

// Do runs fn up to policy.MaxAttempts times with geometric backoff and
// returns a tagged Result. A non-retryable error aborts immediately.
// Context cancellation between attempts aborts with the context error.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) result.Result[T] {
	p := policy.normalized()
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		data, err := fn(ctx)
		if err == nil {
			return result.Ok(data)
		}
		lastErr = err

		if !p.RetryIf(err) {
			return result.Errf[T](err, "attempt %d failed with non-retryable error", attempt)
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return result.Err[T](errors.Wrap(ctx.Err(), "retry aborted"), "")
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return result.Errf[T](lastErr, "all %d attempts failed", p.MaxAttempts)
}

// DoErr is Do for operations with no return value.
func DoErr(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	r := Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return r.Err()
}

// WithTimeout runs fn with a deadline and returns its Result, or a TIMEOUT
// failure if the deadline passes first. The wrapped fn observes the
// cancellation through its context; a slower outcome is discarded.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) result.Result[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data T
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		data, err := fn(ctx)
		ch <- outcome{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return result.Err[T](errors.Wrap(ctx.Err(), "operation deadline exceeded"), "")
	case out := <-ch:
		if out.err != nil {
			return result.Err[T](out.err, "")
		}
		return result.Ok(out.data)
	}
}
