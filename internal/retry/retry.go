// retry expresses every bounded wait and retry loop in region-proxy as a
// 'Policy' value: a fixed attempt ceiling and a constant interval. Nothing in
// this package ever loops forever.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/errs"
)

// Policy bounds a retry or polling loop.
type Policy struct {
	// Attempts is the maximum number of calls, including the first.
	Attempts uint
	// Interval is the delay between two consecutive calls.
	Interval time.Duration
}

// Budget is the worst-case time spent sleeping under the policy.
func (p Policy) Budget() time.Duration {
	if p.Attempts == 0 {
		return 0
	}
	return time.Duration(p.Attempts-1) * p.Interval
}

func (p Policy) options(ctx context.Context) []backoff.RetryOption {
	attempts := max(p.Attempts, 1)
	log := clog.FromContext(ctx)
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Interval)),
		backoff.WithMaxTries(attempts),
		// The attempt ceiling is the real limit; the elapsed-time guard only has
		// to be wide enough to never cut it short.
		backoff.WithMaxElapsedTime(time.Duration(attempts) * (p.Interval + time.Minute)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug("retrying", "error", err, "next", next)
		}),
	}
}

// ErrPending is returned (optionally wrapped) by a 'Poll' callback to signal
// that the awaited condition has not been reached yet.
var ErrPending = errors.New("condition not met yet")

// Stop marks 'err' as non-retryable for 'Do'.
func Stop(err error) error {
	return backoff.Permanent(err)
}

// Do calls 'fn' until it returns nil, returns an error marked with 'Stop', or
// the policy's attempts are spent. The last error is returned as-is.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, p.options(ctx)...)
	return err
}

// Poll calls 'fn' until it yields a value. A callback error wrapping
// 'ErrPending' keeps polling; any other error ends the poll immediately.
// Running out of attempts while still pending returns 'errs.ErrTimeout'.
func Poll[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := fn(ctx)
		if err != nil && !errors.Is(err, ErrPending) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.options(ctx)...)
	if errors.Is(err, ErrPending) {
		return v, fmt.Errorf("%w after %d attempts: %w", errs.ErrTimeout, attempts, err)
	}
	return v, err
}
