package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

// RetryPolicy bounds the attempts made for one upstream fetch.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns four attempts with exponential backoff from 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second, AttemptTimeout: 20 * time.Second}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a permanent error, or attempts run out.
// It returns the number of attempts made. Exhaustion is reported as
// upstream_unavailable; cancellation of ctx as cancelled.
func (p RetryPolicy) Do(ctx context.Context, name string, fn func(context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	op := "fetch " + name

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, fault.Wrap(fault.KindCancelled, op, err)
		}

		err := p.attempt(ctx, fn)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return attempt, fault.Wrap(fault.KindCancelled, op, ctx.Err())
		}
		if IsPermanent(err) {
			return attempt, fault.Wrap(fault.KindUpstreamUnavailable, op, err)
		}
		if attempt == maxAttempts {
			break
		}
		metrics.RecordUpstreamRetry(name)

		if d := p.delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, fault.Wrap(fault.KindCancelled, op, ctx.Err())
			case <-timer.C:
			}
		}
	}
	fe := fault.New(fault.KindUpstreamUnavailable, op, "gave up after %d attempts", maxAttempts).With("attempts", maxAttempts)
	fe.Err = lastErr
	return maxAttempts, fe
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(actx)
}
