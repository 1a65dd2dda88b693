// Package callgate paces all outbound debrid provider calls behind a shared
// rate ceiling. It passes operation errors through untouched and adds no
// result transformation.
package callgate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Gate serializes provider calls under a global requests-per-minute budget.
type Gate struct {
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a gate allowing callsPerMinute sustained calls with the given
// burst. Non-positive inputs fall back to 60/min with a burst of 5.
func New(callsPerMinute, burst int) *Gate {
	if callsPerMinute <= 0 {
		callsPerMinute = 60
	}
	if burst <= 0 {
		burst = 5
	}
	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), burst),
		timeout: 45 * time.Second,
	}
}

// Schedule waits for a rate slot, then runs op with a bounded deadline.
// The operation's own error is returned unchanged.
func (g *Gate) Schedule(ctx context.Context, op func(ctx context.Context) error) error {
	if g == nil {
		return op(ctx)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return op(opCtx)
}

// Call is the typed variant of Schedule for operations that return a value.
func Call[T any](ctx context.Context, g *Gate, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Schedule(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// ErrRateLimited is returned by providers when the remote rejects a call for
// pacing reasons. The cleanup path retries once on it; everywhere else it is
// an ordinary failure.
var ErrRateLimited = errors.New("provider rate limited")

// IsRateLimited reports whether an error carries the rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
