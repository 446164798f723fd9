// Package ratelimit provides the single rate limiter shared by every
// REST-issuing component. The configured ceiling is the aggregate across all
// callers, not a per-caller budget.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates outbound REST calls.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing rps requests per second with the given burst.
func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request slot is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed immediately without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
