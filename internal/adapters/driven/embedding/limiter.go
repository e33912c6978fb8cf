// Package embedding holds what the embedding adapters share.
package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles calls to a remote embedding provider.
// A nil Limiter never blocks.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter returns a limiter allowing requestsPerSecond calls with a burst of one.
// Returns nil when requestsPerSecond is not positive.
func NewLimiter(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// Wait blocks until a call may be made or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.bucket.Wait(ctx)
}
