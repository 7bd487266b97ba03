package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a client-side token bucket. A nil *Limiter never waits.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond calls with the given burst. perSecond <= 0
// returns nil (unlimited).
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed now without waiting.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
