package resilience

import (
	"context"
	"time"
)

// Guard combines a retry policy, an optional breaker, an optional limiter
// and a per-attempt timeout. The zero value runs fn once.
type Guard struct {
	Policy  Policy
	Breaker *Breaker
	Limiter *Limiter
	Timeout time.Duration
}

// Do runs fn under the guard. Each attempt waits for the limiter, passes
// through the breaker and gets its own timeout derived from ctx.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	return Retry(ctx, g.Policy, func(ctx context.Context) error {
		if err := g.Limiter.Wait(ctx); err != nil {
			return err
		}
		attempt := func(ctx context.Context) error {
			if g.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.Timeout)
				defer cancel()
			}
			return fn(ctx)
		}
		if g.Breaker == nil {
			return attempt(ctx)
		}
		return g.Breaker.Execute(ctx, attempt)
	})
}
