package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oceanbase/vira-go/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fastPolicy(attempts int) resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := resilience.Retry(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := resilience.Retry(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	policy := fastPolicy(5)
	policy.Retryable = func(err error) bool { return false }

	calls := 0
	err := resilience.Retry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelledContextStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy(5)
	policy.InitialBackoff = time.Hour

	calls := 0
	err := resilience.Retry(ctx, policy, func(ctx context.Context) error {
		calls++
		cancel()
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := resilience.NewBreaker("test", resilience.BreakerConfig{
		MaxFailures:      2,
		OpenTimeout:      time.Hour,
		HalfOpenRequests: 1,
	}, nil)

	ctx := context.Background()
	fail := func(ctx context.Context) error { return errBoom }

	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.Equal(t, "open", b.State())

	called := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b := resilience.NewBreaker("test", resilience.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Hour}, nil)

	err := b.Execute(context.Background(), func(ctx context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())
}

func TestGuard_DoesNotRetryOpenCircuit(t *testing.T) {
	g := &resilience.Guard{
		Policy:  fastPolicy(3),
		Breaker: resilience.NewBreaker("guard", resilience.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Hour}, nil),
	}

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

func TestGuard_AppliesAttemptTimeout(t *testing.T) {
	g := &resilience.Guard{Policy: fastPolicy(1), Timeout: 5 * time.Millisecond}

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_NilIsUnlimited(t *testing.T) {
	var l *resilience.Limiter
	assert.True(t, l.Allow())
	assert.NoError(t, l.Wait(context.Background()))
	assert.Nil(t, resilience.NewLimiter(0, 1))
}

func TestLimiter_BurstExhausted(t *testing.T) {
	l := resilience.NewLimiter(0.001, 1)
	require.NotNil(t, l)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
