package clients

import (
	"context"
	"testing"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewTokenBucket(1, 2)
	rl.now = func() time.Time { return now }
	rl.last = now

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow(), "burst exhausted")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow(), "one token refilled")

	t.Run("pause blocks until it ends", func(t *testing.T) {
		now = now.Add(10 * time.Second)
		rl.Pause(30 * time.Second)
		rl.Pause(5 * time.Second)
		assert.False(t, rl.Allow(), "the longer pause wins")

		now = now.Add(29 * time.Second)
		assert.False(t, rl.Allow())

		now = now.Add(time.Second)
		assert.True(t, rl.Allow())
	})

	stats := rl.Stats()
	assert.Equal(t, int64(4), stats.Allowed)
	assert.Equal(t, int64(3), stats.Throttled)
	assert.Equal(t, int64(2), stats.Pauses)
	assert.Equal(t, 2, stats.Burst)
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	rl := NewTokenBucket(0.001, 1)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)
}

func TestTokenBucketWaitsOutPause(t *testing.T) {
	rl := NewTokenBucket(1000, 10)
	rl.Pause(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, nil)
	cb.now = func() time.Time { return now }

	serverErr := errors.FromHTTPStatus(503, "unavailable")
	forbidden := errors.FromHTTPStatus(403, "nope")

	t.Run("client errors do not trip", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			assert.Error(t, cb.Execute(func() error { return forbidden }))
		}
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		_ = cb.Execute(func() error { return serverErr })
		_ = cb.Execute(func() error { return serverErr })
		assert.Equal(t, StateOpen, cb.State())

		called := false
		err := cb.Execute(func() error { called = true; return nil })
		require.Error(t, err)
		assert.False(t, called)
	})

	t.Run("half-open probe closes", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})
}
