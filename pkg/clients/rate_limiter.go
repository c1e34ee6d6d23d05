package clients

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces API requests. Pause stops all requests for a while,
// which is how a 429 from LinkedIn is honoured across every stream sharing
// the limiter.
type RateLimiter interface {
	// Wait blocks until a request may be sent or ctx is done.
	Wait(ctx context.Context) error

	// Pause holds every request for d from now. Overlapping pauses keep
	// the later deadline.
	Pause(d time.Duration)

	// Stats returns counters since creation.
	Stats() RateLimiterStats
}

// RateLimiterStats counts limiter decisions.
type RateLimiterStats struct {
	Rate      float64       `json:"rate"`
	Burst     int           `json:"burst"`
	Allowed   int64         `json:"allowed"`
	Throttled int64         `json:"throttled"`
	Pauses    int64         `json:"pauses"`
	Waited    time.Duration `json:"waited"`
}

// TokenBucket is a token bucket limiter: rate tokens per second up to
// burst, one token per request.
type TokenBucket struct {
	mu sync.Mutex

	rate        float64
	burst       int
	tokens      float64
	last        time.Time
	pausedUntil time.Time
	now         func() time.Time

	stats RateLimiterStats
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	now := time.Now
	return &TokenBucket{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   now(),
		now:    now,
	}
}

// Allow takes a token without waiting and reports whether one was
// available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if _, ok := tb.reserve(); ok {
		tb.stats.Allowed++
		return true
	}
	tb.stats.Throttled++
	return false
}

// Wait blocks until a token is available and no pause is in effect.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		delay, ok := tb.reserve()
		if ok {
			tb.stats.Allowed++
			tb.mu.Unlock()
			return nil
		}
		tb.stats.Throttled++
		tb.stats.Waited += delay
		tb.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Pause implements RateLimiter.
func (tb *TokenBucket) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if until := tb.now().Add(d); until.After(tb.pausedUntil) {
		tb.pausedUntil = until
	}
	tb.stats.Pauses++
}

// Stats implements RateLimiter.
func (tb *TokenBucket) Stats() RateLimiterStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	s := tb.stats
	s.Rate = tb.rate
	s.Burst = tb.burst
	return s
}

// reserve refills the bucket and takes a token. When none can be taken it
// returns how long to wait before trying again. Callers hold mu.
func (tb *TokenBucket) reserve() (time.Duration, bool) {
	now := tb.now()
	if now.Before(tb.pausedUntil) {
		return tb.pausedUntil.Sub(now), false
	}

	tb.tokens += now.Sub(tb.last).Seconds() * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
	tb.last = now

	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}
	if tb.rate <= 0 {
		return time.Second, false
	}
	return time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second)), false
}
