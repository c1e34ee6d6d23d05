package base

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
)

// RetryPolicy retries a call with exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each delay uniformly over delay*(1±Jitter).
	Jitter float64

	// OnRetry, if set, is called before sleeping for another attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewRetryPolicy creates a policy doubling from initialDelay, capped at
// five minutes.
func NewRetryPolicy(maxAttempts int, initialDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     5 * time.Minute,
		Multiplier:   2,
		Jitter:       0.25,
	}
}

// RetryPolicyFromConfig builds the policy for API calls from the
// reliability settings.
func RetryPolicyFromConfig(cfg config.ReliabilityConfig) *RetryPolicy {
	policy := NewRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay)
	if cfg.MaxRetryDelay > 0 {
		policy.MaxDelay = cfg.MaxRetryDelay
	}
	return policy
}

// NoRetryPolicy returns a policy that runs the call once.
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 1}
}

// Execute retries fn on any error.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	return rp.Do(ctx, fn, nil)
}

// Do runs fn until it succeeds, retryable rejects its error, or the
// attempts are used up. A nil retryable retries every error. Rejected
// errors are returned as is; exhausted ones are wrapped with the attempt
// count.
func (rp *RetryPolicy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := rp.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || (retryable != nil && !retryable(err)) {
			return err
		}
		if attempt+1 >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("all %d attempts failed: %w", attempts, err)
		}

		delay := rp.Delay(attempt)
		if rp.OnRetry != nil {
			rp.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Delay returns the backoff before retry number attempt+1.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if rp.MaxDelay > 0 && d > float64(rp.MaxDelay) {
		d = float64(rp.MaxDelay)
	}
	if rp.Jitter > 0 {
		d += d * rp.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}
