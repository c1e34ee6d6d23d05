// Package base provides the BaseConnector that connectors embed. It owns the
// cross-cutting protection around API calls: rate limiting, a circuit
// breaker and retries with exponential backoff.
//
// # Usage
//
//	type MySource struct {
//	    *base.BaseConnector
//	}
//
//	src := &MySource{BaseConnector: base.NewBaseConnector("my-source", core.ConnectorTypeSource, "1.0.0")}
//	if err := src.Initialize(ctx, cfg); err != nil {
//	    return err
//	}
//	api := src.WrapClient(httpClient)
//
// # Lifecycle
//
// 1. Create with NewBaseConnector
// 2. Initialize with Initialize()
// 3. Route API calls through WrapClient or Call
// 4. Close with Close()
package base

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/clients"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/core"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/logger"
	"go.uber.org/zap"
)

// defaultThrottlePause holds requests after a 429 that carries no
// Retry-After header.
const defaultThrottlePause = 5 * time.Second

// BaseConnector provides common functionality for connectors.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.Config
	logger        *zap.Logger

	circuitBreaker *clients.CircuitBreaker
	rateLimiter    clients.RateLimiter
	retryPolicy    *RetryPolicy

	closed     bool
	closeMutex sync.Mutex
}

// NewBaseConnector creates an unconfigured connector.
// Until Initialize is called, calls run once with no rate limit or breaker.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		logger:        logger.Get().With(zap.String("connector", name)),
		retryPolicy:   NoRetryPolicy(),
	}
}

// Initialize sets up the circuit breaker, rate limiter and retry policy
// from the reliability settings.
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	bc.config = cfg

	if cfg.Reliability.CircuitBreaker {
		bc.circuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 1,
		}, bc.logger)
	}

	if cfg.Reliability.IsRateLimited() {
		burst := cfg.Reliability.RateBurst
		if burst <= 0 {
			burst = 1
		}
		bc.rateLimiter = clients.NewTokenBucket(cfg.Reliability.RateLimitPerSec, burst)
	}

	bc.retryPolicy = RetryPolicyFromConfig(cfg.Reliability)
	bc.retryPolicy.OnRetry = func(attempt int, delay time.Duration, err error) {
		bc.logger.Warn("retrying API call",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version),
		zap.Int("retry_attempts", bc.retryPolicy.MaxAttempts),
		zap.Bool("circuit_breaker", bc.circuitBreaker != nil),
		zap.Float64("rate_limit_per_sec", cfg.Reliability.RateLimitPerSec))

	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// ExecuteWithRetry runs fn under the retry policy. Only retryable errors
// (rate limits, timeouts, connection and server failures) are retried.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.Do(ctx, fn, errors.IsRetryable)
}

// ExecuteWithCircuitBreaker executes a function with circuit breaker protection.
// If the circuit is open the function is not executed.
func (bc *BaseConnector) ExecuteWithCircuitBreaker(fn func() error) error {
	if bc.circuitBreaker == nil {
		return fn()
	}
	return bc.circuitBreaker.Execute(fn)
}

// RateLimit enforces the configured rate limit, blocking if necessary.
// Returns immediately if no rate limiter is configured.
func (bc *BaseConnector) RateLimit(ctx context.Context) error {
	if bc.rateLimiter == nil {
		return nil
	}
	return bc.rateLimiter.Wait(ctx)
}

// Call runs fn with rate limiting, circuit breaker protection and retries.
func (bc *BaseConnector) Call(ctx context.Context, fn func() error) error {
	return bc.ExecuteWithRetry(ctx, func() error {
		if err := bc.RateLimit(ctx); err != nil {
			return err
		}
		return bc.ExecuteWithCircuitBreaker(fn)
	})
}

// WrapClient returns an APIClient whose requests go through Call.
func (bc *BaseConnector) WrapClient(next core.APIClient) core.APIClient {
	return &protectedClient{bc: bc, next: next}
}

type protectedClient struct {
	bc   *BaseConnector
	next core.APIClient
}

func (p *protectedClient) Get(ctx context.Context, url, endpoint string, headers map[string]string) (map[string]interface{}, error) {
	var body map[string]interface{}
	err := p.bc.Call(ctx, func() error {
		var err error
		body, err = p.next.Get(ctx, url, endpoint, headers)
		if errors.IsType(err, errors.ErrorTypeRateLimit) {
			p.bc.throttled(err)
		}
		return err
	})
	return body, err
}

// throttled pauses the rate limiter after a 429 so that every stream backs
// off, not only the request being retried.
func (bc *BaseConnector) throttled(err error) {
	if bc.rateLimiter == nil {
		return
	}
	pause, ok := errors.RetryAfter(err)
	if !ok {
		pause = defaultThrottlePause
	}
	bc.rateLimiter.Pause(pause)
	bc.logger.Warn("API throttled, pausing requests", zap.Duration("pause", pause))
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// GetConfig returns the connector configuration
func (bc *BaseConnector) GetConfig() *config.Config {
	return bc.config
}

// GetCircuitBreaker returns the circuit breaker, nil when disabled
func (bc *BaseConnector) GetCircuitBreaker() *clients.CircuitBreaker {
	return bc.circuitBreaker
}

// GetRateLimiter returns the rate limiter, nil when disabled
func (bc *BaseConnector) GetRateLimiter() clients.RateLimiter {
	return bc.rateLimiter
}

// Close shuts down the connector
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}
	bc.closed = true

	if bc.rateLimiter != nil {
		stats := bc.rateLimiter.Stats()
		bc.logger.Info("connector closed",
			zap.Int64("rate_limiter_allowed", stats.Allowed),
			zap.Int64("rate_limiter_throttled", stats.Throttled),
			zap.Int64("rate_limiter_pauses", stats.Pauses),
			zap.Duration("rate_limiter_waited", stats.Waited))
		return nil
	}

	bc.logger.Info("connector closed")
	return nil
}
