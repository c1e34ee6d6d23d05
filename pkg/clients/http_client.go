// Package clients provides the HTTP client used to talk to the LinkedIn
// Marketing API: an HTTP/2 capable transport with bearer-token auth, JSON
// decoding and typed errors for non-2xx responses.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the host every API URL is built against.
	DefaultBaseURL = "https://api.linkedin.com"

	// maxErrorBody caps how much of an error response body is kept.
	maxErrorBody = 64 << 10
)

// HTTPClient performs authenticated GET requests and decodes JSON bodies
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	totalRequests  int64
	failedRequests int64
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`

	// Default headers
	UserAgent  string `json:"user_agent"`
	APIVersion string `json:"api_version"`

	// BaseURL, when set, replaces DefaultBaseURL in request URLs
	BaseURL string `json:"base_url"`
}

// DefaultHTTPConfig returns default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		RequestTimeout:        300 * time.Second,
		KeepAlive:             30 * time.Second,
		UserAgent:             "linkedin-ads-tap/1.0",
		APIVersion:            config.DefaultAPIVersion,
	}
}

// HTTPConfigFromConfig derives client settings from the tap configuration.
func HTTPConfigFromConfig(cfg *config.Config) *HTTPConfig {
	hc := DefaultHTTPConfig()
	if cfg.Timeouts.Request > 0 {
		hc.RequestTimeout = cfg.Timeouts.Request
		hc.ResponseHeaderTimeout = cfg.Timeouts.Request
	}
	if cfg.Timeouts.Connection > 0 {
		hc.DialTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Idle > 0 {
		hc.IdleConnTimeout = cfg.Timeouts.Idle
	}
	if cfg.UserAgent != "" {
		hc.UserAgent = cfg.UserAgent
	}
	if cfg.APIVersion != "" {
		hc.APIVersion = cfg.APIVersion
	}
	hc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return hc
}

// NewHTTPClient creates a client. A nil token source sends unauthenticated
// requests.
func NewHTTPClient(cfg *HTTPConfig, tokens oauth2.TokenSource, logger *zap.Logger) *HTTPClient {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config: cfg,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	var rt http.RoundTripper = client.transport
	if tokens != nil {
		rt = authTransport(tokens, rt)
	}

	client.httpClient = &http.Client{
		Transport: rt,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return client
}

// Get fetches url and decodes the JSON object body. endpoint labels logs
// and metrics. Non-2xx responses return an *errors.Error whose message
// carries the status code and response body.
func (c *HTTPClient) Get(ctx context.Context, url, endpoint string, headers map[string]string) (map[string]interface{}, error) {
	if c.config.BaseURL != "" && strings.HasPrefix(url, DefaultBaseURL) {
		url = c.config.BaseURL + strings.TrimPrefix(url, DefaultBaseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to create HTTP request").
			WithDetail("url", url)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.APIVersion != "" {
		req.Header.Set("LinkedIn-Version", c.config.APIVersion)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	atomic.AddInt64(&c.totalRequests, 1)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		metrics.ObserveAPIRequest(endpoint, "error", time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "HTTP request failed").
			WithDetail("endpoint", endpoint)
	}
	defer resp.Body.Close()

	metrics.ObserveAPIRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		atomic.AddInt64(&c.failedRequests, 1)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("API request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		apiErr := errors.FromHTTPStatus(resp.StatusCode, string(body)).
			WithDetail("endpoint", endpoint).
			WithDetail("url", url)
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			apiErr = apiErr.WithDetail(errors.DetailRetryAfter, d)
		}
		return nil, apiErr
	}

	body, err := jsonpool.DecodeObject(resp.Body)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode response body").
			WithDetail("endpoint", endpoint)
	}

	return body, nil
}

// parseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// Stats returns request counters
func (c *HTTPClient) Stats() (total, failed int64) {
	return atomic.LoadInt64(&c.totalRequests), atomic.LoadInt64(&c.failedRequests)
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}
