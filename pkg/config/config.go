// Package config provides the configuration model for the LinkedIn Ads tap.
// A single Config structure carries everything a sync run needs.
//
// The configuration is organized into logical sections:
//   - Extraction: start date, accounts, page and window sizes
//   - Credentials: static access token or OAuth2 refresh-token grant
//   - Timeouts and Reliability: HTTP timeouts, retries, rate limits
//   - Streams: which streams and fields are selected
//   - Output and State: where messages and bookmarks go
//   - Observability: logging, metrics and tracing
//
// Example usage:
//
//	cfg, err := config.Load("tap.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.PageSize = 500
package config

import (
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultPageSize is the page size used when none is configured
	DefaultPageSize = 100
	// DefaultDateWindowSize is the analytics window length in days
	DefaultDateWindowSize = 30
	// DefaultAPIVersion is the LinkedIn-Version header value
	DefaultAPIVersion = "202409"
	// MaxPageSize is the largest page the LinkedIn API accepts
	MaxPageSize = 1000
)

// Config is the configuration of one tap instance.
type Config struct {
	// StartDate is the bookmark used for streams that have none yet
	StartDate string `yaml:"start_date" json:"start_date" mapstructure:"start_date"`
	// AccountIDs restricts extraction to these sponsored account IDs
	AccountIDs []string `yaml:"accounts" json:"accounts" mapstructure:"accounts"`
	// PageSize is the number of elements requested per page
	PageSize int `yaml:"page_size" json:"page_size" mapstructure:"page_size"`
	// DateWindowSize is the analytics date window length in days
	DateWindowSize int `yaml:"date_window_size" json:"date_window_size" mapstructure:"date_window_size"`
	// APIVersion is sent as the LinkedIn-Version header
	APIVersion string `yaml:"api_version" json:"api_version" mapstructure:"api_version"`
	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
	// BaseURL replaces https://api.linkedin.com, for proxies and tests
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" mapstructure:"base_url"`

	Credentials   CredentialsConfig          `yaml:"credentials" json:"credentials" mapstructure:"credentials"`
	Timeouts      TimeoutConfig              `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`
	Reliability   ReliabilityConfig          `yaml:"reliability" json:"reliability" mapstructure:"reliability"`
	Streams       map[string]StreamSelection `yaml:"streams" json:"streams" mapstructure:"streams"`
	Output        OutputConfig               `yaml:"output" json:"output" mapstructure:"output"`
	State         StateConfig                `yaml:"state" json:"state" mapstructure:"state"`
	Observability ObservabilityConfig        `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// CredentialsConfig holds API credentials. Either AccessToken or the
// ClientID/ClientSecret/RefreshToken triple must be set.
type CredentialsConfig struct {
	AccessToken  string `yaml:"access_token" json:"access_token" mapstructure:"access_token"`
	ClientID     string `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret" mapstructure:"client_secret"`
	RefreshToken string `yaml:"refresh_token" json:"refresh_token" mapstructure:"refresh_token"`
}

// TimeoutConfig contains HTTP timeout settings.
type TimeoutConfig struct {
	// Request timeout for a single API call
	Request time.Duration `yaml:"request" json:"request" mapstructure:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection" mapstructure:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle" mapstructure:"idle"`
}

// ReliabilityConfig contains retry, rate-limit and circuit breaker settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum attempts for a failed request
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
	// MaxRetryDelay caps the retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay" mapstructure:"max_retry_delay"`
	// CircuitBreaker enables the circuit breaker around API calls
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker" mapstructure:"circuit_breaker"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	// RateBurst is the token bucket capacity
	RateBurst int `yaml:"rate_burst" json:"rate_burst" mapstructure:"rate_burst"`
}

// StreamSelection marks a stream as selected and optionally narrows its fields.
type StreamSelection struct {
	Selected bool     `yaml:"selected" json:"selected" mapstructure:"selected"`
	Fields   []string `yaml:"fields,omitempty" json:"fields,omitempty" mapstructure:"fields"`
}

// OutputConfig selects where tap messages are written.
type OutputConfig struct {
	// Path is the output file; empty means stdout
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// Compression is one of none, gzip, zstd, s2, snappy, lz4
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// CompressionLevel is one of fastest, default, better, best
	CompressionLevel string `yaml:"compression_level,omitempty" json:"compression_level,omitempty" mapstructure:"compression_level"`
}

// StateConfig selects where bookmarks are loaded from and saved to.
type StateConfig struct {
	// URI is a local path, s3://bucket/key or gs://bucket/key
	URI string `yaml:"uri" json:"uri" mapstructure:"uri"`
	// Region is the AWS region for s3:// URIs
	Region string `yaml:"region" json:"region" mapstructure:"region"`
	// CredentialsFile is the GCP credentials file for gs:// URIs
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel          string  `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	LogEncoding       string  `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	EnableMetrics     bool    `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	MetricsAddr       string  `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	EnableTracing     bool    `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		PageSize:       DefaultPageSize,
		DateWindowSize: DefaultDateWindowSize,
		APIVersion:     DefaultAPIVersion,
		UserAgent:      "linkedin-ads-tap/1.0",
		Timeouts: TimeoutConfig{
			Request:    300 * time.Second,
			Connection: 10 * time.Second,
			Idle:       90 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   5,
			RetryDelay:      2 * time.Second,
			MaxRetryDelay:   time.Minute,
			CircuitBreaker:  true,
			RateLimitPerSec: 10,
			RateBurst:       5,
		},
		Streams: map[string]StreamSelection{},
		Output: OutputConfig{
			Compression: "none",
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			MetricsAddr:       ":9102",
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.StartDate == "" {
		return fmt.Errorf("start_date is required")
	}
	if _, err := ParseStartDate(c.StartDate); err != nil {
		return fmt.Errorf("start_date %q is not a valid date: %w", c.StartDate, err)
	}
	if !c.Credentials.HasAccessToken() && !c.Credentials.HasRefreshGrant() {
		return fmt.Errorf("credentials require access_token or client_id, client_secret and refresh_token")
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d", MaxPageSize)
	}
	if c.DateWindowSize <= 0 {
		return fmt.Errorf("date_window_size must be positive")
	}
	if c.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if c.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("rate_limit_per_sec cannot be negative")
	}
	return nil
}

// HasAccessToken returns true if a static token is configured
func (c *CredentialsConfig) HasAccessToken() bool {
	return c.AccessToken != ""
}

// HasRefreshGrant returns true if the refresh-token grant is fully configured
func (c *CredentialsConfig) HasRefreshGrant() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// SelectedStreams returns the names of the selected streams in sorted order.
func (c *Config) SelectedStreams() []string {
	names := make([]string, 0, len(c.Streams))
	for name, sel := range c.Streams {
		if sel.Selected {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ParseStartDate accepts an RFC3339 timestamp or a bare YYYY-MM-DD date.
func ParseStartDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
