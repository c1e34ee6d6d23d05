package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
start_date: "2024-01-01T00:00:00Z"
accounts: ["508", "509"]
page_size: 250
credentials:
  access_token: ${TEST_LINKEDIN_TOKEN}
timeouts:
  request: 45s
streams:
  campaigns:
    selected: true
  ad_analytics_by_campaign:
    selected: true
    fields: [impressions, clicks]
  creatives:
    selected: false
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_LINKEDIN_TOKEN", "secret-token")

	cfg, err := Load(writeConfig(t, "tap.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01T00:00:00Z", cfg.StartDate)
	assert.Equal(t, []string{"508", "509"}, cfg.AccountIDs)
	assert.Equal(t, 250, cfg.PageSize)
	assert.Equal(t, "secret-token", cfg.Credentials.AccessToken)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Request)

	// untouched sections keep their defaults
	assert.Equal(t, DefaultDateWindowSize, cfg.DateWindowSize)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connection)
	assert.Equal(t, 5, cfg.Reliability.RetryAttempts)

	assert.Equal(t, []string{"ad_analytics_by_campaign", "campaigns"}, cfg.SelectedStreams())
	assert.Equal(t, []string{"impressions", "clicks"}, cfg.Streams["ad_analytics_by_campaign"].Fields)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TEST_LINKEDIN_TOKEN", "secret-token")
	t.Setenv("LINKEDIN_ADS_PAGE_SIZE", "900")
	t.Setenv("LINKEDIN_ADS_RELIABILITY_RETRY_ATTEMPTS", "2")

	cfg, err := Load(writeConfig(t, "tap.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 900, cfg.PageSize)
	assert.Equal(t, 2, cfg.Reliability.RetryAttempts)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "tap.json", `{
		"start_date": "2023-06-01",
		"credentials": {"client_id": "id", "client_secret": "s", "refresh_token": "r"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Credentials.HasRefreshGrant())
	assert.False(t, cfg.Credentials.HasAccessToken())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig()
		cfg.StartDate = "2024-01-01"
		cfg.Credentials.AccessToken = "t"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing start date", func(c *Config) { c.StartDate = "" }, "start_date is required"},
		{"bad start date", func(c *Config) { c.StartDate = "yesterday" }, "not a valid date"},
		{"no credentials", func(c *Config) { c.Credentials = CredentialsConfig{} }, "credentials require"},
		{"partial refresh grant", func(c *Config) {
			c.Credentials = CredentialsConfig{ClientID: "id", RefreshToken: "r"}
		}, "credentials require"},
		{"page size too large", func(c *Config) { c.PageSize = 5000 }, "page_size"},
		{"zero window", func(c *Config) { c.DateWindowSize = 0 }, "date_window_size"},
		{"negative rate", func(c *Config) { c.Reliability.RateLimitPerSec = -1 }, "rate_limit_per_sec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.StartDate = "2024-03-01"
	cfg.Credentials.AccessToken = "token"
	cfg.Streams["accounts"] = StreamSelection{Selected: true}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.StartDate, loaded.StartDate)
	assert.Equal(t, []string{"accounts"}, loaded.SelectedStreams())
	assert.Equal(t, cfg.Timeouts.Request, loaded.Timeouts.Request)
}

func TestParseStartDate(t *testing.T) {
	d, err := ParseStartDate("2024-02-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseStartDate("2024-02-03T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 3, 8, 0, 0, 0, time.UTC), d)
}
