package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHTTPClientGet(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[{"id":508000000001}],"paging":{"links":[]}}`))
	}))
	defer srv.Close()

	tokens, err := NewTokenSource(context.Background(), config.CredentialsConfig{AccessToken: "tkn"}, nil)
	require.NoError(t, err)

	client := NewHTTPClient(DefaultHTTPConfig(), tokens, zaptest.NewLogger(t))
	defer client.Close()

	body, err := client.Get(context.Background(), srv.URL+"/rest/adAccounts?q=search", "accounts",
		map[string]string{"X-Restli-Protocol-Version": "2.0.0"})
	require.NoError(t, err)

	elements, ok := body["elements"].([]interface{})
	require.True(t, ok)
	require.Len(t, elements, 1)
	assert.Equal(t, jsonpool.Number("508000000001"), elements[0].(map[string]interface{})["id"])

	assert.Equal(t, "Bearer tkn", gotHeaders.Get("Authorization"))
	assert.Equal(t, "2.0.0", gotHeaders.Get("X-Restli-Protocol-Version"))
	assert.Equal(t, config.DefaultAPIVersion, gotHeaders.Get("LinkedIn-Version"))

	total, failed := client.Stats()
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(0), failed)
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		errType   errors.ErrorType
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"message":"Resource level throttle limit"}`, errors.ErrorTypeRateLimit, true},
		{"forbidden", http.StatusForbidden, `{"message":"Not enough permissions to access: partnerApiPostsExternal"}`, errors.ErrorTypePermission, false},
		{"server error", http.StatusBadGateway, `bad gateway`, errors.ErrorTypeConnection, true},
		{"bad request", http.StatusBadRequest, `{"message":"Invalid param"}`, errors.ErrorTypeValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewHTTPClient(DefaultHTTPConfig(), nil, zaptest.NewLogger(t))
			_, err := client.Get(context.Background(), srv.URL, "test", nil)
			require.Error(t, err)

			assert.True(t, errors.IsType(err, tt.errType), "got %v", err)
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
			assert.Contains(t, err.Error(), tt.body)
		})
	}
}

func TestHTTPClientDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, nil, nil)
	_, err := client.Get(context.Background(), srv.URL, "test", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestHTTPClientCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewHTTPClient(nil, nil, nil)
	_, err := client.Get(ctx, srv.URL, "test", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewTokenSourceRequiresCredentials(t *testing.T) {
	_, err := NewTokenSource(context.Background(), config.CredentialsConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestHTTPConfigFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.APIVersion = "202501"
	cfg.UserAgent = "custom/2"

	hc := HTTPConfigFromConfig(cfg)
	assert.Equal(t, "202501", hc.APIVersion)
	assert.Equal(t, "custom/2", hc.UserAgent)
	assert.Equal(t, cfg.Timeouts.Request, hc.RequestTimeout)
}

func TestHTTPClientBaseURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.BaseURL = srv.URL + "/"
	client := NewHTTPClient(HTTPConfigFromConfig(cfg), nil, zaptest.NewLogger(t))
	defer client.Close()

	_, err := client.Get(context.Background(), DefaultBaseURL+"/v2/seniorities", "seniorities", nil)
	require.NoError(t, err)
	assert.Equal(t, "/v2/seniorities", gotPath)
}

func TestHTTPClientRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tokens, err := NewTokenSource(context.Background(), config.CredentialsConfig{AccessToken: "tkn"}, nil)
	require.NoError(t, err)
	client := NewHTTPClient(DefaultHTTPConfig(), tokens, zaptest.NewLogger(t))
	defer client.Close()

	_, err = client.Get(context.Background(), srv.URL+"/rest/adAnalytics", "ad_analytics_by_campaign", nil)
	require.Error(t, err)
	d, ok := errors.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, d)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"", 0, false},
		{"120", 2 * time.Minute, true},
		{"-1", 0, false},
		{"Mon, 01 Jan 2024 12:00:30 GMT", 30 * time.Second, true},
		{"Mon, 01 Jan 2024 11:00:00 GMT", 0, true},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value, now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
