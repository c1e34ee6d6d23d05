package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configName is the config file name searched when no path is given.
const configName = ".linkedin-ads"

// envPrefix is the environment variable prefix for tap settings.
const envPrefix = "LINKEDIN_ADS"

// Load loads configuration from file, LINKEDIN_ADS_* env vars and defaults.
// If filePath is empty, .linkedin-ads.yaml is searched in the CWD and $HOME;
// a missing file is not an error. ${VAR} references in an explicit file are
// replaced with environment values before parsing.
func Load(filePath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v, NewConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		v.SetConfigType(configType(filePath))
		if err := v.ReadConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := NewConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyDefaults registers every known key so AutomaticEnv can override it.
func applyDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("start_date", d.StartDate)
	v.SetDefault("accounts", d.AccountIDs)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("date_window_size", d.DateWindowSize)
	v.SetDefault("api_version", d.APIVersion)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("base_url", d.BaseURL)

	v.SetDefault("credentials.access_token", "")
	v.SetDefault("credentials.client_id", "")
	v.SetDefault("credentials.client_secret", "")
	v.SetDefault("credentials.refresh_token", "")

	v.SetDefault("timeouts.request", d.Timeouts.Request)
	v.SetDefault("timeouts.connection", d.Timeouts.Connection)
	v.SetDefault("timeouts.idle", d.Timeouts.Idle)

	v.SetDefault("reliability.retry_attempts", d.Reliability.RetryAttempts)
	v.SetDefault("reliability.retry_delay", d.Reliability.RetryDelay)
	v.SetDefault("reliability.max_retry_delay", d.Reliability.MaxRetryDelay)
	v.SetDefault("reliability.circuit_breaker", d.Reliability.CircuitBreaker)
	v.SetDefault("reliability.rate_limit_per_sec", d.Reliability.RateLimitPerSec)
	v.SetDefault("reliability.rate_burst", d.Reliability.RateBurst)

	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.compression", d.Output.Compression)
	v.SetDefault("output.compression_level", d.Output.CompressionLevel)

	v.SetDefault("state.uri", d.State.URI)
	v.SetDefault("state.region", d.State.Region)
	v.SetDefault("state.credentials_file", d.State.CredentialsFile)

	v.SetDefault("observability.log_level", d.Observability.LogLevel)
	v.SetDefault("observability.log_encoding", d.Observability.LogEncoding)
	v.SetDefault("observability.enable_metrics", d.Observability.EnableMetrics)
	v.SetDefault("observability.metrics_addr", d.Observability.MetricsAddr)
	v.SetDefault("observability.enable_tracing", d.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", d.Observability.TracingSampleRate)
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
