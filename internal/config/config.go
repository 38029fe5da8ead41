// Package config provides configuration loading for bouncer.
//
// Values come from built-in defaults, an optional YAML file, and BOUNCER_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds the complete bouncer configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Service       ServiceConfig       `koanf:"service"`
	Limits        LimitsConfig        `koanf:"limits"`
	Cache         CacheConfig         `koanf:"cache"`
	Guard         GuardConfig         `koanf:"guard"`
	Events        EventsConfig        `koanf:"events"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// Environment is reported by the health endpoint, e.g. "production".
	Environment string   `koanf:"environment"`
	CORSOrigins []string `koanf:"cors_origins"`
	// MetricsEnabled exposes a Prometheus scrape endpoint at /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// ServiceConfig configures the remote text generation provider.
// An empty APIKey disables the provider; requests use local rules.
type ServiceConfig struct {
	Provider    string   `koanf:"provider"`
	APIKey      Secret   `koanf:"api_key"`
	Model       string   `koanf:"model"`
	BaseURL     string   `koanf:"base_url"`
	Timeout     Duration `koanf:"timeout"`
	MaxTokens   int      `koanf:"max_tokens"`
	Temperature float64  `koanf:"temperature"`
	// RateLimit is provider calls per second; 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// LimitsConfig bounds request sizes.
type LimitsConfig struct {
	MaxTextLength int `koanf:"max_text_length"`
}

// CacheConfig configures the provider reply cache.
type CacheConfig struct {
	Enabled bool     `koanf:"enabled"`
	Size    int      `koanf:"size"`
	TTL     Duration `koanf:"ttl"`
}

// GuardConfig configures the outbound credential scan.
type GuardConfig struct {
	Enabled   bool     `koanf:"enabled"`
	Allowlist []string `koanf:"allowlist"`
}

// EventsConfig configures completion event publishing.
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"`
	Insecure        bool    `koanf:"insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// LoggingConfig holds the log settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// Provider names accepted by ServiceConfig.Provider.
var supportedProviders = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// ProviderKeyEnv returns the conventional credential variable for a provider.
func ProviderKeyEnv(provider string) string {
	return supportedProviders[strings.ToLower(provider)]
}

// ServiceConfigured reports whether a provider credential is available.
func (c *Config) ServiceConfigured() bool {
	return c.Service.APIKey.IsSet()
}

// applyProviderKey fills Service.APIKey from the provider's conventional
// environment variable when it is not set explicitly.
func (c *Config) applyProviderKey() {
	if c.Service.APIKey.IsSet() {
		return
	}
	if name := ProviderKeyEnv(c.Service.Provider); name != "" {
		c.Service.APIKey = Secret(os.Getenv(name))
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if _, ok := supportedProviders[strings.ToLower(c.Service.Provider)]; !ok {
		errs = append(errs, fmt.Errorf("service.provider must be one of openai, anthropic, gemini, got %q", c.Service.Provider))
	}
	if c.Service.BaseURL != "" {
		if u, err := url.Parse(c.Service.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("service.base_url is not a valid URL: %q", c.Service.BaseURL))
		}
	}
	if c.Service.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("service.timeout must be positive"))
	}
	if c.Service.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("service.max_tokens must be positive, got %d", c.Service.MaxTokens))
	}
	if c.Service.Temperature < 0 || c.Service.Temperature > 2 {
		errs = append(errs, fmt.Errorf("service.temperature must be between 0 and 2, got %g", c.Service.Temperature))
	}
	if c.Service.RateLimit < 0 {
		errs = append(errs, errors.New("service.rate_limit cannot be negative"))
	}
	if c.Service.RateLimit > 0 && c.Service.Burst <= 0 {
		errs = append(errs, errors.New("service.burst must be positive when rate_limit is set"))
	}

	if c.Limits.MaxTextLength <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_text_length must be positive, got %d", c.Limits.MaxTextLength))
	}

	if c.Cache.Enabled {
		if c.Cache.Size <= 0 {
			errs = append(errs, errors.New("cache.size must be positive when cache is enabled"))
		}
		if c.Cache.TTL.Duration() <= 0 {
			errs = append(errs, errors.New("cache.ttl must be positive when cache is enabled"))
		}
	}

	if c.Events.Enabled && c.Events.NATSURL == "" {
		errs = append(errs, errors.New("events.nats_url is required when events are enabled"))
	}

	if c.Observability.EnableTelemetry {
		switch c.Observability.Protocol {
		case "grpc", "http/protobuf":
		default:
			errs = append(errs, fmt.Errorf("observability.protocol must be grpc or http/protobuf, got %q", c.Observability.Protocol))
		}
		if c.Observability.Endpoint == "" {
			errs = append(errs, errors.New("observability.endpoint is required when telemetry is enabled"))
		}
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("observability.sampling_rate must be between 0 and 1, got %g", c.Observability.SamplingRate))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
