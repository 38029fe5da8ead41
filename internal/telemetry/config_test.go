package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/bouncer/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "bouncer", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "bouncer-staging",
		Endpoint:        "otel.internal:4318",
		Protocol:        ProtocolHTTP,
		SamplingRate:    0.25,
	}, "1.0.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "bouncer-staging", cfg.ServiceName)
	assert.Equal(t, "otel.internal:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "1.0.0", cfg.ServiceVersion)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, 0.25, cfg.SamplingRate)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, ""},
		{"enabled local", func(c *Config) { c.Enabled = true }, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"missing service", func(c *Config) { c.Enabled = true; c.ServiceName = "" }, "service_name is required"},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "protocol must be"},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "collector.prod:4317" }, "insecure connections"},
		{"secure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "collector.prod:4317"; c.Insecure = false }, ""},
		{"sampling high", func(c *Config) { c.Enabled = true; c.SamplingRate = 1.5 }, "sampling rate"},
		{"sampling negative", func(c *Config) { c.Enabled = true; c.SamplingRate = -0.1 }, "sampling rate"},
		{"zero interval", func(c *Config) { c.Enabled = true; c.ExportInterval = 0 }, "export interval"},
		{"zero shutdown", func(c *Config) { c.Enabled = true; c.ShutdownTimeout = 0 }, "shutdown timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"localhost:4317":          true,
		"localhost":               true,
		"127.0.0.1:4317":          true,
		"127.0.1.1":               true,
		"[::1]:4317":              true,
		"::1":                     true,
		"http://localhost:4318":   true,
		"collector.prod:4317":     false,
		"10.0.0.1:4317":           false,
		"https://otel.example.io": false,
	}
	for endpoint, want := range tests {
		assert.Equal(t, want, isLoopback(endpoint), endpoint)
	}
}
