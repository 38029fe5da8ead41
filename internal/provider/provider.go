// Package provider wraps the remote text generation services the sanitize
// service can delegate to.
//
// Each provider sends one system and one user instruction and returns the raw
// completion text. Providers do not retry; callers bound them with a context.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted in configuration.
const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
	NameGemini    = "gemini"
)

// Default request parameters.
const (
	DefaultMaxTokens   = 3000
	DefaultTemperature = 0.4
	DefaultTimeout     = 30 * time.Second
)

var (
	// ErrNotConfigured indicates no credential is available for the provider.
	ErrNotConfigured = errors.New("text generation provider not configured")

	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown text generation provider")

	// ErrEmptyCompletion indicates the service answered without any text.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Prompt is a single completion request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Provider produces a completion for a prompt.
type Provider interface {
	// Name identifies the backing service, e.g. "openai".
	Name() string

	// Complete sends one request and returns the raw completion text.
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string

	// HTTPClient overrides the transport. Nil uses a client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// New builds the provider named in cfg. It returns ErrNotConfigured when no
// API key is set, so callers can fall back to local processing.
func New(ctx context.Context, cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = NameOpenAI
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}

	switch name {
	case NameOpenAI:
		return NewOpenAI(cfg)
	case NameAnthropic:
		return NewAnthropic(cfg)
	case NameGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(name string) string {
	switch name {
	case NameAnthropic:
		return "claude-3-5-sonnet-20241022"
	case NameGemini:
		return "gemini-2.0-flash"
	default:
		return "gpt-4"
	}
}

func withDefaults(p Prompt) Prompt {
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Temperature < 0 {
		p.Temperature = DefaultTemperature
	}
	return p
}
