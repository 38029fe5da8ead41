package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// OpenAI calls an OpenAI-compatible chat completions endpoint through langchaingo.
type OpenAI struct {
	llm   llms.Model
	model string
}

// NewOpenAI creates an OpenAI provider. BaseURL may point at any
// OpenAI-compatible server.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", NameOpenAI, ErrNotConfigured)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(NameOpenAI)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
		openai.WithHTTPClient(cfg.httpClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return &OpenAI{llm: llm, model: model}, nil
}

// Name implements Provider.
func (o *OpenAI) Name() string { return NameOpenAI }

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	p = withDefaults(p)

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, p.System),
		llms.TextParts(schema.ChatMessageTypeHuman, p.User),
	}
	resp, err := o.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(p.MaxTokens),
		llms.WithTemperature(p.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", fmt.Errorf("openai completion: %w", ErrEmptyCompletion)
	}
	return resp.Choices[0].Content, nil
}
