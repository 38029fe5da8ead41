package provider

import (
	"context"
	"sync"
)

// Mock implements Provider for tests and offline runs.
// CompleteFn, when set, produces the reply; otherwise Reply is returned.
type Mock struct {
	ProviderName string
	Reply        string
	Err          error
	CompleteFn   func(ctx context.Context, p Prompt) (string, error)

	mu      sync.Mutex
	prompts []Prompt
}

// Name implements Provider.
func (m *Mock) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Complete implements Provider and records the prompt.
func (m *Mock) Complete(ctx context.Context, p Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, p)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

// Calls returns the number of Complete invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// LastPrompt returns the most recent prompt, if any.
func (m *Mock) LastPrompt() (Prompt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return Prompt{}, false
	}
	return m.prompts[len(m.prompts)-1], true
}
