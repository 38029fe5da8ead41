package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"missing key", Config{Name: NameOpenAI}, "", ErrNotConfigured},
		{"missing key anthropic", Config{Name: NameAnthropic}, "", ErrNotConfigured},
		{"unknown", Config{Name: "llama", APIKey: "k"}, "", ErrUnknownProvider},
		{"default is openai", Config{APIKey: "k"}, NameOpenAI, nil},
		{"anthropic", Config{Name: "Anthropic", APIKey: "k"}, NameAnthropic, nil},
		{"gemini", Config{Name: NameGemini, APIKey: "k"}, NameGemini, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(ctx, tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "gpt-4", DefaultModel(NameOpenAI))
	assert.Equal(t, "gpt-4", DefaultModel(""))
	assert.Equal(t, "claude-3-5-sonnet-20241022", DefaultModel(NameAnthropic))
	assert.Equal(t, "gemini-2.0-flash", DefaultModel(NameGemini))
}

func TestAnthropic_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("Anthropic-Version"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"SUMMARY: ok\nMODIFIED TEXT: done"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	a, err := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := a.Complete(context.Background(), Prompt{System: "sys", User: "user", Temperature: -1})
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY: ok\nMODIFIED TEXT: done", out)

	assert.Equal(t, "sys", got.System)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, DefaultTemperature, got.Temperature, 1e-9)
	assert.Equal(t, DefaultModel(NameAnthropic), got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[0].Content)
}

func TestAnthropic_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	a, err := NewAnthropic(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = a.Complete(context.Background(), Prompt{User: "x"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "slow down", se.Message)
}

func TestAnthropic_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	a, err := NewAnthropic(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = a.Complete(context.Background(), Prompt{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestAnthropic_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	a, err := NewAnthropic(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Complete(ctx, Prompt{User: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAI_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "MODIFIED TEXT: rewritten"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := o.Complete(context.Background(), Prompt{System: "sys", User: "user", MaxTokens: 3000, Temperature: 0.4})
	require.NoError(t, err)
	assert.Equal(t, "MODIFIED TEXT: rewritten", out)

	assert.Equal(t, "gpt-4", got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)

	roles := make([]any, 0, len(msgs))
	for _, m := range msgs {
		msg, ok := m.(map[string]any)
		require.True(t, ok)
		roles = append(roles, msg["role"])
	}
	assert.Equal(t, []any{"system", "user"}, roles)
}

func TestOpenAI_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = o.Complete(context.Background(), Prompt{User: "x"})
	assert.Error(t, err)
}

func TestGemini_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"SUMMARY: s\nMODIFIED TEXT: t"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Config{APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	out, err := g.Complete(context.Background(), Prompt{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY: s\nMODIFIED TEXT: t", out)
}

func TestMock(t *testing.T) {
	m := &Mock{Reply: "hello"}
	out, err := m.Complete(context.Background(), Prompt{User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, m.Calls())

	p, ok := m.LastPrompt()
	require.True(t, ok)
	assert.Equal(t, "u", p.User)
	assert.Equal(t, "mock", m.Name())

	m.Err = errors.New("down")
	_, err = m.Complete(context.Background(), Prompt{})
	assert.EqualError(t, err, "down")
}
