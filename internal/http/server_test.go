package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/bouncer/internal/engine"
	"github.com/fyrsmithlabs/bouncer/internal/logging"
	"github.com/fyrsmithlabs/bouncer/internal/provider"
	"github.com/fyrsmithlabs/bouncer/internal/sanitize"
	"github.com/fyrsmithlabs/bouncer/internal/telemetry"
)

const goodReply = "SUMMARY:\nSoftened one term.\n\nMODIFIED TEXT:\nThis research addresses social disparities."

const grantBody = `{"context":"NSF grant proposal","text":"This research addresses systemic racism.","ambiguity":6,"noise":4}`

// stubSanitizer returns a fixed result or error and records the request context.
type stubSanitizer struct {
	mu       sync.Mutex
	result   *sanitize.Result
	err      error
	provider string
	lastCtx  context.Context
	lastReq  sanitize.Request
}

func (s *stubSanitizer) Process(ctx context.Context, req sanitize.Request) (*sanitize.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCtx = ctx
	s.lastReq = req
	return s.result, s.err
}

func (s *stubSanitizer) Configured() bool     { return s.provider != "" }
func (s *stubSanitizer) ProviderName() string { return s.provider }

func newProviderService(t *testing.T, p provider.Provider) *sanitize.Service {
	t.Helper()
	svc, err := sanitize.NewService(sanitize.WithProvider(p))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func setupTestServer(t *testing.T, svc Sanitizer) *Server {
	t.Helper()
	server, err := NewServer(svc, logging.NewNop(), &Config{Host: "localhost", Port: 3000}, nil)
	require.NoError(t, err)
	return server
}

func do(server *Server, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9090}
		server, err := NewServer(&stubSanitizer{}, logging.NewNop(), cfg, nil)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
		assert.Equal(t, "localhost:9090", server.Addr())
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&stubSanitizer{}, logging.NewNop(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 3000, server.config.Port)
		assert.Equal(t, "development", server.config.Environment)
		assert.Equal(t, "1M", server.config.BodyLimit)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&stubSanitizer{}, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when sanitizer is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sanitizer cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("without provider", func(t *testing.T) {
		server := setupTestServer(t, &stubSanitizer{})
		server.now = func() time.Time { return fixed }

		for _, path := range []string{"/api/health", "/health"} {
			rec := do(server, http.MethodGet, path, "")
			require.Equal(t, http.StatusOK, rec.Code, path)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "healthy", resp.Status)
			assert.Equal(t, "2024-03-01T12:30:00Z", resp.Timestamp)
			assert.Equal(t, "1.0.0", resp.Version)
			assert.False(t, resp.ServiceConfigured)
			assert.False(t, resp.OpenAIConfigured)
			assert.Equal(t, "none", resp.Provider)
			assert.Equal(t, "development", resp.Environment)
		}
	})

	t.Run("with openai provider", func(t *testing.T) {
		server := setupTestServer(t, &stubSanitizer{provider: "openai"})
		rec := do(server, http.MethodGet, "/api/health", "")

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.ServiceConfigured)
		assert.True(t, resp.OpenAIConfigured)
		assert.Equal(t, "openai", resp.Provider)
	})

	t.Run("with another provider", func(t *testing.T) {
		server := setupTestServer(t, &stubSanitizer{provider: "anthropic"})
		rec := do(server, http.MethodGet, "/api/health", "")

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.ServiceConfigured)
		assert.False(t, resp.OpenAIConfigured)
		assert.Equal(t, "anthropic", resp.Provider)
	})
}

func TestHandleSanitize(t *testing.T) {
	t.Run("returns provider rewrite", func(t *testing.T) {
		mock := &provider.Mock{ProviderName: "openai", Reply: goodReply}
		server := setupTestServer(t, newProviderService(t, mock))

		rec := do(server, http.MethodPost, "/api/sanitize", grantBody)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp engine.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Softened one term.", resp.Summary)
		assert.Equal(t, "This research addresses social disparities.", resp.ProcessedText)
		assert.Equal(t, 1, mock.Calls())
	})

	t.Run("body has exactly summary and processed text", func(t *testing.T) {
		mock := &provider.Mock{Reply: goodReply}
		server := setupTestServer(t, newProviderService(t, mock))

		rec := do(server, http.MethodPost, "/api/sanitize", grantBody)
		require.Equal(t, http.StatusOK, rec.Code)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		assert.Len(t, raw, 2)
		assert.Contains(t, raw, "summary")
		assert.Contains(t, raw, "processed_text")
	})

	t.Run("falls back to local rules without provider", func(t *testing.T) {
		svc, err := sanitize.NewService()
		require.NoError(t, err)
		server := setupTestServer(t, svc)

		rec := do(server, http.MethodPost, "/api/sanitize", grantBody)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp engine.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Summary)
		assert.NotContains(t, resp.ProcessedText, "systemic racism")
	})

	t.Run("falls back when the provider fails", func(t *testing.T) {
		mock := &provider.Mock{Err: errors.New("upstream unavailable")}
		server := setupTestServer(t, newProviderService(t, mock))

		rec := do(server, http.MethodPost, "/api/sanitize", grantBody)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("decodes payload fields", func(t *testing.T) {
		stub := &stubSanitizer{result: &sanitize.Result{}}
		server := setupTestServer(t, stub)

		rec := do(server, http.MethodPost, "/api/sanitize", `{"context":"blog","text":"hello","ambiguity":3,"noise":7}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, sanitize.Request{Context: "blog", Text: "hello", Ambiguity: 3, Noise: 7}, stub.lastReq)
	})

	t.Run("accepts legacy level names", func(t *testing.T) {
		stub := &stubSanitizer{result: &sanitize.Result{}}
		server := setupTestServer(t, stub)

		rec := do(server, http.MethodPost, "/api/sanitize", `{"context":"blog","text":"hello","ambiguityLevel":2,"noiseLevel":9}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, stub.lastReq.Ambiguity)
		assert.Equal(t, 9, stub.lastReq.Noise)
	})
}

func TestHandleSanitize_Validation(t *testing.T) {
	svc, err := sanitize.NewService()
	require.NoError(t, err)
	server := setupTestServer(t, svc)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing context", `{"text":"hello","ambiguity":5,"noise":5}`, "Context description is required"},
		{"blank context", `{"context":"   ","text":"hello","ambiguity":5,"noise":5}`, "Context description is required"},
		{"missing text", `{"context":"blog","ambiguity":5,"noise":5}`, "No text provided"},
		{"ambiguity too high", `{"context":"blog","text":"hello","ambiguity":11,"noise":5}`, "Ambiguity level must be an integer between 0 and 10"},
		{"ambiguity not a number", `{"context":"blog","text":"hello","ambiguity":"high","noise":5}`, "Ambiguity level must be an integer between 0 and 10"},
		{"noise negative", `{"context":"blog","text":"hello","ambiguity":5,"noise":-1}`, "Noise level must be an integer between 0 and 10"},
		{"context checked before levels", `{"text":"hello","ambiguity":50,"noise":50}`, "Context description is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(server, http.MethodPost, "/api/sanitize", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
		})
	}
}

func TestHandleSanitize_Errors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		server := setupTestServer(t, &stubSanitizer{})
		rec := do(server, http.MethodPost, "/api/sanitize", `{"context":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body", decodeError(t, rec))
	})

	t.Run("processing error is generic", func(t *testing.T) {
		logger := logging.NewTestLogger()
		stub := &stubSanitizer{err: errors.New("disk on fire")}
		server, err := NewServer(stub, logger.Logger, nil, nil)
		require.NoError(t, err)

		rec := do(server, http.MethodPost, "/api/sanitize", grantBody)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Processing failed", decodeError(t, rec))
		assert.NotContains(t, rec.Body.String(), "disk on fire")
		logger.AssertLogged(t, zapcore.ErrorLevel, "sanitize failed")
	})

	t.Run("wrong method", func(t *testing.T) {
		server := setupTestServer(t, &stubSanitizer{})
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			rec := do(server, method, "/api/sanitize", "")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
			assert.Equal(t, "Method not allowed", decodeError(t, rec), method)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		server := setupTestServer(t, &stubSanitizer{})
		rec := do(server, http.MethodGet, "/api/unknown", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Not found", decodeError(t, rec))
	})

	t.Run("body too large", func(t *testing.T) {
		stub := &stubSanitizer{result: &sanitize.Result{}}
		server, err := NewServer(stub, logging.NewNop(), &Config{BodyLimit: "1K"}, nil)
		require.NoError(t, err)

		body := `{"context":"blog","text":"` + strings.Repeat("a", 4096) + `"}`
		rec := do(server, http.MethodPost, "/api/sanitize", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	server := setupTestServer(t, &stubSanitizer{result: &sanitize.Result{}})

	t.Run("preflight", func(t *testing.T) {
		rec := do(server, http.MethodOptions, "/api/sanitize", "",
			"Origin", "https://example.org",
			"Access-Control-Request-Method", http.MethodPost,
		)
		assert.Less(t, rec.Code, 300)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("simple request", func(t *testing.T) {
		rec := do(server, http.MethodPost, "/api/sanitize", grantBody, "Origin", "https://example.org")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("restricted origins", func(t *testing.T) {
		restricted, err := NewServer(&stubSanitizer{}, logging.NewNop(), &Config{CORSOrigins: []string{"https://app.example.org"}}, nil)
		require.NoError(t, err)

		rec := do(restricted, http.MethodGet, "/api/health", "", "Origin", "https://evil.example.com")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

		rec = do(restricted, http.MethodGet, "/api/health", "", "Origin", "https://app.example.org")
		assert.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestID(t *testing.T) {
	t.Run("propagates client id into the request context", func(t *testing.T) {
		stub := &stubSanitizer{result: &sanitize.Result{}}
		server := setupTestServer(t, stub)

		rec := do(server, http.MethodPost, "/api/sanitize", grantBody, "X-Request-Id", "req-123")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
		assert.Equal(t, "req-123", logging.RequestIDFromContext(stub.lastCtx))
		assert.Equal(t, logging.OriginHTTP, logging.OriginFromContext(stub.lastCtx))
	})

	t.Run("generates an id when absent", func(t *testing.T) {
		server := setupTestServer(t, &stubSanitizer{})
		rec := do(server, http.MethodGet, "/api/health", "")
		assert.Len(t, rec.Header().Get("X-Request-Id"), 36)
	})

	t.Run("unsafe ids stay out of the context", func(t *testing.T) {
		stub := &stubSanitizer{result: &sanitize.Result{}}
		server := setupTestServer(t, stub)

		do(server, http.MethodPost, "/api/sanitize", grantBody, "X-Request-Id", "bad id\nwith newline")
		assert.Empty(t, logging.RequestIDFromContext(stub.lastCtx))
	})
}

func TestRequestLogging(t *testing.T) {
	logger := logging.NewTestLogger()
	server, err := NewServer(&stubSanitizer{}, logger.Logger, nil, nil)
	require.NoError(t, err)

	do(server, http.MethodGet, "/api/health", "")

	logger.AssertLogged(t, zapcore.InfoLevel, "http request")
	logger.AssertField(t, "http request", "path", "/api/health")
	logger.AssertField(t, "http request", "status", int64(http.StatusOK))
}

func TestServerMetrics(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	svc := &stubSanitizer{result: &sanitize.Result{Mode: "local", Category: "grant"}}
	server, err := NewServer(svc, logging.NewNop(), &Config{MeterProvider: tel.MeterProvider()}, NewPromMetrics())
	require.NoError(t, err)

	do(server, http.MethodPost, "/api/sanitize", grantBody)
	do(server, http.MethodGet, "/api/health", "")

	assert.Equal(t, int64(1), tel.CounterValue(t, "bouncer.http.requests_total",
		attribute.String("endpoint", "/api/sanitize"),
		attribute.Int("status", http.StatusOK),
	))
	assert.Equal(t, uint64(2), tel.HistogramCount(t, "bouncer.http.request_duration_seconds"))

	rec := do(server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `bouncer_http_requests_total{endpoint="/api/sanitize",method="POST",status="200"} 1`)
	assert.Contains(t, body, `bouncer_sanitize_results_total{category="grant",mode="local"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestServer_StartShutdown(t *testing.T) {
	server, err := NewServer(&stubSanitizer{}, logging.NewNop(), &Config{Host: "127.0.0.1", Port: 0}, nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	require.Eventually(t, func() bool {
		return server.echo.ListenerAddr() != nil
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}
