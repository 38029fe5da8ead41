// Package http serves the bouncer HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bouncer/internal/logging"
	"github.com/fyrsmithlabs/bouncer/internal/sanitize"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Sanitizer processes rewrite requests. Implemented by *sanitize.Service.
type Sanitizer interface {
	Process(ctx context.Context, req sanitize.Request) (*sanitize.Result, error)
	Configured() bool
	ProviderName() string
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	svc     Sanitizer
	logger  *logging.Logger
	config  *Config
	metrics *HTTPMetrics
	prom    *PromMetrics
	now     func() time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	Environment string
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string
	// BodyLimit caps request bodies, in echo's size notation.
	BodyLimit string
	// MeterProvider receives HTTP metrics; nil uses the global provider.
	MeterProvider metric.MeterProvider
}

// NewServer creates a server. prom may be nil to disable /metrics.
func NewServer(svc Sanitizer, logger *logging.Logger, cfg *Config, prom *PromMetrics) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("sanitizer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 3000}
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		svc:     svc,
		logger:  logger.Named("http"),
		config:  cfg,
		metrics: NewHTTPMetrics(logger, cfg.MeterProvider),
		prom:    prom,
		now:     time.Now,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.WithRequestID(c.Request().Context(), id)
			ctx = logging.WithOrigin(ctx, logging.OriginHTTP)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(s.metrics.MetricsMiddleware())
	if prom != nil {
		e.Use(prom.Middleware())
	}
	e.Use(s.logRequests)
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/health", s.handleHealth)
	s.echo.POST("/api/sanitize", s.handleSanitize)
	if s.prom != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.prom.Handler()))
	}
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// handleSanitize rewrites the posted text.
func (s *Server) handleSanitize(c echo.Context) error {
	var payload sanitize.Payload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	ctx := c.Request().Context()
	res, err := s.svc.Process(ctx, payload.Request())
	if err != nil {
		var verr *sanitize.ValidationError
		if errors.As(err, &verr) {
			s.logger.Debug(ctx, "invalid sanitize request", zap.String("field", verr.Field))
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		}
		s.logger.Error(ctx, "sanitize failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Processing failed")
	}

	if s.prom != nil {
		s.prom.ObserveResult(res)
	}
	return c.JSON(http.StatusOK, res.Result)
}

// handleHealth reports liveness and whether a provider is configured.
func (s *Server) handleHealth(c echo.Context) error {
	provider := s.svc.ProviderName()
	if provider == "" {
		provider = "none"
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:            "healthy",
		Timestamp:         s.now().UTC().Format(time.RFC3339),
		Version:           Version,
		ServiceConfigured: s.svc.Configured(),
		OpenAIConfigured:  provider == "openai",
		Provider:          provider,
		Environment:       s.config.Environment,
	})
}

// handleError renders every error as {"error": message}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Processing failed"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch {
		case code == http.StatusMethodNotAllowed:
			msg = "Method not allowed"
		case code == http.StatusNotFound:
			msg = "Not found"
		default:
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
	} else {
		s.logger.Error(c.Request().Context(), "unhandled error", zap.Error(err))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, ErrorResponse{Error: msg})
	}
	if werr != nil {
		s.logger.Warn(c.Request().Context(), "failed to write error response", zap.Error(werr))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
