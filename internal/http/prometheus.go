package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyrsmithlabs/bouncer/internal/sanitize"
)

// PromMetrics backs the /metrics scrape endpoint with its own registry.
type PromMetrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	sanitized *prometheus.CounterVec
}

// NewPromMetrics creates a registry with process and Go runtime collectors.
func NewPromMetrics() *PromMetrics {
	m := &PromMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncer_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bouncer_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "endpoint"},
		),
		sanitized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncer_sanitize_results_total",
				Help: "Successful rewrites by processing mode and context category",
			},
			[]string{"mode", "category"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.sanitized,
	)
	return m
}

// Registry returns the underlying registry.
func (m *PromMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests and observes their latency.
func (m *PromMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			endpoint := normalizePath(c.Path())
			method := c.Request().Method
			m.requests.WithLabelValues(method, endpoint, strconv.Itoa(c.Response().Status)).Inc()
			m.duration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveResult counts a successful rewrite.
func (m *PromMetrics) ObserveResult(res *sanitize.Result) {
	m.sanitized.WithLabelValues(res.Mode, string(res.Category)).Inc()
}
