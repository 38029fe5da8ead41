package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type discardMetrics struct{}

func (discardMetrics) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return cumulative(k)
}

func (discardMetrics) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (discardMetrics) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }
func (discardMetrics) ForceFlush(context.Context) error                          { return nil }
func (discardMetrics) Shutdown(context.Context) error                            { return nil }

func restoreGlobals(t *testing.T) {
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Protocol = "carrier-pigeon"

	tel, err := New(context.Background(), cfg)
	assert.Nil(t, tel)
	assert.ErrorContains(t, err, "invalid telemetry config")
}

func TestNew_EnabledExportsSpans(t *testing.T) {
	restoreGlobals(t)
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	spans := tracetest.NewInMemoryExporter()

	tel, err := New(context.Background(), cfg,
		WithSpanExporter(spans),
		WithMetricExporter(discardMetrics{}),
	)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	_, span := otel.Tracer("bouncer-test").Start(context.Background(), "rewrite")
	span.End()

	require.NoError(t, tel.ForceFlush(context.Background()))
	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "rewrite", got[0].Name)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.IsEnabled())
	assert.NoError(t, tel.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.True(t, tel.Health().Degraded)
	assert.False(t, tel.IsEnabled())
}

func TestSetDegraded(t *testing.T) {
	tel := &Telemetry{config: NewDefaultConfig()}
	tel.setDegraded("meter provider: %v", "boom")

	h := tel.Health()
	assert.True(t, h.Degraded)
	assert.Equal(t, []string{"meter provider: boom"}, h.Reasons)
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("x").Start(ctx, "sanitize")
	span.SetAttributes(attribute.String("category", "grant"))
	span.End()
	tt.AssertSpanAttribute(t, "sanitize", "category", "grant")
	assert.Nil(t, tt.SpanByName("missing"))

	counter, err := tt.Meter("x").Int64Counter("requests")
	require.NoError(t, err)
	counter.Add(ctx, 2, metricAttrs("mode", "local"))
	counter.Add(ctx, 1, metricAttrs("mode", "provider"))

	assert.Equal(t, int64(3), tt.CounterValue(t, "requests"))
	assert.Equal(t, int64(2), tt.CounterValue(t, "requests", attribute.String("mode", "local")))

	hist, err := tt.Meter("x").Float64Histogram("latency")
	require.NoError(t, err)
	hist.Record(ctx, 0.5)
	assert.Equal(t, uint64(1), tt.HistogramCount(t, "latency"))
}

func metricAttrs(k, v string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(k, v))
}
