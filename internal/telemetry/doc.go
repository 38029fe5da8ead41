// Package telemetry wires OpenTelemetry tracing and metrics for bouncer.
//
// New builds OTLP exporters (gRPC or HTTP/protobuf) from Config and installs
// the providers globally, so packages that call otel.Tracer and otel.Meter
// pick them up without plumbing. When telemetry is disabled the global no-op
// providers stay in place.
//
// Exporter failures never stop the service. The instance is marked degraded
// and Health reports the reason.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use NewTestTelemetry, which records spans in memory and exposes a
// manual metric reader.
package telemetry
