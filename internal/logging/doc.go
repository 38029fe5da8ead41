// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stdout output plus an optional OpenTelemetry log bridge
//   - context field injection (trace_id, span_id, request.id, request.origin)
//   - secret redaction by field name and value pattern
//   - level-aware sampling (errors never sampled)
//
// Create a logger from settings:
//
//	logger, err := logging.NewLogger(logging.FromSettings(cfg.Logging), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithRequestID(ctx, "3f0c...")
//	logger.Info(ctx, "sanitize completed", zap.String("mode", "local"))
//
// User text is never logged. Log lengths, word counts, and categories instead.
//
// Use TestLogger for assertions in tests:
//
//	tl := logging.NewTestLogger()
//	svc := sanitize.NewService(cfg, sanitize.WithLogger(tl.Logger))
//	tl.AssertLogged(t, zapcore.WarnLevel, "provider unavailable")
package logging
