package sanitize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/bouncer/internal/engine"
	"github.com/fyrsmithlabs/bouncer/internal/events"
	"github.com/fyrsmithlabs/bouncer/internal/logging"
	"github.com/fyrsmithlabs/bouncer/internal/provider"
	"github.com/fyrsmithlabs/bouncer/internal/rules"
	"github.com/fyrsmithlabs/bouncer/internal/secrets"
)

const (
	tracerName = "github.com/fyrsmithlabs/bouncer/internal/sanitize"
	meterName  = "sanitize"
)

var (
	// ErrRateLimited indicates the provider call budget is exhausted.
	ErrRateLimited = errors.New("provider rate limit reached")

	// ErrSecretsDetected indicates the input looked like it contained
	// credentials, so it was not sent to the provider.
	ErrSecretsDetected = errors.New("input contains credentials")
)

// Fallback reasons recorded on results, logs, metrics and events.
const (
	ReasonIdentity        = "identity"
	ReasonNotConfigured   = "not_configured"
	ReasonSecretsDetected = "secrets_detected"
	ReasonRateLimited     = "rate_limited"
	ReasonTimeout         = "timeout"
	ReasonCanceled        = "canceled"
	ReasonProviderError   = "provider_error"
	ReasonMalformedReply  = "malformed_reply"
)

// notes explain the fallback in the local summary.
var notes = map[string]string{
	ReasonIdentity:        "ambiguity and noise are both 0, so the text is returned unchanged",
	ReasonNotConfigured:   engine.DefaultNote,
	ReasonSecretsDetected: "the input appears to contain credentials and was not sent to the provider",
	ReasonRateLimited:     "the text generation provider rate limit was reached",
	ReasonTimeout:         "the text generation provider timed out",
	ReasonCanceled:        "the provider request was canceled",
	ReasonProviderError:   "the text generation provider is unavailable",
	ReasonMalformedReply:  "the text generation provider returned an unusable reply",
}

// Result is the outcome of Process. Only the embedded engine.Result is
// part of the wire format.
type Result struct {
	engine.Result `yaml:",inline"`

	Category       rules.Category `json:"-" yaml:"-"`
	Mode           string         `json:"-" yaml:"-"`
	Provider       string         `json:"-" yaml:"-"`
	FallbackReason string         `json:"-" yaml:"-"`
}

// Service processes rewrite requests.
type Service struct {
	provider      provider.Provider
	guard         *secrets.Guard
	limiter       *rate.Limiter
	cache         *expirable.LRU[string, engine.Result]
	publisher     events.Publisher
	logger        *logging.Logger
	timeout       time.Duration
	maxTokens     int
	temperature   float64
	maxTextLength int
	now           func() time.Time

	tracer trace.Tracer
	meter  metric.Meter

	requests         metric.Int64Counter
	fallbacks        metric.Int64Counter
	duration         metric.Float64Histogram
	providerDuration metric.Float64Histogram
	wordDelta        metric.Float64Histogram
}

// Option configures a Service.
type Option func(*Service)

// WithProvider enables the remote path. A nil provider keeps the service
// local-only.
func WithProvider(p provider.Provider) Option {
	return func(s *Service) { s.provider = p }
}

// WithGuard scans inputs before they are sent to the provider.
func WithGuard(g *secrets.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// WithRateLimit admits at most perSecond provider calls with the given burst.
// perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Service) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCache caches successful provider results. size <= 0 disables it.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		if size <= 0 {
			s.cache = nil
			return
		}
		s.cache = expirable.NewLRU[string, engine.Result](size, nil, ttl)
	}
}

// WithPublisher sets the completion event sink. The service closes it.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCompletion sets the completion budget and sampling temperature.
func WithCompletion(maxTokens int, temperature float64) Option {
	return func(s *Service) {
		s.maxTokens = maxTokens
		s.temperature = temperature
	}
}

// WithMaxTextLength rejects longer texts. n <= 0 disables the check.
func WithMaxTextLength(n int) Option {
	return func(s *Service) { s.maxTextLength = n }
}

// WithInstrumentation overrides the global tracer and meter providers.
func WithInstrumentation(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
		if mp != nil {
			s.meter = mp.Meter(meterName)
		}
	}
}

// WithClock overrides time.Now for events and durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. Without options it runs the local engine
// only.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		publisher:   events.Nop{},
		logger:      logging.NewNop(),
		timeout:     provider.DefaultTimeout,
		maxTokens:   provider.DefaultMaxTokens,
		temperature: provider.DefaultTemperature,
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
		meter:       otel.Meter(meterName),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return s, nil
}

func (s *Service) initMetrics() error {
	var err error

	s.requests, err = s.meter.Int64Counter(
		"sanitize.requests",
		metric.WithDescription("Completed sanitize requests by mode and category"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create requests counter: %w", err)
	}

	s.fallbacks, err = s.meter.Int64Counter(
		"sanitize.fallbacks",
		metric.WithDescription("Requests served by local rules, by reason"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fallbacks counter: %w", err)
	}

	s.duration, err = s.meter.Float64Histogram(
		"sanitize.duration",
		metric.WithDescription("End-to-end request processing time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}

	s.providerDuration, err = s.meter.Float64Histogram(
		"sanitize.provider.duration",
		metric.WithDescription("Text generation provider call time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60),
	)
	if err != nil {
		return fmt.Errorf("failed to create provider duration histogram: %w", err)
	}

	s.wordDelta, err = s.meter.Float64Histogram(
		"sanitize.word_delta",
		metric.WithDescription("Word count change relative to the original"),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(-50, -20, -10, -5, 0, 5, 10, 20, 50, 100),
	)
	if err != nil {
		return fmt.Errorf("failed to create word delta histogram: %w", err)
	}
	return nil
}

// Configured reports whether a provider is wired in.
func (s *Service) Configured() bool {
	return s.provider != nil
}

// ProviderName returns the provider's name, or "" when local-only.
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// MaxTextLength returns the configured text limit, 0 when unlimited.
func (s *Service) MaxTextLength() int {
	return s.maxTextLength
}

// Process validates req and produces a rewrite. The returned error is either
// a *ValidationError or an internal failure; provider problems never
// surface.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "sanitize.process")
	defer span.End()

	if err := req.Normalize(s.maxTextLength); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	category := rules.Classify(req.Context)
	span.SetAttributes(
		attribute.String("category", string(category)),
		attribute.Int("ambiguity", req.Ambiguity),
		attribute.Int("noise", req.Noise),
		attribute.Int("text_length", len(req.Text)),
	)

	res, err := s.remote(ctx, req)
	if err != nil {
		reason := reasonFor(err)
		s.logFallback(ctx, reason, err)
		res, err = s.local(ctx, req, category, reason)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "local rewrite failed")
			return nil, err
		}
	}
	res.Category = category

	elapsed := s.now().Sub(start)
	span.SetAttributes(attribute.String("mode", res.Mode))
	s.record(ctx, req, res, elapsed)
	return res, nil
}

// remote tries the provider path. Any error means the caller should fall
// back to local rules.
func (s *Service) remote(ctx context.Context, req Request) (*Result, error) {
	if req.Ambiguity == 0 && req.Noise == 0 {
		return nil, errIdentity
	}
	if s.provider == nil {
		return nil, provider.ErrNotConfigured
	}
	if s.guard != nil {
		if err := s.guard.Check(req.Context, req.Text); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSecretsDetected, err)
		}
	}

	key := s.cacheKey(req)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return &Result{Result: cached, Mode: events.ModeCache, Provider: s.provider.Name()}, nil
		}
	}

	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	out, err := s.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, out)
	}
	return &Result{Result: out, Mode: events.ModeProvider, Provider: s.provider.Name()}, nil
}

// complete makes the single provider attempt for req.
func (s *Service) complete(ctx context.Context, req Request) (engine.Result, error) {
	ctx, span := s.tracer.Start(ctx, "sanitize.provider",
		trace.WithAttributes(attribute.String("provider", s.provider.Name())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	reply, err := s.provider.Complete(ctx, BuildPrompt(req, s.maxTokens, s.temperature))
	s.providerDuration.Record(ctx, s.now().Sub(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", s.provider.Name())))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return engine.Result{}, fmt.Errorf("provider %s: %w", s.provider.Name(), err)
	}

	out, err := ParseReply(reply)
	if err != nil {
		span.SetStatus(codes.Error, "malformed reply")
		return engine.Result{}, err
	}
	return out, nil
}

func (s *Service) local(ctx context.Context, req Request, category rules.Category, reason string) (*Result, error) {
	_, span := s.tracer.Start(ctx, "sanitize.local",
		trace.WithAttributes(
			attribute.String("category", string(category)),
			attribute.String("reason", reason),
		),
	)
	defer span.End()

	out, err := engine.Rewrite(req.Context, req.Text, req.Ambiguity, req.Noise, notes[reason])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("local rewrite: %w", err)
	}
	s.logger.Trace(ctx, "local rewrite applied",
		zap.String("category", string(category)),
		zap.Int("ambiguity", req.Ambiguity),
		zap.Int("noise", req.Noise),
		zap.Int("words_before", engine.CountWords(req.Text)),
		zap.Int("words_after", engine.CountWords(out.ProcessedText)),
	)
	return &Result{Result: out, Mode: events.ModeLocal, FallbackReason: reason}, nil
}

// errIdentity short-circuits the provider when no change is requested.
var errIdentity = errors.New("no transformation requested")

func reasonFor(err error) string {
	switch {
	case errors.Is(err, errIdentity):
		return ReasonIdentity
	case errors.Is(err, provider.ErrNotConfigured):
		return ReasonNotConfigured
	case errors.Is(err, ErrSecretsDetected):
		return ReasonSecretsDetected
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrMalformedReply):
		return ReasonMalformedReply
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonProviderError
	}
}

func (s *Service) logFallback(ctx context.Context, reason string, err error) {
	switch reason {
	case ReasonIdentity, ReasonNotConfigured:
		s.logger.Debug(ctx, "using local rules", zap.String("reason", reason))
	default:
		s.logger.Warn(ctx, "provider unavailable, using local rules",
			zap.String("reason", reason),
			zap.String("provider", s.ProviderName()),
			zap.Error(err),
		)
	}
}

// cacheKey hashes everything that determines a provider reply.
func (s *Service) cacheKey(req Request) string {
	h := sha256.New()
	for _, part := range []string{
		s.provider.Name(),
		req.Context,
		req.Text,
		strconv.Itoa(req.Ambiguity),
		strconv.Itoa(req.Noise),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Service) record(ctx context.Context, req Request, res *Result, elapsed time.Duration) {
	original := engine.CountWords(req.Text)
	processed := engine.CountWords(res.ProcessedText)

	s.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", res.Mode),
		attribute.String("category", string(res.Category)),
	))
	if res.FallbackReason != "" {
		s.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", res.FallbackReason)))
	}
	s.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("mode", res.Mode)))
	if original > 0 {
		s.wordDelta.Record(ctx, float64(processed-original)/float64(original)*100,
			metric.WithAttributes(attribute.String("mode", res.Mode)))
	}

	s.logger.Info(ctx, "sanitize completed",
		zap.String("mode", res.Mode),
		zap.String("category", string(res.Category)),
		zap.Int("ambiguity", req.Ambiguity),
		zap.Int("noise", req.Noise),
		zap.Int("original_words", original),
		zap.Int("processed_words", processed),
		zap.Duration("duration", elapsed),
	)

	ev := events.Completed{
		RequestID:      logging.RequestIDFromContext(ctx),
		Category:       string(res.Category),
		Ambiguity:      req.Ambiguity,
		Noise:          req.Noise,
		Mode:           res.Mode,
		Provider:       res.Provider,
		FallbackReason: res.FallbackReason,
		OriginalWords:  original,
		ProcessedWords: processed,
		DurationMS:     elapsed.Milliseconds(),
		Timestamp:      s.now().UTC(),
	}
	if err := s.publisher.PublishCompleted(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn(ctx, "failed to publish completion event", zap.Error(err))
	}
}

// Close releases the event publisher.
func (s *Service) Close() error {
	return s.publisher.Close()
}
