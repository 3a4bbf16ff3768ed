package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"canopy/internal/analysis/tracer"
	"canopy/internal/claim/models"
	"canopy/pkg/platform/circuit"
)

// DefaultPassThreshold is the minimum absolute index improvement for a claim
// to pass verification.
const DefaultPassThreshold = 0.10

// Service is the vegetation-change analyzer. It makes a single provider
// attempt per call, degrades to the fallback on provider failure, and never
// retries internally; retry policy belongs to the lifecycle controller.
type Service struct {
	provider      Provider
	fallback      *Fallback
	breaker       *circuit.Breaker
	cache         *gocache.Cache
	tracer        tracer.Tracer
	logger        *slog.Logger
	clock         func() time.Time
	passThreshold float64
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer. Defaults to the no-op tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithCacheTTL enables caching of external samples for the given TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = gocache.New(ttl, 2*ttl)
	}
}

// WithPassThreshold overrides the pass threshold. Zero keeps the default.
func WithPassThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.passThreshold = threshold
		}
	}
}

// WithClock injects the time source used for verdict timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New creates an analyzer. provider may be nil when no imagery service is
// configured; every call then takes the fallback path.
func New(provider Provider, fallback *Fallback, opts ...Option) *Service {
	s := &Service{
		provider:      provider,
		fallback:      fallback,
		breaker:       circuit.New("imagery-analysis"),
		tracer:        tracer.NewNoop(),
		clock:         time.Now,
		passThreshold: DefaultPassThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze produces a verdict for the boundary over the given window.
// It never fails on provider errors; those degrade to the fallback path.
func (s *Service) Analyze(ctx context.Context, boundary models.Polygon, beforeDate, afterDate time.Time) (verdict *models.Verdict, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanAnalyze)
	defer func() { span.End(err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	sample, source := s.sample(ctx, boundary, beforeDate, afterDate, span)
	verdict = s.buildVerdict(sample, source)

	span.SetAttributes(
		tracer.String(tracer.AttrSource, string(source)),
		tracer.Bool(tracer.AttrPassed, verdict.Passed),
		tracer.Float64(tracer.AttrDelta, verdict.Delta),
	)
	return verdict, nil
}

// sample obtains metrics from cache, the provider, or the fallback, in that
// order. The fallback triggers only on provider absence or failure, never on
// implausible-looking results.
func (s *Service) sample(ctx context.Context, boundary models.Polygon, beforeDate, afterDate time.Time, span tracer.Span) (*Sample, models.VerdictSource) {
	if s.provider == nil || s.breaker.IsOpen() {
		return s.fallback.Sample(), models.SourceFallback
	}

	key := cacheKey(boundary, beforeDate, afterDate)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, true))
			return cached.(*Sample), models.SourceExternal
		}
	}

	_, call := s.tracer.Start(ctx, tracer.SpanProviderCall)
	sample, err := s.provider.Analyze(ctx, boundary, beforeDate, afterDate)
	call.End(err)
	if err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "imagery circuit opened", "breaker", s.breaker.Name())
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "imagery analysis unavailable, using fallback", "error", err)
		}
		return s.fallback.Sample(), models.SourceFallback
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "imagery circuit closed", "breaker", s.breaker.Name())
	}
	if s.cache != nil {
		s.cache.SetDefault(key, sample)
	}
	return sample, models.SourceExternal
}

// buildVerdict applies the pass rule to a metric pair. The percentage delta
// is omitted when the before index is zero.
func (s *Service) buildVerdict(sample *Sample, source models.VerdictSource) *models.Verdict {
	delta := sample.After - sample.Before
	v := &models.Verdict{
		Before:    sample.Before,
		After:     sample.After,
		Delta:     delta,
		Passed:    delta > s.passThreshold,
		CheckedAt: s.clock(),
		Source:    source,
	}
	if sample.Before != 0 {
		pct := delta / sample.Before * 100
		v.DeltaPct = &pct
	}
	return v
}

func cacheKey(boundary models.Polygon, beforeDate, afterDate time.Time) string {
	sum := sha256.Sum256([]byte(boundary.Canonical()))
	return fmt.Sprintf("%s:%d:%d", hex.EncodeToString(sum[:8]), beforeDate.Unix(), afterDate.Unix())
}
