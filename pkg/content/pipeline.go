package content

import (
	"context"
	"errors"
	"time"

	"github.com/astralpost/astralpost/pkg/almanac"
	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/observability"
)

// Pipeline produces one validated newsletter per (perspective, tier, date).
// Its contract is availability over freshness: Generate always returns a
// usable payload, even with the cache cold and both providers down.
type Pipeline struct {
	cfg        config.ContentConfig
	cache      *Cache
	composer   Composer
	primary    Provider
	fallback   Provider
	primaryBr  *Breaker
	fallbackBr *Breaker
	validator  *Validator
	static     *StaticFallbacks
	sink       MetricsSink
	archiver   Archiver
	metrics    *observability.Metrics
	logger     *observability.Logger

	now func() time.Time
}

// NewPipeline wires the generation pipeline. archiver may be nil.
func NewPipeline(
	cfg config.ContentConfig,
	cache *Cache,
	composer Composer,
	primary, fallback Provider,
	validator *Validator,
	static *StaticFallbacks,
	sink MetricsSink,
	archiver Archiver,
	metrics *observability.Metrics,
	logger *observability.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		cache:      cache,
		composer:   composer,
		primary:    primary,
		fallback:   fallback,
		primaryBr:  NewBreaker(primary.Name(), cfg.BreakerFailureThreshold, cfg.BreakerCooldown, metrics),
		fallbackBr: NewBreaker(fallback.Name(), cfg.BreakerFailureThreshold, cfg.BreakerCooldown, metrics),
		validator:  validator,
		static:     static,
		sink:       sink,
		archiver:   archiver,
		metrics:    metrics,
		logger:     logger.WithField("component", "content.pipeline"),
		now:        time.Now,
	}
}

// Generate returns the newsletter for the request. Cache hit -> cached
// payload verbatim. Miss -> primary provider behind its breaker, then the
// fallback behind its own, then the static perspective template. The result
// is validated, minified, cached for the TTL, and metered on every path.
func (p *Pipeline) Generate(ctx context.Context, req Request, daily *almanac.DailyContext, news []almanac.Headline) *Newsletter {
	key := req.CacheKey()
	start := p.now()

	if cached := p.cache.Get(ctx, key); cached != nil {
		p.record(ctx, req, cached.Meta.Model, OutcomeCached, 0, 0, p.now().Sub(start))
		return cached
	}

	prompt := p.composer.Compose(req, daily, news)

	n, tokens, provider, outcome := p.generateUncached(ctx, req, prompt)

	minify(n)
	p.cache.Set(ctx, key, n)
	if p.archiver != nil {
		p.archiver.Archive(ctx, key, n)
	}

	cost := float64(tokens) * p.rateFor(provider)
	p.record(ctx, req, provider, outcome, tokens, cost, p.now().Sub(start))
	return n
}

// generateUncached walks the provider chain and terminates on the static
// template. It never returns nil.
func (p *Pipeline) generateUncached(ctx context.Context, req Request, prompt Prompt) (*Newsletter, int, string, string) {
	logger := p.logger.
		WithField("perspective", string(req.Perspective)).
		WithField("tier", req.Tier)

	n, tokens, err := p.callProvider(ctx, req, p.primary, p.primaryBr, prompt)
	if err == nil {
		return n, tokens, p.primary.Name(), OutcomePrimary
	}
	logger.WithError(err).Warn("primary provider failed, trying fallback")

	n, tokens, err = p.callProvider(ctx, req, p.fallback, p.fallbackBr, prompt)
	if err == nil {
		return n, tokens, p.fallback.Name(), OutcomeFallback
	}
	logger.WithError(err).Warn("fallback provider failed, serving static template")

	p.metrics.StaticFallbackTotal.WithLabelValues(string(req.Perspective), "providers_exhausted").Inc()
	return p.static.Get(req.Perspective, p.now()), 0, "static", OutcomeStatic
}

// callProvider runs one provider behind its breaker with the tier-scoped
// timeout, then validates the result. Validation failures count against the
// breaker the same as transport failures: a provider returning junk is as
// unavailable as one timing out.
func (p *Pipeline) callProvider(ctx context.Context, req Request, provider Provider, br *Breaker, prompt Prompt) (*Newsletter, int, error) {
	if err := br.Allow(); err != nil {
		return nil, 0, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeoutFor(req.Tier))
	defer cancel()

	n, tokens, err := provider.Generate(callCtx, prompt)
	if err != nil {
		br.RecordFailure()
		return nil, 0, err
	}

	if err := p.validator.Validate(n); err != nil {
		p.metrics.ValidationFailures.WithLabelValues(provider.Name(), validationRule(err)).Inc()
		br.RecordFailure()
		return nil, 0, err
	}

	br.RecordSuccess()
	return n, tokens, nil
}

func (p *Pipeline) timeoutFor(tier string) time.Duration {
	if tier == "pro" {
		return p.cfg.PremiumTimeout
	}
	return p.cfg.StandardTimeout
}

func (p *Pipeline) rateFor(provider string) float64 {
	switch provider {
	case p.primary.Name():
		return p.primary.RatePerToken()
	case p.fallback.Name():
		return p.fallback.RatePerToken()
	default:
		return 0
	}
}

func (p *Pipeline) record(ctx context.Context, req Request, provider, outcome string, tokens int, cost float64, duration time.Duration) {
	p.sink.Record(ctx, GenerationRecord{
		Provider:    provider,
		Perspective: req.Perspective,
		Tier:        req.Tier,
		Outcome:     outcome,
		Tokens:      tokens,
		CostUSD:     cost,
		Duration:    duration,
	})
}

func validationRule(err error) string {
	switch {
	case errors.Is(err, ErrQualityCheck):
		return "quality"
	case errors.Is(err, ErrSchemaValidation):
		return "schema"
	default:
		return "other"
	}
}
