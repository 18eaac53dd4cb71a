// Package aggregator runs the domain analyzers for a subject concurrently and
// merges their summaries into a composite report.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/metrics"
)

// ErrAllDomainsUnavailable is returned when no domain produced a summary.
var ErrAllDomainsUnavailable = errors.New("all domains unavailable")

// Cache stores encoded reports. Implementations live in internal/cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Option func(*Aggregator)

// WithCache enables report caching for requests carrying a cache key. A
// cached report is served for the rest of its freshness window.
func WithCache(c Cache, freshness time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = c
		a.freshness = freshness
	}
}

// WithClock replaces time.Now for cache windows.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

type Aggregator struct {
	analyzers map[analysis.Domain]analysis.Analyzer
	cfg       Config
	logger    *slog.Logger
	cache     Cache
	freshness time.Duration
	now       func() time.Time
}

// New validates cfg and builds an aggregator. Domains without an analyzer
// are reported as unavailable.
func New(analyzers map[analysis.Domain]analysis.Analyzer, cfg Config, logger *slog.Logger, opts ...Option) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		analyzers: analyzers,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache != nil && a.freshness <= 0 {
		return nil, &analysis.ConfigError{Field: "report_freshness", Reason: "must be positive when caching is enabled"}
	}
	return a, nil
}

// Generate produces the composite report for req. It fails only when every
// domain is unavailable or ctx ends first.
func (a *Aggregator) Generate(ctx context.Context, req analysis.Request) (*Report, error) {
	start := time.Now()
	subject := req.Subject()

	cacheKey := a.cacheKey(req)
	if cacheKey != "" {
		if r, ok := a.cached(ctx, cacheKey); ok {
			metrics.ReportsTotal.WithLabelValues("cached").Inc()
			return r, nil
		}
	}

	summaries := make([]analysis.Summary, len(analysis.Domains))
	var wg sync.WaitGroup
	for i, d := range analysis.Domains {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summaries[i] = a.analyze(ctx, d, req)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		metrics.ReportsTotal.WithLabelValues("cancelled").Inc()
		return nil, fmt.Errorf("%s: %w: %w", subject, analysis.ErrCancelled, err)
	}

	report := build(a.cfg, subject, summaries)
	metrics.ReportDuration.Observe(time.Since(start).Seconds())

	if report.Metadata.DomainsAvailable == 0 {
		metrics.ReportsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%s: %w", subject, ErrAllDomainsUnavailable)
	}

	status := "full"
	if report.Metadata.Confidence != ConfidenceHigh {
		status = "degraded"
	}
	metrics.ReportsTotal.WithLabelValues(status).Inc()
	metrics.OverallScore.WithLabelValues(subject).Set(report.OverallScore)

	a.logger.Info("report generated",
		"subject", subject,
		"overall_score", report.OverallScore,
		"risk", report.RiskAssessment.Level,
		"unavailable", report.Metadata.UnavailableDomains,
		"duration", time.Since(start),
	)

	if cacheKey != "" {
		a.store(ctx, cacheKey, report)
	}
	return report, nil
}

// analyze runs one domain analyzer and never fails: errors and panics become
// the domain's unavailable sentinel.
func (a *Aggregator) analyze(ctx context.Context, d analysis.Domain, req analysis.Request) (s analysis.Summary) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analyzer panic", "domain", d, "subject", req.Subject(), "panic", r)
			s = analysis.Unavailable(d, fmt.Errorf("analyzer panic: %v", r))
		}
		status := "ok"
		switch {
		case !s.Available:
			status = "unavailable"
		case s.IsDegraded():
			status = "degraded"
		}
		metrics.AnalysisTotal.WithLabelValues(string(d), status).Inc()
		metrics.AnalysisDuration.WithLabelValues(string(d)).Observe(time.Since(start).Seconds())
	}()

	an, ok := a.analyzers[d]
	if !ok || an == nil {
		return analysis.Unavailable(d, errors.New("analyzer not configured"))
	}
	s, err := an.Analyze(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("domain unavailable", "domain", d, "subject", req.Subject(), "error", err)
		}
		return analysis.Unavailable(d, err)
	}
	s.Domain = d
	s.Available = true
	return s
}

func (a *Aggregator) cacheKey(req analysis.Request) string {
	if a.cache == nil || req.CacheKey == "" {
		return ""
	}
	window := a.now().Truncate(a.freshness).Unix()
	return fmt.Sprintf("report:%s:%d", req.CacheKey, window)
}

func (a *Aggregator) cached(ctx context.Context, key string) (*Report, bool) {
	raw, ok, err := a.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		a.logger.Warn("report cache get", "key", key, "error", err)
		return nil, false
	case !ok:
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		a.logger.Warn("decode cached report", "key", key, "error", err)
		return nil, false
	}
	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	r.Metadata.Cached = true
	return &r, true
}

func (a *Aggregator) store(ctx context.Context, key string, r *Report) {
	raw, err := json.Marshal(r)
	if err != nil {
		a.logger.Warn("encode report for cache", "key", key, "error", err)
		return
	}
	if err := a.cache.Set(ctx, key, raw, a.freshness); err != nil {
		a.logger.Warn("report cache set", "key", key, "error", err)
	}
}
