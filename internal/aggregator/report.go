package aggregator

import (
	"fmt"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/analysis/market"
	"github.com/web3-frozen/token-insight/internal/analysis/onchain"
	"github.com/web3-frozen/token-insight/internal/analysis/sentiment"
)

// Risk and growth levels.
const (
	LevelLow     = "low"
	LevelMedium  = "medium"
	LevelHigh    = "high"
	LevelUnknown = "unknown"
)

// Confidence levels reported in metadata.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Report is the composite analysis of one subject. It carries no
// timestamps so identical inputs encode to identical JSON.
type Report struct {
	Subject            string           `json:"subject"`
	OverallScore       float64          `json:"overall_score"`
	KeyInsights        []string         `json:"key_insights"`
	RiskAssessment     RiskAssessment   `json:"risk_assessment"`
	GrowthPotential    GrowthPotential  `json:"growth_potential"`
	Recommendations    []string         `json:"recommendations"`
	MarketMetrics      analysis.Summary `json:"market_metrics"`
	OnChainMetrics     analysis.Summary `json:"on_chain_metrics"`
	SentimentMetrics   analysis.Summary `json:"sentiment_metrics"`
	DevelopmentMetrics analysis.Summary `json:"development_metrics"`
	CommunityMetrics   analysis.Summary `json:"community_metrics"`
	Metadata           Metadata         `json:"metadata"`
}

type RiskAssessment struct {
	Level   string   `json:"level"`
	Factors []string `json:"factors"`
}

// GrowthPotential is nil-scored when none of its domains is available.
type GrowthPotential struct {
	Level string   `json:"level"`
	Score *float64 `json:"score"`
}

type Metadata struct {
	UnavailableDomains []string `json:"unavailable_domains"`
	DegradedSources    []string `json:"degraded_sources"`
	DomainsAvailable   int      `json:"domains_available"`
	Confidence         string   `json:"confidence"`
	Cached             bool     `json:"cached,omitempty"`
}

// Summary returns the sub-report of domain d.
func (r *Report) Summary(d analysis.Domain) analysis.Summary {
	switch d {
	case analysis.DomainMarket:
		return r.MarketMetrics
	case analysis.DomainOnChain:
		return r.OnChainMetrics
	case analysis.DomainSentiment:
		return r.SentimentMetrics
	case analysis.DomainDevelopment:
		return r.DevelopmentMetrics
	default:
		return r.CommunityMetrics
	}
}

func (r *Report) setSummary(s analysis.Summary) {
	switch s.Domain {
	case analysis.DomainMarket:
		r.MarketMetrics = s
	case analysis.DomainOnChain:
		r.OnChainMetrics = s
	case analysis.DomainSentiment:
		r.SentimentMetrics = s
	case analysis.DomainDevelopment:
		r.DevelopmentMetrics = s
	case analysis.DomainCommunity:
		r.CommunityMetrics = s
	}
}

// OverallScore renormalizes the weights of the available domains to sum to
// 1 and combines their scores in a single key-ordered pass. Unavailable
// domains drop out. ok is false when nothing is available.
func OverallScore(weights analysis.Weights, summaries []analysis.Summary) (float64, bool) {
	return weightedScore(weights, analysis.Domains, summaries)
}

func weightedScore(weights analysis.Weights, domains []analysis.Domain, summaries []analysis.Summary) (float64, bool) {
	byDomain := make(map[analysis.Domain]analysis.Summary, len(summaries))
	for _, s := range summaries {
		byDomain[s.Domain] = s
	}
	keys := make([]string, 0, len(domains))
	scores := make(map[string]float64, len(domains))
	for _, d := range domains {
		s, ok := byDomain[d]
		if !ok || !s.Available {
			continue
		}
		keys = append(keys, string(d))
		scores[string(d)] = s.Score
	}
	renormalized, ok := weights.Subset(keys...)
	if !ok {
		return 0, false
	}
	return renormalized.Score(scores), true
}

// build assembles the report from summaries listed in domain order.
func build(cfg Config, subject string, summaries []analysis.Summary) *Report {
	r := &Report{Subject: subject}
	for _, s := range summaries {
		r.setSummary(s)
	}
	r.OverallScore, _ = OverallScore(cfg.Weights, summaries)

	r.Metadata = metadata(summaries)
	r.RiskAssessment = assessRisk(cfg.Thresholds, r)
	r.GrowthPotential = growth(cfg, summaries)
	r.KeyInsights = keyInsights(cfg.Thresholds, summaries)
	r.Recommendations = recommendations(cfg.Thresholds, r, summaries)
	return r
}

func metadata(summaries []analysis.Summary) Metadata {
	md := Metadata{UnavailableDomains: []string{}, DegradedSources: []string{}}
	for _, s := range summaries {
		if !s.Available {
			md.UnavailableDomains = append(md.UnavailableDomains, string(s.Domain))
			continue
		}
		md.DomainsAvailable++
		for _, src := range s.Degraded {
			md.DegradedSources = append(md.DegradedSources, string(s.Domain)+"/"+src)
		}
	}
	switch {
	case md.DomainsAvailable == len(analysis.Domains) && len(md.DegradedSources) == 0:
		md.Confidence = ConfidenceHigh
	case md.DomainsAvailable >= 3:
		md.Confidence = ConfidenceMedium
	default:
		md.Confidence = ConfidenceLow
	}
	return md
}

var levelRank = map[string]int{LevelLow: 0, LevelMedium: 1, LevelHigh: 2}

func raise(level, to string) string {
	if levelRank[to] > levelRank[level] {
		return to
	}
	return level
}

func assessRisk(th Thresholds, r *Report) RiskAssessment {
	ra := RiskAssessment{Level: LevelLow, Factors: []string{}}
	switch {
	case r.OverallScore < th.HighRiskScore:
		ra.Level = LevelHigh
		ra.Factors = append(ra.Factors, fmt.Sprintf("overall score %.1f below %.0f", r.OverallScore, th.HighRiskScore))
	case r.OverallScore < th.MediumRiskScore:
		ra.Level = LevelMedium
		ra.Factors = append(ra.Factors, fmt.Sprintf("overall score %.1f below %.0f", r.OverallScore, th.MediumRiskScore))
	}

	lowLiquidity := false
	if m, ok := r.MarketMetrics.Metrics.(market.Metrics); ok && r.MarketMetrics.Available && m.PoolCount > 0 {
		if m.PoolLiquidityUSD < th.MinLiquidityUSD {
			lowLiquidity = true
			ra.Factors = append(ra.Factors, fmt.Sprintf("pool liquidity $%.0f below $%.0f", m.PoolLiquidityUSD, th.MinLiquidityUSD))
			ra.Level = raise(ra.Level, LevelMedium)
		}
	}
	if m, ok := r.SentimentMetrics.Metrics.(sentiment.Metrics); ok && r.SentimentMetrics.Available {
		if m.Composite <= th.NegativeSentiment {
			ra.Factors = append(ra.Factors, fmt.Sprintf("sentiment %.2f is negative", m.Composite))
			if lowLiquidity {
				ra.Factors = append(ra.Factors, "thin liquidity combined with negative sentiment")
				ra.Level = LevelHigh
			}
		}
	}
	if m, ok := r.OnChainMetrics.Metrics.(onchain.Metrics); ok && r.OnChainMetrics.Available && m.Top10Share != nil {
		if *m.Top10Share > th.MaxTop10Concentration {
			ra.Factors = append(ra.Factors, fmt.Sprintf("top 10 accounts hold %.0f%% of supply", *m.Top10Share*100))
			ra.Level = raise(ra.Level, LevelMedium)
		}
	}
	if s := r.DevelopmentMetrics; s.Available && s.Score < th.MinDevelopmentScore {
		ra.Factors = append(ra.Factors, fmt.Sprintf("development score %.1f below %.0f", s.Score, th.MinDevelopmentScore))
	}
	if s := r.CommunityMetrics; s.Available && s.Score < th.MinCommunityScore {
		ra.Factors = append(ra.Factors, fmt.Sprintf("community score %.1f below %.0f", s.Score, th.MinCommunityScore))
	}
	if n := len(r.Metadata.UnavailableDomains); n > th.MaxUnavailableDomains {
		ra.Factors = append(ra.Factors, fmt.Sprintf("%d of %d domains unavailable", n, len(analysis.Domains)))
		ra.Level = raise(ra.Level, LevelMedium)
	}
	return ra
}

func growth(cfg Config, summaries []analysis.Summary) GrowthPotential {
	score, ok := weightedScore(cfg.GrowthWeights, growthDomains, summaries)
	if !ok {
		return GrowthPotential{Level: LevelUnknown}
	}
	g := GrowthPotential{Score: &score, Level: LevelLow}
	switch {
	case score >= cfg.Thresholds.GrowthHigh:
		g.Level = LevelHigh
	case score >= cfg.Thresholds.GrowthMedium:
		g.Level = LevelMedium
	}
	return g
}

func keyInsights(th Thresholds, summaries []analysis.Summary) []string {
	out := []string{}
	for _, s := range summaries {
		if !s.Available {
			out = append(out, fmt.Sprintf("%s data unavailable", s.Domain))
			continue
		}
		if s.Score >= th.StrongDomainScore {
			out = append(out, fmt.Sprintf("%s is a strength (%.1f)", s.Domain, s.Score))
		}
		if len(s.Insights) > 0 {
			out = append(out, fmt.Sprintf("%s: %s", s.Domain, s.Insights[0]))
		}
	}
	return out
}

func recommendations(th Thresholds, r *Report, summaries []analysis.Summary) []string {
	out := []string{}
	switch r.RiskAssessment.Level {
	case LevelHigh:
		out = append(out, "High risk: limit exposure and verify liquidity before trading")
	case LevelMedium:
		out = append(out, "Moderate risk: size positions conservatively and monitor the flagged factors")
	default:
		out = append(out, "Low risk profile relative to configured thresholds")
	}
	if r.GrowthPotential.Level == LevelHigh {
		out = append(out, "Strong development and community signals support long-term growth")
	}
	if m, ok := r.SentimentMetrics.Metrics.(sentiment.Metrics); ok && r.SentimentMetrics.Available && m.Composite >= th.PositiveSentiment {
		out = append(out, "Positive sentiment: confirm it with on-chain activity before acting on it")
	}
	if r.Metadata.Confidence != ConfidenceHigh {
		out = append(out, "Some data sources were unavailable: re-run the analysis before relying on it")
	}

	seen := make(map[string]struct{}, len(out))
	for _, rec := range out {
		seen[rec] = struct{}{}
	}
	for _, s := range summaries {
		for _, rec := range s.Recommendations {
			if _, dup := seen[rec]; dup {
				continue
			}
			seen[rec] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}
