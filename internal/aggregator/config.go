package aggregator

import (
	"github.com/creasty/defaults"

	"github.com/web3-frozen/token-insight/internal/analysis"
)

// DefaultWeights is the composite weight table over domains.
var DefaultWeights = analysis.Weights{
	string(analysis.DomainMarket):      0.30,
	string(analysis.DomainOnChain):     0.25,
	string(analysis.DomainSentiment):   0.15,
	string(analysis.DomainDevelopment): 0.15,
	string(analysis.DomainCommunity):   0.15,
}

// growth factors are the domains that drive growth potential.
var growthDomains = []analysis.Domain{analysis.DomainDevelopment, analysis.DomainCommunity, analysis.DomainSentiment}

// DefaultGrowthWeights weights growth potential across its domains.
var DefaultGrowthWeights = analysis.Weights{
	string(analysis.DomainDevelopment): 0.35,
	string(analysis.DomainCommunity):   0.35,
	string(analysis.DomainSentiment):   0.30,
}

// Thresholds drive the rule-based risk, growth and recommendation output.
// Score thresholds are on the 0-100 scale, sentiment on [-1, 1].
type Thresholds struct {
	// Overall scores below HighRiskScore are high risk, below MediumRiskScore medium.
	HighRiskScore   float64 `yaml:"high_risk_score" default:"40" validate:"gte=0,lte=100"`
	MediumRiskScore float64 `yaml:"medium_risk_score" default:"65" validate:"gtefield=HighRiskScore,lte=100"`

	MinLiquidityUSD       float64 `yaml:"min_liquidity_usd" default:"50000" validate:"gte=0"`
	MaxTop10Concentration float64 `yaml:"max_top10_concentration" default:"0.6" validate:"gt=0,lte=1"`
	NegativeSentiment     float64 `yaml:"negative_sentiment" default:"-0.2" validate:"gte=-1,lte=0"`
	PositiveSentiment     float64 `yaml:"positive_sentiment" default:"0.2" validate:"gte=0,lte=1"`
	MinDevelopmentScore   float64 `yaml:"min_development_score" default:"30" validate:"gte=0,lte=100"`
	MinCommunityScore     float64 `yaml:"min_community_score" default:"30" validate:"gte=0,lte=100"`
	StrongDomainScore     float64 `yaml:"strong_domain_score" default:"70" validate:"gte=0,lte=100"`

	GrowthHigh   float64 `yaml:"growth_high" default:"70" validate:"gtefield=GrowthMedium,lte=100"`
	GrowthMedium float64 `yaml:"growth_medium" default:"50" validate:"gte=0,lte=100"`

	// MaxUnavailableDomains is how many domains may be missing before the
	// report is treated as at least medium risk.
	MaxUnavailableDomains int `yaml:"max_unavailable_domains" default:"2" validate:"gte=0,lte=5"`
}

// Config is the composite scoring configuration.
type Config struct {
	Weights       analysis.Weights `yaml:"weights"`
	GrowthWeights analysis.Weights `yaml:"growth_weights"`
	Thresholds    Thresholds       `yaml:"thresholds"`
}

func DefaultConfig() Config {
	cfg := Config{
		Weights:       DefaultWeights.Clone(),
		GrowthWeights: DefaultGrowthWeights.Clone(),
	}
	_ = defaults.Set(&cfg)
	return cfg
}

// Validate checks both weight tables and the thresholds.
func (c Config) Validate() error {
	domains := make([]string, 0, len(analysis.Domains))
	for _, d := range analysis.Domains {
		domains = append(domains, string(d))
	}
	if err := c.Weights.Validate("composite.weights", domains...); err != nil {
		return err
	}
	growth := make([]string, 0, len(growthDomains))
	for _, d := range growthDomains {
		growth = append(growth, string(d))
	}
	if err := c.GrowthWeights.Validate("composite.growth_weights", growth...); err != nil {
		return err
	}
	return analysis.ValidateConfig("composite.thresholds", c.Thresholds)
}
