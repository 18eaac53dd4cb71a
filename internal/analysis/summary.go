package analysis

import "context"

// Analyzer is implemented by every domain analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Summary, error)
}

// Summary is the insight produced by one domain analyzer. Metrics holds the
// domain's typed metrics struct.
type Summary struct {
	Domain          Domain             `json:"domain"`
	Available       bool               `json:"available"`
	Score           float64            `json:"score"`
	Label           string             `json:"label"`
	Factors         map[string]float64 `json:"factors,omitempty"`
	Insights        []string           `json:"insights,omitempty"`
	RiskFlags       []string           `json:"risk_flags,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	Degraded        []string           `json:"degraded_sources,omitempty"`
	Metrics         any                `json:"metrics,omitempty"`
	Reason          string             `json:"reason,omitempty"`
}

// NewSummary builds an available summary scored by weights over factors.
func NewSummary(d Domain, weights Weights, factors map[string]float64, metrics any, degraded []string) Summary {
	score := weights.Score(factors)
	return Summary{
		Domain:    d,
		Available: true,
		Score:     score,
		Label:     LabelFor(score),
		Factors:   factors,
		Degraded:  degraded,
		Metrics:   metrics,
	}
}

// Unavailable is the stand-in summary for a domain that produced no data.
// It is distinguishable from a measured zero by Available and Label.
func Unavailable(d Domain, err error) Summary {
	s := Summary{Domain: d, Label: LabelUnavailable}
	if err != nil {
		s.Reason = err.Error()
	}
	return s
}

// IsDegraded reports whether the summary is missing some of its sources.
func (s Summary) IsDegraded() bool { return len(s.Degraded) > 0 }
