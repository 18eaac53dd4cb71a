package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/web3-frozen/token-insight/internal/aggregator"
	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/analysis/community"
	"github.com/web3-frozen/token-insight/internal/analysis/development"
	"github.com/web3-frozen/token-insight/internal/analysis/market"
	"github.com/web3-frozen/token-insight/internal/analysis/onchain"
	"github.com/web3-frozen/token-insight/internal/analysis/sentiment"
	"github.com/web3-frozen/token-insight/internal/monitor"
)

// Scoring is the content of the YAML scoring file: every weight table and
// threshold, the monitor settings and the report cache window.
type Scoring struct {
	Market      market.Config      `yaml:"market"`
	OnChain     onchain.Config     `yaml:"on_chain"`
	Sentiment   sentiment.Config   `yaml:"sentiment"`
	Development development.Config `yaml:"development"`
	Community   community.Config   `yaml:"community"`
	Composite   aggregator.Config  `yaml:"composite"`
	Monitor     monitor.Settings   `yaml:"monitor"`
	// ReportFreshness is how long a cached report is served.
	ReportFreshness time.Duration `yaml:"report_freshness" default:"10m" validate:"gt=0"`
}

func DefaultScoring() Scoring {
	s := Scoring{
		Market:      market.DefaultConfig(),
		OnChain:     onchain.DefaultConfig(),
		Sentiment:   sentiment.DefaultConfig(),
		Development: development.DefaultConfig(),
		Community:   community.DefaultConfig(),
		Composite:   aggregator.DefaultConfig(),
		Monitor:     monitor.DefaultSettings(),
	}
	_ = defaults.Set(&s)
	return s
}

// LoadScoring reads the scoring file at path over the defaults. An empty
// path yields the defaults. A weight table present in the file replaces the
// default table as a whole.
func LoadScoring(path string) (Scoring, error) {
	s := DefaultScoring()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scoring{}, fmt.Errorf("read scoring file: %w", err)
	}

	s.weightTables(func(w *analysis.Weights, _ analysis.Weights) { *w = nil })
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Scoring{}, &analysis.ConfigError{Field: path, Reason: err.Error()}
	}
	s.weightTables(func(w *analysis.Weights, def analysis.Weights) {
		if *w == nil {
			*w = def.Clone()
		}
	})

	if err := s.Validate(); err != nil {
		return Scoring{}, err
	}
	return s, nil
}

func (s *Scoring) weightTables(fn func(w *analysis.Weights, def analysis.Weights)) {
	fn(&s.Market.Weights, market.DefaultWeights)
	fn(&s.OnChain.Weights, onchain.DefaultWeights)
	fn(&s.Sentiment.Weights, sentiment.DefaultWeights)
	fn(&s.Development.Weights, development.DefaultWeights)
	fn(&s.Community.Weights, community.DefaultWeights)
	fn(&s.Composite.Weights, aggregator.DefaultWeights)
	fn(&s.Composite.GrowthWeights, aggregator.DefaultGrowthWeights)
}

// Validate checks every section. Errors are *analysis.ConfigError.
func (s Scoring) Validate() error {
	sections := []struct {
		name    string
		weights analysis.Weights
		factors []string
		cfg     any
	}{
		{"market", s.Market.Weights, market.Factors, s.Market},
		{"on_chain", s.OnChain.Weights, onchain.Factors, s.OnChain},
		{"sentiment", s.Sentiment.Weights, sentiment.Factors, s.Sentiment},
		{"development", s.Development.Weights, development.Factors, s.Development},
		{"community", s.Community.Weights, community.Factors, s.Community},
	}
	for _, sec := range sections {
		if err := sec.weights.Validate(sec.name+".weights", sec.factors...); err != nil {
			return err
		}
		if err := analysis.ValidateConfig(sec.name, sec.cfg); err != nil {
			return err
		}
	}
	if err := s.Composite.Validate(); err != nil {
		return err
	}
	if err := analysis.ValidateConfig("monitor", s.Monitor); err != nil {
		return err
	}
	if s.ReportFreshness <= 0 {
		return &analysis.ConfigError{Field: "report_freshness", Reason: "must be positive"}
	}
	return nil
}
