// Package onchain scores holder distribution and transfer activity of a
// token from RPC and indexer data.
package onchain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/axiomhq/hyperloglog"
	"github.com/creasty/defaults"
	"github.com/shopspring/decimal"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

const (
	FactorHolderDistribution = "holder_distribution"
	FactorHolderCount        = "holder_count"
	FactorTransferActivity   = "transfer_activity"
	FactorActiveAddresses    = "active_addresses"
)

var Factors = []string{FactorHolderDistribution, FactorHolderCount, FactorTransferActivity, FactorActiveAddresses}

var DefaultWeights = analysis.Weights{
	FactorHolderDistribution: 0.35,
	FactorHolderCount:        0.25,
	FactorTransferActivity:   0.25,
	FactorActiveAddresses:    0.15,
}

const (
	SourceRPC     = "solana_rpc"
	SourceIndexer = "indexer"
)

// topHolders is how many of the largest accounts count toward concentration.
const topHolders = 10

type HolderSource interface {
	Holders(ctx context.Context, mint string) (*sources.HolderSnapshot, error)
}

type ActivitySource interface {
	TokenActivity(ctx context.Context, chain, address string) (*sources.TokenActivity, error)
}

type Config struct {
	Weights analysis.Weights `yaml:"weights"`
	// MaxTop10Share flags supplies where the ten largest accounts hold more.
	MaxTop10Share float64 `yaml:"max_top10_share" default:"0.6" validate:"gt=0,lte=1"`
	// WhaleShare is the fraction of supply that makes a single transfer a whale move.
	WhaleShare float64 `yaml:"whale_share" default:"0.01" validate:"gt=0,lte=1"`
	// TransferTarget is the transfer count per window that scores 100.
	TransferTarget float64 `yaml:"transfer_target" default:"500" validate:"gt=1"`
	// ActiveTarget is the distinct address count per window that scores 100.
	ActiveTarget float64 `yaml:"active_target" default:"1000" validate:"gt=1"`
}

func DefaultConfig() Config {
	cfg := Config{Weights: DefaultWeights.Clone()}
	_ = defaults.Set(&cfg)
	return cfg
}

// Metrics holds exact amounts as decimal strings in base units.
type Metrics struct {
	Supply          string   `json:"supply"`
	Decimals        uint8    `json:"decimals"`
	Top10Share      *float64 `json:"top10_share"`
	HolderCount     int      `json:"holder_count"`
	TransferCount   int      `json:"transfer_count"`
	TransferVolume  string   `json:"transfer_volume"`
	ActiveAddresses uint64   `json:"active_addresses"`
	WhaleTransfers  int      `json:"whale_transfers"`
}

type Analyzer struct {
	holders  HolderSource
	activity ActivitySource
	cfg      Config
	logger   *slog.Logger
}

func New(holders HolderSource, activity ActivitySource, cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if err := cfg.Weights.Validate("on_chain.weights", Factors...); err != nil {
		return nil, err
	}
	if err := analysis.ValidateConfig("on_chain", cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{holders: holders, activity: activity, cfg: cfg, logger: logger}, nil
}

func (a *Analyzer) Analyze(ctx context.Context, req analysis.Request) (analysis.Summary, error) {
	var (
		snap *sources.HolderSnapshot
		act  *sources.TokenActivity
	)
	out, err := analysis.FetchAll(ctx,
		analysis.Fetch{Source: SourceRPC, Run: func(ctx context.Context) (err error) {
			if req.Chain != "" && !strings.EqualFold(req.Chain, "solana") {
				return sources.Missing(SourceRPC, "solana token_address")
			}
			snap, err = a.holders.Holders(ctx, req.TokenAddress)
			return err
		}},
		analysis.Fetch{Source: SourceIndexer, Run: func(ctx context.Context) (err error) {
			act, err = a.activity.TokenActivity(ctx, req.Chain, req.TokenAddress)
			return err
		}},
	)
	if err != nil {
		return analysis.Summary{}, err
	}
	if out.AllFailed() {
		return analysis.Summary{}, out.Unavailable(analysis.DomainOnChain)
	}
	if out.Failed(SourceRPC) != nil {
		snap = nil
	}
	if out.Failed(SourceIndexer) != nil {
		act = nil
	}

	m := BuildMetrics(snap, act, a.cfg.WhaleShare)
	summary := analysis.NewSummary(analysis.DomainOnChain, a.cfg.Weights, a.factors(m), m, out.Degraded())
	a.annotate(&summary, m)
	return summary, nil
}

// BuildMetrics derives holder and activity metrics. Either input may be nil.
func BuildMetrics(snap *sources.HolderSnapshot, act *sources.TokenActivity, whaleShare float64) Metrics {
	m := Metrics{Supply: "0", TransferVolume: "0"}

	supply := decimal.Zero
	if snap != nil {
		supply = snap.Supply
		m.Supply = snap.Supply.String()
		m.Decimals = snap.Decimals
		m.Top10Share = Concentration(snap.Supply, snap.Largest, topHolders)
	}

	if act == nil {
		return m
	}
	m.HolderCount = act.HolderCount
	m.TransferCount = len(act.Transfers)

	whaleMin := supply.Mul(decimal.NewFromFloat(whaleShare))
	sketch := hyperloglog.New14()
	volume := decimal.Zero
	for _, tr := range act.Transfers {
		v := tr.Value()
		volume = volume.Add(v)
		if tr.From != "" {
			sketch.Insert([]byte(tr.From))
		}
		if tr.To != "" {
			sketch.Insert([]byte(tr.To))
		}
		if supply.IsPositive() && v.GreaterThanOrEqual(whaleMin) {
			m.WhaleTransfers++
		}
	}
	m.TransferVolume = volume.String()
	m.ActiveAddresses = sketch.Estimate()
	return m
}

// Concentration is the share of supply held by the n largest balances,
// nil when supply is not positive.
func Concentration(supply decimal.Decimal, largest []decimal.Decimal, n int) *float64 {
	if !supply.IsPositive() {
		return nil
	}
	top := decimal.Zero
	for i, b := range largest {
		if i == n {
			break
		}
		top = top.Add(b)
	}
	share, _ := top.Div(supply).Float64()
	share = analysis.Clamp(share, 0, 1)
	return &share
}

func (a *Analyzer) factors(m Metrics) map[string]float64 {
	distribution := analysis.NeutralScore
	if m.Top10Share != nil {
		distribution = 100 * (1 - *m.Top10Share)
	}
	return map[string]float64{
		FactorHolderDistribution: distribution,
		FactorHolderCount:        analysis.LogScale(float64(m.HolderCount), 10, 1e6),
		FactorTransferActivity:   analysis.LogScale(float64(m.TransferCount), 1, a.cfg.TransferTarget),
		FactorActiveAddresses:    analysis.LogScale(float64(m.ActiveAddresses), 1, a.cfg.ActiveTarget),
	}
}

func (a *Analyzer) annotate(s *analysis.Summary, m Metrics) {
	if m.Top10Share != nil {
		s.Insights = append(s.Insights, fmt.Sprintf("top %d accounts hold %.1f%% of supply", topHolders, *m.Top10Share*100))
		if *m.Top10Share > a.cfg.MaxTop10Share {
			s.RiskFlags = append(s.RiskFlags, "holder_concentration")
			s.Recommendations = append(s.Recommendations, "Watch the largest holders: supply is concentrated in few accounts")
		}
	}
	if m.HolderCount > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("%d holders, %d active addresses in recent transfers", m.HolderCount, m.ActiveAddresses))
	}
	if m.WhaleTransfers > 0 {
		s.RiskFlags = append(s.RiskFlags, "whale_transfers")
		s.Insights = append(s.Insights, fmt.Sprintf("%d transfers moved at least %.1f%% of supply", m.WhaleTransfers, a.cfg.WhaleShare*100))
	}
}
