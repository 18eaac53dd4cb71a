// Package market scores trading activity from DEX pool data and aggregated
// market data.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/creasty/defaults"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

// Factor names.
const (
	FactorLiquidity      = "liquidity"
	FactorVolume         = "volume"
	FactorPriceStability = "price_stability"
	FactorTradingBalance = "trading_balance"
	FactorMarketCap      = "market_cap"
)

// Factors lists every factor the market score is built from.
var Factors = []string{FactorLiquidity, FactorVolume, FactorPriceStability, FactorTradingBalance, FactorMarketCap}

// DefaultWeights is the default market weight table.
var DefaultWeights = analysis.Weights{
	FactorLiquidity:      0.30,
	FactorVolume:         0.25,
	FactorPriceStability: 0.20,
	FactorTradingBalance: 0.15,
	FactorMarketCap:      0.10,
}

// Source names used in degradation flags.
const (
	SourcePools      = "dexscreener"
	SourcePoolDetail = "dexscreener_pair_detail"
	SourceMarketData = "coingecko"
)

// PoolSource resolves DEX pools for a token.
type PoolSource interface {
	TokenPairs(ctx context.Context, tokenAddress string) ([]sources.Pair, error)
	PairDetail(ctx context.Context, chainID, pairAddress string) (*sources.Pair, error)
}

// MarketDataSource returns aggregated market rows.
type MarketDataSource interface {
	CoinMarket(ctx context.Context, coinID string) (*sources.CoinMarket, error)
}

// Config is the market scoring configuration.
type Config struct {
	Weights analysis.Weights `yaml:"weights"`
	// LowLiquidityUSD flags pools too shallow to exit a position.
	LowLiquidityUSD float64 `yaml:"low_liquidity_usd" default:"50000" validate:"gte=0"`
	// HighVolatilityPct flags absolute 24h price moves at or above it.
	HighVolatilityPct float64 `yaml:"high_volatility_pct" default:"25" validate:"gt=0"`
	// StabilityPenalty is the score lost per percent of 24h price move.
	StabilityPenalty float64 `yaml:"stability_penalty" default:"2" validate:"gt=0"`
	// MinDexDominance flags tokens whose deepest pool holds less liquidity share.
	MinDexDominance float64 `yaml:"min_dex_dominance" default:"0.5" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	cfg := Config{Weights: DefaultWeights.Clone()}
	_ = defaults.Set(&cfg)
	return cfg
}

// Metrics is the market view of a token. Zero values mean no source reported
// the field; ratios are nil when undefined.
type Metrics struct {
	PriceUSD          float64  `json:"price_usd"`
	MarketCapUSD      float64  `json:"market_cap_usd"`
	Volume24hUSD      float64  `json:"volume_24h_usd"`
	PriceChange24hPct float64  `json:"price_change_24h_pct"`
	PoolLiquidityUSD  float64  `json:"pool_liquidity_usd"`
	TotalLiquidityUSD float64  `json:"total_liquidity_usd"`
	DexDominance      *float64 `json:"dex_dominance"`
	Buys24h           int      `json:"buys_24h"`
	Sells24h          int      `json:"sells_24h"`
	BuyShare          *float64 `json:"buy_share"`
	PoolCount         int      `json:"pool_count"`
	PairAddress       string   `json:"pair_address,omitempty"`
	DexID             string   `json:"dex_id,omitempty"`
	HasPriceChange    bool     `json:"-"`
}

type Analyzer struct {
	pools   PoolSource
	markets MarketDataSource
	cfg     Config
	logger  *slog.Logger
}

// New validates cfg and builds the analyzer.
func New(pools PoolSource, markets MarketDataSource, cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if err := cfg.Weights.Validate("market.weights", Factors...); err != nil {
		return nil, err
	}
	if err := analysis.ValidateConfig("market", cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{pools: pools, markets: markets, cfg: cfg, logger: logger}, nil
}

// poolData is the result of the sequential pool lookup.
type poolData struct {
	pairs []sources.Pair
	pool  sources.Pair
}

func (a *Analyzer) Analyze(ctx context.Context, req analysis.Request) (analysis.Summary, error) {
	var (
		pd        poolData
		detailErr error
		row       *sources.CoinMarket
	)

	out, err := analysis.FetchAll(ctx,
		analysis.Fetch{Source: SourcePools, Run: func(ctx context.Context) error {
			pairs, err := a.pools.TokenPairs(ctx, req.TokenAddress)
			if err != nil {
				return err
			}
			best, _ := sources.DeepestPair(pairs)
			pd = poolData{pairs: pairs, pool: best}
			detail, err := a.pools.PairDetail(ctx, best.ChainID, best.PairAddress)
			if err != nil {
				detailErr = err
				return nil
			}
			if detail != nil {
				pd.pool = *detail
			}
			return nil
		}},
		analysis.Fetch{Source: SourceMarketData, Run: func(ctx context.Context) (err error) {
			row, err = a.markets.CoinMarket(ctx, req.ProjectID)
			return err
		}},
	)
	if err != nil {
		return analysis.Summary{}, err
	}
	if out.AllFailed() {
		return analysis.Summary{}, out.Unavailable(analysis.DomainMarket)
	}

	degraded := out.Degraded()
	if out.Failed(SourcePools) == nil && detailErr != nil {
		a.logger.Warn("pair detail unavailable, using pool listing", "subject", req.Subject(), "error", detailErr)
		degraded = append(degraded, SourcePoolDetail)
		sort.Strings(degraded)
	}
	if out.Failed(SourcePools) != nil {
		pd = poolData{}
	}
	if out.Failed(SourceMarketData) != nil {
		row = nil
	}

	m := BuildMetrics(pd.pairs, pd.pool, row)
	summary := analysis.NewSummary(analysis.DomainMarket, a.cfg.Weights, a.factors(m), m, degraded)
	a.annotate(&summary, m)
	return summary, nil
}

// BuildMetrics merges pool data with the aggregated market row. CoinGecko
// figures win where both report a value.
func BuildMetrics(pairs []sources.Pair, pool sources.Pair, row *sources.CoinMarket) Metrics {
	m := Metrics{
		PriceUSD:         pool.Price(),
		MarketCapUSD:     pool.MarketCap,
		Volume24hUSD:     pool.Volume.H24,
		PoolLiquidityUSD: pool.Liquidity.USD,
		Buys24h:          pool.Txns.H24.Buys,
		Sells24h:         pool.Txns.H24.Sells,
		PoolCount:        len(pairs),
		PairAddress:      pool.PairAddress,
		DexID:            pool.DexID,
	}
	if m.MarketCapUSD == 0 {
		m.MarketCapUSD = pool.FDV
	}
	if len(pairs) > 0 {
		m.PriceChange24hPct = pool.PriceChange.H24
		m.HasPriceChange = true
	}
	for _, p := range pairs {
		m.TotalLiquidityUSD += p.Liquidity.USD
	}
	m.DexDominance = analysis.OptionalRatio(m.PoolLiquidityUSD, m.TotalLiquidityUSD)
	m.BuyShare = analysis.OptionalRatio(float64(m.Buys24h), float64(m.Buys24h+m.Sells24h))

	if row != nil {
		if row.CurrentPrice > 0 {
			m.PriceUSD = row.CurrentPrice
		}
		if row.MarketCap > 0 {
			m.MarketCapUSD = row.MarketCap
		}
		if row.TotalVolume > 0 {
			m.Volume24hUSD = row.TotalVolume
		}
		m.PriceChange24hPct = row.PriceChangePercentage24h
		m.HasPriceChange = true
	}
	return m
}

func (a *Analyzer) factors(m Metrics) map[string]float64 {
	stability := analysis.NeutralScore
	if m.HasPriceChange {
		stability = analysis.Clamp(100-math.Abs(m.PriceChange24hPct)*a.cfg.StabilityPenalty, 0, 100)
	}
	balance := analysis.NeutralScore
	if m.BuyShare != nil {
		balance = analysis.Clamp(100-math.Abs(*m.BuyShare-0.5)*200, 0, 100)
	}
	return map[string]float64{
		FactorLiquidity:      analysis.LogScale(m.PoolLiquidityUSD, 1e3, 1e8),
		FactorVolume:         analysis.LogScale(m.Volume24hUSD, 1e3, 1e9),
		FactorPriceStability: stability,
		FactorTradingBalance: balance,
		FactorMarketCap:      analysis.LogScale(m.MarketCapUSD, 1e5, 1e11),
	}
}

func (a *Analyzer) annotate(s *analysis.Summary, m Metrics) {
	if m.PoolCount > 0 {
		s.Insights = append(s.Insights, fmt.Sprintf("deepest pool holds $%.0f liquidity across %d pools", m.PoolLiquidityUSD, m.PoolCount))
		if m.PoolLiquidityUSD < a.cfg.LowLiquidityUSD {
			s.RiskFlags = append(s.RiskFlags, "low_liquidity")
			s.Recommendations = append(s.Recommendations, "Size positions to the shallow pool liquidity and expect slippage")
		}
	}
	if m.HasPriceChange && math.Abs(m.PriceChange24hPct) >= a.cfg.HighVolatilityPct {
		s.RiskFlags = append(s.RiskFlags, "high_volatility")
		s.Insights = append(s.Insights, fmt.Sprintf("price moved %.1f%% in 24h", m.PriceChange24hPct))
	}
	if m.DexDominance != nil && *m.DexDominance < a.cfg.MinDexDominance {
		s.Insights = append(s.Insights, "liquidity is fragmented across pools")
	}
	if m.DexDominance == nil && m.PoolCount > 0 {
		s.Insights = append(s.Insights, "dex dominance undefined: pools report no liquidity")
	}
	if m.BuyShare != nil && *m.BuyShare >= 0.6 {
		s.Insights = append(s.Insights, "buy pressure dominates 24h trading")
	}
	if m.BuyShare != nil && *m.BuyShare <= 0.4 {
		s.Insights = append(s.Insights, "sell pressure dominates 24h trading")
	}
}
