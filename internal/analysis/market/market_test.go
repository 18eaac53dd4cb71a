package market

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

type fakePools struct {
	pairs     []sources.Pair
	detail    *sources.Pair
	pairsErr  error
	detailErr error
}

func (f *fakePools) TokenPairs(ctx context.Context, addr string) ([]sources.Pair, error) {
	return f.pairs, f.pairsErr
}

func (f *fakePools) PairDetail(ctx context.Context, chainID, pair string) (*sources.Pair, error) {
	return f.detail, f.detailErr
}

type fakeMarkets struct {
	row *sources.CoinMarket
	err error
}

func (f *fakeMarkets) CoinMarket(ctx context.Context, id string) (*sources.CoinMarket, error) {
	return f.row, f.err
}

func pair(addr string, liq float64, buys, sells int) sources.Pair {
	var p sources.Pair
	p.ChainID = "solana"
	p.PairAddress = addr
	p.Liquidity.USD = liq
	p.Txns.H24.Buys = buys
	p.Txns.H24.Sells = sells
	p.PriceUSD = "1.5"
	return p
}

func newAnalyzer(t *testing.T, pools PoolSource, markets MarketDataSource) *Analyzer {
	t.Helper()
	a, err := New(pools, markets, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights[FactorLiquidity] = 0.5
	if _, err := New(&fakePools{}, &fakeMarkets{}, cfg, nil); !errors.Is(err, analysis.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}

	cfg = DefaultConfig()
	cfg.MinDexDominance = 2
	if _, err := New(&fakePools{}, &fakeMarkets{}, cfg, nil); !errors.Is(err, analysis.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	if err := DefaultWeights.Validate("market", Factors...); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeMergesSources(t *testing.T) {
	detail := pair("A", 80_000, 30, 10)
	detail.Volume.H24 = 500_000
	pools := &fakePools{
		pairs:  []sources.Pair{pair("A", 80_000, 0, 0), pair("B", 20_000, 0, 0)},
		detail: &detail,
	}
	markets := &fakeMarkets{row: &sources.CoinMarket{
		CurrentPrice:             1.6,
		MarketCap:                20_000_000,
		TotalVolume:              900_000,
		PriceChangePercentage24h: -30,
	}}

	s, err := newAnalyzer(t, pools, markets).Analyze(context.Background(), analysis.Request{Symbol: "TKN"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	m := s.Metrics.(Metrics)
	if m.PriceUSD != 1.6 || m.Volume24hUSD != 900_000 || m.MarketCapUSD != 20_000_000 {
		t.Errorf("aggregated figures should win: %+v", m)
	}
	if m.DexDominance == nil || *m.DexDominance != 0.8 {
		t.Errorf("dex dominance = %v, want 0.8", m.DexDominance)
	}
	if m.BuyShare == nil || *m.BuyShare != 0.75 {
		t.Errorf("buy share = %v, want 0.75", m.BuyShare)
	}
	if s.IsDegraded() {
		t.Errorf("unexpected degraded sources %v", s.Degraded)
	}
	if !slices.Contains(s.RiskFlags, "high_volatility") {
		t.Errorf("risk flags = %v, want high_volatility", s.RiskFlags)
	}
	if s.Factors[FactorPriceStability] != 40 {
		t.Errorf("price stability = %v, want 40", s.Factors[FactorPriceStability])
	}
	if s.Score < 0 || s.Score > 100 {
		t.Errorf("score %v out of range", s.Score)
	}
}

func TestAnalyzeDexDominanceUndefined(t *testing.T) {
	p := pair("A", 0, 0, 0)
	pools := &fakePools{pairs: []sources.Pair{p}, detail: &p}

	s, err := newAnalyzer(t, pools, &fakeMarkets{err: sources.Missing("coingecko", "project_id")}).
		Analyze(context.Background(), analysis.Request{Symbol: "TKN"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	m := s.Metrics.(Metrics)
	if m.DexDominance != nil || m.BuyShare != nil {
		t.Errorf("zero denominators must leave ratios undefined: %+v", m)
	}
	if s.Factors[FactorTradingBalance] != analysis.NeutralScore {
		t.Errorf("trading balance = %v, want neutral", s.Factors[FactorTradingBalance])
	}
	if !slices.Equal(s.Degraded, []string{SourceMarketData}) {
		t.Errorf("degraded = %v", s.Degraded)
	}
}

func TestAnalyzeFallsBackToPoolListing(t *testing.T) {
	pools := &fakePools{
		pairs:     []sources.Pair{pair("A", 10_000, 1, 1)},
		detailErr: &sources.Error{Source: "dexscreener", Kind: sources.ErrTimeout},
	}
	s, err := newAnalyzer(t, pools, &fakeMarkets{err: errors.New("down")}).
		Analyze(context.Background(), analysis.Request{Symbol: "TKN"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m := s.Metrics.(Metrics); m.PoolLiquidityUSD != 10_000 {
		t.Errorf("pool liquidity = %v, want listing value", m.PoolLiquidityUSD)
	}
	if !slices.Equal(s.Degraded, []string{SourceMarketData, SourcePoolDetail}) {
		t.Errorf("degraded = %v", s.Degraded)
	}
	if !slices.Contains(s.RiskFlags, "low_liquidity") {
		t.Errorf("risk flags = %v, want low_liquidity", s.RiskFlags)
	}
}

func TestAnalyzeAllSourcesFail(t *testing.T) {
	pools := &fakePools{pairsErr: &sources.Error{Source: "dexscreener", Kind: sources.ErrRateLimited}}
	markets := &fakeMarkets{err: &sources.Error{Source: "coingecko", Kind: sources.ErrNotFound}}

	_, err := newAnalyzer(t, pools, markets).Analyze(context.Background(), analysis.Request{Symbol: "TKN"})
	if !errors.Is(err, analysis.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want source unavailable", err)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAnalyzer(t, &fakePools{}, &fakeMarkets{}).Analyze(ctx, analysis.Request{Symbol: "TKN"})
	if !errors.Is(err, analysis.ErrCancelled) {
		t.Fatalf("err = %v, want cancelled", err)
	}
}
