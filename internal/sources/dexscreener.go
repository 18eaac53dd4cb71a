package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const dexScreenerAPI = "https://api.dexscreener.com"

// Pair is a DEX liquidity pool as reported by DexScreener.
type Pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	FDV       float64 `json:"fdv"`
	MarketCap float64 `json:"marketCap"`
}

// Price parses PriceUSD, returning 0 when it is absent or invalid.
func (p Pair) Price() float64 {
	v, err := strconv.ParseFloat(p.PriceUSD, 64)
	if err != nil {
		return 0
	}
	return v
}

// DeepestPair returns the pool with the most USD liquidity. Ties go to the
// lexicographically smaller pair address so the choice is stable.
func DeepestPair(pairs []Pair) (Pair, bool) {
	if len(pairs) == 0 {
		return Pair{}, false
	}
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD ||
			(p.Liquidity.USD == best.Liquidity.USD && p.PairAddress < best.PairAddress) {
			best = p
		}
	}
	return best, true
}

// DexScreener fetches pool data from the DexScreener API.
type DexScreener struct {
	*jsonClient
	baseURL string
}

func NewDexScreener(baseURL string) *DexScreener {
	if baseURL == "" {
		baseURL = dexScreenerAPI
	}
	return &DexScreener{
		jsonClient: newJSONClient("dexscreener", 15*time.Second, 4, 4),
		baseURL:    baseURL,
	}
}

func (d *DexScreener) Name() string { return "dexscreener" }

type pairsResponse struct {
	Pairs []Pair `json:"pairs"`
}

// TokenPairs lists every pool trading tokenAddress.
func (d *DexScreener) TokenPairs(ctx context.Context, tokenAddress string) ([]Pair, error) {
	if tokenAddress == "" {
		return nil, Missing(d.Name(), "token_address")
	}
	var resp pairsResponse
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, url.PathEscape(tokenAddress))
	if err := d.get(ctx, u, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Pairs) == 0 {
		return nil, newError(d.Name(), ErrNotFound, errors.New("no pools for token"))
	}
	return resp.Pairs, nil
}

// PairDetail fetches the current state of one pool.
func (d *DexScreener) PairDetail(ctx context.Context, chainID, pairAddress string) (*Pair, error) {
	if chainID == "" || pairAddress == "" {
		return nil, Missing(d.Name(), "pair_address")
	}
	var resp pairsResponse
	u := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", d.baseURL, url.PathEscape(chainID), url.PathEscape(pairAddress))
	if err := d.get(ctx, u, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Pairs) == 0 {
		return nil, newError(d.Name(), ErrNotFound, fmt.Errorf("pair %s", pairAddress))
	}
	return &resp.Pairs[0], nil
}
