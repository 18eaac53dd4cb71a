package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

const coinGeckoAPI = "https://api.coingecko.com"

// CoinMarket is one row of the CoinGecko markets endpoint.
type CoinMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             float64  `json:"current_price"`
	MarketCap                float64  `json:"market_cap"`
	TotalVolume              float64  `json:"total_volume"`
	PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
	CirculatingSupply        float64  `json:"circulating_supply"`
	TotalSupply              *float64 `json:"total_supply"`
	ATH                      float64  `json:"ath"`
}

// CoinGecko fetches aggregated market data.
type CoinGecko struct {
	*jsonClient
	baseURL string
}

// NewCoinGecko builds a client; apiKey is optional (demo tier header).
func NewCoinGecko(baseURL, apiKey string) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoAPI
	}
	c := &CoinGecko{
		jsonClient: newJSONClient("coingecko", 15*time.Second, 0.5, 3),
		baseURL:    baseURL,
	}
	if apiKey != "" {
		c.headers["x-cg-demo-api-key"] = apiKey
	}
	return c
}

func (c *CoinGecko) Name() string { return "coingecko" }

// CoinMarket fetches the USD market row for coinID.
func (c *CoinGecko) CoinMarket(ctx context.Context, coinID string) (*CoinMarket, error) {
	if coinID == "" {
		return nil, Missing(c.Name(), "project_id")
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", coinID)

	var rows []CoinMarket
	if err := c.get(ctx, c.baseURL+"/api/v3/coins/markets", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, newError(c.Name(), ErrNotFound, fmt.Errorf("coin %s", coinID))
	}
	return &rows[0], nil
}
