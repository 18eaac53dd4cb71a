package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is one token transfer reported by the chain indexer. Amount is a
// decimal string in base units.
type Transfer struct {
	Signature string `json:"signature"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	BlockTime int64  `json:"block_time"`
}

// Value parses Amount, returning zero for absent or invalid amounts.
func (t Transfer) Value() decimal.Decimal {
	v, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// TokenActivity is the indexer's holder count and recent transfer list.
type TokenActivity struct {
	HolderCount int        `json:"holder_count"`
	Transfers   []Transfer `json:"transfers"`
}

// Indexer queries a chain indexer REST API for transfer/holder activity.
type Indexer struct {
	*jsonClient
	baseURL string
}

func NewIndexer(baseURL, apiKey string) *Indexer {
	i := &Indexer{
		jsonClient: newJSONClient("indexer", 20*time.Second, 5, 5),
		baseURL:    baseURL,
	}
	if apiKey != "" {
		i.headers["X-API-Key"] = apiKey
	}
	return i
}

func (i *Indexer) Name() string { return "indexer" }

// TokenActivity fetches the holder count and up to 500 recent transfers.
func (i *Indexer) TokenActivity(ctx context.Context, chain, address string) (*TokenActivity, error) {
	if address == "" {
		return nil, Missing(i.Name(), "token_address")
	}
	if chain == "" {
		chain = "solana"
	}
	q := url.Values{}
	q.Set("limit", "500")

	var out TokenActivity
	u := fmt.Sprintf("%s/v1/%s/tokens/%s/activity", i.baseURL, url.PathEscape(chain), url.PathEscape(address))
	if err := i.get(ctx, u, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
