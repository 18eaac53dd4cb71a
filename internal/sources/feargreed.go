package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const fngAPI = "https://api.alternative.me/fng/"

// FearGreedIndex is the market-wide crypto Fear & Greed reading (0-100).
type FearGreedIndex struct {
	Value          float64 `json:"value"`
	Classification string  `json:"classification"`
}

// Mood maps the index onto [-1, 1], 50 being neutral.
func (f FearGreedIndex) Mood() float64 {
	return (f.Value - 50) / 50
}

type FearGreed struct {
	*jsonClient
	baseURL string
}

func NewFearGreed(baseURL string) *FearGreed {
	if baseURL == "" {
		baseURL = fngAPI
	}
	return &FearGreed{
		jsonClient: newJSONClient("fear_greed", 15*time.Second, 1, 2),
		baseURL:    baseURL,
	}
}

func (f *FearGreed) Name() string { return "fear_greed" }

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

// Index fetches the latest reading.
func (f *FearGreed) Index(ctx context.Context) (*FearGreedIndex, error) {
	q := url.Values{}
	q.Set("limit", "1")

	var fng fngResponse
	if err := f.get(ctx, f.baseURL, q, &fng); err != nil {
		return nil, err
	}
	if len(fng.Data) == 0 {
		return nil, newError(f.Name(), ErrMalformedResponse, errors.New("no fear & greed data"))
	}

	val, err := strconv.ParseFloat(fng.Data[0].Value, 64)
	if err != nil {
		return nil, newError(f.Name(), ErrMalformedResponse, fmt.Errorf("parse fear & greed value: %w", err))
	}
	class := fng.Data[0].ValueClassification
	if class == "" {
		class = ClassifyFearGreed(val)
	}
	return &FearGreedIndex{Value: val, Classification: class}, nil
}

// ClassifyFearGreed names the band a reading falls in.
func ClassifyFearGreed(v float64) string {
	switch {
	case v <= 25:
		return "Extreme Fear"
	case v <= 45:
		return "Fear"
	case v <= 55:
		return "Neutral"
	case v <= 75:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}
