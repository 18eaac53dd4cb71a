// Package sentiment measures social and market mood for a token on a
// [-1, 1] scale and maps it onto a 0-100 score.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creasty/defaults"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

const (
	FactorTwitter    = "twitter"
	FactorReddit     = "reddit"
	FactorMarketMood = "market_mood"
)

var Factors = []string{FactorTwitter, FactorReddit, FactorMarketMood}

var DefaultWeights = analysis.Weights{
	FactorTwitter:    0.50,
	FactorReddit:     0.30,
	FactorMarketMood: 0.20,
}

// ErrNoSentimentData means the sources answered but none produced a reading:
// no posts on either platform and no market mood.
var ErrNoSentimentData = errors.New("no sentiment data")

const (
	SourceTwitter   = "twitter"
	SourceReddit    = "reddit"
	SourceFearGreed = "fear_greed"
)

type TweetSource interface {
	SearchRecent(ctx context.Context, query string) ([]sources.Tweet, error)
}

type PostSource interface {
	Search(ctx context.Context, query string) ([]sources.RedditPost, error)
}

type MoodSource interface {
	Index(ctx context.Context) (*sources.FearGreedIndex, error)
}

type Config struct {
	Weights analysis.Weights `yaml:"weights"`
	// Composite values beyond these bounds are labelled bullish or bearish.
	Bullish float64 `yaml:"bullish" default:"0.2" validate:"gt=0,lte=1"`
	Bearish float64 `yaml:"bearish" default:"-0.2" validate:"lt=0,gte=-1"`
}

func DefaultConfig() Config {
	cfg := Config{Weights: DefaultWeights.Clone()}
	_ = defaults.Set(&cfg)
	return cfg
}

// Metrics holds per-platform polarity on [-1, 1]. A platform score is nil
// when the platform failed or returned no posts; such platforms are left
// out of the composite.
type Metrics struct {
	TwitterScore   *float64 `json:"twitter_score"`
	TwitterPosts   int      `json:"twitter_posts"`
	RedditScore    *float64 `json:"reddit_score"`
	RedditPosts    int      `json:"reddit_posts"`
	FearGreedIndex *float64 `json:"fear_greed_index"`
	FearGreedLabel string   `json:"fear_greed_label,omitempty"`
	MarketMood     *float64 `json:"market_mood"`
	Composite      float64  `json:"composite"`
	Trend          string   `json:"trend"`
}

type Analyzer struct {
	tweets TweetSource
	posts  PostSource
	mood   MoodSource
	cfg    Config
	logger *slog.Logger
}

func New(tweets TweetSource, posts PostSource, mood MoodSource, cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if err := cfg.Weights.Validate("sentiment.weights", Factors...); err != nil {
		return nil, err
	}
	if err := analysis.ValidateConfig("sentiment", cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{tweets: tweets, posts: posts, mood: mood, cfg: cfg, logger: logger}, nil
}

type snapshot struct {
	tweets []sources.Tweet
	posts  []sources.RedditPost
	index  *sources.FearGreedIndex
	out    analysis.Outcome
}

func (a *Analyzer) fetch(ctx context.Context, req analysis.Request) (snapshot, error) {
	var s snapshot
	out, err := analysis.FetchAll(ctx,
		analysis.Fetch{Source: SourceTwitter, Run: func(ctx context.Context) (err error) {
			s.tweets, err = a.tweets.SearchRecent(ctx, req.TwitterSearch())
			return err
		}},
		analysis.Fetch{Source: SourceReddit, Run: func(ctx context.Context) (err error) {
			s.posts, err = a.posts.Search(ctx, redditQuery(req))
			return err
		}},
		analysis.Fetch{Source: SourceFearGreed, Run: func(ctx context.Context) (err error) {
			s.index, err = a.mood.Index(ctx)
			return err
		}},
	)
	if err != nil {
		return snapshot{}, err
	}
	if out.AllFailed() {
		return snapshot{}, out.Unavailable(analysis.DomainSentiment)
	}
	if out.Failed(SourceTwitter) != nil {
		s.tweets = nil
	}
	if out.Failed(SourceReddit) != nil {
		s.posts = nil
	}
	if out.Failed(SourceFearGreed) != nil {
		s.index = nil
	}
	s.out = out
	return s, nil
}

func redditQuery(req analysis.Request) string {
	if req.Social.Subreddit != "" {
		return "subreddit:" + req.Social.Subreddit
	}
	return req.Symbol
}

// Sentiment returns the composite polarity on [-1, 1]. It returns
// ErrNoSentimentData rather than a neutral 0 when nothing was measured.
func (a *Analyzer) Sentiment(ctx context.Context, req analysis.Request) (float64, error) {
	snap, err := a.fetch(ctx, req)
	if err != nil {
		return 0, err
	}
	m := a.BuildMetrics(snap.tweets, snap.posts, snap.index)
	if m.TwitterScore == nil && m.RedditScore == nil && m.MarketMood == nil {
		return 0, fmt.Errorf("%s: %w", req.Subject(), ErrNoSentimentData)
	}
	return m.Composite, nil
}

func (a *Analyzer) Analyze(ctx context.Context, req analysis.Request) (analysis.Summary, error) {
	snap, err := a.fetch(ctx, req)
	if err != nil {
		return analysis.Summary{}, err
	}
	m := a.BuildMetrics(snap.tweets, snap.posts, snap.index)
	degraded := snap.out.Degraded()

	factors, weights := a.platformFactors(m)
	var summary analysis.Summary
	if len(factors) == 0 {
		// Every platform answered but none had posts: neutral, not zero.
		summary = analysis.Summary{
			Domain:    analysis.DomainSentiment,
			Available: true,
			Score:     analysis.NeutralScore,
			Label:     analysis.LabelFor(analysis.NeutralScore),
			Metrics:   m,
			Degraded:  degraded,
		}
	} else {
		summary = analysis.NewSummary(analysis.DomainSentiment, weights, factors, m, degraded)
	}
	a.annotate(&summary, m)
	return summary, nil
}

// BuildMetrics computes per-platform polarity and the composite, renormalizing
// the weights over the platforms that produced a value.
func (a *Analyzer) BuildMetrics(tweets []sources.Tweet, posts []sources.RedditPost, index *sources.FearGreedIndex) Metrics {
	m := Metrics{TwitterPosts: len(tweets), RedditPosts: len(posts)}

	var tw weighted
	for _, t := range tweets {
		tw.add(t.Text, t.Engagement())
	}
	if v, ok := tw.mean(); ok {
		m.TwitterScore = &v
	}

	var rd weighted
	for _, p := range posts {
		rd.add(p.Text(), p.Score+p.NumComments)
	}
	if v, ok := rd.mean(); ok {
		m.RedditScore = &v
	}

	if index != nil {
		value, mood := index.Value, analysis.Clamp(index.Mood(), -1, 1)
		m.FearGreedIndex = &value
		m.FearGreedLabel = index.Classification
		m.MarketMood = &mood
	}

	m.Composite = a.composite(m)
	m.Trend = a.trend(m.Composite)
	return m
}

func (a *Analyzer) composite(m Metrics) float64 {
	var sum, weight float64
	for _, p := range []struct {
		factor string
		value  *float64
	}{
		{FactorMarketMood, m.MarketMood},
		{FactorReddit, m.RedditScore},
		{FactorTwitter, m.TwitterScore},
	} {
		if p.value == nil {
			continue
		}
		sum += a.cfg.Weights[p.factor] * *p.value
		weight += a.cfg.Weights[p.factor]
	}
	if weight == 0 {
		return 0
	}
	return analysis.Clamp(sum/weight, -1, 1)
}

func (a *Analyzer) trend(c float64) string {
	switch {
	case c >= a.cfg.Bullish:
		return "bullish"
	case c <= a.cfg.Bearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// platformFactors maps available platforms onto 0-100 and returns the
// weights renormalized over them.
func (a *Analyzer) platformFactors(m Metrics) (map[string]float64, analysis.Weights) {
	factors := make(map[string]float64, 3)
	add := func(name string, v *float64) {
		if v != nil {
			factors[name] = (*v + 1) * 50
		}
	}
	add(FactorTwitter, m.TwitterScore)
	add(FactorReddit, m.RedditScore)
	add(FactorMarketMood, m.MarketMood)

	keys := make([]string, 0, len(factors))
	for k := range factors {
		keys = append(keys, k)
	}
	weights, ok := a.cfg.Weights.Subset(keys...)
	if !ok {
		return nil, nil
	}
	return factors, weights
}

func (a *Analyzer) annotate(s *analysis.Summary, m Metrics) {
	s.Insights = append(s.Insights, fmt.Sprintf("composite sentiment %.2f (%s) from %d posts and %d tweets",
		m.Composite, m.Trend, m.RedditPosts, m.TwitterPosts))
	if m.FearGreedIndex != nil {
		s.Insights = append(s.Insights, fmt.Sprintf("market fear & greed at %.0f (%s)", *m.FearGreedIndex, m.FearGreedLabel))
	}
	switch m.Trend {
	case "bearish":
		s.RiskFlags = append(s.RiskFlags, "negative_sentiment")
		s.Recommendations = append(s.Recommendations, "Sentiment is negative: wait for confirmation before adding exposure")
	case "bullish":
		if m.TwitterPosts+m.RedditPosts < 10 {
			s.Insights = append(s.Insights, "positive sentiment rests on few posts")
		}
	}
}
