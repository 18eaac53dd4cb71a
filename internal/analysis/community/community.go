// Package community scores the size and engagement of a project's chat
// and forum communities.
package community

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creasty/defaults"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

const (
	FactorSize       = "size"
	FactorEngagement = "engagement"
	FactorReach      = "reach"
)

var Factors = []string{FactorSize, FactorEngagement, FactorReach}

var DefaultWeights = analysis.Weights{
	FactorSize:       0.40,
	FactorEngagement: 0.40,
	FactorReach:      0.20,
}

const (
	SourceTelegram = "telegram"
	SourceDiscord  = "discord"
	SourceReddit   = "reddit"
)

// platforms is the number of community platforms we look at.
const platforms = 3

type ChatSource interface {
	ChatMemberCount(ctx context.Context, chat string) (int, error)
}

type InviteSource interface {
	Invite(ctx context.Context, invite string) (*sources.DiscordInvite, error)
}

type SubredditSource interface {
	About(ctx context.Context, subreddit string) (*sources.Subreddit, error)
}

type Config struct {
	Weights analysis.Weights `yaml:"weights"`
	// TargetEngagementRate is the active/member share that scores 100.
	TargetEngagementRate float64 `yaml:"target_engagement_rate" default:"0.1" validate:"gt=0,lte=1"`
	// LowEngagementRate flags communities whose active share is below it.
	LowEngagementRate float64 `yaml:"low_engagement_rate" default:"0.01" validate:"gte=0,ltefield=TargetEngagementRate"`
	// MinMembers flags communities smaller than it.
	MinMembers int `yaml:"min_members" default:"1000" validate:"gte=0"`
}

func DefaultConfig() Config {
	cfg := Config{Weights: DefaultWeights.Clone()}
	_ = defaults.Set(&cfg)
	return cfg
}

// Metrics sums member counts across platforms. EngagementRate only counts
// platforms that report activity (Discord presence, Reddit active users)
// and is nil when those platforms have no members.
type Metrics struct {
	TelegramMembers   int      `json:"telegram_members"`
	DiscordMembers    int      `json:"discord_members"`
	DiscordOnline     int      `json:"discord_online"`
	RedditSubscribers int      `json:"reddit_subscribers"`
	RedditActive      int      `json:"reddit_active"`
	TotalMembers      int      `json:"total_members"`
	EngagementRate    *float64 `json:"engagement_rate"`
	Platforms         int      `json:"platforms"`
}

type Analyzer struct {
	chats   ChatSource
	invites InviteSource
	subs    SubredditSource
	cfg     Config
	logger  *slog.Logger
}

func New(chats ChatSource, invites InviteSource, subs SubredditSource, cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if err := cfg.Weights.Validate("community.weights", Factors...); err != nil {
		return nil, err
	}
	if err := analysis.ValidateConfig("community", cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{chats: chats, invites: invites, subs: subs, cfg: cfg, logger: logger}, nil
}

func (a *Analyzer) Analyze(ctx context.Context, req analysis.Request) (analysis.Summary, error) {
	var (
		telegram int
		invite   *sources.DiscordInvite
		sub      *sources.Subreddit
	)
	out, err := analysis.FetchAll(ctx,
		analysis.Fetch{Source: SourceTelegram, Run: func(ctx context.Context) (err error) {
			telegram, err = a.chats.ChatMemberCount(ctx, req.Social.TelegramChat)
			return err
		}},
		analysis.Fetch{Source: SourceDiscord, Run: func(ctx context.Context) (err error) {
			invite, err = a.invites.Invite(ctx, req.Social.DiscordInvite)
			return err
		}},
		analysis.Fetch{Source: SourceReddit, Run: func(ctx context.Context) (err error) {
			sub, err = a.subs.About(ctx, req.Social.Subreddit)
			return err
		}},
	)
	if err != nil {
		return analysis.Summary{}, err
	}
	if out.AllFailed() {
		return analysis.Summary{}, out.Unavailable(analysis.DomainCommunity)
	}
	if out.Failed(SourceTelegram) != nil {
		telegram = 0
	}
	if out.Failed(SourceDiscord) != nil {
		invite = nil
	}
	if out.Failed(SourceReddit) != nil {
		sub = nil
	}

	m := BuildMetrics(telegram, invite, sub)
	summary := analysis.NewSummary(analysis.DomainCommunity, a.cfg.Weights, a.factors(m), m, out.Degraded())
	a.annotate(&summary, m)
	return summary, nil
}

func BuildMetrics(telegram int, invite *sources.DiscordInvite, sub *sources.Subreddit) Metrics {
	m := Metrics{TelegramMembers: max(telegram, 0)}
	if invite != nil {
		m.DiscordMembers = invite.ApproximateMemberCount
		m.DiscordOnline = invite.ApproximatePresenceCount
	}
	if sub != nil {
		m.RedditSubscribers = sub.Subscribers
		m.RedditActive = sub.ActiveUsers
	}
	m.TotalMembers = m.TelegramMembers + m.DiscordMembers + m.RedditSubscribers
	for _, n := range []int{m.TelegramMembers, m.DiscordMembers, m.RedditSubscribers} {
		if n > 0 {
			m.Platforms++
		}
	}
	m.EngagementRate = analysis.OptionalRatio(
		float64(m.DiscordOnline+m.RedditActive),
		float64(m.DiscordMembers+m.RedditSubscribers),
	)
	return m
}

func (a *Analyzer) factors(m Metrics) map[string]float64 {
	engagement := analysis.NeutralScore
	if m.EngagementRate != nil {
		engagement = analysis.Clamp(*m.EngagementRate/a.cfg.TargetEngagementRate*100, 0, 100)
	}
	return map[string]float64{
		FactorSize:       analysis.LogScale(float64(m.TotalMembers), 100, 1e7),
		FactorEngagement: engagement,
		FactorReach:      float64(m.Platforms) / platforms * 100,
	}
}

func (a *Analyzer) annotate(s *analysis.Summary, m Metrics) {
	s.Insights = append(s.Insights, fmt.Sprintf("%d members across %d platforms", m.TotalMembers, m.Platforms))
	if m.TotalMembers < a.cfg.MinMembers {
		s.RiskFlags = append(s.RiskFlags, "small_community")
	}
	switch {
	case m.EngagementRate == nil:
		s.Insights = append(s.Insights, "engagement rate undefined: no platform reports active members")
	case *m.EngagementRate < a.cfg.LowEngagementRate:
		s.RiskFlags = append(s.RiskFlags, "low_engagement")
		s.Recommendations = append(s.Recommendations, "Check whether community numbers are inflated: few members are active")
	}
	if m.Platforms == 1 {
		s.Recommendations = append(s.Recommendations, "Community lives on a single platform")
	}
}
