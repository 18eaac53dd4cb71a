package community

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

type fakeChats struct {
	n   int
	err error
}

func (f fakeChats) ChatMemberCount(ctx context.Context, chat string) (int, error) { return f.n, f.err }

type fakeInvites struct {
	inv *sources.DiscordInvite
	err error
}

func (f fakeInvites) Invite(ctx context.Context, code string) (*sources.DiscordInvite, error) {
	return f.inv, f.err
}

type fakeSubs struct {
	sub *sources.Subreddit
	err error
}

func (f fakeSubs) About(ctx context.Context, name string) (*sources.Subreddit, error) {
	return f.sub, f.err
}

var timeout = &sources.Error{Source: "x", Kind: sources.ErrTimeout}

func TestBuildMetrics(t *testing.T) {
	inv := &sources.DiscordInvite{ApproximateMemberCount: 800, ApproximatePresenceCount: 150}
	sub := &sources.Subreddit{Subscribers: 200, ActiveUsers: 50}
	m := BuildMetrics(5000, inv, sub)

	if m.TotalMembers != 6000 || m.Platforms != 3 {
		t.Errorf("totals = %+v", m)
	}
	if m.EngagementRate == nil || *m.EngagementRate != 0.2 {
		t.Errorf("engagement = %v, want 0.2", m.EngagementRate)
	}
}

func TestEngagementUndefinedWithoutCountableMembers(t *testing.T) {
	m := BuildMetrics(5000, nil, nil)
	if m.EngagementRate != nil {
		t.Errorf("engagement = %v, want nil", *m.EngagementRate)
	}
}

func TestAnalyze(t *testing.T) {
	a, err := New(
		fakeChats{n: 20000},
		fakeInvites{err: timeout},
		fakeSubs{sub: &sources.Subreddit{Subscribers: 10000, ActiveUsers: 20}},
		DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Analyze(context.Background(), analysis.Request{Symbol: "TKN"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !slices.Equal(s.Degraded, []string{SourceDiscord}) {
		t.Errorf("degraded = %v", s.Degraded)
	}
	if !slices.Contains(s.RiskFlags, "low_engagement") {
		t.Errorf("risk flags = %v", s.RiskFlags)
	}
	if got := s.Factors[FactorReach]; got < 66.66 || got > 66.67 {
		t.Errorf("reach = %v, want 2/3", got)
	}
}

func TestAnalyzeUndefinedEngagementIsNeutral(t *testing.T) {
	a, _ := New(fakeChats{n: 500}, fakeInvites{err: timeout}, fakeSubs{err: timeout}, DefaultConfig(), nil)
	s, err := a.Analyze(context.Background(), analysis.Request{Symbol: "TKN"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Factors[FactorEngagement] != analysis.NeutralScore {
		t.Errorf("engagement = %v, want neutral", s.Factors[FactorEngagement])
	}
	if !slices.Contains(s.RiskFlags, "small_community") {
		t.Errorf("risk flags = %v", s.RiskFlags)
	}
}

func TestAnalyzeAllFail(t *testing.T) {
	a, _ := New(fakeChats{err: timeout}, fakeInvites{err: timeout}, fakeSubs{err: timeout}, DefaultConfig(), nil)
	if _, err := a.Analyze(context.Background(), analysis.Request{Symbol: "TKN"}); !errors.Is(err, analysis.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want source unavailable", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LowEngagementRate = 0.5
	if _, err := New(fakeChats{}, fakeInvites{}, fakeSubs{}, cfg, nil); !errors.Is(err, analysis.ErrConfiguration) {
		t.Errorf("err = %v, want configuration error", err)
	}
}
