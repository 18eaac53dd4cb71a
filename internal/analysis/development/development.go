// Package development scores developer activity of a project's code
// repository.
package development

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/creasty/defaults"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/sources"
)

const (
	FactorCommitFrequency = "commit_frequency"
	FactorContributors    = "contributors"
	FactorIssueResolution = "issue_resolution"
	FactorRecency         = "recency"
	FactorPopularity      = "popularity"
)

var Factors = []string{FactorCommitFrequency, FactorContributors, FactorIssueResolution, FactorRecency, FactorPopularity}

var DefaultWeights = analysis.Weights{
	FactorCommitFrequency: 0.30,
	FactorContributors:    0.25,
	FactorIssueResolution: 0.20,
	FactorRecency:         0.15,
	FactorPopularity:      0.10,
}

const (
	SourceRepository   = "github_repository"
	SourceCommits      = "github_commits"
	SourceContributors = "github_contributors"
	SourcePullRequests = "github_pull_requests"
)

// RepoSource reads code-hosting activity for one repository.
type RepoSource interface {
	Repository(ctx context.Context, owner, name string) (*sources.Repository, error)
	Commits(ctx context.Context, owner, name string, since time.Time) ([]sources.Commit, error)
	Contributors(ctx context.Context, owner, name string) ([]sources.Contributor, error)
	PullRequests(ctx context.Context, owner, name string) ([]sources.PullRequest, error)
}

type Config struct {
	Weights analysis.Weights `yaml:"weights"`
	// WindowDays is the commit lookback.
	WindowDays int `yaml:"window_days" default:"30" validate:"gte=1,lte=365"`
	// StaleDays flags repositories without pushes for longer.
	StaleDays int `yaml:"stale_days" default:"90" validate:"gte=1"`
	// RecencyHorizonDays is the age at which recency scores 0.
	RecencyHorizonDays int `yaml:"recency_horizon_days" default:"180" validate:"gtefield=StaleDays"`
	// MinActiveAuthors flags key-person risk below it.
	MinActiveAuthors int `yaml:"min_active_authors" default:"2" validate:"gte=1"`
}

func DefaultConfig() Config {
	cfg := Config{Weights: DefaultWeights.Clone()}
	_ = defaults.Set(&cfg)
	return cfg
}

type Metrics struct {
	Stars             int      `json:"stars"`
	Forks             int      `json:"forks"`
	OpenIssues        int      `json:"open_issues"`
	Archived          bool     `json:"archived"`
	CommitsInWindow   int      `json:"commits_in_window"`
	WindowDays        int      `json:"window_days"`
	ActiveAuthors     int      `json:"active_authors"`
	Contributors      int      `json:"contributors"`
	PullRequests      int      `json:"pull_requests"`
	PullsResolved     int      `json:"pull_requests_resolved"`
	PullsMerged       int      `json:"pull_requests_merged"`
	ResolutionRate    *float64 `json:"resolution_rate"`
	MedianMergeHours  *float64 `json:"median_merge_hours"`
	DaysSinceActivity *float64 `json:"days_since_activity"`
}

type Option func(*Analyzer)

// WithClock replaces time.Now, making the commit window reproducible.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

type Analyzer struct {
	repo   RepoSource
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(repo RepoSource, cfg Config, logger *slog.Logger, opts ...Option) (*Analyzer, error) {
	if err := cfg.Weights.Validate("development.weights", Factors...); err != nil {
		return nil, err
	}
	if err := analysis.ValidateConfig("development", cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{repo: repo, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Activity is everything fetched for one repository. Nil or empty fields
// mean the source failed or reported nothing.
type Activity struct {
	Repo         *sources.Repository
	Commits      []sources.Commit
	Contributors []sources.Contributor
	Pulls        []sources.PullRequest
}

func (a *Analyzer) Analyze(ctx context.Context, req analysis.Request) (analysis.Summary, error) {
	owner, name := req.RepoOwnerName()
	now := a.now()
	since := now.AddDate(0, 0, -a.cfg.WindowDays)

	var act Activity
	out, err := analysis.FetchAll(ctx,
		analysis.Fetch{Source: SourceRepository, Run: func(ctx context.Context) (err error) {
			act.Repo, err = a.repo.Repository(ctx, owner, name)
			return err
		}},
		analysis.Fetch{Source: SourceCommits, Run: func(ctx context.Context) (err error) {
			act.Commits, err = a.repo.Commits(ctx, owner, name, since)
			return err
		}},
		analysis.Fetch{Source: SourceContributors, Run: func(ctx context.Context) (err error) {
			act.Contributors, err = a.repo.Contributors(ctx, owner, name)
			return err
		}},
		analysis.Fetch{Source: SourcePullRequests, Run: func(ctx context.Context) (err error) {
			act.Pulls, err = a.repo.PullRequests(ctx, owner, name)
			return err
		}},
	)
	if err != nil {
		return analysis.Summary{}, err
	}
	if out.AllFailed() {
		return analysis.Summary{}, out.Unavailable(analysis.DomainDevelopment)
	}
	if out.Failed(SourceRepository) != nil {
		act.Repo = nil
	}
	if out.Failed(SourceCommits) != nil {
		act.Commits = nil
	}
	if out.Failed(SourceContributors) != nil {
		act.Contributors = nil
	}
	if out.Failed(SourcePullRequests) != nil {
		act.Pulls = nil
	}

	m := BuildMetrics(act, now, since)
	m.WindowDays = a.cfg.WindowDays
	summary := analysis.NewSummary(analysis.DomainDevelopment, a.cfg.Weights, a.factors(m), m, out.Degraded())
	a.annotate(&summary, m)
	return summary, nil
}

// BuildMetrics derives activity metrics as of now. Commits older than since
// are ignored.
func BuildMetrics(act Activity, now, since time.Time) Metrics {
	var m Metrics
	var last time.Time

	if act.Repo != nil {
		m.Stars = act.Repo.StargazersCount
		m.Forks = act.Repo.ForksCount
		m.OpenIssues = act.Repo.OpenIssuesCount
		m.Archived = act.Repo.Archived
		last = act.Repo.PushedAt
	}

	authors := make(map[string]struct{})
	for _, c := range act.Commits {
		date := c.Commit.Author.Date
		if !date.IsZero() && date.Before(since) {
			continue
		}
		m.CommitsInWindow++
		if key := c.AuthorKey(); key != "" {
			authors[key] = struct{}{}
		}
		if date.After(last) {
			last = date
		}
	}
	m.ActiveAuthors = len(authors)
	m.Contributors = len(act.Contributors)

	var mergeHours []float64
	for _, pr := range act.Pulls {
		m.PullRequests++
		if pr.ClosedAt != nil || pr.MergedAt != nil {
			m.PullsResolved++
		}
		if pr.MergedAt != nil {
			m.PullsMerged++
			mergeHours = append(mergeHours, pr.MergedAt.Sub(pr.CreatedAt).Hours())
		}
	}
	m.ResolutionRate = analysis.OptionalRatio(float64(m.PullsResolved), float64(m.PullRequests))
	m.MedianMergeHours = median(mergeHours)

	if !last.IsZero() {
		days := now.Sub(last).Hours() / 24
		if days < 0 {
			days = 0
		}
		m.DaysSinceActivity = &days
	}
	return m
}

func median(v []float64) *float64 {
	if len(v) == 0 {
		return nil
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	out := s[mid]
	if len(s)%2 == 0 {
		out = (s[mid-1] + s[mid]) / 2
	}
	return &out
}

func (a *Analyzer) factors(m Metrics) map[string]float64 {
	contributors := max(m.Contributors, m.ActiveAuthors)

	resolution := analysis.NeutralScore
	if m.ResolutionRate != nil {
		resolution = *m.ResolutionRate * 100
	}
	recency := analysis.NeutralScore
	if m.DaysSinceActivity != nil {
		recency = analysis.Clamp(100*(1-*m.DaysSinceActivity/float64(a.cfg.RecencyHorizonDays)), 0, 100)
	}
	if m.Archived {
		recency = 0
	}
	return map[string]float64{
		FactorCommitFrequency: analysis.LogScale(float64(m.CommitsInWindow)+1, 1, 301),
		FactorContributors:    analysis.LogScale(float64(contributors)+1, 1, 201),
		FactorIssueResolution: resolution,
		FactorRecency:         recency,
		FactorPopularity:      analysis.LogScale(float64(m.Stars+m.Forks)+1, 1, 1e5),
	}
}

func (a *Analyzer) annotate(s *analysis.Summary, m Metrics) {
	s.Insights = append(s.Insights, fmt.Sprintf("%d commits by %d authors in the last %d days",
		m.CommitsInWindow, m.ActiveAuthors, m.WindowDays))
	if m.Archived {
		s.RiskFlags = append(s.RiskFlags, "repository_archived")
		s.Recommendations = append(s.Recommendations, "The repository is archived: treat the project as unmaintained")
	} else if m.DaysSinceActivity != nil && *m.DaysSinceActivity > float64(a.cfg.StaleDays) {
		s.RiskFlags = append(s.RiskFlags, "stale_repository")
		s.Insights = append(s.Insights, fmt.Sprintf("no code activity for %.0f days", *m.DaysSinceActivity))
	}
	if m.CommitsInWindow > 0 && m.ActiveAuthors < a.cfg.MinActiveAuthors {
		s.RiskFlags = append(s.RiskFlags, "key_person_dependency")
	}
	if m.MedianMergeHours != nil {
		s.Insights = append(s.Insights, fmt.Sprintf("pull requests merge in %.0fh (median)", *m.MedianMergeHours))
	}
}
