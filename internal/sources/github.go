package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const githubAPI = "https://api.github.com"

// Repository is the subset of GitHub repository metadata we score.
type Repository struct {
	FullName        string    `json:"full_name"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	Archived        bool      `json:"archived"`
	PushedAt        time.Time `json:"pushed_at"`
	CreatedAt       time.Time `json:"created_at"`
	Language        string    `json:"language"`
}

// Commit is one entry of the commits listing. Author is nil when the commit
// email is not linked to a GitHub account.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
		Message string `json:"message"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

// AuthorKey identifies the commit author, preferring the GitHub login.
func (c Commit) AuthorKey() string {
	if c.Author != nil && c.Author.Login != "" {
		return c.Author.Login
	}
	if c.Commit.Author.Email != "" {
		return strings.ToLower(c.Commit.Author.Email)
	}
	return c.Commit.Author.Name
}

type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

type PullRequest struct {
	Number    int        `json:"number"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

// GitHub reads repository activity from the REST API.
type GitHub struct {
	*jsonClient
	baseURL string
}

func NewGitHub(baseURL, token string) *GitHub {
	if baseURL == "" {
		baseURL = githubAPI
	}
	g := &GitHub{
		jsonClient: newJSONClient("github", 15*time.Second, 1, 4),
		baseURL:    baseURL,
	}
	g.headers["Accept"] = "application/vnd.github+json"
	g.headers["X-GitHub-Api-Version"] = "2022-11-28"
	if token != "" {
		g.headers["Authorization"] = "Bearer " + token
	}
	return g
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) repoURL(owner, name, suffix string) string {
	return fmt.Sprintf("%s/repos/%s/%s%s", g.baseURL, url.PathEscape(owner), url.PathEscape(name), suffix)
}

func (g *GitHub) Repository(ctx context.Context, owner, name string) (*Repository, error) {
	if owner == "" || name == "" {
		return nil, Missing(g.Name(), "repository")
	}
	var repo Repository
	if err := g.get(ctx, g.repoURL(owner, name, ""), nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// Commits lists up to 100 commits made after since.
func (g *GitHub) Commits(ctx context.Context, owner, name string, since time.Time) ([]Commit, error) {
	if owner == "" || name == "" {
		return nil, Missing(g.Name(), "repository")
	}
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("per_page", "100")

	var commits []Commit
	if err := g.get(ctx, g.repoURL(owner, name, "/commits"), q, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// Contributors lists up to 100 contributors ordered by contributions.
func (g *GitHub) Contributors(ctx context.Context, owner, name string) ([]Contributor, error) {
	if owner == "" || name == "" {
		return nil, Missing(g.Name(), "repository")
	}
	q := url.Values{}
	q.Set("per_page", "100")

	var out []Contributor
	if err := g.get(ctx, g.repoURL(owner, name, "/contributors"), q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PullRequests lists the 100 most recently updated pull requests in any state.
func (g *GitHub) PullRequests(ctx context.Context, owner, name string) ([]PullRequest, error) {
	if owner == "" || name == "" {
		return nil, Missing(g.Name(), "repository")
	}
	q := url.Values{}
	q.Set("state", "all")
	q.Set("sort", "updated")
	q.Set("direction", "desc")
	q.Set("per_page", "100")

	var out []PullRequest
	if err := g.get(ctx, g.repoURL(owner, name, "/pulls"), q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
