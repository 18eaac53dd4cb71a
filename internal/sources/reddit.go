package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

const redditAPI = "https://www.reddit.com"

// RedditPost is a link or self post from search results.
type RedditPost struct {
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Text joins title and body for scoring.
func (p RedditPost) Text() string {
	if p.SelfText == "" {
		return p.Title
	}
	return p.Title + "\n" + p.SelfText
}

// Subreddit holds community size figures.
type Subreddit struct {
	Name        string `json:"display_name"`
	Subscribers int    `json:"subscribers"`
	ActiveUsers int    `json:"active_user_count"`
}

// Reddit reads the public JSON endpoints.
type Reddit struct {
	*jsonClient
	baseURL string
}

func NewReddit(baseURL, userAgent string) *Reddit {
	if baseURL == "" {
		baseURL = redditAPI
	}
	if userAgent == "" {
		userAgent = "token-insight/1.0"
	}
	r := &Reddit{
		jsonClient: newJSONClient("reddit", 15*time.Second, 1, 2),
		baseURL:    baseURL,
	}
	r.headers["User-Agent"] = userAgent
	return r
}

func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data RedditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search returns posts from the last week matching query, newest first.
func (r *Reddit) Search(ctx context.Context, query string) ([]RedditPost, error) {
	if query == "" {
		return nil, Missing(r.Name(), "symbol")
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "new")
	q.Set("t", "week")
	q.Set("limit", "100")

	var listing redditListing
	if err := r.get(ctx, r.baseURL+"/search.json", q, &listing); err != nil {
		return nil, err
	}
	posts := make([]RedditPost, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		posts = append(posts, c.Data)
	}
	return posts, nil
}

// About fetches subscriber and active user counts of a subreddit.
func (r *Reddit) About(ctx context.Context, subreddit string) (*Subreddit, error) {
	if subreddit == "" {
		return nil, Missing(r.Name(), "subreddit")
	}
	var resp struct {
		Kind string    `json:"kind"`
		Data Subreddit `json:"data"`
	}
	u := fmt.Sprintf("%s/r/%s/about.json", r.baseURL, url.PathEscape(subreddit))
	if err := r.get(ctx, u, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Kind != "t5" {
		return nil, newError(r.Name(), ErrMalformedResponse, errors.New("not a subreddit listing"))
	}
	return &resp.Data, nil
}
