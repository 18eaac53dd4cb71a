package sources

import (
	"context"
	"net/url"
	"time"
)

const twitterAPI = "https://api.twitter.com"

// Tweet is a post returned by recent search.
type Tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
}

// Engagement sums likes, retweets and replies.
func (t Tweet) Engagement() int {
	return t.PublicMetrics.LikeCount + t.PublicMetrics.RetweetCount + t.PublicMetrics.ReplyCount
}

// Twitter searches recent posts with an app bearer token.
type Twitter struct {
	*jsonClient
	baseURL string
}

func NewTwitter(baseURL, bearerToken string) *Twitter {
	if baseURL == "" {
		baseURL = twitterAPI
	}
	t := &Twitter{
		jsonClient: newJSONClient("twitter", 15*time.Second, 0.2, 2),
		baseURL:    baseURL,
	}
	if bearerToken != "" {
		t.headers["Authorization"] = "Bearer " + bearerToken
	}
	return t
}

func (t *Twitter) Name() string { return "twitter" }

// SearchRecent returns up to 100 recent posts matching query. No matches is
// an empty result, not an error.
func (t *Twitter) SearchRecent(ctx context.Context, query string) ([]Tweet, error) {
	if query == "" {
		return nil, Missing(t.Name(), "twitter_query")
	}
	q := url.Values{}
	q.Set("query", query+" -is:retweet")
	q.Set("max_results", "100")
	q.Set("tweet.fields", "public_metrics")

	var resp struct {
		Data []Tweet `json:"data"`
	}
	if err := t.get(ctx, t.baseURL+"/2/tweets/search/recent", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
