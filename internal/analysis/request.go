// Package analysis holds the contract shared by the domain analyzers and the
// aggregator: the request describing a subject, the insight summary each
// analyzer produces, weight tables, scoring helpers and the concurrent fetch
// fan-out.
package analysis

import "strings"

// Domain names one category of analysis.
type Domain string

const (
	DomainMarket      Domain = "market"
	DomainOnChain     Domain = "on_chain"
	DomainSentiment   Domain = "sentiment"
	DomainDevelopment Domain = "development"
	DomainCommunity   Domain = "community"
)

// Domains lists every domain in the fixed order used for merging and scoring.
var Domains = []Domain{
	DomainMarket,
	DomainOnChain,
	DomainSentiment,
	DomainDevelopment,
	DomainCommunity,
}

// Request identifies the token/project under analysis. It is passed by value
// and never modified once dispatched.
type Request struct {
	TokenAddress string `json:"token_address" validate:"omitempty,min=32,max=64,alphanum"`
	Chain        string `json:"chain" default:"solana" validate:"omitempty,max=32,alphanum"`
	Symbol       string `json:"symbol" validate:"required,max=20"`
	Repository   string `json:"repository" validate:"omitempty,max=200,contains=/"`
	ProjectID    string `json:"project_id" validate:"omitempty,max=100"`
	Social       Social `json:"social"`
	// CacheKey opts the request into report caching. Empty disables caching.
	CacheKey string `json:"cache_key,omitempty" validate:"omitempty,max=128"`
}

// Social holds the handles used by the sentiment and community analyzers.
type Social struct {
	TwitterQuery  string `json:"twitter_query" validate:"omitempty,max=256"`
	Subreddit     string `json:"subreddit" validate:"omitempty,max=64"`
	TelegramChat  string `json:"telegram_chat" validate:"omitempty,max=64"`
	DiscordInvite string `json:"discord_invite" validate:"omitempty,max=64"`
}

// Subject returns a stable identifier for logs, storage and cache keys.
func (r Request) Subject() string {
	parts := []string{strings.ToUpper(r.Symbol)}
	switch {
	case r.TokenAddress != "":
		parts = append(parts, r.TokenAddress)
	case r.ProjectID != "":
		parts = append(parts, r.ProjectID)
	}
	return strings.Join(parts, ":")
}

// RepoOwnerName splits Repository ("owner/name"). Both are empty when the
// repository is missing or malformed.
func (r Request) RepoOwnerName() (owner, name string) {
	owner, name, ok := strings.Cut(strings.Trim(r.Repository, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", ""
	}
	return owner, name
}

// TwitterSearch returns the search query for social sentiment, falling back
// to the cashtag of the symbol.
func (r Request) TwitterSearch() string {
	if r.Social.TwitterQuery != "" {
		return r.Social.TwitterQuery
	}
	if r.Symbol == "" {
		return ""
	}
	return "$" + strings.ToUpper(r.Symbol)
}
