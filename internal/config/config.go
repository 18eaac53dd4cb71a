package config

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"

	"github.com/web3-frozen/token-insight/internal/analysis"
)

type Config struct {
	Port            string
	DatabaseURL     string
	TelegramToken   string
	CORSOrigins     []string
	RedisURL        string
	RedisPassword   string
	KafkaBrokers    []string
	KafkaAlertTopic string
	ScoringFile     string
	AnalysisTimeout time.Duration
	// Watch lists the tokens whose sentiment is monitored.
	Watch     []analysis.Request
	Upstreams Upstreams
}

// Upstreams holds the base URLs and credentials of the data sources. Empty
// base URLs select each client's public default.
type Upstreams struct {
	DexScreenerURL  string
	CoinGeckoURL    string
	CoinGeckoKey    string
	SolanaRPCURL    string
	IndexerURL      string
	IndexerKey      string
	TwitterURL      string
	TwitterBearer   string
	RedditURL       string
	RedditUserAgent string
	FearGreedURL    string
	GitHubURL       string
	GitHubToken     string
	DiscordURL      string
	TelegramAPIURL  string
	TelegramReadKey string
}

func Load() Config {
	cfg := Config{
		Port:            envOr("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		CORSOrigins:     splitList(envOr("FRONTEND_ORIGIN", "*")),
		RedisURL:        os.Getenv("REDIS_URL"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic: envOr("KAFKA_ALERT_TOPIC", "token-insight.sentiment-alerts"),
		ScoringFile:     os.Getenv("SCORING_CONFIG"),
		AnalysisTimeout: durationOr("ANALYSIS_TIMEOUT", 45*time.Second),
		Watch:           parseWatch(os.Getenv("MONITOR_SYMBOLS")),
		Upstreams: Upstreams{
			DexScreenerURL:  os.Getenv("DEXSCREENER_URL"),
			CoinGeckoURL:    os.Getenv("COINGECKO_URL"),
			CoinGeckoKey:    os.Getenv("COINGECKO_API_KEY"),
			SolanaRPCURL:    os.Getenv("SOLANA_RPC_URL"),
			IndexerURL:      os.Getenv("INDEXER_URL"),
			IndexerKey:      os.Getenv("INDEXER_API_KEY"),
			TwitterURL:      os.Getenv("TWITTER_URL"),
			TwitterBearer:   os.Getenv("TWITTER_BEARER_TOKEN"),
			RedditURL:       os.Getenv("REDDIT_URL"),
			RedditUserAgent: os.Getenv("REDDIT_USER_AGENT"),
			FearGreedURL:    os.Getenv("FEAR_GREED_URL"),
			GitHubURL:       os.Getenv("GITHUB_URL"),
			GitHubToken:     os.Getenv("GITHUB_TOKEN"),
			DiscordURL:      os.Getenv("DISCORD_URL"),
			TelegramAPIURL:  os.Getenv("TELEGRAM_API_URL"),
			TelegramReadKey: os.Getenv("TELEGRAM_READ_TOKEN"),
		},
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

// secretTargets maps secret names to the fields they fill.
func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"TELEGRAM_BOT_TOKEN":   &cfg.TelegramToken,
		"REDIS_PASSWORD":       &cfg.RedisPassword,
		"DATABASE_URL":         &cfg.DatabaseURL,
		"COINGECKO_API_KEY":    &cfg.Upstreams.CoinGeckoKey,
		"INDEXER_API_KEY":      &cfg.Upstreams.IndexerKey,
		"TWITTER_BEARER_TOKEN": &cfg.Upstreams.TwitterBearer,
		"GITHUB_TOKEN":         &cfg.Upstreams.GitHubToken,
		"TELEGRAM_READ_TOKEN":  &cfg.Upstreams.TelegramReadKey,
	}
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	for key, target := range secretTargets(cfg) {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseWatch reads "SYMBOL[:TOKEN_ADDRESS]" entries separated by commas.
func parseWatch(s string) []analysis.Request {
	var out []analysis.Request
	for _, entry := range splitList(s) {
		symbol, addr, _ := strings.Cut(entry, ":")
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		out = append(out, analysis.Request{
			Symbol:       strings.ToUpper(symbol),
			TokenAddress: strings.TrimSpace(addr),
			Chain:        "solana",
		})
	}
	return out
}
