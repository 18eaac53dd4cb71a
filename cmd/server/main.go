package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/token-insight/internal/aggregator"
	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/analysis/community"
	"github.com/web3-frozen/token-insight/internal/analysis/development"
	"github.com/web3-frozen/token-insight/internal/analysis/market"
	"github.com/web3-frozen/token-insight/internal/analysis/onchain"
	"github.com/web3-frozen/token-insight/internal/analysis/sentiment"
	"github.com/web3-frozen/token-insight/internal/cache"
	"github.com/web3-frozen/token-insight/internal/config"
	"github.com/web3-frozen/token-insight/internal/dedup"
	"github.com/web3-frozen/token-insight/internal/handler"
	"github.com/web3-frozen/token-insight/internal/middleware"
	"github.com/web3-frozen/token-insight/internal/monitor"
	"github.com/web3-frozen/token-insight/internal/notify"
	"github.com/web3-frozen/token-insight/internal/sources"
	"github.com/web3-frozen/token-insight/internal/store"
	"github.com/web3-frozen/token-insight/internal/telegram"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	scoring, err := config.LoadScoring(cfg.ScoringFile)
	if err != nil {
		logger.Error("invalid scoring configuration", "file", cfg.ScoringFile, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected and migrated")

	ready := map[string]handler.Pinger{"postgres": db}

	// Report cache, score store and alert dedup share one Redis client.
	// Without REDIS_URL everything stays in process memory.
	var (
		reportCache aggregator.Cache
		scores      monitor.ScoreStore
		watchOpts   []monitor.Option
	)
	if cfg.RedisURL != "" {
		rc := connectRedis(cfg, logger)
		defer rc.Close()
		reportCache, scores = rc, rc
		watchOpts = append(watchOpts, monitor.WithDeduplicator(dedup.NewFromClient(rc.Client(), logger)))
		ready["redis"] = rc
		logger.Info("redis connected for cache and alert dedup")
	} else {
		mem := cache.NewMemory()
		reportCache, scores = mem, mem
		logger.Warn("REDIS_URL not set, using in-memory cache without alert dedup")
	}

	// Upstream clients
	up := cfg.Upstreams
	dex := sources.NewDexScreener(up.DexScreenerURL)
	gecko := sources.NewCoinGecko(up.CoinGeckoURL, up.CoinGeckoKey)
	sol := sources.NewSolana(up.SolanaRPCURL)
	indexer := sources.NewIndexer(up.IndexerURL, up.IndexerKey)
	twitter := sources.NewTwitter(up.TwitterURL, up.TwitterBearer)
	reddit := sources.NewReddit(up.RedditURL, up.RedditUserAgent)
	fearGreed := sources.NewFearGreed(up.FearGreedURL)
	github := sources.NewGitHub(up.GitHubURL, up.GitHubToken)
	discord := sources.NewDiscord(up.DiscordURL)
	readToken := up.TelegramReadKey
	if readToken == "" {
		readToken = cfg.TelegramToken
	}
	tgReader := sources.NewTelegram(up.TelegramAPIURL, readToken)
	defer func() {
		for _, c := range []interface{ Close() error }{dex, gecko, sol, indexer, twitter, reddit, fearGreed, github, discord, tgReader} {
			_ = c.Close()
		}
	}()

	// Analyzers
	marketAnalyzer, err := market.New(dex, gecko, scoring.Market, logger)
	exitOn(logger, "market analyzer", err)
	onchainAnalyzer, err := onchain.New(sol, indexer, scoring.OnChain, logger)
	exitOn(logger, "on-chain analyzer", err)
	sentimentAnalyzer, err := sentiment.New(twitter, reddit, fearGreed, scoring.Sentiment, logger)
	exitOn(logger, "sentiment analyzer", err)
	devAnalyzer, err := development.New(github, scoring.Development, logger)
	exitOn(logger, "development analyzer", err)
	communityAnalyzer, err := community.New(tgReader, discord, reddit, scoring.Community, logger)
	exitOn(logger, "community analyzer", err)

	agg, err := aggregator.New(map[analysis.Domain]analysis.Analyzer{
		analysis.DomainMarket:      marketAnalyzer,
		analysis.DomainOnChain:     onchainAnalyzer,
		analysis.DomainSentiment:   sentimentAnalyzer,
		analysis.DomainDevelopment: devAnalyzer,
		analysis.DomainCommunity:   communityAnalyzer,
	}, scoring.Composite, logger, aggregator.WithCache(reportCache, scoring.ReportFreshness))
	exitOn(logger, "aggregator", err)

	// Sentiment monitoring
	engine := monitor.NewEngine(logger)

	var bot *telegram.Bot
	notifiers := notify.Multi{notify.History{Saver: db}}
	if cfg.TelegramToken != "" {
		bot = telegram.NewBot(cfg.TelegramToken, db, engine, logger)
		notifiers = append(notifiers, notify.NewTelegram(bot, db, logger))
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, telegram alerts disabled")
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaAlertTopic)
		exitOn(logger, "kafka alert writer", err)
		defer kafka.Close()
		notifiers = append(notifiers, kafka)
		logger.Info("publishing sentiment alerts to kafka", "topic", cfg.KafkaAlertTopic)
	}

	for _, req := range cfg.Watch {
		w, err := monitor.NewWatcher(req, sentimentAnalyzer, scores, notifiers, scoring.Monitor, logger, watchOpts...)
		if err != nil {
			logger.Error("skipping monitor", "symbol", req.Symbol, "error", err)
			continue
		}
		engine.Register(w)
	}

	// Start background goroutines
	if bot != nil {
		go bot.Run(ctx)
	}
	engine.Start(ctx)
	logger.Info("sentiment monitors started", "symbols", engine.Symbols())

	// HTTP routes
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(ready))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analysis", handler.Analyze(agg, db, cfg.AnalysisTimeout, logger))
		r.Get("/reports", handler.ListReports(db, logger))
		r.Get("/alerts", handler.ListAlerts(db, logger))
		r.Get("/monitors", handler.Monitors(engine))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AnalysisTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	engine.Stop()
	cancel()
}

// connectRedis retries for up to 30s so secrets synced after pod start are picked up.
func connectRedis(cfg config.Config, logger *slog.Logger) *cache.Redis {
	var (
		rc  *cache.Redis
		err error
	)
	for i := 0; i < 6; i++ {
		rc, err = cache.NewRedis(cfg.RedisURL, cfg.RedisPassword, "")
		if err == nil {
			return rc
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	logger.Error("failed to connect to redis after retries", "error", err)
	os.Exit(1)
	return nil
}

func exitOn(logger *slog.Logger, what string, err error) {
	if err != nil {
		logger.Error("failed to build "+what, "error", err)
		os.Exit(1)
	}
}
