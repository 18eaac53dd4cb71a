package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_insight",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "token_insight",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "token_insight",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Source fetch metrics ───────────────────────────────────────────────

var (
	SourceFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_insight",
		Subsystem: "source",
		Name:      "fetch_total",
		Help:      "Total number of upstream fetches per source and outcome.",
	}, []string{"source", "outcome"})

	SourceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "token_insight",
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of upstream fetches per source in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})
)

// ── Analysis metrics ───────────────────────────────────────────────────

var (
	AnalysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_insight",
		Subsystem: "analysis",
		Name:      "total",
		Help:      "Domain analyses per domain and status (ok, degraded, unavailable).",
	}, []string{"domain", "status"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "token_insight",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Duration of a domain analysis in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"domain"})

	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_insight",
		Subsystem: "report",
		Name:      "total",
		Help:      "Composite reports per status (full, degraded, failed, cancelled, cached).",
	}, []string{"status"})

	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "token_insight",
		Subsystem: "report",
		Name:      "duration_seconds",
		Help:      "Duration of a composite report generation in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	OverallScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "token_insight",
		Subsystem: "report",
		Name:      "overall_score",
		Help:      "Latest overall score per subject.",
	}, []string{"subject"})
)

// ── Sentiment monitor metrics ──────────────────────────────────────────

var (
	MonitorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "token_insight",
		Subsystem: "monitor",
		Name:      "state",
		Help:      "Current monitor state per symbol (0 idle, 1 polling, 2 alerting, 3 stopped).",
	}, []string{"symbol"})

	MonitorSentiment = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "token_insight",
		Subsystem: "monitor",
		Name:      "sentiment",
		Help:      "Latest composite sentiment per symbol on a [-1, 1] scale.",
	}, []string{"symbol"})

	MonitorConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "token_insight",
		Subsystem: "monitor",
		Name:      "consecutive_failures",
		Help:      "Consecutive failed poll cycles per symbol.",
	}, []string{"symbol"})

	MonitorLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "token_insight",
		Subsystem: "monitor",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful poll per symbol.",
	}, []string{"symbol"})
)

// ── Alert delivery metrics ─────────────────────────────────────────────

var (
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_insight",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Total alerts successfully delivered.",
	}, []string{"symbol", "direction"})

	AlertsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_insight",
		Subsystem: "alerts",
		Name:      "failed_total",
		Help:      "Total alert delivery failures.",
	}, []string{"symbol", "direction"})

	AlertsDeduplicatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "token_insight",
		Subsystem: "alerts",
		Name:      "deduplicated_total",
		Help:      "Total alerts suppressed by deduplication.",
	}, []string{"symbol", "direction"})
)

// ── Cache metrics ──────────────────────────────────────────────────────

var CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "token_insight",
	Subsystem: "cache",
	Name:      "requests_total",
	Help:      "Report cache lookups per result (hit, miss, error).",
}, []string{"result"})
