package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/metrics"
)

// State is a watcher's position in its poll loop.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateAlerting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateAlerting:
		return "alerting"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

const notifyTimeout = 30 * time.Second

// Settings configures a watcher.
type Settings struct {
	Interval time.Duration `yaml:"interval" default:"5m" validate:"gt=0"`
	// ShiftThreshold is the absolute change on [-1, 1] that raises an alert.
	ShiftThreshold float64 `yaml:"shift_threshold" default:"0.2" validate:"gt=0,lte=2"`
	// FailureEscalation is the number of consecutive failed polls after
	// which the watcher reports itself degraded.
	FailureEscalation int           `yaml:"failure_escalation" default:"3" validate:"gte=1"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" default:"60s" validate:"gt=0"`
	// AlertCooldown suppresses repeated alerts in the same direction. Zero
	// disables suppression.
	AlertCooldown time.Duration `yaml:"alert_cooldown" default:"30m" validate:"gte=0"`
}

func DefaultSettings() Settings {
	var s Settings
	_ = defaults.Set(&s)
	return s
}

// SentimentReader produces the composite sentiment of a request on [-1, 1].
type SentimentReader interface {
	Sentiment(ctx context.Context, req analysis.Request) (float64, error)
}

// ScoreStore keeps the last observed sentiment per symbol.
type ScoreStore interface {
	LastScore(ctx context.Context, symbol string) (float64, bool, error)
	SaveScore(ctx context.Context, symbol string, score float64) error
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Deduplicator suppresses alerts already sent within a cooldown.
type Deduplicator interface {
	AlreadySent(ctx context.Context, key string) bool
	Record(ctx context.Context, key string, ttl time.Duration)
}

// Status is a point-in-time view of a watcher.
type Status struct {
	Symbol              string    `json:"symbol"`
	State               State     `json:"state"`
	LastScore           *float64  `json:"last_score"`
	LastPoll            time.Time `json:"last_poll,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Degraded            bool      `json:"degraded"`
	LastError           string    `json:"last_error,omitempty"`
	AlertsSent          int       `json:"alerts_sent"`
}

type Option func(*Watcher)

// WithDeduplicator enables alert cooldowns.
func WithDeduplicator(d Deduplicator) Option {
	return func(w *Watcher) { w.dedup = d }
}

// WithStateHook calls fn on every state transition.
func WithStateHook(fn func(symbol string, from, to State)) Option {
	return func(w *Watcher) { w.onState = fn }
}

func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// Watcher polls the sentiment of one symbol and alerts on large shifts.
type Watcher struct {
	req      analysis.Request
	symbol   string
	reader   SentimentReader
	scores   ScoreStore
	notifier Notifier
	dedup    Deduplicator
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
	onState  func(symbol string, from, to State)

	running  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	alerts   sync.WaitGroup

	mu     sync.Mutex
	status Status
}

func NewWatcher(req analysis.Request, reader SentimentReader, scores ScoreStore, notifier Notifier, settings Settings, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if req.Symbol == "" {
		return nil, &analysis.ConfigError{Field: "monitor.symbol", Reason: "required"}
	}
	if reader == nil || scores == nil || notifier == nil {
		return nil, &analysis.ConfigError{Field: "monitor", Reason: "reader, score store and notifier are required"}
	}
	if err := analysis.ValidateConfig("monitor", settings); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	symbol := req.Subject()
	w := &Watcher{
		req:      req,
		symbol:   symbol,
		reader:   reader,
		scores:   scores,
		notifier: notifier,
		settings: settings,
		logger:   logger.With("component", "monitor", "symbol", symbol),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		status:   Status{Symbol: symbol, State: StateIdle},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Watcher) Symbol() string { return w.symbol }

// Run polls until Stop is called or ctx ends. The first poll starts
// immediately. Run returns after in-flight alerts finish. A watcher runs at
// most once; later calls return immediately.
func (w *Watcher) Run(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Warn("watcher already running")
		return
	}
	defer close(w.done)
	defer w.alerts.Wait()
	defer w.setState(StateStopped)

	w.logger.Info("watcher started", "interval", w.settings.Interval, "threshold", w.settings.ShiftThreshold)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-timer.C:
		}
		if w.stopRequested() {
			return
		}
		w.poll(ctx)
		timer.Reset(w.settings.Interval)
	}
}

// Stop asks the watcher to finish. A poll in flight completes but its
// result is discarded.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Done is closed once Run has returned.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.status
	if s.LastScore != nil {
		v := *s.LastScore
		s.LastScore = &v
	}
	return s
}

func (w *Watcher) stopRequested() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// poll runs one cycle behind its own recover boundary.
func (w *Watcher) poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("poll panic", "panic", r)
			w.fail(fmt.Errorf("poll panic: %v", r))
		}
	}()
	w.setState(StatePolling)

	fctx, cancel := context.WithTimeout(ctx, w.settings.FetchTimeout)
	score, err := w.reader.Sentiment(fctx, w.req)
	cancel()

	if w.stopRequested() {
		w.logger.Info("discarding sentiment fetched after stop")
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.fail(err)
		return
	}
	if math.IsNaN(score) {
		w.fail(errors.New("sentiment is NaN"))
		return
	}
	w.observe(ctx, score)
}

func (w *Watcher) observe(ctx context.Context, score float64) {
	now := w.now()
	prev, ok, err := w.scores.LastScore(ctx, w.symbol)
	if err != nil {
		w.logger.Warn("read last sentiment", "error", err)
		ok = false
	}
	if w.stopRequested() {
		w.logger.Info("discarding sentiment fetched after stop")
		return
	}
	if err := w.scores.SaveScore(ctx, w.symbol, score); err != nil {
		w.logger.Warn("save sentiment", "error", err)
	}

	w.mu.Lock()
	if w.stopRequested() {
		w.mu.Unlock()
		return
	}
	w.status.LastScore = &score
	w.status.LastPoll = now
	w.status.ConsecutiveFailures = 0
	w.status.Degraded = false
	w.status.LastError = ""
	w.mu.Unlock()

	metrics.MonitorSentiment.WithLabelValues(w.symbol).Set(score)
	metrics.MonitorConsecutiveFailures.WithLabelValues(w.symbol).Set(0)
	metrics.MonitorLastSuccess.WithLabelValues(w.symbol).Set(float64(now.Unix()))

	if !ok || math.Abs(score-prev) <= w.settings.ShiftThreshold {
		w.logger.Debug("sentiment polled", "score", score)
		return
	}
	alert := newAlert(w.symbol, prev, score, w.settings.ShiftThreshold, now)
	w.logger.Info("sentiment shift", "previous", prev, "current", score, "delta", alert.Delta)
	w.setState(StateAlerting)
	w.dispatch(ctx, alert)
}

func (w *Watcher) fail(err error) {
	w.mu.Lock()
	w.status.ConsecutiveFailures++
	w.status.LastError = err.Error()
	n := w.status.ConsecutiveFailures
	escalated := n >= w.settings.FailureEscalation && !w.status.Degraded
	if escalated {
		w.status.Degraded = true
	}
	w.mu.Unlock()

	metrics.MonitorConsecutiveFailures.WithLabelValues(w.symbol).Set(float64(n))
	if escalated {
		w.logger.Error("watcher degraded", "consecutive_failures", n, "error", err)
		return
	}
	w.logger.Warn("sentiment poll failed", "consecutive_failures", n, "error", err)
}

// dispatch delivers the alert on its own goroutine so the next poll is never
// held up by a slow notifier.
func (w *Watcher) dispatch(ctx context.Context, a Alert) {
	w.alerts.Add(1)
	go func() {
		defer w.alerts.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("notifier panic", "panic", r)
				metrics.AlertsFailedTotal.WithLabelValues(w.symbol, a.Direction).Inc()
			}
		}()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		key := a.DedupKey()
		if w.dedup != nil && w.settings.AlertCooldown > 0 && w.dedup.AlreadySent(nctx, key) {
			metrics.AlertsDeduplicatedTotal.WithLabelValues(w.symbol, a.Direction).Inc()
			w.logger.Info("alert suppressed by cooldown", "key", key)
			return
		}
		if err := w.notifier.Notify(nctx, a); err != nil {
			metrics.AlertsFailedTotal.WithLabelValues(w.symbol, a.Direction).Inc()
			w.logger.Error("send alert", "error", err)
			return
		}
		metrics.AlertsSentTotal.WithLabelValues(w.symbol, a.Direction).Inc()
		if w.dedup != nil && w.settings.AlertCooldown > 0 {
			w.dedup.Record(nctx, key, w.settings.AlertCooldown)
		}
		w.mu.Lock()
		w.status.AlertsSent++
		w.mu.Unlock()
	}()
}

func (w *Watcher) setState(to State) {
	w.mu.Lock()
	from := w.status.State
	w.status.State = to
	w.mu.Unlock()
	if from == to {
		return
	}
	metrics.MonitorState.WithLabelValues(w.symbol).Set(float64(to))
	if w.onState != nil {
		w.onState(w.symbol, from, to)
	}
}
