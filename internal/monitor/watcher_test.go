package monitor

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/web3-frozen/token-insight/internal/analysis"
	"github.com/web3-frozen/token-insight/internal/analysis/sentiment"
	"github.com/web3-frozen/token-insight/internal/sources"
)

type scriptedReader struct {
	mu      sync.Mutex
	scores  []float64
	err     error
	panics  bool
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (r *scriptedReader) Sentiment(ctx context.Context, req analysis.Request) (float64, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.panics {
		panic("bad payload")
	}
	if r.err != nil {
		return 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.scores[0]
	if len(r.scores) > 1 {
		r.scores = r.scores[1:]
	}
	return v, nil
}

type memScores struct {
	mu     sync.Mutex
	scores map[string]float64
}

func newMemScores() *memScores { return &memScores{scores: make(map[string]float64)} }

func (m *memScores) LastScore(ctx context.Context, symbol string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.scores[symbol]
	return v, ok, nil
}

func (m *memScores) SaveScore(ctx context.Context, symbol string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[symbol] = score
	return nil
}

type chanNotifier struct {
	alerts chan Alert
	block  chan struct{}
}

func newChanNotifier() *chanNotifier { return &chanNotifier{alerts: make(chan Alert, 16)} }

func (n *chanNotifier) Notify(ctx context.Context, a Alert) error {
	if n.block != nil {
		<-n.block
	}
	n.alerts <- a
	return nil
}

type mapDedup struct {
	mu   sync.Mutex
	keys map[string]time.Duration
}

func (d *mapDedup) AlreadySent(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.keys[key]
	return ok
}

func (d *mapDedup) Record(ctx context.Context, key string, ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = ttl
}

var watchReq = analysis.Request{Symbol: "BONK"}

func testSettings() Settings {
	s := DefaultSettings()
	s.Interval = time.Hour
	return s
}

func newTestWatcher(t *testing.T, r SentimentReader, scores ScoreStore, n Notifier, opts ...Option) *Watcher {
	t.Helper()
	w, err := NewWatcher(watchReq, r, scores, n, testSettings(), nil, opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	return w
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Interval != 5*time.Minute || s.ShiftThreshold != 0.2 || s.FailureEscalation != 3 {
		t.Errorf("defaults = %+v", s)
	}
}

func TestNewWatcherValidates(t *testing.T) {
	r, scores, n := &scriptedReader{scores: []float64{0}}, newMemScores(), newChanNotifier()

	bad := testSettings()
	bad.ShiftThreshold = 0
	if _, err := NewWatcher(watchReq, r, scores, n, bad, nil); !errors.Is(err, analysis.ErrConfiguration) {
		t.Errorf("zero threshold: err = %v", err)
	}
	if _, err := NewWatcher(analysis.Request{}, r, scores, n, testSettings(), nil); !errors.Is(err, analysis.ErrConfiguration) {
		t.Errorf("missing symbol: err = %v", err)
	}
	if _, err := NewWatcher(watchReq, nil, scores, n, testSettings(), nil); !errors.Is(err, analysis.ErrConfiguration) {
		t.Errorf("missing reader: err = %v", err)
	}
}

func TestPollShiftAboveThresholdAlerts(t *testing.T) {
	scores := newMemScores()
	scores.scores["BONK"] = 0.1
	n := newChanNotifier()
	w := newTestWatcher(t, &scriptedReader{scores: []float64{0.35}}, scores, n)

	w.poll(context.Background())
	w.alerts.Wait()

	if st := w.Status(); st.State != StateAlerting || st.AlertsSent != 1 {
		t.Errorf("status = %+v, want alerting with one alert", st)
	}
	select {
	case a := <-n.alerts:
		if math.Abs(a.Delta-0.25) > 1e-9 || a.Direction != DirectionUp || a.Previous != 0.1 {
			t.Errorf("alert = %+v", a)
		}
	default:
		t.Fatal("no alert delivered")
	}
	if v, _, _ := scores.LastScore(context.Background(), "BONK"); v != 0.35 {
		t.Errorf("stored score = %v, want 0.35", v)
	}
}

func TestPollSmallShiftStaysPolling(t *testing.T) {
	scores := newMemScores()
	scores.scores["BONK"] = 0.1
	n := newChanNotifier()
	w := newTestWatcher(t, &scriptedReader{scores: []float64{0.2}}, scores, n)

	w.poll(context.Background())
	w.alerts.Wait()

	if st := w.Status(); st.State != StatePolling {
		t.Errorf("state = %v, want polling", st.State)
	}
	if len(n.alerts) != 0 {
		t.Errorf("unexpected alert")
	}
}

func TestFirstPollOnlyRecords(t *testing.T) {
	scores := newMemScores()
	n := newChanNotifier()
	w := newTestWatcher(t, &scriptedReader{scores: []float64{-0.9}}, scores, n)

	w.poll(context.Background())
	w.alerts.Wait()

	if len(n.alerts) != 0 {
		t.Error("first observation must not alert")
	}
	if st := w.Status(); st.LastScore == nil || *st.LastScore != -0.9 {
		t.Errorf("last score = %v", st.LastScore)
	}
}

func TestConsecutiveFailuresEscalate(t *testing.T) {
	r := &scriptedReader{err: &analysis.UnavailableError{Domain: analysis.DomainSentiment}}
	scores := newMemScores()
	w := newTestWatcher(t, r, scores, newChanNotifier())
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		w.poll(ctx)
		if st := w.Status(); st.Degraded || st.ConsecutiveFailures != i {
			t.Fatalf("after %d failures: %+v", i, st)
		}
	}
	w.poll(ctx)
	st := w.Status()
	if !st.Degraded || st.ConsecutiveFailures != 3 || st.LastError == "" {
		t.Fatalf("after 3 failures: %+v, want degraded", st)
	}

	r.err = nil
	r.scores = []float64{0.3}
	w.poll(ctx)
	if st := w.Status(); st.Degraded || st.ConsecutiveFailures != 0 {
		t.Errorf("success should reset degradation: %+v", st)
	}
}

type tweetFeed struct {
	mu     sync.Mutex
	tweets []sources.Tweet
}

func (f *tweetFeed) set(tweets ...sources.Tweet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tweets = tweets
}

func (f *tweetFeed) SearchRecent(ctx context.Context, q string) ([]sources.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sources.Tweet(nil), f.tweets...), nil
}

type quietReddit struct{}

func (quietReddit) Search(ctx context.Context, q string) ([]sources.RedditPost, error) {
	return nil, nil
}

type downMood struct{}

func (downMood) Index(ctx context.Context) (*sources.FearGreedIndex, error) {
	return nil, &sources.Error{Source: "fear_greed", Kind: sources.ErrTimeout}
}

func TestPollWithoutSentimentDataKeepsBaseline(t *testing.T) {
	feed := &tweetFeed{}
	feed.set(sources.Tweet{Text: "Bullish! moon soon"})
	a, err := sentiment.New(feed, quietReddit{}, downMood{}, sentiment.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("sentiment.New: %v", err)
	}
	scores := newMemScores()
	n := newChanNotifier()
	w := newTestWatcher(t, a, scores, n)
	ctx := context.Background()

	w.poll(ctx)
	baseline, ok, _ := scores.LastScore(ctx, "BONK")
	if !ok || baseline <= 0 {
		t.Fatalf("baseline = %v, %v; want a bullish reading", baseline, ok)
	}

	feed.set()
	w.poll(ctx)
	w.alerts.Wait()

	if len(n.alerts) != 0 {
		t.Errorf("alert raised without a reading: %+v", <-n.alerts)
	}
	if v, _, _ := scores.LastScore(ctx, "BONK"); v != baseline {
		t.Errorf("stored score = %v, want baseline %v", v, baseline)
	}
	st := w.Status()
	if st.ConsecutiveFailures != 1 || !strings.Contains(st.LastError, "no sentiment data") {
		t.Errorf("status = %+v, want one failure", st)
	}
	if st.LastScore == nil || *st.LastScore != baseline || st.State == StateAlerting {
		t.Errorf("status = %+v, want last score kept", st)
	}
}

func TestPollRecoversPanic(t *testing.T) {
	w := newTestWatcher(t, &scriptedReader{panics: true}, newMemScores(), newChanNotifier())
	w.poll(context.Background())
	if st := w.Status(); st.ConsecutiveFailures != 1 || !strings.Contains(st.LastError, "panic") {
		t.Errorf("status = %+v", st)
	}
}

func TestSlowNotifierDoesNotBlockPolling(t *testing.T) {
	scores := newMemScores()
	scores.scores["BONK"] = 0
	n := newChanNotifier()
	n.block = make(chan struct{})
	w := newTestWatcher(t, &scriptedReader{scores: []float64{0.5, -0.5}}, scores, n)

	done := make(chan struct{})
	go func() {
		w.poll(context.Background())
		w.poll(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll blocked on the notifier")
	}
	close(n.block)
	w.alerts.Wait()
	if len(n.alerts) != 2 {
		t.Errorf("alerts = %d, want 2", len(n.alerts))
	}
}

func TestCooldownSuppressesRepeatAlerts(t *testing.T) {
	scores := newMemScores()
	scores.scores["BONK"] = 0
	n := newChanNotifier()
	d := &mapDedup{keys: make(map[string]time.Duration)}
	w := newTestWatcher(t, &scriptedReader{scores: []float64{0.5, 0, 0.5}}, scores, n, WithDeduplicator(d))
	ctx := context.Background()

	for range 3 {
		w.poll(ctx)
		w.alerts.Wait()
	}
	// up, down, up again: the second "up" falls inside the cooldown.
	if len(n.alerts) != 2 {
		t.Errorf("alerts = %d, want 2", len(n.alerts))
	}
	if ttl := d.keys["sentiment_shift:bonk:up"]; ttl != testSettings().AlertCooldown {
		t.Errorf("recorded ttl = %v", ttl)
	}
}

func TestStopMidFetchDiscardsResult(t *testing.T) {
	r := &scriptedReader{
		scores:  []float64{0.9},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	scores := newMemScores()
	var mu sync.Mutex
	var transitions []State
	w := newTestWatcher(t, r, scores, newChanNotifier(), WithStateHook(func(_ string, _, to State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	}))

	go w.Run(context.Background())
	select {
	case <-r.started:
	case <-time.After(time.Second):
		t.Fatal("first poll never started")
	}
	w.Stop()
	close(r.release)

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after the in-flight fetch")
	}
	if c := r.calls.Load(); c != 1 {
		t.Errorf("fetches = %d, want 1", c)
	}
	if _, ok, _ := scores.LastScore(context.Background(), "BONK"); ok {
		t.Error("result fetched after stop was published")
	}
	if st := w.Status(); st.State != StateStopped || st.LastScore != nil {
		t.Errorf("status = %+v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || transitions[0] != StatePolling || transitions[1] != StateStopped {
		t.Errorf("transitions = %v", transitions)
	}
}

// stopOnRead stops the watcher while observe reads the previous score.
type stopOnRead struct {
	*memScores
	stop func()
}

func (s *stopOnRead) LastScore(ctx context.Context, symbol string) (float64, bool, error) {
	s.stop()
	return s.memScores.LastScore(ctx, symbol)
}

func TestStopDuringObserveDiscardsResult(t *testing.T) {
	scores := &stopOnRead{memScores: newMemScores()}
	scores.scores["BONK"] = 0.1
	n := newChanNotifier()
	w := newTestWatcher(t, &scriptedReader{scores: []float64{0.9}}, scores, n)
	scores.stop = w.Stop

	w.poll(context.Background())
	w.alerts.Wait()

	if v, _, _ := scores.memScores.LastScore(context.Background(), "BONK"); v != 0.1 {
		t.Errorf("stored score = %v, want 0.1", v)
	}
	if st := w.Status(); st.LastScore != nil || st.AlertsSent != 0 {
		t.Errorf("status = %+v, want nothing published", st)
	}
	if len(n.alerts) != 0 {
		t.Error("alert sent after stop")
	}
}

func TestRunTwiceIsIgnored(t *testing.T) {
	r := &scriptedReader{scores: []float64{0.1}}
	w := newTestWatcher(t, r, newMemScores(), newChanNotifier())
	go w.Run(context.Background())

	deadline := time.After(time.Second)
	for r.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first poll never ran")
		case <-time.After(time.Millisecond):
		}
	}

	second := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(second)
	}()
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second Run did not return")
	}

	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunPollsOnInterval(t *testing.T) {
	r := &scriptedReader{scores: []float64{0.1}}
	settings := testSettings()
	settings.Interval = 5 * time.Millisecond
	w, err := NewWatcher(watchReq, r, newMemScores(), newChanNotifier(), settings, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.After(2 * time.Second)
	for r.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d polls", r.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-w.Done()
	if st := w.Status(); st.State != StateStopped {
		t.Errorf("state = %v", st.State)
	}
}

func TestAlertMessage(t *testing.T) {
	a := newAlert("bonk", 0.1, -0.45, 0.2, time.Unix(0, 0))
	if a.Direction != DirectionDown || a.DedupKey() != "sentiment_shift:bonk:down" {
		t.Errorf("alert = %+v key %q", a, a.DedupKey())
	}
	msg := a.Message()
	for _, want := range []string{"BONK SENTIMENT SHIFT", "+0.10 (neutral)", "-0.45 (bearish)", "-0.55"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestStateText(t *testing.T) {
	b, _ := StateAlerting.MarshalText()
	if string(b) != "alerting" || StateIdle.String() != "idle" || State(9).String() != "state(9)" {
		t.Errorf("unexpected state text %q", b)
	}
}
