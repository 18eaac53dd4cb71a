package monitor

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/web3-frozen/token-insight/internal/analysis"
)

func TestEngineRegisterAndStatuses(t *testing.T) {
	e := NewEngine(nil)
	for _, sym := range []string{"WIF", "BONK"} {
		w, err := NewWatcher(analysis.Request{Symbol: sym}, &scriptedReader{scores: []float64{0}}, newMemScores(), newChanNotifier(), testSettings(), nil)
		if err != nil {
			t.Fatal(err)
		}
		e.Register(w)
	}

	if got := e.Symbols(); !slices.Equal(got, []string{"BONK", "WIF"}) {
		t.Errorf("Symbols = %v", got)
	}
	st := e.Statuses()
	if len(st) != 2 || st[0].Symbol != "BONK" || st[0].State != StateIdle {
		t.Errorf("Statuses = %+v", st)
	}
}

func TestEngineReplacesWatcher(t *testing.T) {
	e := NewEngine(nil)
	first, _ := NewWatcher(watchReq, &scriptedReader{scores: []float64{0}}, newMemScores(), newChanNotifier(), testSettings(), nil)
	second, _ := NewWatcher(watchReq, &scriptedReader{scores: []float64{0}}, newMemScores(), newChanNotifier(), testSettings(), nil)
	e.Register(first)
	e.Register(second)

	if len(e.Symbols()) != 1 {
		t.Fatalf("Symbols = %v", e.Symbols())
	}
	select {
	case <-first.stop:
	default:
		t.Error("replaced watcher was not stopped")
	}
}

func TestEngineStartStop(t *testing.T) {
	e := NewEngine(nil)
	readers := []*scriptedReader{{scores: []float64{0.1}}, {scores: []float64{0.2}}}
	var watchers []*Watcher
	for i, r := range readers {
		w, err := NewWatcher(analysis.Request{Symbol: []string{"A", "B"}[i]}, r, newMemScores(), newChanNotifier(), testSettings(), nil)
		if err != nil {
			t.Fatal(err)
		}
		e.Register(w)
		watchers = append(watchers, w)
	}
	e.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for readers[0].calls.Load() == 0 || readers[1].calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("watchers never polled")
		case <-time.After(time.Millisecond):
		}
	}

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	for _, w := range watchers {
		if w.Status().State != StateStopped {
			t.Errorf("%s state = %v", w.Symbol(), w.Status().State)
		}
	}
}

func TestEngineStartTwiceAndLateRegister(t *testing.T) {
	e := NewEngine(nil)
	early := &scriptedReader{scores: []float64{0.1}}
	w, _ := NewWatcher(analysis.Request{Symbol: "A"}, early, newMemScores(), newChanNotifier(), testSettings(), nil)
	e.Register(w)

	ctx := context.Background()
	e.Start(ctx)
	e.Start(ctx)

	late := &scriptedReader{scores: []float64{0.2}}
	lw, _ := NewWatcher(analysis.Request{Symbol: "B"}, late, newMemScores(), newChanNotifier(), testSettings(), nil)
	e.Register(lw)

	deadline := time.After(2 * time.Second)
	for early.calls.Load() == 0 || late.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("polls: early %d late %d", early.calls.Load(), late.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	if c := early.calls.Load(); c != 1 {
		t.Errorf("early watcher polled %d times, want 1 (started once)", c)
	}
	for _, st := range e.Statuses() {
		if st.State != StateStopped {
			t.Errorf("%s state = %v", st.Symbol, st.State)
		}
	}
}
