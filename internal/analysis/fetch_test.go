package analysis

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func sleepFetch(name string, d time.Duration, err error) Fetch {
	return Fetch{Source: name, Run: func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

func TestFetchAllRunsConcurrently(t *testing.T) {
	start := time.Now()
	out, err := FetchAll(context.Background(),
		sleepFetch("a", 100*time.Millisecond, nil),
		sleepFetch("b", 150*time.Millisecond, nil),
		sleepFetch("c", 50*time.Millisecond, nil),
	)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed >= 280*time.Millisecond {
		t.Errorf("elapsed %v, fetches look serialized", elapsed)
	}
	if out.AllFailed() || out.Degraded() != nil {
		t.Errorf("outcome = %+v", out)
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	boom := errors.New("boom")
	out, err := FetchAll(context.Background(),
		sleepFetch("b", 0, boom),
		sleepFetch("a", 0, nil),
		Fetch{Source: "c", Run: func(ctx context.Context) error { panic("bad payload") }},
	)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(out.Degraded(), []string{"b", "c"}) {
		t.Errorf("Degraded() = %v", out.Degraded())
	}
	if out.AllFailed() {
		t.Error("AllFailed() with one success")
	}
	if !errors.Is(out.Failed("b"), boom) || out.Failed("a") != nil {
		t.Errorf("Failed() mismatch")
	}
}

func TestFetchAllAllFailed(t *testing.T) {
	out, err := FetchAll(context.Background(), sleepFetch("a", 0, errors.New("x")), sleepFetch("b", 0, errors.New("y")))
	if err != nil {
		t.Fatal(err)
	}
	if !out.AllFailed() {
		t.Fatal("AllFailed() = false")
	}
	uerr := out.Unavailable(DomainSentiment)
	if !errors.Is(uerr, ErrSourceUnavailable) {
		t.Errorf("%v is not ErrSourceUnavailable", uerr)
	}
	if got := uerr.Error(); got != "sentiment: all sources unavailable (a: x; b: y)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFetchAllCancellationReachesEveryFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var stopped atomic.Int32
	slow := Fetch{Source: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Add(1)
		return ctx.Err()
	}}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := FetchAll(ctx, slow, slow, slow)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want cancelled", err)
	}
	if stopped.Load() != 3 {
		t.Errorf("%d fetches observed cancellation, want 3", stopped.Load())
	}
}
