package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/web3-frozen/token-insight/internal/metrics"
	"github.com/web3-frozen/token-insight/internal/sources"
)

// Fetch is one source request inside an analyzer fan-out. Run stores its
// payload in a variable owned by the caller; nothing else writes to it.
type Fetch struct {
	Source string
	Run    func(ctx context.Context) error
}

// Outcome records which fetches of a fan-out failed.
type Outcome struct {
	total int
	errs  map[string]error
}

// FetchAll runs every fetch concurrently and waits for all of them. It only
// returns an error when ctx ends, so callers never read half-filled payloads.
func FetchAll(ctx context.Context, fetches ...Fetch) (Outcome, error) {
	errs := make([]error, len(fetches))

	var wg sync.WaitGroup
	for i, f := range fetches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic in %s fetch: %v", f.Source, r)
				}
			}()

			start := time.Now()
			errs[i] = f.Run(ctx)
			metrics.SourceFetchDuration.WithLabelValues(f.Source).Observe(time.Since(start).Seconds())
			metrics.SourceFetchTotal.WithLabelValues(f.Source, sources.Outcome(errs[i])).Inc()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	out := Outcome{total: len(fetches), errs: make(map[string]error)}
	for i, err := range errs {
		if err != nil {
			out.errs[fetches[i].Source] = err
		}
	}
	return out, nil
}

// Failed returns the error of the named fetch, or nil when it succeeded.
func (o Outcome) Failed(source string) error { return o.errs[source] }

// AllFailed reports whether no fetch succeeded.
func (o Outcome) AllFailed() bool { return len(o.errs) == o.total }

// Degraded lists the failed sources in sorted order, nil when none failed.
func (o Outcome) Degraded() []string {
	if len(o.errs) == 0 {
		return nil
	}
	names := make([]string, 0, len(o.errs))
	for name := range o.errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unavailable converts a fully failed outcome into the domain's error.
func (o Outcome) Unavailable(d Domain) error {
	return &UnavailableError{Domain: d, Causes: o.errs}
}
