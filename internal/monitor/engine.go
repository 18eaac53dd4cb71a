// Package monitor polls composite sentiment for configured symbols and
// raises alerts when it shifts sharply between polls.
package monitor

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Engine runs a set of watchers, one per symbol.
type Engine struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	watchers map[string]*Watcher
	wg       sync.WaitGroup
	// ctx is set by Start. Watchers registered afterwards start right away.
	ctx     context.Context
	stopped bool
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, watchers: make(map[string]*Watcher)}
}

// Register adds a watcher. A watcher registered under an existing symbol
// replaces the old one, which is stopped. Once the engine has started, the
// new watcher starts immediately.
func (e *Engine) Register(w *Watcher) {
	e.mu.Lock()
	old := e.watchers[w.Symbol()]
	e.watchers[w.Symbol()] = w
	if e.ctx != nil && !e.stopped {
		e.launch(w)
	}
	e.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	e.logger.Info("registered watcher", "symbol", w.Symbol())
}

// launch must be called with e.mu held.
func (e *Engine) launch(w *Watcher) {
	ctx := e.ctx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		w.Run(ctx)
	}()
}

// Symbols returns the watched symbols in sorted order.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.watchers))
	for n := range e.watchers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Start launches every registered watcher on its own goroutine. Calls after
// the first are ignored.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		e.logger.Warn("engine already started")
		return
	}
	e.ctx = ctx
	for _, w := range e.watchers {
		e.launch(w)
	}
}

// Statuses returns a status per watcher, sorted by symbol.
func (e *Engine) Statuses() []Status {
	e.mu.RLock()
	out := make([]Status, 0, len(e.watchers))
	for _, w := range e.watchers {
		out = append(out, w.Status())
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b Status) int { return strings.Compare(a.Symbol, b.Symbol) })
	return out
}

// Stop signals every watcher and waits for their loops to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	for _, w := range e.watchers {
		w.Stop()
	}
	e.mu.Unlock()
	e.wg.Wait()
}
