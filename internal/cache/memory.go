// Package cache stores encoded reports and the monitor's last observed
// sentiment, in process memory or in Redis.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

const lastScorePrefix = "sentiment:last:"

type entry struct {
	v   []byte
	exp time.Time
}

// Memory is a process-local TTL cache. Expired entries are dropped on read.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]entry), now: time.Now}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

// Set stores value for ttl. A non-positive ttl never expires.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)
	c.mu.Lock()
	c.m[key] = entry{v: v, exp: exp}
	c.mu.Unlock()
	return nil
}

func (c *Memory) LastScore(ctx context.Context, symbol string) (float64, bool, error) {
	raw, ok, _ := c.Get(ctx, lastScorePrefix+symbol)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (c *Memory) SaveScore(ctx context.Context, symbol string, score float64) error {
	return c.Set(ctx, lastScorePrefix+symbol, []byte(strconv.FormatFloat(score, 'g', -1, 64)), 0)
}

// Len reports the number of stored entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
