package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/web3-frozen/token-insight/internal/aggregator"
	"github.com/web3-frozen/token-insight/internal/monitor"
)

var (
	_ aggregator.Cache   = (*Memory)(nil)
	_ aggregator.Cache   = (*Redis)(nil)
	_ monitor.ScoreStore = (*Memory)(nil)
	_ monitor.ScoreStore = (*Redis)(nil)
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis("redis://"+mr.Addr(), "", "test")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestMemoryGetSetExpiry(t *testing.T) {
	c := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Fatal("unexpected hit")
	}
	_ = c.Set(ctx, "report:a", []byte(`{"x":1}`), time.Minute)
	if v, ok, _ := c.Get(ctx, "report:a"); !ok || string(v) != `{"x":1}` {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "report:a"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not dropped, len = %d", c.Len())
	}
}

func TestMemoryCopiesValue(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, 0)
	buf[0] = 'z'
	if v, _, _ := c.Get(ctx, "k"); string(v) != "abc" {
		t.Errorf("stored value aliased caller buffer: %q", v)
	}
}

func TestScoreStores(t *testing.T) {
	r, _ := setupRedis(t)
	stores := map[string]monitor.ScoreStore{"memory": NewMemory(), "redis": r}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, ok, err := s.LastScore(ctx, "BONK"); ok || err != nil {
				t.Fatalf("empty store: ok=%v err=%v", ok, err)
			}
			if err := s.SaveScore(ctx, "BONK", -0.35); err != nil {
				t.Fatal(err)
			}
			v, ok, err := s.LastScore(ctx, "BONK")
			if err != nil || !ok || v != -0.35 {
				t.Errorf("LastScore = %v, %v, %v", v, ok, err)
			}
		})
	}
}

func TestRedisGetSet(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "report:x"); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "report:x", []byte("payload"), 10*time.Minute); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("test:report:x") {
		t.Error("key not prefixed")
	}
	if v, ok, err := c.Get(ctx, "report:x"); err != nil || !ok || string(v) != "payload" {
		t.Errorf("Get = %q, %v, %v", v, ok, err)
	}

	mr.FastForward(11 * time.Minute)
	if _, ok, _ := c.Get(ctx, "report:x"); ok {
		t.Error("entry should have expired")
	}
}

func TestRedisUnavailable(t *testing.T) {
	c, mr := setupRedis(t)
	mr.Close()
	if _, _, err := c.Get(context.Background(), "k"); err == nil {
		t.Error("expected error with redis down")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping should fail with redis down")
	}
}
