// Package dedup records alerts in Redis so repeats can be suppressed for a
// cooldown window.
package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dedup:"

// Deduplicator checks and records whether an alert has been sent recently.
type Deduplicator struct {
	rdb    *redis.Client
	owned  bool
	logger *slog.Logger
}

// New creates a Deduplicator with its own Redis connection.
func New(redisURL, password string, logger *slog.Logger) (*Deduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	d := NewFromClient(rdb, logger)
	d.owned = true
	return d, nil
}

// NewFromClient shares an existing client. Close leaves it open.
func NewFromClient(rdb *redis.Client, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{rdb: rdb, logger: logger}
}

// Close shuts down the Redis connection if the Deduplicator opened it.
func (d *Deduplicator) Close() error {
	if !d.owned {
		return nil
	}
	return d.rdb.Close()
}

// AlreadySent reports whether key was recorded and has not expired. It
// fails closed: when Redis is unreachable the alert counts as sent.
func (d *Deduplicator) AlreadySent(ctx context.Context, key string) bool {
	exists, err := d.rdb.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		d.logger.Warn("dedup lookup failed, suppressing alert", "key", key, "error", err)
		return true
	}
	return exists > 0
}

// Record marks key as sent for ttl. A zero ttl never expires.
func (d *Deduplicator) Record(ctx context.Context, key string, ttl time.Duration) {
	if err := d.rdb.Set(ctx, keyPrefix+key, "1", ttl).Err(); err != nil {
		d.logger.Warn("dedup record failed", "key", key, "error", err)
	}
}

// Clear removes a dedup key so the alert can fire again.
func (d *Deduplicator) Clear(ctx context.Context, key string) {
	d.rdb.Del(ctx, keyPrefix+key) //nolint:errcheck
}

// ClearByPattern removes every key matching the glob pattern.
func (d *Deduplicator) ClearByPattern(ctx context.Context, pattern string) {
	iter := d.rdb.Scan(ctx, 0, keyPrefix+pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		d.logger.Warn("dedup scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) > 0 {
		d.rdb.Del(ctx, keys...) //nolint:errcheck
	}
}
