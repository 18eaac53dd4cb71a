package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "token_insight"

// Redis stores entries under "<prefix>:<key>".
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(redisURL, password, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisFromClient(client, prefix), nil
}

func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Client returns the underlying client so other components can share it.
func (c *Redis) Client() *redis.Client { return c.client }

func (c *Redis) Close() error { return c.client.Close() }

func (c *Redis) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Redis) wrapKey(key string) string { return c.prefix + ":" + key }

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value for ttl. A non-positive ttl never expires.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, c.wrapKey(key), value, ttl).Err()
}

func (c *Redis) LastScore(ctx context.Context, symbol string) (float64, bool, error) {
	v, err := c.client.Get(ctx, c.wrapKey(lastScorePrefix+symbol)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (c *Redis) SaveScore(ctx context.Context, symbol string, score float64) error {
	return c.client.Set(ctx, c.wrapKey(lastScorePrefix+symbol), strconv.FormatFloat(score, 'g', -1, 64), 0).Err()
}
