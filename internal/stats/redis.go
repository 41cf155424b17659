package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

const keyPrefix = "promptguard:stats:"

// RedisCounter keeps each day in a hash at promptguard:stats:YYYY-MM-DD
// with fields total, safe, warning, danger and blocked.
type RedisCounter struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisCounter wraps an existing client. Keys expire after retention
// when it is positive.
func NewRedisCounter(client *redis.Client, retention time.Duration) *RedisCounter {
	return &RedisCounter{client: client, retention: retention}
}

// OpenRedisCounter connects using a redis:// URL and verifies the server.
func OpenRedisCounter(ctx context.Context, url string, retention time.Duration) (*RedisCounter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	slog.Info("statistics cache connected", "address", opts.Addr, "db", opts.DB)
	return NewRedisCounter(client, retention), nil
}

func key(day time.Time) string {
	return keyPrefix + DayKey(day)
}

func (c *RedisCounter) Add(ctx context.Context, day time.Time, level sentinel.Level, n int64) error {
	k := key(day)
	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, k, "total", n)
	pipe.HIncrBy(ctx, k, levelField(level), n)
	if c.retention > 0 {
		pipe.Expire(ctx, k, c.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing %s: %w", k, err)
	}
	return nil
}

func (c *RedisCounter) Daily(ctx context.Context, day time.Time) (Daily, error) {
	k := key(day)
	fields, err := c.client.HGetAll(ctx, k).Result()
	if err != nil {
		return Daily{}, fmt.Errorf("reading %s: %w", k, err)
	}
	d := Daily{Date: DayKey(day)}
	for field, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Daily{}, fmt.Errorf("field %s of %s: %w", field, k, err)
		}
		d.add(field, n)
	}
	return d, nil
}

func (c *RedisCounter) Backend() string { return "redis" }

// Ping checks the connection.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
