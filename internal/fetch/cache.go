package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is an optional Redis-backed page-content cache. It only short-cuts
// repeat fetches of the same URL; every operation is best-effort and a cache
// failure never fails the fetch.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache connects to Redis and verifies the connection. Callers that run
// without Redis simply pass a nil *Cache around.
func NewCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{
		rdb:    rdb,
		ttl:    ttl,
		logger: slog.Default().With("component", "page_cache"),
	}, nil
}

func (c *Cache) Get(ctx context.Context, url string) (string, bool) {
	if c == nil {
		return "", false
	}
	html, err := c.rdb.Get(ctx, c.key(url)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", "url", url, "error", err)
		}
		return "", false
	}
	return html, true
}

func (c *Cache) Set(ctx context.Context, url, html string) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(url), html, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "url", url, "error", err)
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Cache) key(url string) string {
	return "page:" + url
}
