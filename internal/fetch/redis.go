package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "eventsync:page:"

// RedisCache shares fetched pages between runs and processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration

	mu      sync.Mutex
	lastErr error
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// CacheKey hashes a URL into a redis key.
func CacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached body. Redis errors are treated as misses and
// recorded in LastError.
func (c *RedisCache) Get(ctx context.Context, rawURL string) ([]byte, bool) {
	body, err := c.client.Get(ctx, CacheKey(rawURL)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.setErr(err)
		}
		return nil, false
	}
	return body, true
}

// LastError returns the most recent non-miss redis error, if any.
func (c *RedisCache) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *RedisCache) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Set stores the body with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, rawURL string, body []byte) {
	if err := c.client.Set(ctx, CacheKey(rawURL), body, c.ttl).Err(); err != nil {
		c.setErr(err)
	}
}

// Close closes the redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
