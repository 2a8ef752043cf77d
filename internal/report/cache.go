package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Cache stores joined report tables.
type Cache interface {
	Get(ctx context.Context, key string) (*Table, bool, error)
	Set(ctx context.Context, key string, t *Table) error
}

const cacheKeyPrefix = "ga4mirror:report:"

// CacheKey derives a stable key from the request. Relative dates such as
// "today" resolve differently each day, so the current day is mixed in for them.
func CacheKey(req Request, now time.Time) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(payload)
	if relativeDate.MatchString(req.StartDate) || relativeDate.MatchString(req.EndDate) {
		h.Write([]byte(now.UTC().Format(time.DateOnly)))
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// RedisCache keeps tables as JSON with a fixed TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Table, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	t := new(Table)
	if err := json.Unmarshal(data, t); err != nil {
		return nil, false, fmt.Errorf("decode cached table: %w", err)
	}
	return t, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, t *Table) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close releases the underlying client when it owns one.
func (c *RedisCache) Close() error {
	if closer, ok := c.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Table, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, *Table) error        { return nil }
