package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "dedup:"

// RedisCache shares dedup state between replicas. Capacity is bounded by the
// Redis memory policy rather than by this type.
type RedisCache struct {
	client redis.UniversalClient
	window time.Duration
}

func NewRedisCache(client redis.UniversalClient, window time.Duration) *RedisCache {
	return &RedisCache{client: client, window: window}
}

func (c *RedisCache) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, redisKeyPrefix+key, 1, c.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Close is a no-op; the client is owned by the caller.
func (c *RedisCache) Close() error {
	return nil
}
