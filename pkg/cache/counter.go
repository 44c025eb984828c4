package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowCounter counts hits per key inside a fixed window shared by every API instance.
type WindowCounter struct {
	client *redis.Client
	prefix string
}

// NewWindowCounter constructs a counter storing keys under prefix.
func NewWindowCounter(client *redis.Client, prefix string) *WindowCounter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &WindowCounter{client: client, prefix: prefix}
}

// Hit increments the counter for key and returns the count inside the current window
// together with the time left before the window resets.
func (c *WindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if c == nil || c.client == nil {
		return 0, 0, nil
	}
	fullKey := c.prefix + ":" + key
	count, err := c.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr %s: %w", fullKey, err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return count, window, fmt.Errorf("redis expire %s: %w", fullKey, err)
		}
		return count, window, nil
	}
	ttl, err := c.client.TTL(ctx, fullKey).Result()
	if err != nil {
		return count, window, fmt.Errorf("redis ttl %s: %w", fullKey, err)
	}
	if ttl < 0 {
		// key lost its expiry (e.g. expire failed earlier); restore it
		_ = c.client.Expire(ctx, fullKey, window).Err()
		ttl = window
	}
	return count, ttl, nil
}
