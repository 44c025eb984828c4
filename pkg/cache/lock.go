package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived mutual exclusion keys in Redis.
type Locker struct {
	client *redis.Client
	token  func() string
}

// NewLocker constructs a Redis backed locker.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client, token: uuid.NewString}
}

// Acquire tries to take key for ttl. When the key is held elsewhere ok is false.
// The returned release func only deletes the key while this holder still owns it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	if l == nil || l.client == nil {
		return func(context.Context) error { return nil }, true, nil
	}
	token := l.token()
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("redis release %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
