package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKey is the redis key guarding the ledger document.
const DefaultLockKey = "lock:netbill:ledger"

// RedisLocker serializes ledger writers running in different processes.
type RedisLocker struct {
	client *redislock.Client
	key    string
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker builds a locker on top of an existing redis client.
// The lock expires after ttl if the holder dies without releasing it.
func NewRedisLocker(rdb *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = DefaultLockKey
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		key:    key,
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), int(ttl/(200*time.Millisecond))+1),
	}
}

// Acquire blocks until the lock is obtained, the retry budget runs out, or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, l.key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, l.key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", l.key, err)
	}
	return lock.Release, nil
}
