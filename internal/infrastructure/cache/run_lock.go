package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLock serializes scheduled billing runs across instances. Acquire
// returns false when another holder already owns the named run.
type RunLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// RedisRunLock implements RunLock with SETNX so acquisition is atomic
// across instances sharing the same Redis.
type RedisRunLock struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRunLock creates a run lock backed by an existing Redis client
func NewRedisRunLock(client *redis.Client, keyPrefix string) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = "billing:run:"
	}
	return &RedisRunLock{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire takes the named lock for at most ttl. The TTL bounds how long
// a crashed holder can block the next run.
func (l *RedisRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.keyPrefix+name, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}
	return ok, nil
}

// Release frees the named lock
func (l *RedisRunLock) Release(ctx context.Context, name string) error {
	if err := l.client.Del(ctx, l.keyPrefix+name).Err(); err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", name, err)
	}
	return nil
}

// NoopRunLock always acquires. Used when Redis is not configured and a
// single instance owns the schedule.
type NoopRunLock struct{}

// Acquire always succeeds
func (NoopRunLock) Acquire(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

// Release is a no-op
func (NoopRunLock) Release(context.Context, string) error {
	return nil
}

// Ensure implementations satisfy RunLock
var (
	_ RunLock = (*RedisRunLock)(nil)
	_ RunLock = NoopRunLock{}
)
