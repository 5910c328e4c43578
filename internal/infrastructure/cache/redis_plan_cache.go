package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPlanCache implements PlanCache using Redis. Suitable for
// distributed deployments where multiple instances price against the
// same plan set.
type RedisPlanCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPlanCache creates a plan cache backed by an existing Redis client
func NewRedisPlanCache(client *redis.Client, logger *zap.Logger) *RedisPlanCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPlanCache{
		client: client,
		logger: logger,
	}
}

// Get returns the cached plan, or (nil, nil) on a miss
func (c *RedisPlanCache) Get(ctx context.Context, planID uuid.UUID) (*billing.Plan, error) {
	data, err := c.client.Get(ctx, planCacheKey(planID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan from cache: %w", err)
	}

	var plan billing.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		// A corrupt entry is dropped so the caller falls through to the
		// repository instead of failing the billing run.
		c.logger.Warn("Dropping undecodable plan cache entry",
			zap.String("plan_id", planID.String()),
			zap.Error(err))
		_ = c.client.Del(ctx, planCacheKey(planID)).Err()
		return nil, nil
	}

	return &plan, nil
}

// Set stores a plan with the given TTL. A nil plan is a no-op.
func (c *RedisPlanCache) Set(ctx context.Context, plan *billing.Plan, ttl time.Duration) error {
	if plan == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan for cache: %w", err)
	}

	if err := c.client.Set(ctx, planCacheKey(plan.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set plan in cache: %w", err)
	}
	return nil
}

// Delete evicts a single plan
func (c *RedisPlanCache) Delete(ctx context.Context, planID uuid.UUID) error {
	if err := c.client.Del(ctx, planCacheKey(planID)).Err(); err != nil {
		return fmt.Errorf("failed to delete plan from cache: %w", err)
	}
	return nil
}

// Clear evicts every cached plan
func (c *RedisPlanCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, planAllCacheKeys, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear plan cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan plan cache keys: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client
func (c *RedisPlanCache) Close() error {
	return c.client.Close()
}

// Ensure RedisPlanCache implements PlanCache
var _ PlanCache = (*RedisPlanCache)(nil)
