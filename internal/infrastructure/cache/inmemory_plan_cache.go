package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// InMemoryPlanCache implements PlanCache using in-memory storage.
// Suitable for single-instance deployments and as an L1 in front of Redis.
type InMemoryPlanCache struct {
	plans   sync.Map // map[string]*planEntry
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	// Stats for monitoring
	hits   int64
	misses int64
}

type planEntry struct {
	plan      *billing.Plan
	expiresAt time.Time
}

func (e *planEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryPlanCacheOption is a functional option for configuring the cache
type InMemoryPlanCacheOption func(*InMemoryPlanCache)

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemoryPlanCacheOption {
	return func(c *InMemoryPlanCache) {
		c.logger = logger
	}
}

// NewInMemoryPlanCache creates a new in-memory plan cache
func NewInMemoryPlanCache(opts ...InMemoryPlanCacheOption) *InMemoryPlanCache {
	cache := &InMemoryPlanCache{
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get returns the cached plan, or (nil, nil) on a miss
func (c *InMemoryPlanCache) Get(_ context.Context, planID uuid.UUID) (*billing.Plan, error) {
	value, ok := c.plans.Load(planCacheKey(planID))
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}

	entry := value.(*planEntry)
	if entry.isExpired() {
		c.plans.Delete(planCacheKey(planID))
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}

	atomic.AddInt64(&c.hits, 1)
	copied := *entry.plan
	return &copied, nil
}

// Set stores a plan with the given TTL. A nil plan is a no-op.
func (c *InMemoryPlanCache) Set(_ context.Context, plan *billing.Plan, ttl time.Duration) error {
	if plan == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}

	copied := *plan
	c.plans.Store(planCacheKey(plan.ID), &planEntry{
		plan:      &copied,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Delete evicts a single plan
func (c *InMemoryPlanCache) Delete(_ context.Context, planID uuid.UUID) error {
	c.plans.Delete(planCacheKey(planID))
	return nil
}

// Clear evicts every cached plan
func (c *InMemoryPlanCache) Clear(_ context.Context) error {
	c.plans.Range(func(key, _ any) bool {
		c.plans.Delete(key)
		return true
	})
	return nil
}

// Stats returns hit/miss counters for monitoring
func (c *InMemoryPlanCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Stop terminates the background cleanup goroutine
func (c *InMemoryPlanCache) Stop() {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
}

func (c *InMemoryPlanCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			removed := 0
			c.plans.Range(func(key, value any) bool {
				if value.(*planEntry).isExpired() {
					c.plans.Delete(key)
					removed++
				}
				return true
			})
			if removed > 0 {
				c.logger.Debug("Cleaned up expired plan cache entries",
					zap.Int("removed", removed))
			}
		}
	}
}

// Ensure InMemoryPlanCache implements PlanCache
var _ PlanCache = (*InMemoryPlanCache)(nil)
