package cache

import (
	"context"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/google/uuid"
)

// Constants for plan cache configuration
const (
	defaultPlanTTL   = 10 * time.Minute
	planKeyPrefix    = "billing:plan:"
	planAllCacheKeys = "billing:plan:*"
)

// PlanCache caches pricing plans between the repository and the fee
// computation path. Get returns (nil, nil) on a miss so callers fall
// through to the repository without treating the miss as a failure.
type PlanCache interface {
	Get(ctx context.Context, planID uuid.UUID) (*billing.Plan, error)
	Set(ctx context.Context, plan *billing.Plan, ttl time.Duration) error
	Delete(ctx context.Context, planID uuid.UUID) error
	Clear(ctx context.Context) error
}

func planCacheKey(planID uuid.UUID) string {
	return planKeyPrefix + planID.String()
}
