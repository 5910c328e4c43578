package billing

import (
	"context"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlanCache caches pricing plans between the repository and fee
// computation. Get returns (nil, nil) on a miss.
type PlanCache interface {
	Get(ctx context.Context, planID uuid.UUID) (*billing.Plan, error)
	Set(ctx context.Context, plan *billing.Plan, ttl time.Duration) error
	Delete(ctx context.Context, planID uuid.UUID) error
	Clear(ctx context.Context) error
}

// PlanService manages pricing plans and serves cached plan lookups to
// the billing orchestrator.
type PlanService struct {
	plans    billing.PlanRepository
	cache    PlanCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewPlanService creates a new PlanService. cache may be nil when no
// caching layer is configured.
func NewPlanService(plans billing.PlanRepository, cache PlanCache, cacheTTL time.Duration, logger *zap.Logger) *PlanService {
	return &PlanService{
		plans:    plans,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// List returns plans with the total count, optionally active ones only
func (s *PlanService) List(ctx context.Context, activeOnly bool, filter shared.Filter) ([]billing.Plan, int64, error) {
	return s.plans.FindAll(ctx, activeOnly, filter)
}

// Get returns a single plan by ID
func (s *PlanService) Get(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	return s.plans.FindByID(ctx, id)
}

// Resolve returns the plan through the cache, falling back to the
// repository on a miss. Cache failures degrade to repository reads.
func (s *PlanService) Resolve(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	if s.cache != nil {
		plan, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("Plan cache read failed, falling back to repository",
				zap.String("plan_id", id.String()),
				zap.Error(err))
		} else if plan != nil {
			return plan, nil
		}
	}

	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, plan, s.cacheTTL); err != nil {
			s.logger.Warn("Plan cache write failed",
				zap.String("plan_id", id.String()),
				zap.Error(err))
		}
	}
	return plan, nil
}

// Create validates and persists a new plan
func (s *PlanService) Create(ctx context.Context, params billing.PlanParams) (*billing.Plan, error) {
	plan, err := billing.NewPlan(params)
	if err != nil {
		return nil, err
	}
	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("Billing plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("code", plan.Code))
	return plan, nil
}

// Update applies new parameters to an existing plan and evicts it from
// the cache so in-flight billing picks up the change after the TTL at
// worst.
func (s *PlanService) Update(ctx context.Context, id uuid.UUID, params billing.PlanParams) (*billing.Plan, error) {
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := plan.ApplyParams(params); err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, err
	}
	s.evict(ctx, id)

	s.logger.Info("Billing plan updated",
		zap.String("plan_id", plan.ID.String()),
		zap.String("code", plan.Code))
	return plan, nil
}

// Delete removes a plan. The repository refuses while any subscription
// still references it.
func (s *PlanService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.plans.Delete(ctx, id); err != nil {
		return err
	}
	s.evict(ctx, id)

	s.logger.Info("Billing plan deleted", zap.String("plan_id", id.String()))
	return nil
}

func (s *PlanService) evict(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("Plan cache eviction failed",
			zap.String("plan_id", id.String()),
			zap.Error(err))
	}
}
