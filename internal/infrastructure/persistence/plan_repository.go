package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPlanRepository implements billing.PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByID finds a plan by its ID
func (r *GormPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a plan by its unique code
func (r *GormPlanRepository) FindByCode(ctx context.Context, code string) (*billing.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists plans ordered by sort then name, optionally active only
func (r *GormPlanRepository) FindAll(ctx context.Context, activeOnly bool, filter shared.Filter) ([]billing.Plan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PlanModel{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "sort ASC, name ASC"
	if filter.OrderBy != "" {
		dir := "ASC"
		if strings.EqualFold(filter.OrderDir, "desc") {
			dir = "DESC"
		}
		order = filter.OrderBy + " " + dir
	}

	var planModels []models.PlanModel
	if err := query.Order(order).Offset(filter.Offset()).Limit(filter.Limit()).Find(&planModels).Error; err != nil {
		return nil, 0, err
	}

	plans := make([]billing.Plan, len(planModels))
	for i, model := range planModels {
		plans[i] = *model.ToDomain()
	}
	return plans, total, nil
}

// Save creates a plan
func (r *GormPlanRepository) Save(ctx context.Context, plan *billing.Plan) error {
	model := models.PlanModelFromDomain(plan)
	err := r.db.WithContext(ctx).Create(model).Error
	if err != nil && isUniqueViolation(err) {
		return shared.ErrAlreadyExists
	}
	return err
}

// Update persists changes to an existing plan
func (r *GormPlanRepository) Update(ctx context.Context, plan *billing.Plan) error {
	model := models.PlanModelFromDomain(plan)
	result := r.db.WithContext(ctx).Model(model).
		Where("id = ?", plan.ID).
		Select("*").Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a plan. Refused while any subscription still references it.
func (r *GormPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	count, err := r.CountSubscriptions(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrPlanInUse
	}

	result := r.db.WithContext(ctx).Delete(&models.PlanModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountSubscriptions counts subscriptions referencing the plan
func (r *GormPlanRepository) CountSubscriptions(ctx context.Context, planID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SubscriptionModel{}).
		Where("billing_plan_id = ?", planID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// isUniqueViolation reports whether the error is a unique constraint breach,
// matched textually so both postgres and the sqlite test driver are covered
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// Ensure GormPlanRepository implements PlanRepository
var _ billing.PlanRepository = (*GormPlanRepository)(nil)
