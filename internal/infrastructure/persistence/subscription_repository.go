package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSubscriptionRepository implements billing.SubscriptionRepository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// FindByTenant finds a tenant's subscription regardless of status
func (r *GormSubscriptionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByTenant finds a tenant's active subscription
func (r *GormSubscriptionRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, billing.SubscriptionActive).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByTenantForUpdate locks the active subscription row for the
// duration of the owning transaction, serializing billing cursor advancement
func (r *GormSubscriptionRepository) FindActiveByTenantForUpdate(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND status = ?", tenantID, billing.SubscriptionActive).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a subscription
func (r *GormSubscriptionRepository) Save(ctx context.Context, sub *billing.Subscription) error {
	model := models.SubscriptionModelFromDomain(sub)
	return r.db.WithContext(ctx).Save(model).Error
}

// Update persists changes to an existing subscription
func (r *GormSubscriptionRepository) Update(ctx context.Context, sub *billing.Subscription) error {
	model := models.SubscriptionModelFromDomain(sub)
	result := r.db.WithContext(ctx).Model(model).
		Where("id = ?", sub.ID).
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

// FindDueTenants returns the tenant IDs of billing-enabled active tenants
// whose active subscription is due on or before asOf
func (r *GormSubscriptionRepository) FindDueTenants(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.SubscriptionModel{}).
		Joins("JOIN tenants ON tenants.id = billing_subscriptions.tenant_id").
		Where("billing_subscriptions.status = ?", billing.SubscriptionActive).
		Where("billing_subscriptions.next_billing_date <= ?", asOf).
		Where("tenants.billing_enabled = ? AND tenants.status = ?", true, true).
		Pluck("billing_subscriptions.tenant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SuspendByTenant marks a tenant's active subscription suspended.
// A tenant with no active subscription left is a no-op so repeated
// overdue sweeps stay idempotent.
func (r *GormSubscriptionRepository) SuspendByTenant(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SubscriptionModel{}).
		Where("tenant_id = ? AND status = ?", tenantID, billing.SubscriptionActive).
		Updates(map[string]interface{}{
			"status":     billing.SubscriptionSuspended,
			"updated_at": time.Now(),
		}).Error
}

// CountActive counts active subscriptions across all tenants
func (r *GormSubscriptionRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SubscriptionModel{}).
		Where("status = ?", billing.SubscriptionActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByPlan tallies active subscriptions per plan
func (r *GormSubscriptionRepository) CountByPlan(ctx context.Context) ([]billing.PlanSubscriptionCount, error) {
	var counts []billing.PlanSubscriptionCount
	err := r.db.WithContext(ctx).
		Model(&models.SubscriptionModel{}).
		Select("billing_subscriptions.billing_plan_id AS plan_id, billing_plans.name AS plan_name, COUNT(*) AS count").
		Joins("JOIN billing_plans ON billing_plans.id = billing_subscriptions.billing_plan_id").
		Where("billing_subscriptions.status = ?", billing.SubscriptionActive).
		Group("billing_subscriptions.billing_plan_id, billing_plans.name").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Ensure GormSubscriptionRepository implements SubscriptionRepository
var _ billing.SubscriptionRepository = (*GormSubscriptionRepository)(nil)
