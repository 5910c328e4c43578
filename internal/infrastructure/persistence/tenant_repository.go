package persistence

import (
	"context"
	"errors"

	"github.com/reseller/backend/internal/domain/identity"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTenantRepository implements identity.TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a tenant by ID with a row lock, serializing
// balance mutations within the owning transaction
func (r *GormTenantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDomain finds a tenant by its custom domain
func (r *GormTenantRepository) FindByDomain(ctx context.Context, domain string) (*identity.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).First(&model, "domain = ?", domain).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a tenant
func (r *GormTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	model := models.TenantModelFromDomain(tenant)
	return r.db.WithContext(ctx).Save(model).Error
}

// Update persists changes to an existing tenant. All columns are written so
// zero values like a disabled status survive the round trip.
func (r *GormTenantRepository) Update(ctx context.Context, tenant *identity.Tenant) error {
	model := models.TenantModelFromDomain(tenant)
	result := r.db.WithContext(ctx).Model(model).
		Where("id = ?", tenant.ID).
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

// CountBillingEnabled counts active tenants with billing enabled
func (r *GormTenantRepository) CountBillingEnabled(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.TenantModel{}).
		Where("billing_enabled = ? AND status = ?", true, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormTenantRepository implements TenantRepository
var _ identity.TenantRepository = (*GormTenantRepository)(nil)
