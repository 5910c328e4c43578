package persistence

import (
	"context"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBillingLogRepository implements billing.LogRepository using GORM.
// The table is append-only; no update or delete path exists.
type GormBillingLogRepository struct {
	db *gorm.DB
}

// NewGormBillingLogRepository creates a new GormBillingLogRepository
func NewGormBillingLogRepository(db *gorm.DB) *GormBillingLogRepository {
	return &GormBillingLogRepository{db: db}
}

// Append writes a ledger entry
func (r *GormBillingLogRepository) Append(ctx context.Context, entry *billing.LogEntry) error {
	model := models.BillingLogModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// List returns ledger entries matching the filter, newest first
func (r *GormBillingLogRepository) List(ctx context.Context, filter billing.LogFilter, page shared.Filter) ([]billing.LogEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BillingLogModel{})

	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.BillID != nil {
		query = query.Where("bill_id = ?", *filter.BillID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logModels []models.BillingLogModel
	if err := query.
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&logModels).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]billing.LogEntry, len(logModels))
	for i, model := range logModels {
		entries[i] = *model.ToDomain()
	}
	return entries, total, nil
}

// Ensure GormBillingLogRepository implements LogRepository
var _ billing.LogRepository = (*GormBillingLogRepository)(nil)
