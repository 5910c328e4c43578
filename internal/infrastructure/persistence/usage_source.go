package persistence

import (
	"context"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormUsageSource implements billing.UsageSource against the platform's
// metering tables. Counts are point-in-time; sums cover the half-open
// window [from, to).
type GormUsageSource struct {
	db *gorm.DB
}

// NewGormUsageSource creates a new GormUsageSource
func NewGormUsageSource(db *gorm.DB) *GormUsageSource {
	return &GormUsageSource{db: db}
}

// CountUsers counts the tenant's non-banned end users
func (s *GormUsageSource) CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.MeteredUserModel{}).
		Where("tenant_id = ? AND banned = ?", tenantID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountNodes counts the tenant's server nodes
func (s *GormUsageSource) CountNodes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.MeteredNodeModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumTraffic sums upload plus download bytes over [from, to)
func (s *GormUsageSource) SumTraffic(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.TrafficStatModel{}).
		Select("COALESCE(SUM(upload + download), 0)").
		Where("tenant_id = ? AND record_at >= ? AND record_at < ?", tenantID, from, to).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// CountOrders counts the tenant's orders created in [from, to)
func (s *GormUsageSource) CountOrders(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.MeteredOrderModel{}).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, from, to).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumPaidRevenue sums the tenant's paid order amounts over [from, to)
func (s *GormUsageSource) SumPaidRevenue(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := s.db.WithContext(ctx).
		Model(&models.MeteredOrderModel{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("tenant_id = ? AND status = ? AND paid_at >= ? AND paid_at < ?",
			tenantID, models.OrderStatusPaid, from, to).
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// Ensure GormUsageSource implements UsageSource
var _ billing.UsageSource = (*GormUsageSource)(nil)
