package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBillRepository implements billing.BillRepository using GORM.
// Bills are financial records: there is no delete.
type GormBillRepository struct {
	db *gorm.DB
}

// NewGormBillRepository creates a new GormBillRepository
func NewGormBillRepository(db *gorm.DB) *GormBillRepository {
	return &GormBillRepository{db: db}
}

// FindByID finds a bill by its ID
func (r *GormBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	var model models.BillModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a bill by its globally unique bill number
func (r *GormBillRepository) FindByNumber(ctx context.Context, number string) (*billing.Bill, error) {
	var model models.BillModel
	if err := r.db.WithContext(ctx).First(&model, "bill_number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate locks the bill row for the owning transaction
func (r *GormBillRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	var model models.BillModel
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

// Save creates a bill
func (r *GormBillRepository) Save(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing bill
func (r *GormBillRepository) Update(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	result := r.db.WithContext(ctx).Model(model).
		Where("id = ?", bill.ID).
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

// List returns bills matching the filter, newest billing date first
func (r *GormBillRepository) List(ctx context.Context, filter billing.BillFilter, page shared.Filter) ([]billing.Bill, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.BillModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "billing_date DESC, created_at DESC"
	if page.OrderBy != "" {
		dir := "ASC"
		if strings.EqualFold(page.OrderDir, "desc") {
			dir = "DESC"
		}
		order = page.OrderBy + " " + dir
	}

	var billModels []models.BillModel
	if err := query.Order(order).Offset(page.Offset()).Limit(page.Limit()).Find(&billModels).Error; err != nil {
		return nil, 0, err
	}

	bills := make([]billing.Bill, len(billModels))
	for i, model := range billModels {
		bills[i] = *model.ToDomain()
	}
	return bills, total, nil
}

// FindOverduePending returns up to limit pending bills past their due date,
// oldest due date first. Processed bills leave the predicate, so repeated
// calls walk the whole backlog in bounded batches.
func (r *GormBillRepository) FindOverduePending(ctx context.Context, asOf time.Time, limit int) ([]billing.Bill, error) {
	var billModels []models.BillModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", billing.BillPending, asOf).
		Order("due_date ASC").
		Limit(limit).
		Find(&billModels).Error; err != nil {
		return nil, err
	}

	bills := make([]billing.Bill, len(billModels))
	for i, model := range billModels {
		bills[i] = *model.ToDomain()
	}
	return bills, nil
}

// statisticsRow is the raw GROUP BY projection for Statistics
type statisticsRow struct {
	Status billing.BillStatus
	Count  int64
	Amount decimal.Decimal
}

// Statistics aggregates billing volume over an optional billing-date range
func (r *GormBillRepository) Statistics(ctx context.Context, startDate, endDate *time.Time) (*billing.Statistics, error) {
	query := r.db.WithContext(ctx).Model(&models.BillModel{})
	if startDate != nil {
		query = query.Where("billing_date >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("billing_date <= ?", *endDate)
	}

	var rows []statisticsRow
	if err := query.
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &billing.Statistics{
		TotalAmount:   decimal.Zero,
		PaidAmount:    decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
	}
	for _, row := range rows {
		stats.TotalBills += row.Count
		stats.TotalAmount = stats.TotalAmount.Add(row.Amount)
		switch row.Status {
		case billing.BillPaid:
			stats.PaidAmount = row.Amount
		case billing.BillPending:
			stats.PendingAmount = row.Amount
		case billing.BillOverdue:
			stats.OverdueAmount = row.Amount
		}
		stats.ByStatus = append(stats.ByStatus, billing.StatusCount{
			Status: row.Status,
			Count:  row.Count,
			Amount: row.Amount,
		})
	}
	return stats, nil
}

// MonthlyTrend returns per-calendar-month bill counts and amounts over an
// optional billing-date range, oldest month first
func (r *GormBillRepository) MonthlyTrend(ctx context.Context, startDate, endDate *time.Time) ([]billing.MonthlyTrendPoint, error) {
	query := r.db.WithContext(ctx).Model(&models.BillModel{})
	if startDate != nil {
		query = query.Where("billing_date >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("billing_date <= ?", *endDate)
	}

	monthExpr := "to_char(billing_date, 'YYYY-MM')"
	if r.db.Dialector.Name() == "sqlite" {
		monthExpr = "strftime('%Y-%m', billing_date)"
	}

	var points []billing.MonthlyTrendPoint
	if err := query.
		Select(monthExpr + " AS month, COUNT(*) AS bills, COALESCE(SUM(total_amount), 0) AS amount").
		Group(monthExpr).
		Order("month ASC").
		Scan(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

// applyFilter narrows the query to the bill filter
func (r *GormBillRepository) applyFilter(query *gorm.DB, filter billing.BillFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StartDate != nil {
		query = query.Where("billing_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("billing_date <= ?", *filter.EndDate)
	}
	return query
}

// Ensure GormBillRepository implements BillRepository
var _ billing.BillRepository = (*GormBillRepository)(nil)
