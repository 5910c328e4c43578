package billing

import (
	"context"
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanRepository provides access to pricing plans. Plans are shared
// read-only references across tenants and are not tenant-scoped.
type PlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	FindByCode(ctx context.Context, code string) (*Plan, error)
	FindAll(ctx context.Context, activeOnly bool, filter shared.Filter) ([]Plan, int64, error)
	Save(ctx context.Context, plan *Plan) error
	Update(ctx context.Context, plan *Plan) error
	// Delete removes a plan. Implementations must refuse while any
	// subscription still references the plan.
	Delete(ctx context.Context, id uuid.UUID) error
	CountSubscriptions(ctx context.Context, planID uuid.UUID) (int64, error)
}

// SubscriptionRepository provides access to tenant subscriptions
type SubscriptionRepository interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	// FindActiveByTenantForUpdate locks the subscription row for the
	// duration of the owning transaction, serializing cursor advancement
	// per tenant.
	FindActiveByTenantForUpdate(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	// FindDueTenants returns the tenant IDs of billing-enabled tenants
	// whose active subscription is due on or before asOf.
	FindDueTenants(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	// SuspendByTenant suspends the tenant's active subscription; a
	// tenant with no active subscription is a no-op.
	SuspendByTenant(ctx context.Context, tenantID uuid.UUID) error
	CountActive(ctx context.Context) (int64, error)
	CountByPlan(ctx context.Context) ([]PlanSubscriptionCount, error)
}

// BillFilter narrows bill listings
type BillFilter struct {
	TenantID  *uuid.UUID
	Status    *BillStatus
	StartDate *time.Time // billing_date >= StartDate
	EndDate   *time.Time // billing_date <= EndDate
}

// BillRepository provides access to bills. Bills are never deleted.
type BillRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	FindByNumber(ctx context.Context, number string) (*Bill, error)
	// FindByIDForUpdate locks the bill row for the owning transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Bill, error)
	Save(ctx context.Context, bill *Bill) error
	Update(ctx context.Context, bill *Bill) error
	List(ctx context.Context, filter BillFilter, page shared.Filter) ([]Bill, int64, error)
	// FindOverduePending returns up to limit pending bills whose due date
	// has passed. Processed bills leave the predicate, so repeated calls
	// walk the whole backlog in bounded batches.
	FindOverduePending(ctx context.Context, asOf time.Time, limit int) ([]Bill, error)
	Statistics(ctx context.Context, startDate, endDate *time.Time) (*Statistics, error)
	MonthlyTrend(ctx context.Context, startDate, endDate *time.Time) ([]MonthlyTrendPoint, error)
}

// LogFilter narrows billing log listings
type LogFilter struct {
	TenantID  *uuid.UUID
	BillID    *uuid.UUID
	Type      *LogType
	StartDate *time.Time
	EndDate   *time.Time
}

// LogRepository is the append-only billing ledger. Entries are immutable
// once written; there is no update or delete.
type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
	List(ctx context.Context, filter LogFilter, page shared.Filter) ([]LogEntry, int64, error)
}

// UsageSource supplies the raw consumption figures the usage aggregator
// snapshots. Point-in-time counts ignore the interval; ranged sums cover
// the half-open interval [from, to).
type UsageSource interface {
	CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountNodes(ctx context.Context, tenantID uuid.UUID) (int64, error)
	SumTraffic(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int64, error)
	CountOrders(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int64, error)
	SumPaidRevenue(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

// StatusCount is a per-status bill tally
type StatusCount struct {
	Status BillStatus      `json:"status"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PlanSubscriptionCount is a per-plan subscription tally
type PlanSubscriptionCount struct {
	PlanID   uuid.UUID `json:"plan_id"`
	PlanName string    `json:"plan_name"`
	Count    int64     `json:"count"`
}

// MonthlyTrendPoint is one calendar month of billing volume
type MonthlyTrendPoint struct {
	Month  string          `json:"month"` // YYYY-MM
	Bills  int64           `json:"bills"`
	Amount decimal.Decimal `json:"amount"`
}

// Statistics aggregates billing volume over an optional date range
type Statistics struct {
	TotalBills    int64           `json:"total_bills"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
	ByStatus      []StatusCount   `json:"bills_by_status"`
}
