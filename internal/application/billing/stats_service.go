package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/identity"
	"github.com/reseller/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BillingStatistics aggregates billing volume with subscription and
// tenant counts for the admin dashboard
type BillingStatistics struct {
	billing.Statistics
	ActiveSubscriptions int64                           `json:"active_subscriptions"`
	TotalTenantsBilled  int64                           `json:"total_tenants_billed"`
	SubscriptionsByPlan []billing.PlanSubscriptionCount `json:"subscriptions_by_plan"`
	MonthlyTrend        []billing.MonthlyTrendPoint     `json:"monthly_trend"`
}

// StatsService serves read-only billing reports
type StatsService struct {
	bills         billing.BillRepository
	subscriptions billing.SubscriptionRepository
	tenants       identity.TenantRepository
	logs          billing.LogRepository
	logger        *zap.Logger
}

// NewStatsService creates a new StatsService
func NewStatsService(
	bills billing.BillRepository,
	subscriptions billing.SubscriptionRepository,
	tenants identity.TenantRepository,
	logs billing.LogRepository,
	logger *zap.Logger,
) *StatsService {
	return &StatsService{
		bills:         bills,
		subscriptions: subscriptions,
		tenants:       tenants,
		logs:          logs,
		logger:        logger,
	}
}

// Statistics returns billing totals, per-status and per-plan breakdowns
// and the monthly trend over an optional date range
func (s *StatsService) Statistics(ctx context.Context, startDate, endDate *time.Time) (*BillingStatistics, error) {
	base, err := s.bills.Statistics(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	activeSubscriptions, err := s.subscriptions.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	billedTenants, err := s.tenants.CountBillingEnabled(ctx)
	if err != nil {
		return nil, err
	}

	byPlan, err := s.subscriptions.CountByPlan(ctx)
	if err != nil {
		return nil, err
	}

	trend, err := s.bills.MonthlyTrend(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	return &BillingStatistics{
		Statistics:          *base,
		ActiveSubscriptions: activeSubscriptions,
		TotalTenantsBilled:  billedTenants,
		SubscriptionsByPlan: byPlan,
		MonthlyTrend:        trend,
	}, nil
}

// ListLogs returns ledger entries matching the filter, newest first
func (s *StatsService) ListLogs(ctx context.Context, filter billing.LogFilter, page shared.Filter) ([]billing.LogEntry, int64, error) {
	return s.logs.List(ctx, filter, page)
}

// TenantAccount returns the tenant's billing account state
func (s *StatsService) TenantAccount(ctx context.Context, tenantID uuid.UUID) (*identity.Tenant, error) {
	return s.tenants.FindByID(ctx, tenantID)
}
