package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageService aggregates a tenant's consumption into a snapshot the fee
// computation runs on. User and node counts are point-in-time; traffic,
// orders and revenue are summed over the half-open window [start, end).
type UsageService struct {
	source billing.UsageSource
	logger *zap.Logger
}

// NewUsageService creates a new UsageService
func NewUsageService(source billing.UsageSource, logger *zap.Logger) *UsageService {
	return &UsageService{
		source: source,
		logger: logger,
	}
}

// Snapshot aggregates the tenant's usage over [periodStart, periodEnd)
func (s *UsageService) Snapshot(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (billing.UsageSnapshot, error) {
	var snapshot billing.UsageSnapshot

	userCount, err := s.source.CountUsers(ctx, tenantID)
	if err != nil {
		return snapshot, fmt.Errorf("failed to count users: %w", err)
	}

	nodeCount, err := s.source.CountNodes(ctx, tenantID)
	if err != nil {
		return snapshot, fmt.Errorf("failed to count nodes: %w", err)
	}

	trafficUsed, err := s.source.SumTraffic(ctx, tenantID, periodStart, periodEnd)
	if err != nil {
		return snapshot, fmt.Errorf("failed to sum traffic: %w", err)
	}

	orderCount, err := s.source.CountOrders(ctx, tenantID, periodStart, periodEnd)
	if err != nil {
		return snapshot, fmt.Errorf("failed to count orders: %w", err)
	}

	revenue, err := s.source.SumPaidRevenue(ctx, tenantID, periodStart, periodEnd)
	if err != nil {
		return snapshot, fmt.Errorf("failed to sum paid revenue: %w", err)
	}

	snapshot = billing.UsageSnapshot{
		UserCount:     userCount,
		TrafficUsed:   trafficUsed,
		NodeCount:     nodeCount,
		OrderCount:    orderCount,
		RevenueAmount: revenue,
	}

	s.logger.Debug("Usage snapshot collected",
		zap.String("tenant_id", tenantID.String()),
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd),
		zap.Int64("user_count", snapshot.UserCount),
		zap.Int64("traffic_used", snapshot.TrafficUsed),
		zap.Int64("node_count", snapshot.NodeCount),
		zap.Int64("order_count", snapshot.OrderCount),
		zap.String("revenue_amount", snapshot.RevenueAmount.String()),
	)

	return snapshot, nil
}
