package billing

import (
	"context"
	"errors"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UpsertSubscriptionInput carries the parameters for assigning a plan to
// a tenant. Nil override fields mean "use the plan default".
type UpsertSubscriptionInput struct {
	BillingPlanID    uuid.UUID
	BillingCycle     string
	CustomBaseFee    *decimal.Decimal
	CustomPerUserFee *decimal.Decimal
	CustomPerGBFee   *decimal.Decimal
	CustomPerNodeFee *decimal.Decimal
	CustomDiscount   *decimal.Decimal
	PaymentMethod    string
	AutoCharge       bool
}

// SubscriptionService manages the tenant-to-plan binding
type SubscriptionService struct {
	txScope       TransactionScope
	subscriptions billing.SubscriptionRepository
	logger        *zap.Logger
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(txScope TransactionScope, subscriptions billing.SubscriptionRepository, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		txScope:       txScope,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Get returns the tenant's subscription regardless of status
func (s *SubscriptionService) Get(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	return s.subscriptions.FindByTenant(ctx, tenantID)
}

// Upsert assigns a plan to a tenant. An existing subscription is updated
// in place; the billing window restarts from now and the tenant's billing
// flag is switched on, all within one transaction.
func (s *SubscriptionService) Upsert(ctx context.Context, tenantID uuid.UUID, input UpsertSubscriptionInput) (*billing.Subscription, error) {
	cycle, ok := billing.ParseBillingCycle(input.BillingCycle)
	if !ok {
		s.logger.Warn("Unknown billing cycle, falling back to monthly",
			zap.String("tenant_id", tenantID.String()),
			zap.String("billing_cycle", input.BillingCycle))
	}

	var result *billing.Subscription
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		tenant, err := repos.Tenants().FindByID(ctx, tenantID)
		if err != nil {
			return err
		}
		plan, err := repos.Plans().FindByID(ctx, input.BillingPlanID)
		if err != nil {
			return err
		}

		now := time.Now()
		sub, err := repos.Subscriptions().FindByTenant(ctx, tenantID)
		switch {
		case err == nil:
			sub.Reassign(plan.ID, cycle, now)
			sub.OverrideFees(input.CustomBaseFee, input.CustomPerUserFee,
				input.CustomPerGBFee, input.CustomPerNodeFee, input.CustomDiscount)
			sub.SetPaymentOptions(input.PaymentMethod, input.AutoCharge)
			if err := repos.Subscriptions().Update(ctx, sub); err != nil {
				return err
			}
		case errors.Is(err, shared.ErrNotFound):
			sub, err = billing.NewSubscription(tenantID, plan.ID, cycle, now)
			if err != nil {
				return err
			}
			sub.OverrideFees(input.CustomBaseFee, input.CustomPerUserFee,
				input.CustomPerGBFee, input.CustomPerNodeFee, input.CustomDiscount)
			sub.SetPaymentOptions(input.PaymentMethod, input.AutoCharge)
			if err := repos.Subscriptions().Save(ctx, sub); err != nil {
				return err
			}
		default:
			return err
		}

		tenant.EnableBilling(plan.ID)
		if err := repos.Tenants().Update(ctx, tenant); err != nil {
			return err
		}

		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subscription upserted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("plan_id", input.BillingPlanID.String()),
		zap.String("billing_cycle", cycle.String()))
	return result, nil
}

// Cancel marks the tenant's subscription cancelled and switches the
// tenant's billing flag off. History is retained.
func (s *SubscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID) error {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sub, err := repos.Subscriptions().FindByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		sub.Cancel()
		if err := repos.Subscriptions().Update(ctx, sub); err != nil {
			return err
		}

		tenant, err := repos.Tenants().FindByID(ctx, tenantID)
		if err != nil {
			return err
		}
		tenant.DisableBilling()
		return repos.Tenants().Update(ctx, tenant)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Subscription cancelled", zap.String("tenant_id", tenantID.String()))
	return nil
}
