package billing

import (
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// IsValid checks if the status is a known subscription status
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionSuspended, SubscriptionCancelled:
		return true
	}
	return false
}

// Subscription binds a tenant to a pricing plan, a billing cycle, optional
// fee overrides and the billing cursor. At most one subscription exists per
// tenant; re-assigning a plan updates it in place.
type Subscription struct {
	shared.TenantAggregateRoot
	BillingPlanID   uuid.UUID
	StartDate       time.Time
	NextBillingDate time.Time
	BillingCycle    BillingCycle
	Status          SubscriptionStatus

	// Per-tenant overrides; nil means "use the plan default".
	// CustomBaseFee is persisted for compatibility but fee computation
	// only consults the per-unit rates and the discount.
	CustomBaseFee    *decimal.Decimal
	CustomPerUserFee *decimal.Decimal
	CustomPerGBFee   *decimal.Decimal
	CustomPerNodeFee *decimal.Decimal
	CustomDiscount   *decimal.Decimal // percentage, 0-100

	PaymentMethod string
	AutoCharge    bool
	LastBilledAt  *time.Time
}

// NewSubscription creates an active subscription starting now, with the
// next billing date one cycle out.
func NewSubscription(tenantID, planID uuid.UUID, cycle BillingCycle, start time.Time) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PLAN", "Billing plan ID cannot be empty")
	}
	if !cycle.IsValid() {
		return nil, shared.NewDomainError("INVALID_CYCLE", "Billing cycle is not valid")
	}
	return &Subscription{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BillingPlanID:       planID,
		StartDate:           start,
		NextBillingDate:     cycle.Advance(start),
		BillingCycle:        cycle,
		Status:              SubscriptionActive,
	}, nil
}

// IsActive reports whether the subscription is currently active
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// CurrentPeriodStart returns the start of the open billing window: the
// last billed date, or the start date if never billed.
func (s *Subscription) CurrentPeriodStart() time.Time {
	if s.LastBilledAt != nil {
		return *s.LastBilledAt
	}
	return s.StartDate
}

// CurrentPeriodEnd returns the exclusive end of the open billing window
func (s *Subscription) CurrentPeriodEnd() time.Time {
	return s.BillingCycle.Advance(s.CurrentPeriodStart())
}

// IsDue reports whether the subscription should be billed as of the given time
func (s *Subscription) IsDue(asOf time.Time) bool {
	return s.IsActive() && !s.NextBillingDate.After(asOf)
}

// Overrides returns the subscription's fee overrides for fee computation
func (s *Subscription) Overrides() FeeOverrides {
	return FeeOverrides{
		PerUserFee: s.CustomPerUserFee,
		PerGBFee:   s.CustomPerGBFee,
		PerNodeFee: s.CustomPerNodeFee,
		Discount:   s.CustomDiscount,
	}
}

// AdvanceCursor records that the window ending at periodEnd has been billed
// as of billedAt, and moves the next billing date to periodEnd.
func (s *Subscription) AdvanceCursor(billedAt, periodEnd time.Time) {
	s.LastBilledAt = &billedAt
	s.NextBillingDate = periodEnd
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Reassign points the subscription at a new plan and cycle, restarting
// the billing window from start. Reassignment updates the row in place;
// a tenant never holds two subscriptions.
func (s *Subscription) Reassign(planID uuid.UUID, cycle BillingCycle, start time.Time) {
	s.BillingPlanID = planID
	s.BillingCycle = cycle
	s.StartDate = start
	s.NextBillingDate = cycle.Advance(start)
	s.Status = SubscriptionActive
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// OverrideFees replaces the per-tenant fee overrides. A nil field clears
// the override back to the plan default.
func (s *Subscription) OverrideFees(base, perUser, perGB, perNode, discount *decimal.Decimal) {
	s.CustomBaseFee = base
	s.CustomPerUserFee = perUser
	s.CustomPerGBFee = perGB
	s.CustomPerNodeFee = perNode
	s.CustomDiscount = discount
	s.UpdatedAt = time.Now()
}

// SetPaymentOptions sets the payment method and the auto-charge flag
func (s *Subscription) SetPaymentOptions(method string, autoCharge bool) {
	s.PaymentMethod = method
	s.AutoCharge = autoCharge
	s.UpdatedAt = time.Now()
}

// Cancel marks the subscription cancelled; history is retained
func (s *Subscription) Cancel() {
	s.Status = SubscriptionCancelled
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Suspend marks the subscription suspended as a side effect of overdue
// enforcement; this is never a user action.
func (s *Subscription) Suspend() {
	s.Status = SubscriptionSuspended
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Reactivate restores a suspended or cancelled subscription to active
func (s *Subscription) Reactivate() {
	s.Status = SubscriptionActive
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}
