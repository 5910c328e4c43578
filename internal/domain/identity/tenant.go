package identity

import (
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tenant represents an isolated customer organization within the platform.
// A tenant owns its users, orders, nodes and bills, carries a monetary
// balance that may go negative up to CreditLimit, and optionally holds
// exactly one active billing subscription.
type Tenant struct {
	shared.BaseAggregateRoot
	Name           string
	Domain         string
	Status         bool // false = disabled/suspended
	Balance        decimal.Decimal
	CreditLimit    decimal.Decimal
	BillingPlanID  *uuid.UUID
	BillingEnabled bool
	LastBilledAt   *time.Time
	ExpireAt       *time.Time
	AdminEmail     string
	Notes          string
}

// NewTenant creates a new active tenant
func NewTenant(name, domain string) (*Tenant, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	return &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Domain:            domain,
		Status:            true,
		Balance:           decimal.Zero,
		CreditLimit:       decimal.Zero,
	}, nil
}

// IsActive reports whether the tenant is enabled and not expired
func (t *Tenant) IsActive() bool {
	return t.Status && (t.ExpireAt == nil || t.ExpireAt.After(time.Now()))
}

// AvailableBalance returns balance plus the credit cushion
func (t *Tenant) AvailableBalance() decimal.Decimal {
	return t.Balance.Add(t.CreditLimit)
}

// CreditExhausted reports whether the balance has fallen below the
// credit limit, i.e. even the credit cushion is spent
func (t *Tenant) CreditExhausted() bool {
	return t.Balance.LessThan(t.CreditLimit.Neg())
}

// AddBalance credits the tenant balance
func (t *Tenant) AddBalance(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	t.Balance = t.Balance.Add(amount)
	t.UpdatedAt = time.Now()
	return nil
}

// DeductBalance debits the tenant balance. The balance may go negative;
// credit-limit enforcement is the caller's concern (auto-charge checks it,
// a manual adjustment does not).
func (t *Tenant) DeductBalance(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	t.Balance = t.Balance.Sub(amount)
	t.UpdatedAt = time.Now()
	return nil
}

// SetBalance overwrites the balance with an absolute value
func (t *Tenant) SetBalance(amount decimal.Decimal) {
	t.Balance = amount
	t.UpdatedAt = time.Now()
}

// EnableBilling marks the tenant as billable under the given plan
func (t *Tenant) EnableBilling(planID uuid.UUID) {
	t.BillingEnabled = true
	t.BillingPlanID = &planID
	t.UpdatedAt = time.Now()
}

// DisableBilling turns billing off, e.g. when the subscription is cancelled
func (t *Tenant) DisableBilling() {
	t.BillingEnabled = false
	t.UpdatedAt = time.Now()
}

// MarkBilled advances the tenant's last billed date
func (t *Tenant) MarkBilled(at time.Time) {
	t.LastBilledAt = &at
	t.UpdatedAt = time.Now()
}

// Suspend disables the tenant as a consequence of overdue enforcement
func (t *Tenant) Suspend() {
	t.Status = false
	t.UpdatedAt = time.Now()
}

// Activate re-enables a suspended tenant, typically after its debt is settled
func (t *Tenant) Activate() {
	t.Status = true
	t.UpdatedAt = time.Now()
}
