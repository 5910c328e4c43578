package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillStatus represents the payment/lifecycle status of a bill
type BillStatus string

const (
	BillPending   BillStatus = "pending"
	BillPaid      BillStatus = "paid"
	BillOverdue   BillStatus = "overdue"
	BillCancelled BillStatus = "cancelled"
)

// IsValid checks if the status is a known bill status
func (s BillStatus) IsValid() bool {
	switch s {
	case BillPending, BillPaid, BillOverdue, BillCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed
func (s BillStatus) IsTerminal() bool {
	return s == BillPaid || s == BillCancelled
}

// CanApplyPayment returns true if payments can be applied in this status
func (s BillStatus) CanApplyPayment() bool {
	return s == BillPending || s == BillOverdue
}

// PaymentMethodBalance is the payment method recorded when a bill is
// settled by auto-charge against the tenant balance.
const PaymentMethodBalance = "balance"

// DueDays is the grace period between issuing a bill and its due date
const DueDays = 7

// Bill is an immutable-once-issued record of a billing period's itemized
// charges with a mutable payment status. Bills are financial records and
// are never physically deleted.
type Bill struct {
	shared.TenantAggregateRoot
	BillNumber  string // globally unique, generated at creation
	BillingDate time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time // exclusive

	BaseFee     decimal.Decimal
	UserFee     decimal.Decimal
	TrafficFee  decimal.Decimal
	NodeFee     decimal.Decimal
	AddonFee    decimal.Decimal
	Discount    decimal.Decimal
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal

	UserCount     int64
	TrafficUsed   int64 // bytes
	NodeCount     int64
	OrderCount    int64
	RevenueAmount decimal.Decimal

	Status        BillStatus
	DueDate       time.Time
	PaidAt        *time.Time
	PaymentMethod string
	Notes         string
}

// NewBillNumber generates a date-stamped bill number with a random suffix,
// e.g. BILL20240115A3F09C.
func NewBillNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("BILL%s%s", time.Now().Format("20060102"), suffix)
}

// NewBill issues a pending bill for the given period from computed fees
// and the usage snapshot they were computed from.
func NewBill(
	tenantID uuid.UUID,
	billingDate time.Time,
	periodStart, periodEnd time.Time,
	fees FeeBreakdown,
	usage UsageSnapshot,
) (*Bill, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !periodEnd.After(periodStart) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period end must be after period start")
	}
	if fees.Total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Total amount cannot be negative")
	}
	return &Bill{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BillNumber:          NewBillNumber(),
		BillingDate:         billingDate,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		BaseFee:             fees.BaseFee,
		UserFee:             fees.UserFee,
		TrafficFee:          fees.TrafficFee,
		NodeFee:             fees.NodeFee,
		AddonFee:            fees.RevenueFee,
		Discount:            fees.DiscountAmount,
		TotalAmount:         fees.Total,
		PaidAmount:          decimal.Zero,
		UserCount:           usage.UserCount,
		TrafficUsed:         usage.TrafficUsed,
		NodeCount:           usage.NodeCount,
		OrderCount:          usage.OrderCount,
		RevenueAmount:       usage.RevenueAmount,
		Status:              BillPending,
		DueDate:             billingDate.AddDate(0, 0, DueDays),
	}, nil
}

// UnpaidAmount returns the amount still owed, floored at zero
func (b *Bill) UnpaidAmount() decimal.Decimal {
	return decimal.Max(decimal.Zero, b.TotalAmount.Sub(b.PaidAmount))
}

// DisplayPaidAmount returns the paid amount clamped at the bill total.
// Overpayment is recorded in PaidAmount but never shown above the total.
func (b *Bill) DisplayPaidAmount() decimal.Decimal {
	return decimal.Min(b.PaidAmount, b.TotalAmount)
}

// IsOverdue reports whether a pending bill has passed its due date
func (b *Bill) IsOverdue(asOf time.Time) bool {
	return b.Status == BillPending && b.DueDate.Before(asOf)
}

// ApplyPayment accumulates a payment on the bill. Legal only from
// pending/overdue. PaidAmount is monotone: it only ever grows. When the
// paid amount covers the total the bill transitions to paid.
func (b *Bill) ApplyPayment(amount decimal.Decimal, method string) error {
	if !b.Status.CanApplyPayment() {
		return shared.NewDomainError("BILL_NOT_PAYABLE",
			fmt.Sprintf("Cannot apply payment to bill in %s status", b.Status))
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	b.PaidAmount = b.PaidAmount.Add(amount)
	if method != "" {
		b.PaymentMethod = method
	}

	if b.PaidAmount.GreaterThanOrEqual(b.TotalAmount) {
		now := time.Now()
		b.Status = BillPaid
		b.PaidAt = &now
	}

	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// MarkPaid settles the bill in full with the given method, as auto-charge
// does. Legal only from pending/overdue.
func (b *Bill) MarkPaid(method string) error {
	if !b.Status.CanApplyPayment() {
		return shared.NewDomainError("BILL_NOT_PAYABLE",
			fmt.Sprintf("Cannot mark bill in %s status as paid", b.Status))
	}
	now := time.Now()
	b.Status = BillPaid
	b.PaidAmount = b.TotalAmount
	b.PaidAt = &now
	b.PaymentMethod = method
	b.UpdatedAt = now
	b.IncrementVersion()
	return nil
}

// MarkOverdue transitions a pending bill past its due date to overdue.
// Any other state is a no-op: a paid or cancelled bill never moves
// backward. Returns true if the transition happened.
func (b *Bill) MarkOverdue(asOf time.Time) bool {
	if !b.IsOverdue(asOf) {
		return false
	}
	b.Status = BillOverdue
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return true
}

// Cancel voids a bill. A paid bill can never be cancelled; the check runs
// before any mutation.
func (b *Bill) Cancel(reason string) error {
	if b.Status == BillPaid {
		return shared.NewDomainError("BILL_PAID", "A paid bill cannot be cancelled")
	}
	b.Status = BillCancelled
	if reason != "" {
		b.Notes = reason
	}
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}
