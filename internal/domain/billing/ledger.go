package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LogType classifies a balance-affecting event
type LogType string

const (
	LogTypeCharge     LogType = "charge"
	LogTypePayment    LogType = "payment"
	LogTypeAutoCharge LogType = "auto_charge"
	LogTypeAdjustment LogType = "adjustment"
	LogTypeRefund     LogType = "refund"
)

// IsValid checks if the log type is known
func (t LogType) IsValid() bool {
	switch t {
	case LogTypeCharge, LogTypePayment, LogTypeAutoCharge, LogTypeAdjustment, LogTypeRefund:
		return true
	}
	return false
}

// decreasesBalance reports the sign convention of the entry type:
// charges and auto-charges decrease the balance, payments and refunds
// increase it.
func (t LogType) decreasesBalance() bool {
	return t == LogTypeCharge || t == LogTypeAutoCharge
}

// LogMetadata holds free-form context for a ledger entry, stored as JSONB
type LogMetadata map[string]any

// Value implements driver.Valuer for JSONB storage
func (m LogMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB storage
func (m *LogMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = LogMetadata{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LogMetadata: unsupported type")
	}
	if len(bytes) == 0 {
		*m = LogMetadata{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// LogEntry is an immutable audit record of a balance-affecting event with
// before/after balance snapshots. The ledger is append-only; entries are
// written in the same transaction as the mutation they describe.
type LogEntry struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	BillID        *uuid.UUID
	Type          LogType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	Metadata      LogMetadata
	UserID        *uuid.UUID
	IPAddress     string
}

// NewLogEntry creates a ledger entry whose balance-after follows the
// entry type's sign convention.
func NewLogEntry(
	tenantID uuid.UUID,
	logType LogType,
	amount decimal.Decimal,
	balanceBefore decimal.Decimal,
	description string,
) (*LogEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !logType.IsValid() {
		return nil, shared.NewDomainError("INVALID_LOG_TYPE", "Invalid billing log type")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Ledger amount cannot be negative")
	}

	after := balanceBefore.Add(amount)
	if logType.decreasesBalance() {
		after = balanceBefore.Sub(amount)
	}

	return &LogEntry{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		Type:          logType,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  after,
		Description:   description,
		Metadata:      make(LogMetadata),
	}, nil
}

// NewAdjustmentEntry creates an adjustment ledger entry from observed
// before/after balances. The recorded amount is the absolute delta so the
// balance_after == balance_before ± amount invariant always holds, even
// for "set" adjustments.
func NewAdjustmentEntry(
	tenantID uuid.UUID,
	balanceBefore, balanceAfter decimal.Decimal,
	description string,
) (*LogEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return &LogEntry{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		Type:          LogTypeAdjustment,
		Amount:        balanceAfter.Sub(balanceBefore).Abs(),
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Description:   description,
		Metadata:      make(LogMetadata),
	}, nil
}

// WithBill associates the entry with a bill
func (e *LogEntry) WithBill(billID uuid.UUID) *LogEntry {
	e.BillID = &billID
	return e
}

// WithActor records the acting user and request IP for audit attribution
func (e *LogEntry) WithActor(userID *uuid.UUID, ip string) *LogEntry {
	e.UserID = userID
	e.IPAddress = ip
	return e
}

// WithMetadata attaches a metadata key/value pair
func (e *LogEntry) WithMetadata(key string, value any) *LogEntry {
	if e.Metadata == nil {
		e.Metadata = make(LogMetadata)
	}
	e.Metadata[key] = value
	return e
}
