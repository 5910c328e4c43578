package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The metering models mirror the platform tables the usage aggregator reads.
// They are query-only here: the panel that owns them writes the rows, the
// billing engine only counts and sums them per tenant.

// MeteredUserModel is the per-tenant end-user row counted at snapshot time
type MeteredUserModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Email    string    `gorm:"type:varchar(255);not null"`
	Banned   bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (MeteredUserModel) TableName() string {
	return "users"
}

// MeteredNodeModel is the per-tenant server node row counted at snapshot time
type MeteredNodeModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(200);not null"`
	Show     bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (MeteredNodeModel) TableName() string {
	return "nodes"
}

// MeteredOrderModel is the per-tenant order row used for order counts and
// paid revenue sums over a billing window
type MeteredOrderModel struct {
	BaseModel
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderNumber string          `gorm:"type:varchar(50);not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status      string          `gorm:"type:varchar(20);not null;index"`
	PaidAt      *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (MeteredOrderModel) TableName() string {
	return "orders"
}

// OrderStatusPaid marks orders that count toward revenue share
const OrderStatusPaid = "paid"

// TrafficStatModel is one metering row of upload/download bytes recorded for
// a tenant. Rows accumulate continuously; billing sums them over the window.
type TrafficStatModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index:idx_traffic_tenant_time,priority:1"`
	Upload   int64     `gorm:"not null;default:0"` // bytes
	Download int64     `gorm:"not null;default:0"` // bytes
	RecordAt time.Time `gorm:"not null;index:idx_traffic_tenant_time,priority:2"`
}

// TableName returns the table name for GORM
func (TrafficStatModel) TableName() string {
	return "tenant_traffic_stats"
}
