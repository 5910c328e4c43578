package models

import (
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanModel is the persistence model for the pricing Plan aggregate root.
// Plans are shared across tenants and carry no tenant_id.
type PlanModel struct {
	AggregateModel
	Name        string `gorm:"type:varchar(100);not null"`
	Code        string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Description string `gorm:"type:text"`

	BaseFee  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SetupFee decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	FreeUsers  int64           `gorm:"not null;default:0"`
	PerUserFee decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	FreeTraffic int64           `gorm:"not null;default:0"` // GB
	PerGBFee    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	FreeNodes  int64           `gorm:"not null;default:0"`
	PerNodeFee decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	RevenueShare  decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	MinRevenueFee decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	MaxUsers   *int64
	MaxNodes   *int64
	MaxTraffic *int64 // GB
	MaxRevenue *decimal.Decimal `gorm:"type:decimal(18,4)"`

	Features billing.FeatureMap `gorm:"type:jsonb;default:'{}'"`
	IsActive bool               `gorm:"not null;default:true;index"`
	Sort     int                `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (PlanModel) TableName() string {
	return "billing_plans"
}

// ToDomain converts the persistence model to a domain Plan
func (m *PlanModel) ToDomain() *billing.Plan {
	return &billing.Plan{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:          m.Name,
		Code:          m.Code,
		Description:   m.Description,
		BaseFee:       m.BaseFee,
		SetupFee:      m.SetupFee,
		FreeUsers:     m.FreeUsers,
		PerUserFee:    m.PerUserFee,
		FreeTraffic:   m.FreeTraffic,
		PerGBFee:      m.PerGBFee,
		FreeNodes:     m.FreeNodes,
		PerNodeFee:    m.PerNodeFee,
		RevenueShare:  m.RevenueShare,
		MinRevenueFee: m.MinRevenueFee,
		MaxUsers:      m.MaxUsers,
		MaxNodes:      m.MaxNodes,
		MaxTraffic:    m.MaxTraffic,
		MaxRevenue:    m.MaxRevenue,
		Features:      m.Features,
		IsActive:      m.IsActive,
		Sort:          m.Sort,
	}
}

// FromDomain populates the persistence model from a domain Plan
func (m *PlanModel) FromDomain(p *billing.Plan) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.Code = p.Code
	m.Description = p.Description
	m.BaseFee = p.BaseFee
	m.SetupFee = p.SetupFee
	m.FreeUsers = p.FreeUsers
	m.PerUserFee = p.PerUserFee
	m.FreeTraffic = p.FreeTraffic
	m.PerGBFee = p.PerGBFee
	m.FreeNodes = p.FreeNodes
	m.PerNodeFee = p.PerNodeFee
	m.RevenueShare = p.RevenueShare
	m.MinRevenueFee = p.MinRevenueFee
	m.MaxUsers = p.MaxUsers
	m.MaxNodes = p.MaxNodes
	m.MaxTraffic = p.MaxTraffic
	m.MaxRevenue = p.MaxRevenue
	m.Features = p.Features
	m.IsActive = p.IsActive
	m.Sort = p.Sort
}

// PlanModelFromDomain creates a new persistence model from a domain Plan
func PlanModelFromDomain(p *billing.Plan) *PlanModel {
	m := &PlanModel{}
	m.FromDomain(p)
	return m
}

// SubscriptionModel is the persistence model for the Subscription aggregate
// root. The tenant_id unique index enforces one subscription per tenant.
type SubscriptionModel struct {
	AggregateModel
	TenantID        uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex"`
	BillingPlanID   uuid.UUID                  `gorm:"type:uuid;not null;index"`
	StartDate       time.Time                  `gorm:"not null"`
	NextBillingDate time.Time                  `gorm:"not null;index"`
	BillingCycle    billing.BillingCycle       `gorm:"type:varchar(20);not null;default:'monthly'"`
	Status          billing.SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active';index"`

	CustomBaseFee    *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CustomPerUserFee *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CustomPerGBFee   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CustomPerNodeFee *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CustomDiscount   *decimal.Decimal `gorm:"type:decimal(8,4)"`

	PaymentMethod string `gorm:"type:varchar(50)"`
	AutoCharge    bool   `gorm:"not null;default:false"`
	LastBilledAt  *time.Time
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "billing_subscriptions"
}

// ToDomain converts the persistence model to a domain Subscription
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID: m.TenantID,
		},
		BillingPlanID:    m.BillingPlanID,
		StartDate:        m.StartDate,
		NextBillingDate:  m.NextBillingDate,
		BillingCycle:     m.BillingCycle,
		Status:           m.Status,
		CustomBaseFee:    m.CustomBaseFee,
		CustomPerUserFee: m.CustomPerUserFee,
		CustomPerGBFee:   m.CustomPerGBFee,
		CustomPerNodeFee: m.CustomPerNodeFee,
		CustomDiscount:   m.CustomDiscount,
		PaymentMethod:    m.PaymentMethod,
		AutoCharge:       m.AutoCharge,
		LastBilledAt:     m.LastBilledAt,
	}
}

// FromDomain populates the persistence model from a domain Subscription
func (m *SubscriptionModel) FromDomain(s *billing.Subscription) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.TenantID = s.TenantID
	m.BillingPlanID = s.BillingPlanID
	m.StartDate = s.StartDate
	m.NextBillingDate = s.NextBillingDate
	m.BillingCycle = s.BillingCycle
	m.Status = s.Status
	m.CustomBaseFee = s.CustomBaseFee
	m.CustomPerUserFee = s.CustomPerUserFee
	m.CustomPerGBFee = s.CustomPerGBFee
	m.CustomPerNodeFee = s.CustomPerNodeFee
	m.CustomDiscount = s.CustomDiscount
	m.PaymentMethod = s.PaymentMethod
	m.AutoCharge = s.AutoCharge
	m.LastBilledAt = s.LastBilledAt
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription
func SubscriptionModelFromDomain(s *billing.Subscription) *SubscriptionModel {
	m := &SubscriptionModel{}
	m.FromDomain(s)
	return m
}

// BillModel is the persistence model for the Bill aggregate root.
// Bills are financial records and are never deleted.
type BillModel struct {
	TenantAggregateModel
	BillNumber  string    `gorm:"type:varchar(30);not null;uniqueIndex"`
	BillingDate time.Time `gorm:"not null;index:idx_bills_date_status,priority:1"`
	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`

	BaseFee     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UserFee     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TrafficFee  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	NodeFee     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AddonFee    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Discount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	UserCount     int64           `gorm:"not null;default:0"`
	TrafficUsed   int64           `gorm:"not null;default:0"` // bytes
	NodeCount     int64           `gorm:"not null;default:0"`
	OrderCount    int64           `gorm:"not null;default:0"`
	RevenueAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	Status        billing.BillStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_bills_tenant_status,priority:2;index:idx_bills_date_status,priority:2"`
	DueDate       time.Time          `gorm:"not null;index"`
	PaidAt        *time.Time
	PaymentMethod string `gorm:"type:varchar(50)"`
	Notes         string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (BillModel) TableName() string {
	return "tenant_bills"
}

// ToDomain converts the persistence model to a domain Bill
func (m *BillModel) ToDomain() *billing.Bill {
	b := &billing.Bill{
		BillNumber:    m.BillNumber,
		BillingDate:   m.BillingDate,
		PeriodStart:   m.PeriodStart,
		PeriodEnd:     m.PeriodEnd,
		BaseFee:       m.BaseFee,
		UserFee:       m.UserFee,
		TrafficFee:    m.TrafficFee,
		NodeFee:       m.NodeFee,
		AddonFee:      m.AddonFee,
		Discount:      m.Discount,
		TotalAmount:   m.TotalAmount,
		PaidAmount:    m.PaidAmount,
		UserCount:     m.UserCount,
		TrafficUsed:   m.TrafficUsed,
		NodeCount:     m.NodeCount,
		OrderCount:    m.OrderCount,
		RevenueAmount: m.RevenueAmount,
		Status:        m.Status,
		DueDate:       m.DueDate,
		PaidAt:        m.PaidAt,
		PaymentMethod: m.PaymentMethod,
		Notes:         m.Notes,
	}
	m.PopulateTenantAggregateRoot(&b.TenantAggregateRoot)
	return b
}

// FromDomain populates the persistence model from a domain Bill
func (m *BillModel) FromDomain(b *billing.Bill) {
	m.FromDomainTenantAggregateRoot(b.TenantAggregateRoot)
	m.BillNumber = b.BillNumber
	m.BillingDate = b.BillingDate
	m.PeriodStart = b.PeriodStart
	m.PeriodEnd = b.PeriodEnd
	m.BaseFee = b.BaseFee
	m.UserFee = b.UserFee
	m.TrafficFee = b.TrafficFee
	m.NodeFee = b.NodeFee
	m.AddonFee = b.AddonFee
	m.Discount = b.Discount
	m.TotalAmount = b.TotalAmount
	m.PaidAmount = b.PaidAmount
	m.UserCount = b.UserCount
	m.TrafficUsed = b.TrafficUsed
	m.NodeCount = b.NodeCount
	m.OrderCount = b.OrderCount
	m.RevenueAmount = b.RevenueAmount
	m.Status = b.Status
	m.DueDate = b.DueDate
	m.PaidAt = b.PaidAt
	m.PaymentMethod = b.PaymentMethod
	m.Notes = b.Notes
}

// BillModelFromDomain creates a new persistence model from a domain Bill
func BillModelFromDomain(b *billing.Bill) *BillModel {
	m := &BillModel{}
	m.FromDomain(b)
	return m
}

// BillingLogModel is the persistence model for ledger entries. The table is
// append-only; rows are never updated or deleted.
type BillingLogModel struct {
	BaseModel
	TenantID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	BillID        *uuid.UUID          `gorm:"type:uuid;index"`
	Type          billing.LogType     `gorm:"type:varchar(20);not null;index"`
	Amount        decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	BalanceBefore decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	BalanceAfter  decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Description   string              `gorm:"type:text"`
	Metadata      billing.LogMetadata `gorm:"type:jsonb;default:'{}'"`
	UserID        *uuid.UUID          `gorm:"type:uuid"`
	IPAddress     string              `gorm:"type:varchar(45)"`
}

// TableName returns the table name for GORM
func (BillingLogModel) TableName() string {
	return "billing_logs"
}

// ToDomain converts the persistence model to a domain LogEntry
func (m *BillingLogModel) ToDomain() *billing.LogEntry {
	return &billing.LogEntry{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		BillID:        m.BillID,
		Type:          m.Type,
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Description:   m.Description,
		Metadata:      m.Metadata,
		UserID:        m.UserID,
		IPAddress:     m.IPAddress,
	}
}

// BillingLogModelFromDomain creates a new persistence model from a domain LogEntry
func BillingLogModelFromDomain(e *billing.LogEntry) *BillingLogModel {
	m := &BillingLogModel{}
	m.FromDomainBaseEntity(e.BaseEntity)
	m.TenantID = e.TenantID
	m.BillID = e.BillID
	m.Type = e.Type
	m.Amount = e.Amount
	m.BalanceBefore = e.BalanceBefore
	m.BalanceAfter = e.BalanceAfter
	m.Description = e.Description
	m.Metadata = e.Metadata
	m.UserID = e.UserID
	m.IPAddress = e.IPAddress
	return m
}
