package models

import (
	"time"

	"github.com/reseller/backend/internal/domain/identity"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantModel is the persistence model for the Tenant aggregate root.
// Tenants are platform-level records and carry no tenant_id themselves.
type TenantModel struct {
	AggregateModel
	Name           string          `gorm:"type:varchar(200);not null"`
	Domain         string          `gorm:"type:varchar(255);uniqueIndex"`
	Status         bool            `gorm:"not null;default:true;index"`
	Balance        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreditLimit    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BillingPlanID  *uuid.UUID      `gorm:"type:uuid;index"`
	BillingEnabled bool            `gorm:"not null;default:false;index"`
	LastBilledAt   *time.Time
	ExpireAt       *time.Time `gorm:"index"`
	AdminEmail     string     `gorm:"type:varchar(255)"`
	Notes          string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant
func (m *TenantModel) ToDomain() *identity.Tenant {
	return &identity.Tenant{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:           m.Name,
		Domain:         m.Domain,
		Status:         m.Status,
		Balance:        m.Balance,
		CreditLimit:    m.CreditLimit,
		BillingPlanID:  m.BillingPlanID,
		BillingEnabled: m.BillingEnabled,
		LastBilledAt:   m.LastBilledAt,
		ExpireAt:       m.ExpireAt,
		AdminEmail:     m.AdminEmail,
		Notes:          m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Tenant
func (m *TenantModel) FromDomain(t *identity.Tenant) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.Name = t.Name
	m.Domain = t.Domain
	m.Status = t.Status
	m.Balance = t.Balance
	m.CreditLimit = t.CreditLimit
	m.BillingPlanID = t.BillingPlanID
	m.BillingEnabled = t.BillingEnabled
	m.LastBilledAt = t.LastBilledAt
	m.ExpireAt = t.ExpireAt
	m.AdminEmail = t.AdminEmail
	m.Notes = t.Notes
}

// TenantModelFromDomain creates a new persistence model from a domain Tenant
func TenantModelFromDomain(t *identity.Tenant) *TenantModel {
	m := &TenantModel{}
	m.FromDomain(t)
	return m
}
