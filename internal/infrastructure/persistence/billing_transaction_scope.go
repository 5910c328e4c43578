package persistence

import (
	"context"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/identity"
	"gorm.io/gorm"
)

// GormTransactionScope implements the billing TransactionScope using GORM
// transactions. Repository operations performed through the callback's
// repositories share one transaction and commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. An error from fn rolls the
// transaction back; success commits it.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories binds the repositories to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Tenants returns the tenant repository scoped to the current transaction
func (r *gormTransactionalRepositories) Tenants() identity.TenantRepository {
	return NewGormTenantRepository(r.tx)
}

// Plans returns the plan repository scoped to the current transaction
func (r *gormTransactionalRepositories) Plans() billing.PlanRepository {
	return NewGormPlanRepository(r.tx)
}

// Subscriptions returns the subscription repository scoped to the current transaction
func (r *gormTransactionalRepositories) Subscriptions() billing.SubscriptionRepository {
	return NewGormSubscriptionRepository(r.tx)
}

// Bills returns the bill repository scoped to the current transaction
func (r *gormTransactionalRepositories) Bills() billing.BillRepository {
	return NewGormBillRepository(r.tx)
}

// Logs returns the billing log repository scoped to the current transaction
func (r *gormTransactionalRepositories) Logs() billing.LogRepository {
	return NewGormBillingLogRepository(r.tx)
}

// Ensure interface compliance
var _ appbilling.TransactionScope = (*GormTransactionScope)(nil)
var _ appbilling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
