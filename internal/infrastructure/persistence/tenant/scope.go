// Package tenant provides multi-tenant database scoping for GORM.
//
// Every tenant-owned table carries a tenant_id column. The scoped store
// resolves the tenant either from an explicit parameter or from the request
// context and applies WHERE tenant_id = ? to reads, updates and deletes.
// Creates auto-fill tenant_id when the model left it empty. There is no
// ambient global tenant state; the administrative Unscoped variant is the
// only way around the filter.
//
// Usage:
//
//	store := tenant.NewScopedDB(gormDB)
//	store.WithContext(ctx).Find(&bills) // WHERE tenant_id = ? auto-added
package tenant

import (
	"context"
	"errors"

	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantRequired is returned when a tenant ID is required but absent
var ErrTenantRequired = errors.New("tenant id is required but not found in context")

// ErrInvalidTenantID is returned when the tenant ID is not a valid UUID
var ErrInvalidTenantID = errors.New("invalid tenant id format")

// Scope applies tenant filtering to a GORM query
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// ScopedDB wraps a GORM DB with automatic tenant scoping
type ScopedDB struct {
	db       *gorm.DB
	required bool
}

// NewScopedDB creates a ScopedDB that requires a tenant on every operation
func NewScopedDB(db *gorm.DB) *ScopedDB {
	return &ScopedDB{db: db, required: true}
}

// NewOptionalScopedDB creates a ScopedDB that passes queries through
// unfiltered when no tenant is present
func NewOptionalScopedDB(db *gorm.DB) *ScopedDB {
	return &ScopedDB{db: db, required: false}
}

// WithContext returns a GORM DB scoped to the tenant carried by the context.
// With no tenant in context and required mode on, the returned DB errors on
// any operation instead of silently widening the query.
func (s *ScopedDB) WithContext(ctx context.Context) *gorm.DB {
	raw := logger.GetTenantID(ctx)
	if raw == "" {
		db := s.db.WithContext(ctx)
		if s.required {
			_ = db.AddError(ErrTenantRequired)
		}
		return db
	}

	tenantID, err := uuid.Parse(raw)
	if err != nil {
		db := s.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidTenantID)
		return db
	}

	return s.ForTenant(ctx, tenantID)
}

// ForTenant returns a GORM DB scoped to an explicit tenant ID
func (s *ScopedDB) ForTenant(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	if tenantID == uuid.Nil {
		db := s.db.WithContext(ctx)
		if s.required {
			_ = db.AddError(ErrTenantRequired)
		}
		return db
	}
	return s.db.WithContext(ctx).Set(fillTenantKey, tenantID).Scopes(Scope(tenantID))
}

// Transaction executes fn inside a database transaction scoped to the
// context's tenant
func (s *ScopedDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	raw := logger.GetTenantID(ctx)
	if raw == "" && s.required {
		return ErrTenantRequired
	}

	var tenantID uuid.UUID
	if raw != "" {
		var err error
		if tenantID, err = uuid.Parse(raw); err != nil {
			return ErrInvalidTenantID
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tenantID != uuid.Nil {
			tx = tx.Set(fillTenantKey, tenantID).Scopes(Scope(tenantID))
		}
		return fn(tx)
	})
}

// Unscoped returns the underlying DB without any tenant filtering.
// For system-level operations only: migrations, cross-tenant batch jobs,
// platform statistics.
func (s *ScopedDB) Unscoped() *gorm.DB {
	return s.db
}
