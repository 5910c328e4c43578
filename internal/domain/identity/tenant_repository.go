package identity

import (
	"context"

	"github.com/google/uuid"
)

// TenantRepository provides access to tenants. Tenants are platform-level
// records and are never tenant-scoped themselves.
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	// FindByIDForUpdate locks the tenant row for the owning transaction,
	// serializing balance mutations per tenant.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)
	Save(ctx context.Context, tenant *Tenant) error
	Update(ctx context.Context, tenant *Tenant) error
	CountBillingEnabled(ctx context.Context) (int64, error)
}
