package billing

import (
	"context"

	domainbilling "github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/identity"
)

// TransactionalRepositories exposes the repositories bound to one database
// transaction. Bill issuance writes the bill, the ledger entry, the
// subscription cursor and the tenant's billing marker through the same
// instance so the whole unit commits or rolls back together.
type TransactionalRepositories interface {
	Tenants() identity.TenantRepository
	Plans() domainbilling.PlanRepository
	Subscriptions() domainbilling.SubscriptionRepository
	Bills() domainbilling.BillRepository
	Logs() domainbilling.LogRepository
}

// TransactionScope runs a function within a single database transaction
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}
