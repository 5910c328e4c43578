package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewTenant(t *testing.T) {
	t.Run("creates an active tenant with zero balance", func(t *testing.T) {
		tenant, err := NewTenant("Acme Reseller", "acme.example.com")
		require.NoError(t, err)
		assert.True(t, tenant.Status)
		assert.True(t, tenant.Balance.IsZero())
		assert.False(t, tenant.BillingEnabled)
	})

	t.Run("fails with empty name", func(t *testing.T) {
		_, err := NewTenant("", "x")
		assert.Error(t, err)
	})
}

func TestTenantIsActive(t *testing.T) {
	tenant, err := NewTenant("Acme", "")
	require.NoError(t, err)
	assert.True(t, tenant.IsActive())

	past := time.Now().AddDate(0, 0, -1)
	tenant.ExpireAt = &past
	assert.False(t, tenant.IsActive())

	tenant.ExpireAt = nil
	tenant.Suspend()
	assert.False(t, tenant.IsActive())
}

func TestTenantBalance(t *testing.T) {
	tenant, err := NewTenant("Acme", "")
	require.NoError(t, err)
	tenant.CreditLimit = dec("100")

	t.Run("available balance includes the credit cushion", func(t *testing.T) {
		tenant.SetBalance(dec("-50"))
		assert.True(t, tenant.AvailableBalance().Equal(dec("50")))
	})

	t.Run("deduct may push the balance negative", func(t *testing.T) {
		tenant.SetBalance(dec("-50"))
		require.NoError(t, tenant.DeductBalance(dec("120")))
		assert.True(t, tenant.Balance.Equal(dec("-170")))
		assert.True(t, tenant.CreditExhausted())
	})

	t.Run("add restores the cushion", func(t *testing.T) {
		require.NoError(t, tenant.AddBalance(dec("200")))
		assert.True(t, tenant.Balance.Equal(dec("30")))
		assert.False(t, tenant.CreditExhausted())
	})

	t.Run("negative amounts are rejected", func(t *testing.T) {
		assert.Error(t, tenant.AddBalance(dec("-1")))
		assert.Error(t, tenant.DeductBalance(dec("-1")))
	})
}

func TestTenantBilling(t *testing.T) {
	tenant, err := NewTenant("Acme", "")
	require.NoError(t, err)

	planID := uuid.New()
	tenant.EnableBilling(planID)
	assert.True(t, tenant.BillingEnabled)
	require.NotNil(t, tenant.BillingPlanID)
	assert.Equal(t, planID, *tenant.BillingPlanID)

	billedAt := time.Now()
	tenant.MarkBilled(billedAt)
	require.NotNil(t, tenant.LastBilledAt)
	assert.Equal(t, billedAt, *tenant.LastBilledAt)

	tenant.DisableBilling()
	assert.False(t, tenant.BillingEnabled)
}
