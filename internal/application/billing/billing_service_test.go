package billing_test

import (
	"context"
	"testing"
	"time"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/identity"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	tenantscope "github.com/reseller/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db            *gorm.DB
	tenants       identity.TenantRepository
	plans         billing.PlanRepository
	subscriptions billing.SubscriptionRepository
	bills         billing.BillRepository
	logs          billing.LogRepository

	planService         *appbilling.PlanService
	billingService      *appbilling.BillingService
	subscriptionService *appbilling.SubscriptionService
	statsService        *appbilling.StatsService
	notifier            *recordingNotifier
}

type recordingNotifier struct {
	notified []string
}

func (n *recordingNotifier) NotifyOverdue(_ context.Context, bill *billing.Bill) {
	n.notified = append(n.notified, bill.BillNumber)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	// Unique shared-cache name so every pooled connection sees one database.
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	tenantscope.EnableAutoTenantFilter(db, false)
	require.NoError(t, db.AutoMigrate(
		&models.TenantModel{},
		&models.PlanModel{},
		&models.SubscriptionModel{},
		&models.BillModel{},
		&models.BillingLogModel{},
		&models.MeteredUserModel{},
		&models.MeteredNodeModel{},
		&models.MeteredOrderModel{},
		&models.TrafficStatModel{},
	))

	logger := zap.NewNop()
	env := &testEnv{
		db:            db,
		tenants:       persistence.NewGormTenantRepository(db),
		plans:         persistence.NewGormPlanRepository(db),
		subscriptions: persistence.NewGormSubscriptionRepository(db),
		bills:         persistence.NewGormBillRepository(db),
		logs:          persistence.NewGormBillingLogRepository(db),
		notifier:      &recordingNotifier{},
	}

	txScope := persistence.NewGormTransactionScope(db)
	usageService := appbilling.NewUsageService(persistence.NewGormUsageSource(db), logger)
	env.planService = appbilling.NewPlanService(env.plans, nil, 0, logger)
	env.billingService = appbilling.NewBillingService(
		txScope, env.tenants, env.subscriptions, env.bills,
		usageService, env.planService, env.notifier,
		appbilling.BillingServiceConfig{OverdueBatchSize: 100, BatchWorkers: 1},
		logger,
	)
	env.subscriptionService = appbilling.NewSubscriptionService(txScope, env.subscriptions, logger)
	env.statsService = appbilling.NewStatsService(env.bills, env.subscriptions, env.tenants, env.logs, logger)
	return env
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (e *testEnv) createPlan(t *testing.T, code string) *billing.Plan {
	t.Helper()
	plan, err := billing.NewPlan(billing.PlanParams{
		Name:        "Plan " + code,
		Code:        code,
		BaseFee:     dec("10"),
		FreeUsers:   5,
		PerUserFee:  dec("2"),
		FreeTraffic: 10,
		PerGBFee:    dec("1"),
		IsActive:    true,
	})
	require.NoError(t, err)
	require.NoError(t, e.plans.Save(context.Background(), plan))
	return plan
}

func (e *testEnv) createTenant(t *testing.T) *identity.Tenant {
	t.Helper()
	tenant, err := identity.NewTenant("Tenant "+uuid.NewString()[:8], uuid.NewString()[:8]+".example.com")
	require.NoError(t, err)
	require.NoError(t, e.tenants.Save(context.Background(), tenant))
	return tenant
}

// createBillableTenant wires a tenant with an enabled billing flag and an
// active subscription whose current period started two months ago.
func (e *testEnv) createBillableTenant(t *testing.T, plan *billing.Plan, autoCharge bool) (*identity.Tenant, *billing.Subscription) {
	t.Helper()
	ctx := context.Background()

	tenant := e.createTenant(t)
	tenant.EnableBilling(plan.ID)
	require.NoError(t, e.tenants.Update(ctx, tenant))

	start := time.Now().AddDate(0, -2, 0)
	sub, err := billing.NewSubscription(tenant.ID, plan.ID, billing.CycleMonthly, start)
	require.NoError(t, err)
	sub.SetPaymentOptions("balance", autoCharge)
	require.NoError(t, e.subscriptions.Save(ctx, sub))
	return tenant, sub
}

func (e *testEnv) seedUsage(t *testing.T, tenantID uuid.UUID, users int, trafficGB int64, at time.Time) {
	t.Helper()
	for i := 0; i < users; i++ {
		require.NoError(t, e.db.Create(&models.MeteredUserModel{
			BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: at, UpdatedAt: at},
			TenantID:  tenantID,
			Email:     uuid.NewString()[:8] + "@example.com",
		}).Error)
	}
	if trafficGB > 0 {
		require.NoError(t, e.db.Create(&models.TrafficStatModel{
			BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: at, UpdatedAt: at},
			TenantID:  tenantID,
			Upload:    trafficGB << 29,
			Download:  trafficGB << 29,
			RecordAt:  at,
		}).Error)
	}
}

func TestGenerateBill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.createPlan(t, "starter")

	t.Run("bills usage over the open period", func(t *testing.T) {
		tenant, sub := env.createBillableTenant(t, plan, false)
		// 7 users (2 over free), 15 GB (5 over free) inside the window
		env.seedUsage(t, tenant.ID, 7, 15, time.Now().AddDate(0, -1, 0))

		asOf := time.Now()
		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, asOf)
		require.NoError(t, err)
		require.NotNil(t, bill)

		// base 10 + users 2*2 + traffic 5*1
		assert.True(t, bill.TotalAmount.Equal(dec("19")), "total was %s", bill.TotalAmount)
		assert.Equal(t, billing.BillPending, bill.Status)
		assert.WithinDuration(t, sub.StartDate, bill.PeriodStart, time.Second)
		assert.WithinDuration(t, billing.CycleMonthly.Advance(sub.StartDate), bill.PeriodEnd, time.Second)
		assert.WithinDuration(t, asOf.AddDate(0, 0, billing.DueDays), bill.DueDate, time.Second)

		// charge ledger entry records the liability
		entries, _, err := env.logs.List(ctx, billing.LogFilter{TenantID: &tenant.ID}, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, billing.LogTypeCharge, entries[0].Type)
		assert.True(t, entries[0].Amount.Equal(dec("19")))
		require.NotNil(t, entries[0].BillID)
		assert.Equal(t, bill.ID, *entries[0].BillID)

		// cursors advanced
		updatedSub, err := env.subscriptions.FindByTenant(ctx, tenant.ID)
		require.NoError(t, err)
		require.NotNil(t, updatedSub.LastBilledAt)
		assert.WithinDuration(t, bill.PeriodEnd, updatedSub.NextBillingDate, time.Second)

		updatedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		require.NotNil(t, updatedTenant.LastBilledAt)
		assert.WithinDuration(t, asOf, *updatedTenant.LastBilledAt, time.Second)
	})

	t.Run("regenerating within the open period yields nothing", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, false)

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		again, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("returns nil when billing disabled", func(t *testing.T) {
		tenant := env.createTenant(t)

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		assert.Nil(t, bill)
	})

	t.Run("returns nil when no active subscription", func(t *testing.T) {
		tenant := env.createTenant(t)
		tenant.EnableBilling(plan.ID)
		require.NoError(t, env.tenants.Update(ctx, tenant))

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		assert.Nil(t, bill)
	})

	t.Run("honors subscription overrides", func(t *testing.T) {
		tenant, sub := env.createBillableTenant(t, plan, false)
		perUser := dec("5")
		discount := dec("50")
		sub.OverrideFees(nil, &perUser, nil, nil, &discount)
		require.NoError(t, env.subscriptions.Update(ctx, sub))
		env.seedUsage(t, tenant.ID, 7, 0, time.Now().AddDate(0, -1, 0))

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		// (base 10 + users 2*5) * 50% discount
		assert.True(t, bill.TotalAmount.Equal(dec("10")), "total was %s", bill.TotalAmount)
		assert.True(t, bill.Discount.Equal(dec("10")))
	})
}

func TestAutoCharge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.createPlan(t, "starter")

	t.Run("settles bill from balance", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, true)
		require.NoError(t, tenant.AddBalance(dec("100")))
		require.NoError(t, env.tenants.Update(ctx, tenant))

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		charged, err := env.billingService.AutoCharge(ctx, tenant.ID, bill.ID)
		require.NoError(t, err)
		assert.True(t, charged)

		paid, err := env.bills.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.BillPaid, paid.Status)
		assert.Equal(t, "balance", paid.PaymentMethod)

		updatedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, updatedTenant.Balance.Equal(dec("100").Sub(bill.TotalAmount)))

		logType := billing.LogTypeAutoCharge
		entries, _, err := env.logs.List(ctx, billing.LogFilter{TenantID: &tenant.ID, Type: &logType}, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(bill.TotalAmount))
	})

	t.Run("declines on insufficient balance without partial charge", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, true)
		// balance 0, credit limit 0, bill total 10

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		charged, err := env.billingService.AutoCharge(ctx, tenant.ID, bill.ID)
		require.NoError(t, err)
		assert.False(t, charged)

		unchanged, err := env.bills.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.BillPending, unchanged.Status)

		updatedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, updatedTenant.Balance.IsZero())
	})

	t.Run("credit limit extends the spendable balance", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, true)
		tenant.CreditLimit = dec("50")
		require.NoError(t, env.tenants.Update(ctx, tenant))

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		charged, err := env.billingService.AutoCharge(ctx, tenant.ID, bill.ID)
		require.NoError(t, err)
		assert.True(t, charged)

		updatedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, updatedTenant.Balance.IsNegative())
	})

	t.Run("declines when auto charge is off", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, false)
		require.NoError(t, tenant.AddBalance(dec("100")))
		require.NoError(t, env.tenants.Update(ctx, tenant))

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		charged, err := env.billingService.AutoCharge(ctx, tenant.ID, bill.ID)
		require.NoError(t, err)
		assert.False(t, charged)
	})
}

func TestApplyPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.createPlan(t, "starter")

	t.Run("partial payments accumulate to paid", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, false)
		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill) // total 10

		partial, err := env.billingService.ApplyPayment(ctx, bill.ID, dec("4"), "bank_transfer", appbilling.Actor{})
		require.NoError(t, err)
		assert.Equal(t, billing.BillPending, partial.Status)
		assert.True(t, partial.PaidAmount.Equal(dec("4")))

		settled, err := env.billingService.ApplyPayment(ctx, bill.ID, dec("6"), "bank_transfer", appbilling.Actor{})
		require.NoError(t, err)
		assert.Equal(t, billing.BillPaid, settled.Status)
		require.NotNil(t, settled.PaidAt)

		logType := billing.LogTypePayment
		entries, total, err := env.logs.List(ctx, billing.LogFilter{TenantID: &tenant.ID, Type: &logType}, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, entries, 2)
	})

	t.Run("restores a negative balance", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, false)
		tenant.SetBalance(dec("-10"))
		require.NoError(t, env.tenants.Update(ctx, tenant))

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		_, err = env.billingService.ApplyPayment(ctx, bill.ID, dec("10"), "bank_transfer", appbilling.Actor{})
		require.NoError(t, err)

		updatedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, updatedTenant.Balance.IsZero())
	})

	t.Run("rejects payment on a cancelled bill", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, false)
		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, bill)

		_, err = env.billingService.CancelBill(ctx, bill.ID, "duplicate")
		require.NoError(t, err)

		_, err = env.billingService.ApplyPayment(ctx, bill.ID, dec("10"), "bank_transfer", appbilling.Actor{})
		require.Error(t, err)
	})
}

func TestProcessOverdueBills(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.createPlan(t, "starter")

	t.Run("marks past-due bills and suspends exhausted tenants", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, false)
		tenant.SetBalance(dec("-5")) // credit limit 0: exhausted
		require.NoError(t, env.tenants.Update(ctx, tenant))

		// bill issued 10 days ago is 3 days past due
		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now().AddDate(0, 0, -10))
		require.NoError(t, err)
		require.NotNil(t, bill)

		count, err := env.billingService.ProcessOverdueBills(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Contains(t, env.notifier.notified, bill.BillNumber)

		overdue, err := env.bills.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.BillOverdue, overdue.Status)

		suspendedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.False(t, suspendedTenant.Status)

		suspendedSub, err := env.subscriptions.FindByTenant(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.SubscriptionSuspended, suspendedSub.Status)

		// re-running finds nothing
		count, err = env.billingService.ProcessOverdueBills(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("marks every past-due bill of an already-suspended tenant", func(t *testing.T) {
		tenant := env.createTenant(t)
		tenant.EnableBilling(plan.ID)
		tenant.SetBalance(dec("-5")) // credit limit 0: exhausted
		require.NoError(t, env.tenants.Update(ctx, tenant))

		start := time.Now().AddDate(0, -4, 0)
		sub, err := billing.NewSubscription(tenant.ID, plan.ID, billing.CycleMonthly, start)
		require.NoError(t, err)
		require.NoError(t, env.subscriptions.Save(ctx, sub))

		first, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now().AddDate(0, 0, -70))
		require.NoError(t, err)
		require.NotNil(t, first)
		second, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now().AddDate(0, 0, -10))
		require.NoError(t, err)
		require.NotNil(t, second)

		// The first bill suspends the tenant and its subscription; the
		// second must still go overdue in the same sweep.
		count, err := env.billingService.ProcessOverdueBills(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		for _, id := range []uuid.UUID{first.ID, second.ID} {
			found, err := env.bills.FindByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, billing.BillOverdue, found.Status)
		}
		assert.Contains(t, env.notifier.notified, first.BillNumber)
		assert.Contains(t, env.notifier.notified, second.BillNumber)

		count, err = env.billingService.ProcessOverdueBills(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("leaves tenants within their credit limit active", func(t *testing.T) {
		tenant, _ := env.createBillableTenant(t, plan, false)
		tenant.CreditLimit = dec("100")
		tenant.SetBalance(dec("-5"))
		require.NoError(t, env.tenants.Update(ctx, tenant))

		bill, err := env.billingService.GenerateBill(ctx, tenant.ID, time.Now().AddDate(0, 0, -10))
		require.NoError(t, err)
		require.NotNil(t, bill)

		count, err := env.billingService.ProcessOverdueBills(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		activeTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, activeTenant.Status)
	})
}

func TestBatchGenerateBills(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.createPlan(t, "starter")

	chargedTenant, _ := env.createBillableTenant(t, plan, true)
	require.NoError(t, chargedTenant.AddBalance(dec("100")))
	require.NoError(t, env.tenants.Update(ctx, chargedTenant))

	pendingTenant, _ := env.createBillableTenant(t, plan, false)

	// not due: next billing date in the future
	notDueTenant := env.createTenant(t)
	notDueTenant.EnableBilling(plan.ID)
	require.NoError(t, env.tenants.Update(ctx, notDueTenant))
	futureSub, err := billing.NewSubscription(notDueTenant.ID, plan.ID, billing.CycleMonthly, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.subscriptions.Save(ctx, futureSub))

	result, err := env.billingService.BatchGenerateBills(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Success)
	assert.Zero(t, result.Failed)
	assert.Zero(t, result.Skipped)

	// the auto-charge tenant's bill is settled, the other stays pending
	chargedBills, _, err := env.bills.List(ctx, billing.BillFilter{TenantID: &chargedTenant.ID}, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, chargedBills, 1)
	assert.Equal(t, billing.BillPaid, chargedBills[0].Status)

	pendingBills, _, err := env.bills.List(ctx, billing.BillFilter{TenantID: &pendingTenant.ID}, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, pendingBills, 1)
	assert.Equal(t, billing.BillPending, pendingBills[0].Status)

	// idempotent: cursors advanced, nothing due anymore
	result, err = env.billingService.BatchGenerateBills(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Success)
}

func TestAdjustBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenant := env.createTenant(t)
	actorID := uuid.New()
	actor := appbilling.Actor{UserID: &actorID, IPAddress: "203.0.113.7"}

	t.Run("add", func(t *testing.T) {
		adj, err := env.billingService.AdjustBalance(ctx, tenant.ID, appbilling.AdjustmentAdd, dec("50"), "Initial top-up", actor)
		require.NoError(t, err)
		assert.True(t, adj.BalanceBefore.IsZero())
		assert.True(t, adj.BalanceAfter.Equal(dec("50")))
	})

	t.Run("deduct", func(t *testing.T) {
		adj, err := env.billingService.AdjustBalance(ctx, tenant.ID, appbilling.AdjustmentDeduct, dec("20"), "Correction", actor)
		require.NoError(t, err)
		assert.True(t, adj.BalanceAfter.Equal(dec("30")))
	})

	t.Run("set", func(t *testing.T) {
		adj, err := env.billingService.AdjustBalance(ctx, tenant.ID, appbilling.AdjustmentSet, dec("7"), "Reset", actor)
		require.NoError(t, err)
		assert.True(t, adj.BalanceAfter.Equal(dec("7")))

		logType := billing.LogTypeAdjustment
		entries, total, err := env.logs.List(ctx, billing.LogFilter{TenantID: &tenant.ID, Type: &logType}, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		// newest first: the "set" entry records the absolute delta
		assert.True(t, entries[0].Amount.Equal(dec("23")))
		require.NotNil(t, entries[0].UserID)
		assert.Equal(t, actorID, *entries[0].UserID)
		assert.Equal(t, "203.0.113.7", entries[0].IPAddress)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := env.billingService.AdjustBalance(ctx, tenant.ID, "divide", dec("2"), "nope", actor)
		require.Error(t, err)
	})
}

func TestSubscriptionService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	planA := env.createPlan(t, "starter")
	planB := env.createPlan(t, "pro")

	tenant := env.createTenant(t)

	t.Run("upsert creates and enables billing", func(t *testing.T) {
		sub, err := env.subscriptionService.Upsert(ctx, tenant.ID, appbilling.UpsertSubscriptionInput{
			BillingPlanID: planA.ID,
			BillingCycle:  "monthly",
			AutoCharge:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, planA.ID, sub.BillingPlanID)
		assert.Equal(t, billing.SubscriptionActive, sub.Status)
		assert.True(t, sub.AutoCharge)

		updatedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, updatedTenant.BillingEnabled)
		require.NotNil(t, updatedTenant.BillingPlanID)
		assert.Equal(t, planA.ID, *updatedTenant.BillingPlanID)
	})

	t.Run("upsert updates in place", func(t *testing.T) {
		discount := dec("10")
		sub, err := env.subscriptionService.Upsert(ctx, tenant.ID, appbilling.UpsertSubscriptionInput{
			BillingPlanID:  planB.ID,
			BillingCycle:   "quarterly",
			CustomDiscount: &discount,
		})
		require.NoError(t, err)
		assert.Equal(t, planB.ID, sub.BillingPlanID)
		assert.Equal(t, billing.CycleQuarterly, sub.BillingCycle)

		// still exactly one subscription row for the tenant
		var count int64
		require.NoError(t, env.db.Model(&models.SubscriptionModel{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("unknown cycle falls back to monthly", func(t *testing.T) {
		sub, err := env.subscriptionService.Upsert(ctx, tenant.ID, appbilling.UpsertSubscriptionInput{
			BillingPlanID: planA.ID,
			BillingCycle:  "weekly",
		})
		require.NoError(t, err)
		assert.Equal(t, billing.CycleMonthly, sub.BillingCycle)
	})

	t.Run("upsert rejects unknown plan", func(t *testing.T) {
		_, err := env.subscriptionService.Upsert(ctx, tenant.ID, appbilling.UpsertSubscriptionInput{
			BillingPlanID: uuid.New(),
			BillingCycle:  "monthly",
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("cancel disables billing and retains history", func(t *testing.T) {
		require.NoError(t, env.subscriptionService.Cancel(ctx, tenant.ID))

		sub, err := env.subscriptionService.Get(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.SubscriptionCancelled, sub.Status)

		updatedTenant, err := env.tenants.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.False(t, updatedTenant.BillingEnabled)
	})

	t.Run("cancel without subscription", func(t *testing.T) {
		orphan := env.createTenant(t)
		assert.ErrorIs(t, env.subscriptionService.Cancel(ctx, orphan.ID), shared.ErrNotFound)
	})
}

func TestStatsService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.createPlan(t, "starter")

	paidTenant, _ := env.createBillableTenant(t, plan, true)
	require.NoError(t, paidTenant.AddBalance(dec("100")))
	require.NoError(t, env.tenants.Update(ctx, paidTenant))
	env.createBillableTenant(t, plan, false)

	_, err := env.billingService.BatchGenerateBills(ctx, time.Now())
	require.NoError(t, err)

	stats, err := env.statsService.Statistics(ctx, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalBills)
	assert.EqualValues(t, 2, stats.ActiveSubscriptions)
	assert.EqualValues(t, 2, stats.TotalTenantsBilled)
	assert.True(t, stats.PaidAmount.Equal(dec("10")))
	assert.True(t, stats.PendingAmount.Equal(dec("10")))
	require.Len(t, stats.SubscriptionsByPlan, 1)
	assert.EqualValues(t, 2, stats.SubscriptionsByPlan[0].Count)
	require.NotEmpty(t, stats.MonthlyTrend)
}
