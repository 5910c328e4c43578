package persistence

import (
	"context"
	"testing"
	"time"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/identity"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	tenantscope "github.com/reseller/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newStoredPlan(t *testing.T, db *gorm.DB, code string) *billing.Plan {
	t.Helper()
	plan, err := billing.NewPlan(billing.PlanParams{
		Name:        "Plan " + code,
		Code:        code,
		BaseFee:     mustDec("10"),
		FreeUsers:   5,
		PerUserFee:  mustDec("2"),
		FreeTraffic: 10,
		PerGBFee:    mustDec("1"),
		IsActive:    true,
	})
	require.NoError(t, err)
	require.NoError(t, NewGormPlanRepository(db).Save(context.Background(), plan))
	return plan
}

func newStoredTenant(t *testing.T, db *gorm.DB) *identity.Tenant {
	t.Helper()
	tenant, err := identity.NewTenant("Tenant "+uuid.NewString()[:8], uuid.NewString()[:8]+".example.com")
	require.NoError(t, err)
	require.NoError(t, NewGormTenantRepository(db).Save(context.Background(), tenant))
	return tenant
}

func TestGormPlanRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormPlanRepository(db)
	ctx := context.Background()

	t.Run("save and find by code", func(t *testing.T) {
		plan := newStoredPlan(t, db, "starter")

		found, err := repo.FindByCode(ctx, "starter")
		require.NoError(t, err)
		assert.Equal(t, plan.ID, found.ID)
		assert.True(t, found.BaseFee.Equal(mustDec("10")))
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		dup, err := billing.NewPlan(billing.PlanParams{Name: "Dup", Code: "starter"})
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("find all active only", func(t *testing.T) {
		inactive, err := billing.NewPlan(billing.PlanParams{Name: "Legacy", Code: "legacy"})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, inactive))

		plans, total, err := repo.FindAll(ctx, true, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, plans, 1)
		assert.Equal(t, "starter", plans[0].Code)
	})

	t.Run("update persists changed rates", func(t *testing.T) {
		plan, err := repo.FindByCode(ctx, "starter")
		require.NoError(t, err)
		require.NoError(t, plan.ApplyParams(billing.PlanParams{
			Name:    plan.Name,
			Code:    plan.Code,
			BaseFee: mustDec("20"),
		}))
		require.NoError(t, repo.Update(ctx, plan))

		found, err := repo.FindByCode(ctx, "starter")
		require.NoError(t, err)
		assert.True(t, found.BaseFee.Equal(mustDec("20")))
		assert.False(t, found.IsActive) // zero values persisted too
	})

	t.Run("delete refused while referenced", func(t *testing.T) {
		plan, err := repo.FindByCode(ctx, "starter")
		require.NoError(t, err)
		tenant := newStoredTenant(t, db)
		sub, err := billing.NewSubscription(tenant.ID, plan.ID, billing.CycleMonthly, time.Now())
		require.NoError(t, err)
		require.NoError(t, NewGormSubscriptionRepository(db).Save(ctx, sub))

		assert.ErrorIs(t, repo.Delete(ctx, plan.ID), shared.ErrPlanInUse)
	})

	t.Run("delete unreferenced plan", func(t *testing.T) {
		plan, err := repo.FindByCode(ctx, "legacy")
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, plan.ID))
		_, err = repo.FindByCode(ctx, "legacy")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSubscriptionRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormSubscriptionRepository(db)
	ctx := context.Background()

	plan := newStoredPlan(t, db, "pro")
	tenant := newStoredTenant(t, db)
	tenant.EnableBilling(plan.ID)
	require.NoError(t, NewGormTenantRepository(db).Update(ctx, tenant))

	start := time.Now().AddDate(0, -2, 0)
	sub, err := billing.NewSubscription(tenant.ID, plan.ID, billing.CycleMonthly, start)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sub))

	t.Run("find active by tenant", func(t *testing.T) {
		found, err := repo.FindActiveByTenant(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, found.ID)
		assert.Equal(t, billing.SubscriptionActive, found.Status)
	})

	t.Run("due tenants include billing-enabled tenants past next billing date", func(t *testing.T) {
		ids, err := repo.FindDueTenants(ctx, time.Now())
		require.NoError(t, err)
		assert.Contains(t, ids, tenant.ID)
	})

	t.Run("due tenants exclude disabled tenants", func(t *testing.T) {
		other := newStoredTenant(t, db)
		otherSub, err := billing.NewSubscription(other.ID, plan.ID, billing.CycleMonthly, start)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, otherSub))
		// billing never enabled on the tenant row

		ids, err := repo.FindDueTenants(ctx, time.Now())
		require.NoError(t, err)
		assert.NotContains(t, ids, other.ID)
	})

	t.Run("cursor advancement survives the round trip", func(t *testing.T) {
		billedAt := time.Now()
		periodEnd := billing.CycleMonthly.Advance(billedAt)
		sub.AdvanceCursor(billedAt, periodEnd)
		require.NoError(t, repo.Update(ctx, sub))

		found, err := repo.FindByTenant(ctx, tenant.ID)
		require.NoError(t, err)
		require.NotNil(t, found.LastBilledAt)
		assert.WithinDuration(t, billedAt, *found.LastBilledAt, time.Second)
		assert.WithinDuration(t, periodEnd, found.NextBillingDate, time.Second)
	})

	t.Run("suspend by tenant", func(t *testing.T) {
		require.NoError(t, repo.SuspendByTenant(ctx, tenant.ID))
		found, err := repo.FindByTenant(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.SubscriptionSuspended, found.Status)

		_, err = repo.FindActiveByTenant(ctx, tenant.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		// repeat suspends are a no-op, not an error
		require.NoError(t, repo.SuspendByTenant(ctx, tenant.ID))
		require.NoError(t, repo.SuspendByTenant(ctx, uuid.New()))
	})

	t.Run("count active", func(t *testing.T) {
		count, err := repo.CountActive(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count) // only the second tenant's subscription remains active
	})

	t.Run("count by plan", func(t *testing.T) {
		counts, err := repo.CountByPlan(ctx)
		require.NoError(t, err)
		require.Len(t, counts, 1)
		assert.Equal(t, plan.ID, counts[0].PlanID)
		assert.EqualValues(t, 1, counts[0].Count)
	})
}

func newStoredBill(t *testing.T, db *gorm.DB, tenantID uuid.UUID, billingDate time.Time, total string) *billing.Bill {
	t.Helper()
	bill, err := billing.NewBill(tenantID, billingDate,
		billingDate.AddDate(0, -1, 0), billingDate,
		billing.FeeBreakdown{BaseFee: mustDec(total), Total: mustDec(total)},
		billing.UsageSnapshot{})
	require.NoError(t, err)
	require.NoError(t, NewGormBillRepository(db).Save(context.Background(), bill))
	return bill
}

func TestGormBillRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	tenantA := newStoredTenant(t, db)
	tenantB := newStoredTenant(t, db)

	now := time.Now()
	billA := newStoredBill(t, db, tenantA.ID, now.AddDate(0, -1, 0), "100")
	billB := newStoredBill(t, db, tenantB.ID, now, "50")

	t.Run("find by number", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, billA.BillNumber)
		require.NoError(t, err)
		assert.Equal(t, billA.ID, found.ID)
	})

	t.Run("list filtered by tenant", func(t *testing.T) {
		bills, total, err := repo.List(ctx, billing.BillFilter{TenantID: &tenantA.ID}, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, bills, 1)
		assert.Equal(t, billA.ID, bills[0].ID)
	})

	t.Run("list filtered by status and date range", func(t *testing.T) {
		status := billing.BillPending
		from := now.AddDate(0, 0, -7)
		bills, total, err := repo.List(ctx, billing.BillFilter{Status: &status, StartDate: &from}, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, bills, 1)
		assert.Equal(t, billB.ID, bills[0].ID)
	})

	t.Run("payment state survives the round trip", func(t *testing.T) {
		bill, err := repo.FindByID(ctx, billA.ID)
		require.NoError(t, err)
		require.NoError(t, bill.ApplyPayment(mustDec("100"), "manual"))
		require.NoError(t, repo.Update(ctx, bill))

		found, err := repo.FindByID(ctx, billA.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.BillPaid, found.Status)
		assert.True(t, found.PaidAmount.Equal(mustDec("100")))
		require.NotNil(t, found.PaidAt)
	})

	t.Run("overdue pending batch", func(t *testing.T) {
		// billB is pending with a due date 7 days after its billing date
		overdue, err := repo.FindOverduePending(ctx, now.AddDate(0, 0, 8), 100)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, billB.ID, overdue[0].ID)

		// once processed, the bill leaves the predicate
		b := overdue[0]
		require.True(t, b.MarkOverdue(now.AddDate(0, 0, 8)))
		require.NoError(t, repo.Update(ctx, &b))

		overdue, err = repo.FindOverduePending(ctx, now.AddDate(0, 0, 8), 100)
		require.NoError(t, err)
		assert.Empty(t, overdue)
	})

	t.Run("statistics group by status", func(t *testing.T) {
		stats, err := repo.Statistics(ctx, nil, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, stats.TotalBills)
		assert.True(t, stats.TotalAmount.Equal(mustDec("150")))
		assert.True(t, stats.PaidAmount.Equal(mustDec("100")))
		assert.True(t, stats.OverdueAmount.Equal(mustDec("50")))
	})

	t.Run("monthly trend", func(t *testing.T) {
		points, err := repo.MonthlyTrend(ctx, nil, nil)
		require.NoError(t, err)
		require.NotEmpty(t, points)
		var totalBills int64
		for _, p := range points {
			totalBills += p.Bills
		}
		assert.EqualValues(t, 2, totalBills)
	})
}

func TestGormBillingLogRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillingLogRepository(db)
	ctx := context.Background()

	tenant := newStoredTenant(t, db)
	entry, err := billing.NewLogEntry(tenant.ID, billing.LogTypeCharge, mustDec("25"), mustDec("100"), "Monthly bill")
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, entry.WithMetadata("bill_number", "BILL20240101ABCDEF")))

	payment, err := billing.NewLogEntry(tenant.ID, billing.LogTypePayment, mustDec("25"), mustDec("75"), "Payment received")
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, payment))

	t.Run("list by tenant", func(t *testing.T) {
		entries, total, err := repo.List(ctx, billing.LogFilter{TenantID: &tenant.ID}, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, entries, 2)
	})

	t.Run("list by type", func(t *testing.T) {
		logType := billing.LogTypeCharge
		entries, total, err := repo.List(ctx, billing.LogFilter{Type: &logType}, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].BalanceAfter.Equal(mustDec("75")))
		assert.Equal(t, "BILL20240101ABCDEF", entries[0].Metadata["bill_number"])
	})
}

func TestGormUsageSource(t *testing.T) {
	db := setupBillingTestDB(t)
	source := NewGormUsageSource(db)
	ctx := context.Background()

	tenant := newStoredTenant(t, db)
	other := newStoredTenant(t, db)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&models.MeteredUserModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: from, UpdatedAt: from},
		TenantID:  tenant.ID, Email: "a@example.com",
	}).Error)
	require.NoError(t, db.Create(&models.MeteredUserModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: from, UpdatedAt: from},
		TenantID:  tenant.ID, Email: "banned@example.com", Banned: true,
	}).Error)
	require.NoError(t, db.Create(&models.MeteredNodeModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: from, UpdatedAt: from},
		TenantID:  tenant.ID, Name: "node-1",
	}).Error)

	inWindow := from.AddDate(0, 0, 10)
	atBoundary := to // exclusive
	require.NoError(t, db.Create(&models.TrafficStatModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: inWindow, UpdatedAt: inWindow},
		TenantID:  tenant.ID, Upload: 1 << 30, Download: 2 << 30, RecordAt: inWindow,
	}).Error)
	require.NoError(t, db.Create(&models.TrafficStatModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: atBoundary, UpdatedAt: atBoundary},
		TenantID:  tenant.ID, Upload: 1 << 30, Download: 0, RecordAt: atBoundary,
	}).Error)
	require.NoError(t, db.Create(&models.TrafficStatModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: inWindow, UpdatedAt: inWindow},
		TenantID:  other.ID, Upload: 5 << 30, Download: 5 << 30, RecordAt: inWindow,
	}).Error)

	paidAt := inWindow
	require.NoError(t, db.Create(&models.MeteredOrderModel{
		BaseModel:   models.BaseModel{ID: uuid.New(), CreatedAt: inWindow, UpdatedAt: inWindow},
		TenantID:    tenant.ID,
		OrderNumber: "ORD-1",
		TotalAmount: mustDec("30"),
		Status:      models.OrderStatusPaid,
		PaidAt:      &paidAt,
	}).Error)
	require.NoError(t, db.Create(&models.MeteredOrderModel{
		BaseModel:   models.BaseModel{ID: uuid.New(), CreatedAt: inWindow, UpdatedAt: inWindow},
		TenantID:    tenant.ID,
		OrderNumber: "ORD-2",
		TotalAmount: mustDec("99"),
		Status:      "cancelled",
	}).Error)

	t.Run("count users excludes banned", func(t *testing.T) {
		count, err := source.CountUsers(ctx, tenant.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("count nodes", func(t *testing.T) {
		count, err := source.CountNodes(ctx, tenant.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("traffic sum covers the half-open window only", func(t *testing.T) {
		total, err := source.SumTraffic(ctx, tenant.ID, from, to)
		require.NoError(t, err)
		assert.EqualValues(t, 3<<30, total) // boundary row excluded
	})

	t.Run("traffic is tenant isolated", func(t *testing.T) {
		total, err := source.SumTraffic(ctx, other.ID, from, to)
		require.NoError(t, err)
		assert.EqualValues(t, 10<<30, total)
	})

	t.Run("orders and paid revenue", func(t *testing.T) {
		count, err := source.CountOrders(ctx, tenant.ID, from, to)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		revenue, err := source.SumPaidRevenue(ctx, tenant.ID, from, to)
		require.NoError(t, err)
		assert.True(t, revenue.Equal(mustDec("30"))) // cancelled order ignored
	})
}

func TestGormTransactionScope(t *testing.T) {
	db := setupBillingTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()

	tenant := newStoredTenant(t, db)

	t.Run("rolls back the whole unit on error", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
			bill := newBillInTx(t, repos, tenant.ID)
			entry, err := billing.NewLogEntry(tenant.ID, billing.LogTypeCharge, bill.TotalAmount, mustDec("0"), "Monthly bill")
			if err != nil {
				return err
			}
			if err := repos.Logs().Append(ctx, entry.WithBill(bill.ID)); err != nil {
				return err
			}
			return assert.AnError
		})
		require.Error(t, err)

		var billCount, logCount int64
		require.NoError(t, db.Model(&models.BillModel{}).Count(&billCount).Error)
		require.NoError(t, db.Model(&models.BillingLogModel{}).Count(&logCount).Error)
		assert.Zero(t, billCount)
		assert.Zero(t, logCount)
	})

	t.Run("commits on success", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
			newBillInTx(t, repos, tenant.ID)
			return nil
		})
		require.NoError(t, err)

		var billCount int64
		require.NoError(t, db.Model(&models.BillModel{}).Count(&billCount).Error)
		assert.EqualValues(t, 1, billCount)
	})
}

func newBillInTx(t *testing.T, repos appbilling.TransactionalRepositories, tenantID uuid.UUID) *billing.Bill {
	t.Helper()
	now := time.Now()
	bill, err := billing.NewBill(tenantID, now, now.AddDate(0, -1, 0), now,
		billing.FeeBreakdown{BaseFee: mustDec("10"), Total: mustDec("10")},
		billing.UsageSnapshot{})
	require.NoError(t, err)
	require.NoError(t, repos.Bills().Save(context.Background(), bill))
	return bill
}
