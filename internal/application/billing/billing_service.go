package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/identity"
	"github.com/reseller/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OverdueNotifier is the outbound port for overdue notifications. The
// sweep calls it after a bill transitions to overdue; delivery failures
// must not fail the sweep.
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context, bill *billing.Bill)
}

// LogOverdueNotifier records overdue notifications in the log. Used until
// a real delivery channel (mail, webhook) is wired up.
type LogOverdueNotifier struct {
	logger *zap.Logger
}

// NewLogOverdueNotifier creates a notifier that only logs
func NewLogOverdueNotifier(logger *zap.Logger) *LogOverdueNotifier {
	return &LogOverdueNotifier{logger: logger}
}

// NotifyOverdue logs the overdue bill
func (n *LogOverdueNotifier) NotifyOverdue(_ context.Context, bill *billing.Bill) {
	n.logger.Info("Bill is overdue",
		zap.String("bill_id", bill.ID.String()),
		zap.String("bill_number", bill.BillNumber),
		zap.String("tenant_id", bill.TenantID.String()),
		zap.String("total_amount", bill.TotalAmount.String()))
}

// Actor identifies who performed a balance-affecting operation, for
// audit attribution on ledger entries.
type Actor struct {
	UserID    *uuid.UUID
	IPAddress string
}

// AdjustmentType selects how a manual balance adjustment is applied
type AdjustmentType string

const (
	AdjustmentAdd    AdjustmentType = "add"
	AdjustmentDeduct AdjustmentType = "deduct"
	AdjustmentSet    AdjustmentType = "set"
)

// IsValid checks if the adjustment type is known
func (t AdjustmentType) IsValid() bool {
	switch t {
	case AdjustmentAdd, AdjustmentDeduct, AdjustmentSet:
		return true
	}
	return false
}

// BatchResult tallies one batch generation run
type BatchResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// BalanceAdjustment reports a manual balance change
type BalanceAdjustment struct {
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// BillingServiceConfig carries the orchestrator's tunables
type BillingServiceConfig struct {
	OverdueBatchSize int
	BatchWorkers     int
}

// BillingService orchestrates the billing cycle: bill generation,
// auto-charge, payment application, the overdue sweep and manual balance
// adjustments. Every multi-step mutation runs inside one transaction
// with the affected tenant or subscription row locked.
type BillingService struct {
	txScope       TransactionScope
	tenants       identity.TenantRepository
	subscriptions billing.SubscriptionRepository
	bills         billing.BillRepository
	usage         *UsageService
	plans         *PlanService
	notifier      OverdueNotifier
	config        BillingServiceConfig
	logger        *zap.Logger
}

// NewBillingService creates a new BillingService
func NewBillingService(
	txScope TransactionScope,
	tenants identity.TenantRepository,
	subscriptions billing.SubscriptionRepository,
	bills billing.BillRepository,
	usage *UsageService,
	plans *PlanService,
	notifier OverdueNotifier,
	config BillingServiceConfig,
	logger *zap.Logger,
) *BillingService {
	if config.OverdueBatchSize <= 0 {
		config.OverdueBatchSize = 100
	}
	if config.BatchWorkers <= 0 {
		config.BatchWorkers = 1
	}
	return &BillingService{
		txScope:       txScope,
		tenants:       tenants,
		subscriptions: subscriptions,
		bills:         bills,
		usage:         usage,
		plans:         plans,
		notifier:      notifier,
		config:        config,
		logger:        logger,
	}
}

// GenerateBill issues the bill for the tenant's current open period.
// It returns (nil, nil) when the tenant has billing disabled, no active
// subscription exists, or the open period has not closed yet; the missing
// subscription is logged as a warning since it indicates a misconfigured
// tenant. The bill, the charge ledger entry
// and both cursor updates commit as one unit, with the subscription row
// locked so the same period can never be billed twice.
func (s *BillingService) GenerateBill(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*billing.Bill, error) {
	var result *billing.Bill
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		tenant, err := repos.Tenants().FindByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if !tenant.BillingEnabled {
			return nil
		}

		sub, err := repos.Subscriptions().FindActiveByTenantForUpdate(ctx, tenantID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				s.logger.Warn("Tenant has billing enabled but no active subscription",
					zap.String("tenant_id", tenantID.String()))
				return nil
			}
			return err
		}

		periodStart := sub.CurrentPeriodStart()
		periodEnd := sub.BillingCycle.Advance(periodStart)
		if periodEnd.After(asOf) {
			// The open period has not closed yet; the cursor says
			// everything before it is already billed.
			s.logger.Debug("Billing period still open, nothing to bill",
				zap.String("tenant_id", tenantID.String()),
				zap.Time("period_end", periodEnd))
			return nil
		}

		plan, err := s.plans.Resolve(ctx, sub.BillingPlanID)
		if err != nil {
			return fmt.Errorf("failed to resolve billing plan: %w", err)
		}

		snapshot, err := s.usage.Snapshot(ctx, tenantID, periodStart, periodEnd)
		if err != nil {
			return err
		}

		if violations := plan.CheckLimits(snapshot); len(violations) > 0 {
			s.logger.Warn("Tenant usage exceeds plan limits",
				zap.String("tenant_id", tenantID.String()),
				zap.Strings("violations", violations))
		}

		fees := plan.CalculateFees(snapshot, sub.Overrides())

		bill, err := billing.NewBill(tenantID, asOf, periodStart, periodEnd, fees, snapshot)
		if err != nil {
			return err
		}
		if err := repos.Bills().Save(ctx, bill); err != nil {
			return err
		}

		entry, err := billing.NewLogEntry(tenantID, billing.LogTypeCharge,
			bill.TotalAmount, tenant.Balance,
			fmt.Sprintf("Generated bill #%s", bill.BillNumber))
		if err != nil {
			return err
		}
		if err := repos.Logs().Append(ctx, entry.WithBill(bill.ID)); err != nil {
			return err
		}

		tenant.MarkBilled(asOf)
		if err := repos.Tenants().Update(ctx, tenant); err != nil {
			return err
		}

		sub.AdvanceCursor(asOf, periodEnd)
		if err := repos.Subscriptions().Update(ctx, sub); err != nil {
			return err
		}

		result = bill
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result != nil {
		s.logger.Info("Bill generated",
			zap.String("tenant_id", tenantID.String()),
			zap.String("bill_number", result.BillNumber),
			zap.String("total_amount", result.TotalAmount.String()))
	}
	return result, nil
}

// AutoCharge settles the bill from the tenant's balance. It declines
// without error when auto-charge is off or the balance plus credit does
// not cover the full total; a partial charge never happens. Deduction,
// bill settlement and the ledger entry commit as one unit with the
// tenant row locked.
func (s *BillingService) AutoCharge(ctx context.Context, tenantID, billID uuid.UUID) (bool, error) {
	charged := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sub, err := repos.Subscriptions().FindActiveByTenant(ctx, tenantID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if !sub.AutoCharge {
			return nil
		}

		tenant, err := repos.Tenants().FindByIDForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}
		bill, err := repos.Bills().FindByIDForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		if !bill.Status.CanApplyPayment() {
			return nil
		}

		totalDue := bill.TotalAmount
		if tenant.AvailableBalance().LessThan(totalDue) {
			s.logger.Warn("Insufficient balance for auto charge",
				zap.String("tenant_id", tenantID.String()),
				zap.String("bill_number", bill.BillNumber),
				zap.String("available_balance", tenant.AvailableBalance().String()),
				zap.String("total_due", totalDue.String()))
			return nil
		}

		balanceBefore := tenant.Balance
		if err := tenant.DeductBalance(totalDue); err != nil {
			return err
		}
		if err := repos.Tenants().Update(ctx, tenant); err != nil {
			return err
		}

		if err := bill.MarkPaid(billing.PaymentMethodBalance); err != nil {
			return err
		}
		if err := repos.Bills().Update(ctx, bill); err != nil {
			return err
		}

		entry, err := billing.NewLogEntry(tenantID, billing.LogTypeAutoCharge,
			totalDue, balanceBefore,
			fmt.Sprintf("Auto charge for bill #%s", bill.BillNumber))
		if err != nil {
			return err
		}
		if err := repos.Logs().Append(ctx, entry.WithBill(bill.ID)); err != nil {
			return err
		}

		charged = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if charged {
		s.logger.Info("Bill auto charged",
			zap.String("tenant_id", tenantID.String()),
			zap.String("bill_id", billID.String()))
	}
	return charged, nil
}

// ApplyPayment records a payment against the bill. Partial payments
// accumulate; the bill transitions to paid once the total is covered.
// The payment restores the tenant's balance only while it is negative,
// i.e. while unpaid charges are still outstanding against it.
func (s *BillingService) ApplyPayment(ctx context.Context, billID uuid.UUID, amount decimal.Decimal, method string, actor Actor) (*billing.Bill, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	var result *billing.Bill
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		bill, err := repos.Bills().FindByIDForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		if err := bill.ApplyPayment(amount, method); err != nil {
			return err
		}
		if err := repos.Bills().Update(ctx, bill); err != nil {
			return err
		}

		tenant, err := repos.Tenants().FindByIDForUpdate(ctx, bill.TenantID)
		if err != nil {
			return err
		}

		entry, err := billing.NewLogEntry(bill.TenantID, billing.LogTypePayment,
			amount, tenant.Balance,
			fmt.Sprintf("Payment for bill #%s", bill.BillNumber))
		if err != nil {
			return err
		}
		if err := repos.Logs().Append(ctx, entry.WithBill(bill.ID).WithActor(actor.UserID, actor.IPAddress)); err != nil {
			return err
		}

		if tenant.Balance.IsNegative() {
			if err := tenant.AddBalance(amount); err != nil {
				return err
			}
			if err := repos.Tenants().Update(ctx, tenant); err != nil {
				return err
			}
		}

		result = bill
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment applied",
		zap.String("bill_id", billID.String()),
		zap.String("amount", amount.String()),
		zap.String("method", method),
		zap.String("status", string(result.Status)))
	return result, nil
}

// CancelBill cancels a bill that has not been paid. Paid bills are
// financial records and cannot be cancelled.
func (s *BillingService) CancelBill(ctx context.Context, billID uuid.UUID, reason string) (*billing.Bill, error) {
	var result *billing.Bill
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		bill, err := repos.Bills().FindByIDForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		if err := bill.Cancel(reason); err != nil {
			return err
		}
		if err := repos.Bills().Update(ctx, bill); err != nil {
			return err
		}
		result = bill
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bill cancelled",
		zap.String("bill_id", billID.String()),
		zap.String("reason", reason))
	return result, nil
}

// ProcessOverdueBills walks all pending bills past their due date in
// bounded batches, marks them overdue, notifies, and suspends tenants
// whose balance has fallen below the credit limit. Safe to re-run:
// processed bills leave the query predicate. Returns the number of bills
// processed this sweep.
func (s *BillingService) ProcessOverdueBills(ctx context.Context, asOf time.Time) (int, error) {
	count := 0
	for {
		batch, err := s.bills.FindOverduePending(ctx, asOf, s.config.OverdueBatchSize)
		if err != nil {
			return count, err
		}
		if len(batch) == 0 {
			return count, nil
		}

		processed := 0
		for i := range batch {
			billID := batch[i].ID
			if err := s.processOverdueBill(ctx, billID, asOf); err != nil {
				// One bill's failure must not abort the sweep.
				s.logger.Error("Failed to process overdue bill",
					zap.String("bill_id", billID.String()),
					zap.Error(err))
				continue
			}
			processed++
			count++
		}

		if len(batch) < s.config.OverdueBatchSize {
			return count, nil
		}
		if processed == 0 {
			// A full batch where every bill failed would be refetched
			// unchanged; bail out instead of spinning.
			return count, fmt.Errorf("overdue sweep stalled: all %d bills in the batch failed", len(batch))
		}
	}
}

func (s *BillingService) processOverdueBill(ctx context.Context, billID uuid.UUID, asOf time.Time) error {
	var overdueBill *billing.Bill
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		bill, err := repos.Bills().FindByIDForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		if !bill.MarkOverdue(asOf) {
			// Paid or cancelled since the batch was read.
			return nil
		}
		if err := repos.Bills().Update(ctx, bill); err != nil {
			return err
		}

		tenant, err := repos.Tenants().FindByIDForUpdate(ctx, bill.TenantID)
		if err != nil {
			return err
		}
		if tenant.CreditExhausted() {
			tenant.Suspend()
			if err := repos.Tenants().Update(ctx, tenant); err != nil {
				return err
			}
			if err := repos.Subscriptions().SuspendByTenant(ctx, tenant.ID); err != nil {
				return err
			}
			s.logger.Warn("Tenant suspended due to overdue bills",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("balance", tenant.Balance.String()),
				zap.String("credit_limit", tenant.CreditLimit.String()))
		}

		overdueBill = bill
		return nil
	})
	if err != nil {
		return err
	}

	if overdueBill != nil {
		s.notifier.NotifyOverdue(ctx, overdueBill)
	}
	return nil
}

// BatchGenerateBills generates bills for every billing-enabled tenant
// whose subscription is due, attempting auto-charge on each produced
// bill. Tenants are processed by a worker pool; one tenant's failure is
// counted and logged without aborting the batch.
func (s *BillingService) BatchGenerateBills(ctx context.Context, asOf time.Time) (BatchResult, error) {
	tenantIDs, err := s.subscriptions.FindDueTenants(ctx, asOf)
	if err != nil {
		return BatchResult{}, err
	}
	if len(tenantIDs) == 0 {
		return BatchResult{}, nil
	}

	var (
		mu     sync.Mutex
		result BatchResult
		wg     sync.WaitGroup
	)
	jobs := make(chan uuid.UUID)

	workers := s.config.BatchWorkers
	if workers > len(tenantIDs) {
		workers = len(tenantIDs)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tenantID := range jobs {
				outcome := s.generateForTenant(ctx, tenantID, asOf)
				mu.Lock()
				switch outcome {
				case batchSuccess:
					result.Success++
				case batchSkipped:
					result.Skipped++
				default:
					result.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, tenantID := range tenantIDs {
		jobs <- tenantID
	}
	close(jobs)
	wg.Wait()

	s.logger.Info("Batch bill generation complete",
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

type batchOutcome int

const (
	batchSuccess batchOutcome = iota
	batchFailed
	batchSkipped
)

func (s *BillingService) generateForTenant(ctx context.Context, tenantID uuid.UUID, asOf time.Time) batchOutcome {
	bill, err := s.GenerateBill(ctx, tenantID, asOf)
	if err != nil {
		s.logger.Error("Failed to generate bill for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return batchFailed
	}
	if bill == nil {
		return batchSkipped
	}

	charged, err := s.AutoCharge(ctx, tenantID, bill.ID)
	if err != nil {
		// The bill exists; an auto-charge failure leaves it pending.
		s.logger.Error("Auto charge failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("bill_id", bill.ID.String()),
			zap.Error(err))
	} else if charged {
		s.logger.Info("Auto charged generated bill",
			zap.String("tenant_id", tenantID.String()),
			zap.String("bill_id", bill.ID.String()))
	}
	return batchSuccess
}

// ListBills returns bills matching the filter with the total count
func (s *BillingService) ListBills(ctx context.Context, filter billing.BillFilter, page shared.Filter) ([]billing.Bill, int64, error) {
	return s.bills.List(ctx, filter, page)
}

// GetBill returns a single bill by ID
func (s *BillingService) GetBill(ctx context.Context, billID uuid.UUID) (*billing.Bill, error) {
	return s.bills.FindByID(ctx, billID)
}

// AdjustBalance applies a manual balance adjustment and appends an
// adjustment ledger entry with before/after snapshots, all in one
// transaction with the tenant row locked against a racing auto-charge.
func (s *BillingService) AdjustBalance(ctx context.Context, tenantID uuid.UUID, adjType AdjustmentType, amount decimal.Decimal, description string, actor Actor) (*BalanceAdjustment, error) {
	if !adjType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ADJUSTMENT", "Unknown balance adjustment type")
	}

	var result *BalanceAdjustment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		tenant, err := repos.Tenants().FindByIDForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}

		balanceBefore := tenant.Balance
		switch adjType {
		case AdjustmentAdd:
			err = tenant.AddBalance(amount)
		case AdjustmentDeduct:
			err = tenant.DeductBalance(amount)
		case AdjustmentSet:
			tenant.SetBalance(amount)
		}
		if err != nil {
			return err
		}
		if err := repos.Tenants().Update(ctx, tenant); err != nil {
			return err
		}

		entry, err := billing.NewAdjustmentEntry(tenantID, balanceBefore, tenant.Balance, description)
		if err != nil {
			return err
		}
		if err := repos.Logs().Append(ctx, entry.WithActor(actor.UserID, actor.IPAddress)); err != nil {
			return err
		}

		result = &BalanceAdjustment{
			BalanceBefore: balanceBefore,
			BalanceAfter:  tenant.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Tenant balance adjusted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("type", string(adjType)),
		zap.String("balance_before", result.BalanceBefore.String()),
		zap.String("balance_after", result.BalanceAfter.String()))
	return result, nil
}
