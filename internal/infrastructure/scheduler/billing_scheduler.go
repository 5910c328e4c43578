// Package scheduler drives the periodic billing runs.
package scheduler

import (
	"context"
	"sync"
	"time"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// Run lock names; one per scheduled job so the jobs do not serialize
// against each other.
const (
	billingRunLock = "batch_generate"
	overdueRunLock = "overdue_sweep"
)

// BillingSchedulerConfig holds configuration for the billing scheduler
type BillingSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// BillingInterval is how often batch bill generation runs
	BillingInterval time.Duration

	// OverdueInterval is how often the overdue sweep runs
	OverdueInterval time.Duration

	// JobTimeout bounds a single run
	JobTimeout time.Duration
}

// DefaultBillingSchedulerConfig returns default configuration
func DefaultBillingSchedulerConfig() BillingSchedulerConfig {
	return BillingSchedulerConfig{
		Enabled:         true,
		BillingInterval: time.Hour,
		OverdueInterval: 6 * time.Hour,
		JobTimeout:      30 * time.Minute,
	}
}

// BillingScheduler periodically triggers batch bill generation and the
// overdue sweep. Both underlying operations are idempotent, so an
// interval loop is sufficient; the run lock keeps multiple instances
// from running the same job concurrently.
type BillingScheduler struct {
	service   *appbilling.BillingService
	runLock   cache.RunLock
	logger    *zap.Logger
	config    BillingSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewBillingScheduler creates a new billing scheduler. runLock may be a
// NoopRunLock for single-instance deployments.
func NewBillingScheduler(
	service *appbilling.BillingService,
	runLock cache.RunLock,
	logger *zap.Logger,
	config BillingSchedulerConfig,
) *BillingScheduler {
	if runLock == nil {
		runLock = cache.NoopRunLock{}
	}
	return &BillingScheduler{
		service: service,
		runLock: runLock,
		logger:  logger,
		config:  config,
	}
}

// Start starts the scheduler loops
func (s *BillingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Billing scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runInterval(ctx, s.config.BillingInterval, s.executeBillingRun)
	go s.runInterval(ctx, s.config.OverdueInterval, s.executeOverdueSweep)

	s.logger.Info("Billing scheduler started",
		zap.Duration("billing_interval", s.config.BillingInterval),
		zap.Duration("overdue_interval", s.config.OverdueInterval),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight runs
func (s *BillingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Billing scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Billing scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *BillingScheduler) runInterval(ctx context.Context, interval time.Duration, job func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (s *BillingScheduler) executeBillingRun(ctx context.Context) {
	s.withLock(ctx, billingRunLock, func(runCtx context.Context) {
		started := time.Now()
		result, err := s.service.BatchGenerateBills(runCtx, started)
		if err != nil {
			s.logger.Error("Scheduled batch bill generation failed", zap.Error(err))
			return
		}
		s.logger.Info("Scheduled batch bill generation complete",
			zap.Int("success", result.Success),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

func (s *BillingScheduler) executeOverdueSweep(ctx context.Context) {
	s.withLock(ctx, overdueRunLock, func(runCtx context.Context) {
		started := time.Now()
		count, err := s.service.ProcessOverdueBills(runCtx, started)
		if err != nil {
			s.logger.Error("Scheduled overdue sweep failed",
				zap.Int("processed", count),
				zap.Error(err))
			return
		}
		s.logger.Info("Scheduled overdue sweep complete",
			zap.Int("processed", count),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

func (s *BillingScheduler) withLock(ctx context.Context, name string, job func(context.Context)) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	acquired, err := s.runLock.Acquire(runCtx, name, s.config.JobTimeout)
	if err != nil {
		s.logger.Error("Failed to acquire run lock", zap.String("job", name), zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Debug("Run lock held elsewhere, skipping", zap.String("job", name))
		return
	}
	defer func() {
		if err := s.runLock.Release(context.WithoutCancel(runCtx), name); err != nil {
			s.logger.Warn("Failed to release run lock", zap.String("job", name), zap.Error(err))
		}
	}()

	job(runCtx)
}
