package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/infrastructure/auth"
	"github.com/reseller/backend/internal/infrastructure/cache"
	"github.com/reseller/backend/internal/infrastructure/config"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/infrastructure/scheduler"
	"github.com/reseller/backend/internal/infrastructure/telemetry"
	"github.com/reseller/backend/internal/interfaces/http/handler"
	"github.com/reseller/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled, log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	// Redis backs the plan cache and the scheduler run lock. Without it
	// the server falls back to an in-process cache and lock-free runs.
	var planCache appbilling.PlanCache
	var runLock cache.RunLock
	if cfg.Redis.Host != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		planCache = cache.NewRedisPlanCache(redisClient, log)
		runLock = cache.NewRedisRunLock(redisClient, "")
		log.Info("Redis connected",
			zap.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)))
	} else {
		inmem := cache.NewInMemoryPlanCache(cache.WithInMemoryLogger(log))
		defer inmem.Stop()
		planCache = inmem
		runLock = cache.NoopRunLock{}
		log.Info("Redis not configured, using in-process plan cache")
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	planRepo := persistence.NewGormPlanRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	billRepo := persistence.NewGormBillRepository(db.DB)
	logRepo := persistence.NewGormBillingLogRepository(db.DB)
	usageSource := persistence.NewGormUsageSource(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Application services
	usageService := appbilling.NewUsageService(usageSource, log)
	planService := appbilling.NewPlanService(planRepo, planCache, cfg.Billing.PlanCacheTTL, log)
	billingService := appbilling.NewBillingService(
		txScope, tenantRepo, subscriptionRepo, billRepo,
		usageService, planService,
		appbilling.NewLogOverdueNotifier(log),
		appbilling.BillingServiceConfig{
			OverdueBatchSize: cfg.Billing.OverdueBatchSize,
			BatchWorkers:     cfg.Billing.BatchWorkers,
		},
		log,
	)
	subscriptionService := appbilling.NewSubscriptionService(txScope, subscriptionRepo, log)
	statsService := appbilling.NewStatsService(billRepo, subscriptionRepo, tenantRepo, logRepo, log)

	// Billing scheduler
	billingScheduler := scheduler.NewBillingScheduler(billingService, runLock, log, scheduler.BillingSchedulerConfig{
		Enabled:         cfg.Scheduler.Enabled,
		BillingInterval: cfg.Scheduler.BillingInterval,
		OverdueInterval: cfg.Scheduler.OverdueInterval,
		JobTimeout:      cfg.Scheduler.JobTimeout,
	})
	if err := billingScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start billing scheduler", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT)

	engine := router.New(router.Options{
		Config:      cfg,
		Logger:      log,
		JWTService:  jwtService,
		HealthCheck: healthHandler(db),
	}, router.Handlers{
		Plans:         handler.NewBillingPlanHandler(planService),
		Subscriptions: handler.NewSubscriptionHandler(subscriptionService),
		Bills:         handler.NewBillHandler(billingService),
		Stats:         handler.NewStatsHandler(statsService),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := billingScheduler.Stop(ctx); err != nil {
		log.Warn("Billing scheduler did not stop cleanly", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports liveness and database reachability
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
