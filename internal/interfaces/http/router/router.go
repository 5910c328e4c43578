package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/reseller/backend/internal/infrastructure/auth"
	"github.com/reseller/backend/internal/infrastructure/config"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/interfaces/http/handler"
	"github.com/reseller/backend/internal/interfaces/http/middleware"
)

// Handlers bundles the handlers the router mounts
type Handlers struct {
	Plans         *handler.BillingPlanHandler
	Subscriptions *handler.SubscriptionHandler
	Bills         *handler.BillHandler
	Stats         *handler.StatsHandler
}

// Options controls router construction
type Options struct {
	Config      *config.Config
	Logger      *zap.Logger
	JWTService  *auth.JWTService
	HealthCheck gin.HandlerFunc
}

// New builds the HTTP engine with the full middleware stack and the
// admin billing API mounted under /api/v1.
func New(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			opts.Logger.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(opts.Logger))
	engine.Use(logger.GinMiddleware(opts.Logger))

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	if opts.HealthCheck != nil {
		engine.GET("/health", opts.HealthCheck)
	}

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: opts.JWTService,
		Logger:     opts.Logger,
	}))

	billing := api.Group("/billing")
	billing.Use(middleware.TenantContextWithConfig(middleware.TenantMiddlewareConfig{
		Logger: opts.Logger,
	}))

	// Billing plan catalog
	billing.GET("/plans", h.Plans.List)
	billing.POST("/plans", h.Plans.Create)
	billing.GET("/plans/:id", h.Plans.Get)
	billing.PUT("/plans/:id", h.Plans.Update)
	billing.DELETE("/plans/:id", h.Plans.Delete)

	// Tenant subscriptions and accounts
	billing.GET("/tenants/:tenant_id/subscription", h.Subscriptions.Get)
	billing.PUT("/tenants/:tenant_id/subscription", h.Subscriptions.Upsert)
	billing.DELETE("/tenants/:tenant_id/subscription", h.Subscriptions.Cancel)
	billing.GET("/tenants/:tenant_id/account", h.Stats.TenantAccount)
	billing.POST("/tenants/:tenant_id/balance", h.Bills.AdjustBalance)

	// Bill lifecycle
	billing.GET("/bills", h.Bills.List)
	billing.GET("/bills/:id", h.Bills.Get)
	billing.POST("/bills/generate", h.Bills.Generate)
	billing.POST("/bills/generate-batch", h.Bills.BatchGenerate)
	billing.POST("/bills/process-overdue", h.Bills.ProcessOverdue)
	billing.POST("/bills/:id/pay", h.Bills.Pay)
	billing.POST("/bills/:id/cancel", h.Bills.Cancel)

	// Reports and the ledger
	billing.GET("/statistics", h.Stats.Statistics)
	billing.GET("/logs", h.Stats.ListLogs)

	return engine
}
