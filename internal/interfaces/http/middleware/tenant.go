package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/interfaces/http/dto"
)

// Tenant context keys
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
	TenantParamKey  = "tenant_id"
)

// TenantMiddlewareConfig holds configuration for tenant context middleware
type TenantMiddlewareConfig struct {
	// Required rejects requests that carry no tenant identification
	Required bool
	// Logger for middleware logging
	Logger *zap.Logger
}

// TenantContext extracts the tenant from the request and binds it to both
// the gin context and the request context so the scoped store and request
// logs see it. Extraction order: path parameter, then X-Tenant-ID header.
// The admin surface operates across tenants, so the tenant is optional by
// default; per-tenant routes carry it in the path.
func TenantContext() gin.HandlerFunc {
	return TenantContextWithConfig(TenantMiddlewareConfig{})
}

// TenantContextWithConfig returns tenant middleware with custom configuration
func TenantContextWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Param(TenantParamKey)
		if tenantID == "" {
			tenantID = c.GetHeader(TenantHeaderKey)
		}

		if tenantID == "" {
			if cfg.Required {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Tenant identification required"))
				return
			}
			c.Next()
			return
		}

		if _, err := uuid.Parse(tenantID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "Invalid tenant ID format"))
			return
		}

		c.Set(TenantIDKey, tenantID)

		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Tenant identified",
				zap.String("tenant_id", tenantID),
				zap.String("path", c.Request.URL.Path),
			)
		}

		c.Next()
	}
}

// GetTenantID retrieves the tenant ID from gin.Context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID retrieves the tenant ID as UUID from gin.Context
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(tenantID)
}
