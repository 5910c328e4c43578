package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/reseller/backend/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTenantContext(t *testing.T) {
	newEngine := func(cfg TenantMiddlewareConfig) (*gin.Engine, *string, *string) {
		var ginTenant, ctxTenant string
		engine := gin.New()
		engine.Use(TenantContextWithConfig(cfg))
		capture := func(c *gin.Context) {
			ginTenant = GetTenantID(c)
			ctxTenant = logger.GetTenantID(c.Request.Context())
			c.Status(http.StatusOK)
		}
		engine.GET("/tenants/:tenant_id/account", capture)
		engine.GET("/bills", capture)
		return engine, &ginTenant, &ctxTenant
	}

	t.Run("extracts tenant from path parameter", func(t *testing.T) {
		engine, ginTenant, ctxTenant := newEngine(TenantMiddlewareConfig{})
		tenantID := uuid.New().String()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenantID+"/account", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, *ginTenant)
		assert.Equal(t, tenantID, *ctxTenant)
	})

	t.Run("falls back to X-Tenant-ID header", func(t *testing.T) {
		engine, ginTenant, ctxTenant := newEngine(TenantMiddlewareConfig{})
		tenantID := uuid.New().String()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/bills", nil)
		req.Header.Set(TenantHeaderKey, tenantID)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, *ginTenant)
		assert.Equal(t, tenantID, *ctxTenant)
	})

	t.Run("path parameter wins over header", func(t *testing.T) {
		engine, ginTenant, _ := newEngine(TenantMiddlewareConfig{})
		pathTenant := uuid.New().String()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/tenants/"+pathTenant+"/account", nil)
		req.Header.Set(TenantHeaderKey, uuid.New().String())
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, pathTenant, *ginTenant)
	})

	t.Run("missing tenant passes through when optional", func(t *testing.T) {
		engine, ginTenant, ctxTenant := newEngine(TenantMiddlewareConfig{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/bills", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, *ginTenant)
		assert.Empty(t, *ctxTenant)
	})

	t.Run("missing tenant rejected when required", func(t *testing.T) {
		engine, _, _ := newEngine(TenantMiddlewareConfig{Required: true})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/bills", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed tenant id rejected", func(t *testing.T) {
		engine, _, _ := newEngine(TenantMiddlewareConfig{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/bills", nil)
		req.Header.Set(TenantHeaderKey, "not-a-uuid")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GetTenantUUID parses the bound tenant", func(t *testing.T) {
		tenantID := uuid.New()
		engine := gin.New()
		engine.Use(TenantContext())

		var got uuid.UUID
		engine.GET("/tenants/:tenant_id/account", func(c *gin.Context) {
			var err error
			got, err = GetTenantUUID(c)
			assert.NoError(t, err)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenantID.String()+"/account", nil)
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, got)
	})
}
