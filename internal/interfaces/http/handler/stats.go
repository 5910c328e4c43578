package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/interfaces/http/dto"
)

// StatsHandler serves billing reports and the ledger listing
type StatsHandler struct {
	BaseHandler
	statsService *appbilling.StatsService
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(statsService *appbilling.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Statistics returns billing totals, breakdowns and the monthly trend
// over an optional date range
func (h *StatsHandler) Statistics(c *gin.Context) {
	var req dto.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	start, end := req.DateRange()
	stats, err := h.statsService.Statistics(c.Request.Context(), start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// TenantAccount returns a tenant's billing account view
func (h *StatsHandler) TenantAccount(c *gin.Context) {
	tenantID, err := parseUUIDParam(c, "tenant_id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	tenant, err := h.statsService.TenantAccount(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewTenantBalanceResponse(tenant))
}

// ListLogs returns billing ledger entries filtered by tenant, bill,
// type and date range
func (h *StatsHandler) ListLogs(c *gin.Context) {
	req := dto.LogListRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	entries, total, err := h.statsService.ListLogs(c.Request.Context(), req.ToFilter(), toFilter(req.ListRequest))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, dto.NewLogListResponse(entries), total, req.Page, req.PageSize)
}
