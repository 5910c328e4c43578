package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/interfaces/http/dto"
)

// BillingPlanHandler handles billing plan API endpoints
type BillingPlanHandler struct {
	BaseHandler
	planService *appbilling.PlanService
}

// NewBillingPlanHandler creates a new BillingPlanHandler
func NewBillingPlanHandler(planService *appbilling.PlanService) *BillingPlanHandler {
	return &BillingPlanHandler{planService: planService}
}

// List returns billing plans, optionally restricted to active ones
func (h *BillingPlanHandler) List(c *gin.Context) {
	req := dto.PlanListRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plans, total, err := h.planService.List(c.Request.Context(), req.ActiveOnly, toFilter(req.ListRequest))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, dto.NewPlanListResponse(plans), total, req.Page, req.PageSize)
}

// Get returns a single billing plan by ID
func (h *BillingPlanHandler) Get(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid plan ID")
		return
	}

	plan, err := h.planService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewPlanResponse(plan))
}

// Create creates a new billing plan
func (h *BillingPlanHandler) Create(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plan, err := h.planService.Create(c.Request.Context(), req.ToParams())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.NewPlanResponse(plan))
}

// Update updates an existing billing plan
func (h *BillingPlanHandler) Update(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid plan ID")
		return
	}

	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plan, err := h.planService.Update(c.Request.Context(), id, req.ToParams())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewPlanResponse(plan))
}

// Delete removes a billing plan. Plans referenced by subscriptions
// cannot be deleted.
func (h *BillingPlanHandler) Delete(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid plan ID")
		return
	}

	if err := h.planService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
