package handler

import (
	"github.com/gin-gonic/gin"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/interfaces/http/dto"
)

// SubscriptionHandler handles tenant subscription API endpoints
type SubscriptionHandler struct {
	BaseHandler
	subscriptionService *appbilling.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subscriptionService *appbilling.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

// Get returns the tenant's subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	tenantID, err := parseUUIDParam(c, "tenant_id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sub, err := h.subscriptionService.Get(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewSubscriptionResponse(sub))
}

// Upsert assigns a billing plan to a tenant, creating or replacing the
// subscription in place
func (h *SubscriptionHandler) Upsert(c *gin.Context) {
	tenantID, err := parseUUIDParam(c, "tenant_id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req dto.UpsertSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	sub, err := h.subscriptionService.Upsert(c.Request.Context(), tenantID, appbilling.UpsertSubscriptionInput{
		BillingPlanID:    req.BillingPlanID,
		BillingCycle:     req.BillingCycle,
		CustomBaseFee:    req.CustomBaseFee,
		CustomPerUserFee: req.CustomPerUserFee,
		CustomPerGBFee:   req.CustomPerGBFee,
		CustomPerNodeFee: req.CustomPerNodeFee,
		CustomDiscount:   req.CustomDiscount,
		PaymentMethod:    req.PaymentMethod,
		AutoCharge:       req.AutoCharge,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewSubscriptionResponse(sub))
}

// Cancel cancels the tenant's subscription and disables billing
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	tenantID, err := parseUUIDParam(c, "tenant_id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := h.subscriptionService.Cancel(c.Request.Context(), tenantID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
