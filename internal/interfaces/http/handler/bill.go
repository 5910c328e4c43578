package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	appbilling "github.com/reseller/backend/internal/application/billing"
	"github.com/reseller/backend/internal/interfaces/http/dto"
)

// BillHandler handles bill lifecycle API endpoints
type BillHandler struct {
	BaseHandler
	billingService *appbilling.BillingService
}

// NewBillHandler creates a new BillHandler
func NewBillHandler(billingService *appbilling.BillingService) *BillHandler {
	return &BillHandler{billingService: billingService}
}

// List returns bills filtered by tenant, status and billing date range
func (h *BillHandler) List(c *gin.Context) {
	req := dto.BillListRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	bills, total, err := h.billingService.ListBills(c.Request.Context(), req.ToFilter(), toFilter(req.ListRequest))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, dto.NewBillListResponse(bills), total, req.Page, req.PageSize)
}

// Get returns a single bill by ID
func (h *BillHandler) Get(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid bill ID")
		return
	}

	bill, err := h.billingService.GetBill(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewBillResponse(bill))
}

// Generate produces a bill for a single tenant's current period
func (h *BillHandler) Generate(c *gin.Context) {
	var req dto.GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	bill, err := h.billingService.GenerateBill(c.Request.Context(), req.TenantID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if bill == nil {
		// Billing disabled or no active subscription; nothing produced.
		h.Success(c, nil)
		return
	}

	h.Created(c, dto.NewBillResponse(bill))
}

// Pay records a manual payment against a bill
func (h *BillHandler) Pay(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid bill ID")
		return
	}

	var req dto.PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor := appbilling.Actor{
		UserID:    getAdminUserID(c),
		IPAddress: c.ClientIP(),
	}

	bill, err := h.billingService.ApplyPayment(c.Request.Context(), id, req.Amount, req.PaymentMethod, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewBillResponse(bill))
}

// Cancel voids a pending bill
func (h *BillHandler) Cancel(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid bill ID")
		return
	}

	var req dto.CancelBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	bill, err := h.billingService.CancelBill(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewBillResponse(bill))
}

// BatchGenerate runs bill generation for every tenant whose billing
// date has arrived
func (h *BillHandler) BatchGenerate(c *gin.Context) {
	result, err := h.billingService.BatchGenerateBills(c.Request.Context(), time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.BatchRunResponse{
		Success: result.Success,
		Failed:  result.Failed,
		Skipped: result.Skipped,
	})
}

// ProcessOverdue sweeps pending bills past their due date
func (h *BillHandler) ProcessOverdue(c *gin.Context) {
	processed, err := h.billingService.ProcessOverdueBills(c.Request.Context(), time.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.OverdueSweepResponse{Processed: processed})
}

// AdjustBalance modifies a tenant's balance by hand and writes a ledger entry
func (h *BillHandler) AdjustBalance(c *gin.Context) {
	tenantID, err := parseUUIDParam(c, "tenant_id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	actor := appbilling.Actor{
		UserID:    getAdminUserID(c),
		IPAddress: c.ClientIP(),
	}

	adjustment, err := h.billingService.AdjustBalance(
		c.Request.Context(),
		tenantID,
		appbilling.AdjustmentType(req.Type),
		req.Amount,
		req.Description,
		actor,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.BalanceAdjustmentResponse{
		TenantID:      tenantID,
		BalanceBefore: adjustment.BalanceBefore,
		BalanceAfter:  adjustment.BalanceAfter,
	})
}
