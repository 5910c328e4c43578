package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reseller/backend/internal/domain/billing"
	"github.com/reseller/backend/internal/domain/identity"
)

// PlanRequest carries the fields for creating or updating a billing plan
type PlanRequest struct {
	Name          string           `json:"name" binding:"required,max=100"`
	Code          string           `json:"code" binding:"required,max=50"`
	Description   string           `json:"description"`
	BaseFee       decimal.Decimal  `json:"base_fee"`
	SetupFee      decimal.Decimal  `json:"setup_fee"`
	FreeUsers     int64            `json:"free_users" binding:"min=0"`
	PerUserFee    decimal.Decimal  `json:"per_user_fee"`
	FreeTraffic   int64            `json:"free_traffic" binding:"min=0"`
	PerGBFee      decimal.Decimal  `json:"per_gb_fee"`
	FreeNodes     int64            `json:"free_nodes" binding:"min=0"`
	PerNodeFee    decimal.Decimal  `json:"per_node_fee"`
	RevenueShare  decimal.Decimal  `json:"revenue_share"`
	MinRevenueFee decimal.Decimal  `json:"min_revenue_fee"`
	MaxUsers      *int64           `json:"max_users"`
	MaxNodes      *int64           `json:"max_nodes"`
	MaxTraffic    *int64           `json:"max_traffic"`
	MaxRevenue    *decimal.Decimal `json:"max_revenue"`
	Features      map[string]bool  `json:"features"`
	IsActive      *bool            `json:"is_active"`
	Sort          int              `json:"sort"`
}

// ToParams converts the request into domain plan parameters.
// IsActive defaults to true when omitted.
func (r PlanRequest) ToParams() billing.PlanParams {
	isActive := true
	if r.IsActive != nil {
		isActive = *r.IsActive
	}
	return billing.PlanParams{
		Name:          r.Name,
		Code:          r.Code,
		Description:   r.Description,
		BaseFee:       r.BaseFee,
		SetupFee:      r.SetupFee,
		FreeUsers:     r.FreeUsers,
		PerUserFee:    r.PerUserFee,
		FreeTraffic:   r.FreeTraffic,
		PerGBFee:      r.PerGBFee,
		FreeNodes:     r.FreeNodes,
		PerNodeFee:    r.PerNodeFee,
		RevenueShare:  r.RevenueShare,
		MinRevenueFee: r.MinRevenueFee,
		MaxUsers:      r.MaxUsers,
		MaxNodes:      r.MaxNodes,
		MaxTraffic:    r.MaxTraffic,
		MaxRevenue:    r.MaxRevenue,
		Features:      billing.FeatureMap(r.Features),
		IsActive:      isActive,
		Sort:          r.Sort,
	}
}

// PlanResponse is the API representation of a billing plan
type PlanResponse struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Code          string           `json:"code"`
	Description   string           `json:"description"`
	BaseFee       decimal.Decimal  `json:"base_fee"`
	SetupFee      decimal.Decimal  `json:"setup_fee"`
	FreeUsers     int64            `json:"free_users"`
	PerUserFee    decimal.Decimal  `json:"per_user_fee"`
	FreeTraffic   int64            `json:"free_traffic"`
	PerGBFee      decimal.Decimal  `json:"per_gb_fee"`
	FreeNodes     int64            `json:"free_nodes"`
	PerNodeFee    decimal.Decimal  `json:"per_node_fee"`
	RevenueShare  decimal.Decimal  `json:"revenue_share"`
	MinRevenueFee decimal.Decimal  `json:"min_revenue_fee"`
	MaxUsers      *int64           `json:"max_users,omitempty"`
	MaxNodes      *int64           `json:"max_nodes,omitempty"`
	MaxTraffic    *int64           `json:"max_traffic,omitempty"`
	MaxRevenue    *decimal.Decimal `json:"max_revenue,omitempty"`
	Features      map[string]bool  `json:"features,omitempty"`
	IsActive      bool             `json:"is_active"`
	Sort          int              `json:"sort"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewPlanResponse converts a domain plan to its API representation
func NewPlanResponse(p *billing.Plan) PlanResponse {
	return PlanResponse{
		ID:            p.ID,
		Name:          p.Name,
		Code:          p.Code,
		Description:   p.Description,
		BaseFee:       p.BaseFee,
		SetupFee:      p.SetupFee,
		FreeUsers:     p.FreeUsers,
		PerUserFee:    p.PerUserFee,
		FreeTraffic:   p.FreeTraffic,
		PerGBFee:      p.PerGBFee,
		FreeNodes:     p.FreeNodes,
		PerNodeFee:    p.PerNodeFee,
		RevenueShare:  p.RevenueShare,
		MinRevenueFee: p.MinRevenueFee,
		MaxUsers:      p.MaxUsers,
		MaxNodes:      p.MaxNodes,
		MaxTraffic:    p.MaxTraffic,
		MaxRevenue:    p.MaxRevenue,
		Features:      p.Features,
		IsActive:      p.IsActive,
		Sort:          p.Sort,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// NewPlanListResponse converts a slice of domain plans
func NewPlanListResponse(plans []billing.Plan) []PlanResponse {
	out := make([]PlanResponse, len(plans))
	for i := range plans {
		out[i] = NewPlanResponse(&plans[i])
	}
	return out
}

// PlanListRequest carries plan listing filters
type PlanListRequest struct {
	ListRequest
	ActiveOnly bool `form:"active_only"`
}

// UpsertSubscriptionRequest assigns or changes a tenant's billing plan
type UpsertSubscriptionRequest struct {
	BillingPlanID    uuid.UUID        `json:"billing_plan_id" binding:"required"`
	BillingCycle     string           `json:"billing_cycle" binding:"omitempty,oneof=monthly quarterly yearly"`
	CustomBaseFee    *decimal.Decimal `json:"custom_base_fee"`
	CustomPerUserFee *decimal.Decimal `json:"custom_per_user_fee"`
	CustomPerGBFee   *decimal.Decimal `json:"custom_per_gb_fee"`
	CustomPerNodeFee *decimal.Decimal `json:"custom_per_node_fee"`
	CustomDiscount   *decimal.Decimal `json:"custom_discount"`
	PaymentMethod    string           `json:"payment_method"`
	AutoCharge       bool             `json:"auto_charge"`
}

// SubscriptionResponse is the API representation of a tenant subscription
type SubscriptionResponse struct {
	ID               uuid.UUID        `json:"id"`
	TenantID         uuid.UUID        `json:"tenant_id"`
	BillingPlanID    uuid.UUID        `json:"billing_plan_id"`
	StartDate        time.Time        `json:"start_date"`
	NextBillingDate  time.Time        `json:"next_billing_date"`
	BillingCycle     string           `json:"billing_cycle"`
	Status           string           `json:"status"`
	CustomBaseFee    *decimal.Decimal `json:"custom_base_fee,omitempty"`
	CustomPerUserFee *decimal.Decimal `json:"custom_per_user_fee,omitempty"`
	CustomPerGBFee   *decimal.Decimal `json:"custom_per_gb_fee,omitempty"`
	CustomPerNodeFee *decimal.Decimal `json:"custom_per_node_fee,omitempty"`
	CustomDiscount   *decimal.Decimal `json:"custom_discount,omitempty"`
	PaymentMethod    string           `json:"payment_method"`
	AutoCharge       bool             `json:"auto_charge"`
	LastBilledAt     *time.Time       `json:"last_billed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewSubscriptionResponse converts a domain subscription to its API representation
func NewSubscriptionResponse(s *billing.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:               s.ID,
		TenantID:         s.TenantID,
		BillingPlanID:    s.BillingPlanID,
		StartDate:        s.StartDate,
		NextBillingDate:  s.NextBillingDate,
		BillingCycle:     string(s.BillingCycle),
		Status:           string(s.Status),
		CustomBaseFee:    s.CustomBaseFee,
		CustomPerUserFee: s.CustomPerUserFee,
		CustomPerGBFee:   s.CustomPerGBFee,
		CustomPerNodeFee: s.CustomPerNodeFee,
		CustomDiscount:   s.CustomDiscount,
		PaymentMethod:    s.PaymentMethod,
		AutoCharge:       s.AutoCharge,
		LastBilledAt:     s.LastBilledAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// BillResponse is the API representation of a tenant bill
type BillResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	BillNumber    string          `json:"bill_number"`
	BillingDate   time.Time       `json:"billing_date"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	BaseFee       decimal.Decimal `json:"base_fee"`
	UserFee       decimal.Decimal `json:"user_fee"`
	TrafficFee    decimal.Decimal `json:"traffic_fee"`
	NodeFee       decimal.Decimal `json:"node_fee"`
	AddonFee      decimal.Decimal `json:"addon_fee"`
	Discount      decimal.Decimal `json:"discount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	UserCount     int64           `json:"user_count"`
	TrafficUsed   int64           `json:"traffic_used"`
	NodeCount     int64           `json:"node_count"`
	OrderCount    int64           `json:"order_count"`
	RevenueAmount decimal.Decimal `json:"revenue_amount"`
	Status        string          `json:"status"`
	DueDate       time.Time       `json:"due_date"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewBillResponse converts a domain bill to its API representation
func NewBillResponse(b *billing.Bill) BillResponse {
	return BillResponse{
		ID:            b.ID,
		TenantID:      b.TenantID,
		BillNumber:    b.BillNumber,
		BillingDate:   b.BillingDate,
		PeriodStart:   b.PeriodStart,
		PeriodEnd:     b.PeriodEnd,
		BaseFee:       b.BaseFee,
		UserFee:       b.UserFee,
		TrafficFee:    b.TrafficFee,
		NodeFee:       b.NodeFee,
		AddonFee:      b.AddonFee,
		Discount:      b.Discount,
		TotalAmount:   b.TotalAmount,
		PaidAmount:    b.PaidAmount,
		UserCount:     b.UserCount,
		TrafficUsed:   b.TrafficUsed,
		NodeCount:     b.NodeCount,
		OrderCount:    b.OrderCount,
		RevenueAmount: b.RevenueAmount,
		Status:        string(b.Status),
		DueDate:       b.DueDate,
		PaidAt:        b.PaidAt,
		PaymentMethod: b.PaymentMethod,
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// NewBillListResponse converts a slice of domain bills
func NewBillListResponse(bills []billing.Bill) []BillResponse {
	out := make([]BillResponse, len(bills))
	for i := range bills {
		out[i] = NewBillResponse(&bills[i])
	}
	return out
}

// BillListRequest carries bill listing filters
type BillListRequest struct {
	ListRequest
	TenantID  string `form:"tenant_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=pending paid overdue cancelled"`
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// ToFilter converts the request into a domain bill filter
func (r BillListRequest) ToFilter() billing.BillFilter {
	var f billing.BillFilter
	if r.TenantID != "" {
		id := uuid.MustParse(r.TenantID)
		f.TenantID = &id
	}
	if r.Status != "" {
		status := billing.BillStatus(r.Status)
		f.Status = &status
	}
	if r.StartDate != "" {
		t, _ := time.Parse("2006-01-02", r.StartDate)
		f.StartDate = &t
	}
	if r.EndDate != "" {
		t, _ := time.Parse("2006-01-02", r.EndDate)
		f.EndDate = &t
	}
	return f
}

// GenerateBillRequest triggers bill generation for a single tenant
type GenerateBillRequest struct {
	TenantID uuid.UUID  `json:"tenant_id" binding:"required"`
	AsOf     *time.Time `json:"as_of"`
}

// PayBillRequest records a manual payment against a bill
type PayBillRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod string          `json:"payment_method" binding:"required,max=50"`
}

// CancelBillRequest voids a pending bill
type CancelBillRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// AdjustBalanceRequest modifies a tenant's balance by hand
type AdjustBalanceRequest struct {
	Type        string          `json:"type" binding:"required,oneof=add deduct set"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description" binding:"required,max=255"`
}

// BalanceAdjustmentResponse reports the balance before and after an adjustment
type BalanceAdjustmentResponse struct {
	TenantID      uuid.UUID       `json:"tenant_id"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// LogListRequest carries billing log listing filters
type LogListRequest struct {
	ListRequest
	TenantID  string `form:"tenant_id" binding:"omitempty,uuid"`
	BillID    string `form:"bill_id" binding:"omitempty,uuid"`
	Type      string `form:"type" binding:"omitempty,oneof=charge payment refund adjustment auto_charge"`
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// ToFilter converts the request into a domain log filter
func (r LogListRequest) ToFilter() billing.LogFilter {
	var f billing.LogFilter
	if r.TenantID != "" {
		id := uuid.MustParse(r.TenantID)
		f.TenantID = &id
	}
	if r.BillID != "" {
		id := uuid.MustParse(r.BillID)
		f.BillID = &id
	}
	if r.Type != "" {
		logType := billing.LogType(r.Type)
		f.Type = &logType
	}
	if r.StartDate != "" {
		t, _ := time.Parse("2006-01-02", r.StartDate)
		f.StartDate = &t
	}
	if r.EndDate != "" {
		t, _ := time.Parse("2006-01-02", r.EndDate)
		f.EndDate = &t
	}
	return f
}

// LogEntryResponse is the API representation of a billing ledger entry
type LogEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	BillID        *uuid.UUID      `json:"bill_id,omitempty"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	UserID        *uuid.UUID      `json:"user_id,omitempty"`
	IPAddress     string          `json:"ip_address,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewLogEntryResponse converts a ledger entry to its API representation
func NewLogEntryResponse(e *billing.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:            e.ID,
		TenantID:      e.TenantID,
		BillID:        e.BillID,
		Type:          string(e.Type),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Description:   e.Description,
		UserID:        e.UserID,
		IPAddress:     e.IPAddress,
		CreatedAt:     e.CreatedAt,
	}
}

// NewLogListResponse converts a slice of ledger entries
func NewLogListResponse(entries []billing.LogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, len(entries))
	for i := range entries {
		out[i] = NewLogEntryResponse(&entries[i])
	}
	return out
}

// BatchRunResponse reports the outcome of a batch billing run
type BatchRunResponse struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// OverdueSweepResponse reports how many bills the overdue sweep processed
type OverdueSweepResponse struct {
	Processed int `json:"processed"`
}

// StatsRequest carries the optional date range for billing statistics
type StatsRequest struct {
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// DateRange parses the optional range bounds
func (r StatsRequest) DateRange() (*time.Time, *time.Time) {
	var start, end *time.Time
	if r.StartDate != "" {
		t, _ := time.Parse("2006-01-02", r.StartDate)
		start = &t
	}
	if r.EndDate != "" {
		t, _ := time.Parse("2006-01-02", r.EndDate)
		end = &t
	}
	return start, end
}

// TenantBalanceResponse is the API representation of a tenant's billing account
type TenantBalanceResponse struct {
	TenantID       uuid.UUID       `json:"tenant_id"`
	Name           string          `json:"name"`
	Domain         string          `json:"domain"`
	Status         bool            `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	BillingEnabled bool            `json:"billing_enabled"`
	LastBilledAt   *time.Time      `json:"last_billed_at,omitempty"`
}

// NewTenantBalanceResponse converts a tenant to its billing account view
func NewTenantBalanceResponse(t *identity.Tenant) TenantBalanceResponse {
	return TenantBalanceResponse{
		TenantID:       t.ID,
		Name:           t.Name,
		Domain:         t.Domain,
		Status:         t.Status,
		Balance:        t.Balance,
		CreditLimit:    t.CreditLimit,
		BillingEnabled: t.BillingEnabled,
		LastBilledAt:   t.LastBilledAt,
	}
}
