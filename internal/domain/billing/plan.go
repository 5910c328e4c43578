package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Well-known plan codes
const (
	PlanCodeFree         = "free"
	PlanCodeStarter      = "starter"
	PlanCodeProfessional = "professional"
	PlanCodeEnterprise   = "enterprise"
)

// FeatureMap maps capability keys to their enabled state, stored as JSONB
type FeatureMap map[string]bool

// Value implements driver.Valuer for JSONB storage
func (f FeatureMap) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB storage
func (f *FeatureMap) Scan(value interface{}) error {
	if value == nil {
		*f = FeatureMap{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan FeatureMap: unsupported type")
	}
	if len(bytes) == 0 {
		*f = FeatureMap{}
		return nil
	}
	return json.Unmarshal(bytes, f)
}

// defaultFeatures is the capability baseline merged under every plan's
// own feature map.
var defaultFeatures = FeatureMap{
	"tickets":          false,
	"knowledge":        false,
	"coupons":          false,
	"invites":          false,
	"announcements":    false,
	"custom_theme":     false,
	"api_access":       false,
	"export_data":      false,
	"priority_support": false,
	"white_label":      false,
}

// Plan is an immutable-per-version record of fee parameters. It converts a
// usage snapshot into itemized charges and checks usage against the plan's
// hard ceilings.
type Plan struct {
	shared.BaseAggregateRoot
	Name        string
	Code        string // unique, immutable identity
	Description string

	BaseFee  decimal.Decimal
	SetupFee decimal.Decimal

	FreeUsers  int64
	PerUserFee decimal.Decimal

	FreeTraffic int64 // GB
	PerGBFee    decimal.Decimal

	FreeNodes  int64
	PerNodeFee decimal.Decimal

	RevenueShare  decimal.Decimal // percentage, 0-100
	MinRevenueFee decimal.Decimal

	// Hard ceilings; nil means unlimited
	MaxUsers   *int64
	MaxNodes   *int64
	MaxTraffic *int64 // GB
	MaxRevenue *decimal.Decimal

	Features FeatureMap
	IsActive bool
	Sort     int
}

// PlanParams carries the fee parameters for creating or updating a plan
type PlanParams struct {
	Name          string
	Code          string
	Description   string
	BaseFee       decimal.Decimal
	SetupFee      decimal.Decimal
	FreeUsers     int64
	PerUserFee    decimal.Decimal
	FreeTraffic   int64
	PerGBFee      decimal.Decimal
	FreeNodes     int64
	PerNodeFee    decimal.Decimal
	RevenueShare  decimal.Decimal
	MinRevenueFee decimal.Decimal
	MaxUsers      *int64
	MaxNodes      *int64
	MaxTraffic    *int64
	MaxRevenue    *decimal.Decimal
	Features      FeatureMap
	IsActive      bool
	Sort          int
}

var hundred = decimal.NewFromInt(100)

func validatePlanParams(p PlanParams) error {
	if p.Name == "" {
		return shared.NewDomainError("INVALID_PLAN_NAME", "Plan name cannot be empty")
	}
	if p.Code == "" {
		return shared.NewDomainError("INVALID_PLAN_CODE", "Plan code cannot be empty")
	}
	for name, fee := range map[string]decimal.Decimal{
		"base_fee":        p.BaseFee,
		"setup_fee":       p.SetupFee,
		"per_user_fee":    p.PerUserFee,
		"per_gb_fee":      p.PerGBFee,
		"per_node_fee":    p.PerNodeFee,
		"min_revenue_fee": p.MinRevenueFee,
	} {
		if fee.IsNegative() {
			return shared.NewDomainError("INVALID_FEE", fmt.Sprintf("Fee %s cannot be negative", name))
		}
	}
	if p.FreeUsers < 0 || p.FreeTraffic < 0 || p.FreeNodes < 0 {
		return shared.NewDomainError("INVALID_ALLOWANCE", "Free allowances cannot be negative")
	}
	if p.RevenueShare.IsNegative() || p.RevenueShare.GreaterThan(hundred) {
		return shared.NewDomainError("INVALID_REVENUE_SHARE", "Revenue share must be between 0 and 100")
	}
	return nil
}

// NewPlan creates a new pricing plan with validation
func NewPlan(p PlanParams) (*Plan, error) {
	if err := validatePlanParams(p); err != nil {
		return nil, err
	}
	return &Plan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              p.Name,
		Code:              p.Code,
		Description:       p.Description,
		BaseFee:           p.BaseFee,
		SetupFee:          p.SetupFee,
		FreeUsers:         p.FreeUsers,
		PerUserFee:        p.PerUserFee,
		FreeTraffic:       p.FreeTraffic,
		PerGBFee:          p.PerGBFee,
		FreeNodes:         p.FreeNodes,
		PerNodeFee:        p.PerNodeFee,
		RevenueShare:      p.RevenueShare,
		MinRevenueFee:     p.MinRevenueFee,
		MaxUsers:          p.MaxUsers,
		MaxNodes:          p.MaxNodes,
		MaxTraffic:        p.MaxTraffic,
		MaxRevenue:        p.MaxRevenue,
		Features:          p.Features,
		IsActive:          p.IsActive,
		Sort:              p.Sort,
	}, nil
}

// ApplyParams updates the plan's fee parameters in place. The plan code is
// immutable identity and is not changed.
func (p *Plan) ApplyParams(params PlanParams) error {
	params.Code = p.Code
	if err := validatePlanParams(params); err != nil {
		return err
	}
	p.Name = params.Name
	p.Description = params.Description
	p.BaseFee = params.BaseFee
	p.SetupFee = params.SetupFee
	p.FreeUsers = params.FreeUsers
	p.PerUserFee = params.PerUserFee
	p.FreeTraffic = params.FreeTraffic
	p.PerGBFee = params.PerGBFee
	p.FreeNodes = params.FreeNodes
	p.PerNodeFee = params.PerNodeFee
	p.RevenueShare = params.RevenueShare
	p.MinRevenueFee = params.MinRevenueFee
	p.MaxUsers = params.MaxUsers
	p.MaxNodes = params.MaxNodes
	p.MaxTraffic = params.MaxTraffic
	p.MaxRevenue = params.MaxRevenue
	p.Features = params.Features
	p.IsActive = params.IsActive
	p.Sort = params.Sort
	p.IncrementVersion()
	return nil
}

// FeatureList returns the plan's capabilities merged over the default set
func (p *Plan) FeatureList() FeatureMap {
	merged := make(FeatureMap, len(defaultFeatures))
	for k, v := range defaultFeatures {
		merged[k] = v
	}
	for k, v := range p.Features {
		merged[k] = v
	}
	return merged
}

// FeeOverrides carries optional per-subscription overrides of the plan's
// per-unit rates plus an optional discount percentage. A nil field means
// "use the plan default".
type FeeOverrides struct {
	PerUserFee *decimal.Decimal
	PerGBFee   *decimal.Decimal
	PerNodeFee *decimal.Decimal
	Discount   *decimal.Decimal // percentage, 0-100
}

// FeeBreakdown is the itemized result of fee computation
type FeeBreakdown struct {
	BaseFee        decimal.Decimal `json:"base_fee"`
	UserFee        decimal.Decimal `json:"user_fee"`
	TrafficFee     decimal.Decimal `json:"traffic_fee"`
	NodeFee        decimal.Decimal `json:"node_fee"`
	RevenueFee     decimal.Decimal `json:"revenue_fee"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// CalculateFees converts a usage snapshot into itemized charges. It is a
// pure function: no side effects, no error conditions; absent usage fields
// are zero and line items never go negative.
func (p *Plan) CalculateFees(usage UsageSnapshot, ov FeeOverrides) FeeBreakdown {
	perUserFee := p.PerUserFee
	if ov.PerUserFee != nil {
		perUserFee = *ov.PerUserFee
	}
	perGBFee := p.PerGBFee
	if ov.PerGBFee != nil {
		perGBFee = *ov.PerGBFee
	}
	perNodeFee := p.PerNodeFee
	if ov.PerNodeFee != nil {
		perNodeFee = *ov.PerNodeFee
	}

	fees := FeeBreakdown{BaseFee: p.BaseFee}

	if billableUsers := usage.UserCount - p.FreeUsers; billableUsers > 0 {
		fees.UserFee = decimal.NewFromInt(billableUsers).Mul(perUserFee)
	}

	billableTraffic := usage.TrafficGB().Sub(decimal.NewFromInt(p.FreeTraffic))
	if billableTraffic.IsPositive() {
		fees.TrafficFee = billableTraffic.Mul(perGBFee)
	}

	if billableNodes := usage.NodeCount - p.FreeNodes; billableNodes > 0 {
		fees.NodeFee = decimal.NewFromInt(billableNodes).Mul(perNodeFee)
	}

	if p.RevenueShare.IsPositive() {
		share := usage.RevenueAmount.Mul(p.RevenueShare).Div(hundred)
		fees.RevenueFee = decimal.Max(p.MinRevenueFee, share)
	}

	subtotal := fees.BaseFee.Add(fees.UserFee).Add(fees.TrafficFee).Add(fees.NodeFee).Add(fees.RevenueFee)

	if ov.Discount != nil && ov.Discount.IsPositive() {
		fees.DiscountAmount = subtotal.Mul(*ov.Discount).Div(hundred)
	}

	fees.Total = decimal.Max(decimal.Zero, subtotal.Sub(fees.DiscountAmount))
	return fees
}

// CheckLimits compares usage against each configured ceiling and returns a
// human-readable violation per breached limit. Advisory only: violations
// never block billing.
func (p *Plan) CheckLimits(usage UsageSnapshot) []string {
	var violations []string

	if p.MaxUsers != nil && usage.UserCount > *p.MaxUsers {
		violations = append(violations,
			fmt.Sprintf("User count exceeds limit (%d > %d)", usage.UserCount, *p.MaxUsers))
	}
	if p.MaxNodes != nil && usage.NodeCount > *p.MaxNodes {
		violations = append(violations,
			fmt.Sprintf("Node count exceeds limit (%d > %d)", usage.NodeCount, *p.MaxNodes))
	}
	if p.MaxTraffic != nil {
		trafficGB := usage.TrafficGB()
		if trafficGB.GreaterThan(decimal.NewFromInt(*p.MaxTraffic)) {
			violations = append(violations,
				fmt.Sprintf("Traffic exceeds limit (%sGB > %dGB)", trafficGB.StringFixed(2), *p.MaxTraffic))
		}
	}
	if p.MaxRevenue != nil && usage.RevenueAmount.GreaterThan(*p.MaxRevenue) {
		violations = append(violations,
			fmt.Sprintf("Revenue exceeds limit (%s > %s)", usage.RevenueAmount.StringFixed(2), p.MaxRevenue.StringFixed(2)))
	}

	return violations
}
