package billing

import (
	"github.com/shopspring/decimal"
)

// bytesPerGB is the conversion factor between metered traffic bytes and
// the GB units pricing plans are expressed in.
const bytesPerGB = int64(1) << 30

// UsageSnapshot holds aggregated consumption metrics for a tenant over a
// half-open date interval. Counts are point-in-time (users, nodes); sums
// are ranged (traffic, orders, revenue). Traffic is kept in bytes and
// revenue in exact decimal so no rounding happens during aggregation.
type UsageSnapshot struct {
	UserCount     int64           `json:"user_count"`
	TrafficUsed   int64           `json:"traffic_used"` // bytes
	NodeCount     int64           `json:"node_count"`
	OrderCount    int64           `json:"order_count"`
	RevenueAmount decimal.Decimal `json:"revenue_amount"`
}

// TrafficGB returns the metered traffic converted to GB for display and
// fee computation.
func (u UsageSnapshot) TrafficGB() decimal.Decimal {
	return decimal.NewFromInt(u.TrafficUsed).Div(decimal.NewFromInt(bytesPerGB))
}
