package billing

import "time"

// BillingCycle is the recurring interval between bill generations
type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// IsValid checks if the cycle is a known billing cycle
func (c BillingCycle) IsValid() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	}
	return false
}

// String returns the string representation of the cycle
func (c BillingCycle) String() string {
	return string(c)
}

// Advance returns the end of the billing window that starts at t.
// The window is half-open: [t, Advance(t)).
func (c BillingCycle) Advance(t time.Time) time.Time {
	switch c {
	case CycleQuarterly:
		return t.AddDate(0, 3, 0)
	case CycleYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// ParseBillingCycle parses a cycle string. Unknown values fall back to
// monthly; callers that need to reject bad input should check ok.
func ParseBillingCycle(s string) (cycle BillingCycle, ok bool) {
	c := BillingCycle(s)
	if c.IsValid() {
		return c, true
	}
	return CycleMonthly, false
}
