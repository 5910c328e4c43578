package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBillingCycleAdvance(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), CycleMonthly.Advance(start))
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), CycleQuarterly.Advance(start))
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), CycleYearly.Advance(start))
}

func TestParseBillingCycle(t *testing.T) {
	t.Run("parses known cycles", func(t *testing.T) {
		for _, s := range []string{"monthly", "quarterly", "yearly"} {
			cycle, ok := ParseBillingCycle(s)
			assert.True(t, ok)
			assert.Equal(t, s, cycle.String())
		}
	})

	t.Run("unknown cycle falls back to monthly", func(t *testing.T) {
		cycle, ok := ParseBillingCycle("weekly")
		assert.False(t, ok)
		assert.Equal(t, CycleMonthly, cycle)
	})
}
