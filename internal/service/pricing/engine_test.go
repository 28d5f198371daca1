package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
)

// Tuesday, April 1st, 10:00: hour 1.15, weekday 1.1, spring season 1.15.
func springClock() *lead.MockClock {
	return &lead.MockClock{CurrentTime: time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)}
}

func TestPriceDeterministic(t *testing.T) {
	engine := NewEngineWithClock(springClock())
	in := Input{
		BuyerTier:       buyer.TierPremium,
		LeadScore:       92,
		Utilization:     0.6,
		Borough:         "manhattan",
		ExclusiveMatch:  true,
		GeographicMatch: true,
	}

	first := engine.Price(in)
	second := engine.Price(in)
	assert.True(t, first.Price.Equal(second.Price), "same input and clock must price identically")

	assert.Equal(t, 200.0, first.BasePrice)
	assert.Equal(t, 1.3, first.Quality)
	assert.Equal(t, 1.15, first.Surge)
	assert.Equal(t, 1.15, first.TimeOfDay)
	assert.Equal(t, 1.1, first.DayOfWeek)
	assert.InDelta(t, 1.2*1.15, first.Market, 1e-9)
	assert.InDelta(t, 1.15*1.05*1.05, first.BuyerSpecific, 1e-9)
}

func TestPriceRoundsToCents(t *testing.T) {
	engine := NewEngineWithClock(springClock())
	q := engine.Price(Input{BuyerTier: buyer.TierStandard, LeadScore: 73, Utilization: 0.3, Borough: "queens"})

	cents := q.Price.ToCents()
	reconstructed := float64(cents) / 100
	assert.InDelta(t, q.Price.ToFloat64(), reconstructed, 1e-9)
}

func TestQualityMultiplierSteps(t *testing.T) {
	tests := []struct {
		score int
		want  float64
	}{
		{95, 1.3}, {90, 1.3},
		{85, 1.2}, {80, 1.2},
		{75, 1.1}, {70, 1.1},
		{65, 1.0}, {60, 1.0},
		{55, 0.9}, {50, 0.9},
		{49, 0.8}, {0, 0.8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, qualityMultiplier(tt.score), "score %d", tt.score)
	}
}

func TestSurgeMultiplierCurves(t *testing.T) {
	tests := []struct {
		name        string
		tier        buyer.Tier
		utilization float64
		want        float64
	}{
		{"premium idle", buyer.TierPremium, 0.2, 1.0},
		{"premium mid", buyer.TierPremium, 0.6, 1.15},
		{"premium hot", buyer.TierPremium, 0.89, 1.3},
		{"premium past curve", buyer.TierPremium, 0.95, 1.5},
		{"volume flat", buyer.TierVolume, 0.7, 1.0},
		{"volume past curve", buyer.TierVolume, 0.95, 1.1},
		{"standard mid", buyer.TierStandard, 0.7, 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, surgeMultiplier(tt.tier, tt.utilization))
		})
	}
}

func TestBuyerSpecificOnlyForPremium(t *testing.T) {
	in := Input{BuyerTier: buyer.TierStandard, LeadScore: 95, ExclusiveMatch: true, GeographicMatch: true}
	assert.Equal(t, 1.0, buyerSpecificMultiplier(in), "non-premium tiers pay listed multipliers")

	in.BuyerTier = buyer.TierPremium
	assert.InDelta(t, 1.15*1.05*1.05, buyerSpecificMultiplier(in), 1e-9)
}

func TestWeekendDiscount(t *testing.T) {
	// Saturday April 5th vs Tuesday April 1st, same hour.
	saturday := NewEngineWithClock(&lead.MockClock{CurrentTime: time.Date(2025, 4, 5, 10, 0, 0, 0, time.UTC)})
	tuesday := NewEngineWithClock(springClock())

	in := Input{BuyerTier: buyer.TierStandard, LeadScore: 75, Utilization: 0.4, Borough: "brooklyn"}
	assert.Equal(t, -1, saturday.Price(in).Price.Compare(tuesday.Price(in).Price))
}
