// Package pricing computes the sale price of a lead for a specific buyer.
// The price is a chain of multipliers over a per-tier base; given the same
// inputs and clock the result is identical, which keeps pricing auditable.
package pricing

import (
	"math"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Quote carries the priced result plus every multiplier that produced it.
type Quote struct {
	Price values.Money `json:"price"`

	BasePrice     float64 `json:"base_price"`
	Quality       float64 `json:"quality_multiplier"`
	Surge         float64 `json:"surge_multiplier"`
	TimeOfDay     float64 `json:"time_of_day_multiplier"`
	DayOfWeek     float64 `json:"day_of_week_multiplier"`
	Market        float64 `json:"market_multiplier"`
	BuyerSpecific float64 `json:"buyer_specific_multiplier"`
}

// Input is everything the price depends on besides the clock.
type Input struct {
	BuyerTier   buyer.Tier
	LeadScore   int
	Utilization float64
	Borough     string

	// Premium-only buyer-specific bonuses.
	ExclusiveMatch  bool
	GeographicMatch bool
}

// Engine prices leads. Stateless except for the injected clock.
type Engine struct {
	clock lead.Clock
}

// NewEngine creates an Engine on the real clock.
func NewEngine() *Engine {
	return &Engine{clock: lead.RealClock{}}
}

// NewEngineWithClock creates an Engine with an injected clock for
// deterministic pricing in tests.
func NewEngineWithClock(c lead.Clock) *Engine {
	return &Engine{clock: c}
}

// Price computes the quote for a lead/buyer pairing. It never errors; an
// unknown tier prices at the volume base.
func (e *Engine) Price(in Input) Quote {
	now := e.clock.Now()

	base, ok := basePrice[in.BuyerTier]
	if !ok {
		base = basePrice[buyer.TierVolume]
	}

	q := Quote{
		BasePrice:     base,
		Quality:       qualityMultiplier(in.LeadScore),
		Surge:         surgeMultiplier(in.BuyerTier, in.Utilization),
		TimeOfDay:     1.0,
		DayOfWeek:     1.0,
		Market:        marketMultiplier(in.Borough, now.Month()),
		BuyerSpecific: buyerSpecificMultiplier(in),
	}
	if m, ok := hourMultiplier[now.Hour()]; ok {
		q.TimeOfDay = m
	}
	if m, ok := weekdayMultiplier[now.Weekday()]; ok {
		q.DayOfWeek = m
	}

	amount := base * q.Quality * q.Surge * q.TimeOfDay * q.DayOfWeek * q.Market * q.BuyerSpecific
	q.Price = values.USDFromFloat(math.Round(amount*100) / 100)
	return q
}

// buyerSpecificMultiplier applies exclusivity/geography/quality bonuses for
// premium-tier buyers only; every other tier pays the listed multipliers.
func buyerSpecificMultiplier(in Input) float64 {
	if in.BuyerTier != buyer.TierPremium {
		return 1.0
	}
	m := 1.0
	if in.ExclusiveMatch {
		m *= 1.15
	}
	if in.GeographicMatch {
		m *= 1.05
	}
	if in.LeadScore >= 90 {
		m *= 1.05
	}
	return m
}
