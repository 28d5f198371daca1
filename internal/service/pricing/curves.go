package pricing

import (
	"time"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
)

// basePrice is the fixed per-tier starting price in USD before multipliers.
var basePrice = map[buyer.Tier]float64{
	buyer.TierPremium:  200.0,
	buyer.TierValue:    150.0,
	buyer.TierStandard: 100.0,
	buyer.TierVolume:   50.0,
}

// qualityMultiplier maps the lead score to a 6-step multiplier, 0.8-1.3.
func qualityMultiplier(score int) float64 {
	switch {
	case score >= 90:
		return 1.3
	case score >= 80:
		return 1.2
	case score >= 70:
		return 1.1
	case score >= 60:
		return 1.0
	case score >= 50:
		return 0.9
	default:
		return 0.8
	}
}

// surgeBreakpoint pairs a utilization ceiling with the multiplier applied
// at or below it.
type surgeBreakpoint struct {
	utilization float64
	multiplier  float64
}

// surgeCurves holds the per-tier demand curves. Premium buyers tolerate
// steeper surge; volume buyers are price sensitive so the curve is flat.
var surgeCurves = map[buyer.Tier][]surgeBreakpoint{
	buyer.TierPremium: {
		{0.50, 1.0},
		{0.75, 1.15},
		{0.90, 1.3},
	},
	buyer.TierValue: {
		{0.50, 1.0},
		{0.75, 1.1},
		{0.90, 1.2},
	},
	buyer.TierStandard: {
		{0.60, 1.0},
		{0.85, 1.1},
	},
	buyer.TierVolume: {
		{0.80, 1.0},
	},
}

// maxSurge is applied past the last breakpoint of a tier's curve.
var maxSurge = map[buyer.Tier]float64{
	buyer.TierPremium:  1.5,
	buyer.TierValue:    1.3,
	buyer.TierStandard: 1.2,
	buyer.TierVolume:   1.1,
}

// surgeMultiplier walks the tier's curve and returns the multiplier of the
// first breakpoint at or above the current utilization; utilization beyond
// the curve pays the tier's max surge.
func surgeMultiplier(tier buyer.Tier, utilization float64) float64 {
	curve, ok := surgeCurves[tier]
	if !ok {
		return 1.0
	}
	for _, bp := range curve {
		if utilization <= bp.utilization {
			return bp.multiplier
		}
	}
	return maxSurge[tier]
}

// hourMultiplier favors business hours, when buyer sales teams can work a
// lead immediately. Hours not listed pay 1.0.
var hourMultiplier = map[int]float64{
	9: 1.1, 10: 1.15, 11: 1.15, 12: 1.1,
	13: 1.1, 14: 1.15, 15: 1.15, 16: 1.1, 17: 1.05,
	18: 1.05, 19: 1.05,
}

// weekdayMultiplier discounts weekends, when most buyer platforms run with
// skeleton staff. Days not listed pay 1.0.
var weekdayMultiplier = map[time.Weekday]float64{
	time.Monday:   1.1,
	time.Tuesday:  1.1,
	time.Saturday: 0.9,
	time.Sunday:   0.85,
}

// boroughMarketMultiplier is the geographic component of the market
// multiplier.
var boroughMarketMultiplier = map[string]float64{
	"manhattan":     1.2,
	"brooklyn":      1.1,
	"queens":        1.05,
	"staten_island": 1.0,
	"bronx":         0.95,
}

// seasonMarketMultiplier is the seasonal component: installs close fastest
// in spring, so spring leads command a premium.
func seasonMarketMultiplier(month time.Month) float64 {
	switch month {
	case time.March, time.April, time.May:
		return 1.15
	case time.June, time.July, time.August:
		return 1.05
	case time.September, time.October:
		return 1.0
	default:
		return 0.9
	}
}

func marketMultiplier(borough string, month time.Month) float64 {
	geo := 1.0
	if m, ok := boroughMarketMultiplier[borough]; ok {
		geo = m
	}
	return geo * seasonMarketMultiplier(month)
}
