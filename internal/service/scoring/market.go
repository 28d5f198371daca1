package scoring

import "time"

// Static NYC market intelligence tables. These are periodically re-derived
// from closed-lead outcomes; treat values as tuning data, not law.

// boroughPremium contributes up to 20 points to the base qualification
// sub-score.
var boroughPremium = map[string]float64{
	"manhattan":     20,
	"brooklyn":      16,
	"queens":        14,
	"staten_island": 12,
	"bronx":         10,
}

// neighborhoodPremium adds on top of the borough premium for
// high-conversion neighborhoods (still capped at 20 total).
var neighborhoodPremium = map[string]float64{
	"upper_east_side": 5,
	"park_slope":      5,
	"forest_hills":    4,
	"riverdale":       3,
	"todt_hill":       3,
}

// neighborhoodRevenueMultiplier scales revenue potential for neighborhoods
// buyers pay a premium for.
var neighborhoodRevenueMultiplier = map[string]float64{
	"upper_east_side": 1.15,
	"park_slope":      1.10,
	"forest_hills":    1.08,
	"riverdale":       1.05,
}

// homeTypeScore contributes up to 10 points to base qualification.
var homeTypeScore = map[string]float64{
	"single_family": 10,
	"townhouse":     8,
	"two_family":    7,
	"condo":         3,
	"coop":          2,
}

// boroughAdoptionRate is the residential solar adoption rate used by the
// NYC-intelligence sub-score (scaled to up to 30 points).
var boroughAdoptionRate = map[string]float64{
	"staten_island": 0.28,
	"queens":        0.22,
	"brooklyn":      0.18,
	"bronx":         0.12,
	"manhattan":     0.06,
}

// boroughMedianIncome drives the income-bracket lookups (points and the
// revenue premium multiplier).
var boroughMedianIncome = map[string]int{
	"manhattan":     115000,
	"staten_island": 89000,
	"queens":        82000,
	"brooklyn":      74000,
	"bronx":         46000,
}

// boroughInstallersAvailable marks boroughs with active installer coverage.
var boroughInstallersAvailable = map[string]bool{
	"staten_island": true,
	"queens":        true,
	"brooklyn":      true,
	"bronx":         true,
}

// incomeBracketScore maps borough median income to NYC-intelligence points.
func incomeBracketScore(income int) float64 {
	switch {
	case income >= 150000:
		return 15
	case income >= 100000:
		return 10
	case income >= 70000:
		return 5
	default:
		return 0
	}
}

// nycIncomePremiumMultiplier applies the high-income borough revenue bump.
func nycIncomePremiumMultiplier(borough string) float64 {
	if boroughMedianIncome[borough] >= 100000 {
		return 1.2
	}
	return 1.0
}

// seasonTimingScore contributes up to 10 points to market timing: spring
// and summer installs close fastest.
func seasonTimingScore(month time.Month) float64 {
	switch month {
	case time.March, time.April, time.May:
		return 10
	case time.June, time.July, time.August:
		return 8
	case time.September, time.October:
		return 5
	default:
		return 2
	}
}

// seasonIntelligenceScore contributes up to 15 points to NYC intelligence.
func seasonIntelligenceScore(month time.Month) float64 {
	switch month {
	case time.March, time.April, time.May, time.June:
		return 15
	case time.July, time.August, time.September:
		return 10
	default:
		return 5
	}
}
