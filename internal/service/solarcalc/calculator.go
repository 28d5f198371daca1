// Package solarcalc sizes and prices residential solar systems for NYC
// prospects: system size from the electric bill, production, incentives,
// payback, and financing options. Calculations are pure; callers cache
// results by (zip, bill, roof type) since output is deterministic.
package solarcalc

import (
	"math"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Input carries the facts gathered in conversation. Only MonthlyBill is
// strictly needed; everything else has conservative defaults.
type Input struct {
	MonthlyBill   float64 `json:"monthly_bill"`
	ZipCode       string  `json:"zip_code"`
	Borough       string  `json:"borough"`
	RoofType      string  `json:"roof_type"`
	RoofSizeSqFt  float64 `json:"roof_size_sqft"`
	ShadingFactor float64 `json:"shading_factor"`
	HomeType      string  `json:"home_type"`
}

// FinancingOption is one way to pay for the system.
type FinancingOption struct {
	Name           string       `json:"name"`
	TermYears      int          `json:"term_years"`
	APR            float64      `json:"apr"`
	MonthlyPayment values.Money `json:"monthly_payment"`
	TotalCost      values.Money `json:"total_cost"`
}

// Recommendation is the full economics picture for one prospect.
type Recommendation struct {
	Territory  string  `json:"territory"`
	RatePerKWh float64 `json:"rate_per_kwh"`

	SystemSizeKW   float64 `json:"system_size_kw"`
	PanelCount     int     `json:"panel_count"`
	PanelWatts     int     `json:"panel_watts"`
	RoofAreaSqFt   float64 `json:"roof_area_sqft"`
	AnnualUsageKWh float64 `json:"annual_usage_kwh"`
	AnnualProdKWh  float64 `json:"annual_production_kwh"`

	GrossCost     values.Money `json:"gross_cost"`
	FederalCredit values.Money `json:"federal_credit"`
	NYSERDARebate values.Money `json:"nyserda_rebate"`
	TaxAbatement  values.Money `json:"tax_abatement"`
	NetCost       values.Money `json:"net_cost"`

	AnnualSavings   values.Money `json:"annual_savings"`
	PaybackYears    float64      `json:"payback_years"`
	LifetimeSavings values.Money `json:"lifetime_savings"`
	ROIPercent      float64      `json:"roi_percent"`

	Financing []FinancingOption `json:"financing"`

	// ConfidenceScore is <=0.3 for fallback recommendations produced from
	// missing or invalid input.
	ConfidenceScore float64 `json:"confidence_score"`
	Fallback        bool    `json:"fallback"`
}

// Calculator computes solar system recommendations. Stateless and safe for
// concurrent use.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate always returns a recommendation. Missing or invalid input
// produces a conservative fallback flagged with a low confidence score;
// the conversation must always have something to say.
func (c *Calculator) Calculate(in Input) *Recommendation {
	if in.MonthlyBill <= 0 || math.IsNaN(in.MonthlyBill) || math.IsInf(in.MonthlyBill, 0) {
		return c.fallback(in)
	}

	territory, rate := territoryFor(in.ZipCode, in.Borough)

	shading := in.ShadingFactor
	if shading <= 0 || shading > 1 {
		shading = defaultShadingFactor
	}

	annualUsage := in.MonthlyBill / rate * 12

	requiredProduction := annualUsage * targetOffset
	sizeKW := requiredProduction / (annualIrradiance * shading)
	sizeKW = clamp(sizeKW, minSystemKW, maxSystemKW)

	panel := panelForRoof(in.RoofType)
	panelCount := int(math.Ceil(sizeKW * 1000 / float64(panel.watts)))
	roofArea := float64(panelCount) * panel.areaSqFt * panelSpacingMargin

	annualProduction := sizeKW * annualIrradiance * shading

	grossCost := sizeKW * 1000 * panel.costPerW
	federalCredit := grossCost * federalCreditRate
	nyserdaRebate := math.Min(sizeKW*nyserdaPerKW, nyserdaCap)
	postRebate := grossCost - federalCredit - nyserdaRebate
	taxAbatement := postRebate * taxAbatementRate
	netCost := math.Max(0, postRebate-taxAbatement)

	annualSavings := math.Min(annualProduction, annualUsage) * rate

	paybackYears := paybackSentinelYears
	if annualSavings > 0 {
		paybackYears = netCost / annualSavings
	}

	lifetimeSavings := lifetimeSavingsTotal(annualProduction, annualUsage, rate) - netCost

	roi := 0.0
	if netCost > 0 {
		roi = lifetimeSavings / netCost * 100
	}

	confidence := 0.9
	if in.ZipCode == "" && in.Borough == "" {
		confidence = 0.6
	}
	if in.RoofType == "" {
		confidence -= 0.1
	}

	return &Recommendation{
		Territory:       territory,
		RatePerKWh:      rate,
		SystemSizeKW:    round2(sizeKW),
		PanelCount:      panelCount,
		PanelWatts:      panel.watts,
		RoofAreaSqFt:    round2(roofArea),
		AnnualUsageKWh:  round2(annualUsage),
		AnnualProdKWh:   round2(annualProduction),
		GrossCost:       usd(grossCost),
		FederalCredit:   usd(federalCredit),
		NYSERDARebate:   usd(nyserdaRebate),
		TaxAbatement:    usd(taxAbatement),
		NetCost:         usd(netCost),
		AnnualSavings:   usd(annualSavings),
		PaybackYears:    round2(paybackYears),
		LifetimeSavings: usd(lifetimeSavings),
		ROIPercent:      round2(roi),
		Financing:       financingOptions(netCost),
		ConfidenceScore: confidence,
	}
}

// fallback is the conservative recommendation used when the bill is missing
// or invalid: a minimum-size system in the low-rate territory.
func (c *Calculator) fallback(in Input) *Recommendation {
	panel := panelForRoof(in.RoofType)
	panelCount := int(math.Ceil(minSystemKW * 1000 / float64(panel.watts)))
	annualProduction := minSystemKW * annualIrradiance * defaultShadingFactor
	grossCost := minSystemKW * 1000 * panel.costPerW
	federalCredit := grossCost * federalCreditRate
	nyserdaRebate := math.Min(minSystemKW*nyserdaPerKW, nyserdaCap)
	postRebate := grossCost - federalCredit - nyserdaRebate
	taxAbatement := postRebate * taxAbatementRate
	netCost := math.Max(0, postRebate-taxAbatement)
	annualSavings := annualProduction * psegRatePerKWh

	paybackYears := paybackSentinelYears
	if annualSavings > 0 {
		paybackYears = netCost / annualSavings
	}

	return &Recommendation{
		Territory:       TerritoryPSEG,
		RatePerKWh:      psegRatePerKWh,
		SystemSizeKW:    minSystemKW,
		PanelCount:      panelCount,
		PanelWatts:      panel.watts,
		RoofAreaSqFt:    round2(float64(panelCount) * panel.areaSqFt * panelSpacingMargin),
		AnnualProdKWh:   round2(annualProduction),
		GrossCost:       usd(grossCost),
		FederalCredit:   usd(federalCredit),
		NYSERDARebate:   usd(nyserdaRebate),
		TaxAbatement:    usd(taxAbatement),
		NetCost:         usd(netCost),
		AnnualSavings:   usd(annualSavings),
		PaybackYears:    round2(paybackYears),
		LifetimeSavings: usd(lifetimeSavingsTotal(annualProduction, annualProduction, psegRatePerKWh) - netCost),
		ROIPercent:      0,
		Financing:       financingOptions(netCost),
		ConfidenceScore: 0.3,
		Fallback:        true,
	}
}

// lifetimeSavingsTotal simulates 25 years of production with panel
// degradation and utility rate inflation and sums the yearly savings.
func lifetimeSavingsTotal(annualProduction, annualUsage, rate float64) float64 {
	total := 0.0
	production := annualProduction
	yearRate := rate
	for year := 0; year < systemLifetimeYears; year++ {
		total += math.Min(production, annualUsage) * yearRate
		production *= 1 - degradationPerYear
		yearRate *= 1 + rateInflationPerYear
	}
	return total
}

// financingOptions produces cash plus two amortized loan terms.
func financingOptions(netCost float64) []FinancingOption {
	options := []FinancingOption{
		{
			Name:           "cash",
			TermYears:      0,
			APR:            0,
			MonthlyPayment: values.ZeroUSD(),
			TotalCost:      usd(netCost),
		},
	}

	for _, loan := range []struct {
		name  string
		years int
		apr   float64
	}{
		{"loan_10yr", 10, 0.065},
		{"loan_20yr", 20, 0.075},
	} {
		monthly := annuityPayment(netCost, loan.apr, loan.years)
		options = append(options, FinancingOption{
			Name:           loan.name,
			TermYears:      loan.years,
			APR:            loan.apr,
			MonthlyPayment: usd(monthly),
			TotalCost:      usd(monthly * float64(loan.years) * 12),
		})
	}
	return options
}

// annuityPayment is the standard fixed-rate amortization formula.
func annuityPayment(principal, apr float64, years int) float64 {
	if principal <= 0 {
		return 0
	}
	n := float64(years * 12)
	r := apr / 12
	if r == 0 {
		return principal / n
	}
	return principal * r / (1 - math.Pow(1+r, -n))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func usd(v float64) values.Money {
	return values.USDFromFloat(round2(v))
}
