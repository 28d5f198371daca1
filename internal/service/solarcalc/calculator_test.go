package solarcalc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateManhattanTownhouse(t *testing.T) {
	c := NewCalculator()
	rec := c.Calculate(Input{
		MonthlyBill: 380,
		Borough:     "manhattan",
		ZipCode:     "10021",
		RoofType:    "shingle",
	})

	assert.Equal(t, TerritoryConEd, rec.Territory)
	assert.Equal(t, 0.33, rec.RatePerKWh)
	assert.False(t, rec.Fallback)
	assert.Equal(t, 0.9, rec.ConfidenceScore)

	// $380/mo at $0.33/kWh is ~13,818 kWh/yr; an 85% offset at NYC
	// irradiance lands mid-range, well inside the clamp.
	assert.Greater(t, rec.SystemSizeKW, minSystemKW)
	assert.Less(t, rec.SystemSizeKW, maxSystemKW)
	assert.Greater(t, rec.PanelCount, 0)
	assert.Equal(t, 400, rec.PanelWatts)

	assert.True(t, rec.NetCost.ToFloat64() < rec.GrossCost.ToFloat64())
	assert.True(t, rec.AnnualSavings.IsPositive())
	assert.Greater(t, rec.PaybackYears, 0.0)
	assert.False(t, math.IsInf(rec.PaybackYears, 0))
	assert.False(t, math.IsNaN(rec.PaybackYears))
}

func TestCalculateDeterministic(t *testing.T) {
	c := NewCalculator()
	in := Input{MonthlyBill: 250, Borough: "brooklyn", RoofType: "flat"}

	first := c.Calculate(in)
	second := c.Calculate(in)
	assert.Equal(t, first, second)
}

func TestCalculateZeroBillFallsBack(t *testing.T) {
	c := NewCalculator()

	for _, bill := range []float64{0, -50, math.NaN(), math.Inf(1)} {
		rec := c.Calculate(Input{MonthlyBill: bill})
		require.NotNil(t, rec)
		assert.True(t, rec.Fallback, "bill %v", bill)
		assert.Equal(t, 0.3, rec.ConfidenceScore)
		assert.Equal(t, minSystemKW, rec.SystemSizeKW)
		assert.False(t, math.IsInf(rec.PaybackYears, 0))
		assert.False(t, math.IsNaN(rec.PaybackYears))
	}
}

func TestConfidenceDegradesWithMissingInput(t *testing.T) {
	c := NewCalculator()

	full := c.Calculate(Input{MonthlyBill: 200, Borough: "queens", RoofType: "shingle"})
	noGeo := c.Calculate(Input{MonthlyBill: 200, RoofType: "shingle"})
	noRoof := c.Calculate(Input{MonthlyBill: 200, Borough: "queens"})

	assert.Equal(t, 0.9, full.ConfidenceScore)
	assert.Equal(t, 0.6, noGeo.ConfidenceScore)
	assert.InDelta(t, 0.8, noRoof.ConfidenceScore, 1e-9)
}

func TestSystemSizeClamped(t *testing.T) {
	c := NewCalculator()

	tiny := c.Calculate(Input{MonthlyBill: 20, Borough: "bronx"})
	assert.Equal(t, minSystemKW, tiny.SystemSizeKW)

	huge := c.Calculate(Input{MonthlyBill: 3000, Borough: "bronx"})
	assert.Equal(t, maxSystemKW, huge.SystemSizeKW)
}

func TestFlatRoofGetsPremiumPanels(t *testing.T) {
	c := NewCalculator()
	rec := c.Calculate(Input{MonthlyBill: 250, Borough: "queens", RoofType: "flat"})
	assert.Equal(t, premiumPanel.watts, rec.PanelWatts)
}

func TestNYSERDARebateCapped(t *testing.T) {
	c := NewCalculator()
	rec := c.Calculate(Input{MonthlyBill: 3000, Borough: "manhattan"})
	assert.InDelta(t, nyserdaCap, rec.NYSERDARebate.ToFloat64(), 0.01)
}

func TestFinancingOptions(t *testing.T) {
	c := NewCalculator()
	rec := c.Calculate(Input{MonthlyBill: 300, Borough: "brooklyn"})

	require.Len(t, rec.Financing, 3)
	cash, ten, twenty := rec.Financing[0], rec.Financing[1], rec.Financing[2]

	assert.Equal(t, "cash", cash.Name)
	assert.True(t, cash.MonthlyPayment.IsZero())
	assert.True(t, cash.TotalCost.Equal(rec.NetCost))

	assert.Equal(t, 10, ten.TermYears)
	assert.Equal(t, 20, twenty.TermYears)
	assert.Greater(t, ten.MonthlyPayment.ToFloat64(), twenty.MonthlyPayment.ToFloat64(),
		"shorter terms carry higher monthly payments")
	assert.Greater(t, twenty.TotalCost.ToFloat64(), ten.TotalCost.ToFloat64(),
		"longer terms cost more in total interest")
	assert.Greater(t, ten.TotalCost.ToFloat64(), cash.TotalCost.ToFloat64())
}

func TestTerritoryResolution(t *testing.T) {
	tests := []struct {
		name    string
		zip     string
		borough string
		want    string
	}{
		{"manhattan by borough", "", "manhattan", TerritoryConEd},
		{"staten island by borough", "", "staten_island", TerritoryConEd},
		{"rockaway zip", "11691", "", TerritoryPSEG},
		{"manhattan zip only", "10021", "", TerritoryConEd},
		{"unknown defaults conservative", "90210", "", TerritoryPSEG},
		{"empty input", "", "", TerritoryPSEG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			territory, _ := territoryFor(tt.zip, tt.borough)
			assert.Equal(t, tt.want, territory)
		})
	}
}

func TestAnnuityPayment(t *testing.T) {
	// Zero principal pays nothing; zero APR divides evenly.
	assert.Equal(t, 0.0, annuityPayment(0, 0.065, 10))
	assert.InDelta(t, 100.0, annuityPayment(12000, 0, 10), 1e-9)

	// A positive rate always costs more per month than the even split.
	assert.Greater(t, annuityPayment(12000, 0.065, 10), 100.0)
}
