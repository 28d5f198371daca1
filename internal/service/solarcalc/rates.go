package solarcalc

// Utility territory rate tables. Con Edison covers Manhattan, Brooklyn,
// Queens, the Bronx, and most of Westchester; PSEG Long Island covers the
// Rockaways and Long Island zips. Unknown zips default to the lower-rate
// territory so savings estimates stay conservative.

const (
	TerritoryConEd = "coned"
	TerritoryPSEG  = "pseg"
)

const (
	conEdRatePerKWh = 0.33
	psegRatePerKWh  = 0.22
)

// NYC average annual solar irradiance, kWh produced per kW installed.
const annualIrradiance = 1300.0

const (
	defaultShadingFactor = 0.85
	targetOffset         = 0.85 // size for 85% of usage
	minSystemKW          = 3.0
	maxSystemKW          = 15.0
	panelSpacingMargin   = 1.2 // 20% spacing margin on roof area
)

// Incentive parameters.
const (
	federalCreditRate    = 0.30
	nyserdaPerKW         = 400.0
	nyserdaCap           = 3000.0
	taxAbatementRate     = 0.30
	degradationPerYear   = 0.005
	rateInflationPerYear = 0.03
	systemLifetimeYears  = 25
)

// Sentinel payback when annual savings are zero; never Inf or NaN.
const paybackSentinelYears = 999.0

type panelSpec struct {
	watts    int
	costPerW float64
	areaSqFt float64
}

var (
	standardPanel = panelSpec{watts: 400, costPerW: 3.00, areaSqFt: 21.0}
	premiumPanel  = panelSpec{watts: 430, costPerW: 3.40, areaSqFt: 21.5}
)

// panelForRoof picks the panel line by roof construction. Flat and metal
// roofs get premium hardware for the ballast/attachment premium they carry.
func panelForRoof(roofType string) panelSpec {
	switch roofType {
	case "flat", "metal":
		return premiumPanel
	default:
		return standardPanel
	}
}

// psegBoroughs and psegZipPrefixes identify the PSEG service area.
var psegZipPrefixes = []string{"110", "115", "116", "117", "118", "119"}

// territoryFor resolves the utility territory from zip and borough.
func territoryFor(zipCode, borough string) (string, float64) {
	switch borough {
	case "manhattan", "brooklyn", "bronx", "queens", "staten_island":
		return TerritoryConEd, conEdRatePerKWh
	}
	for _, prefix := range psegZipPrefixes {
		if len(zipCode) >= 3 && zipCode[:3] == prefix {
			return TerritoryPSEG, psegRatePerKWh
		}
	}
	if len(zipCode) >= 3 && zipCode[:3] >= "100" && zipCode[:3] <= "104" {
		return TerritoryConEd, conEdRatePerKWh
	}
	// Unknown: default to the lower-rate territory
	return TerritoryPSEG, psegRatePerKWh
}
