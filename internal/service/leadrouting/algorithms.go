package leadrouting

import (
	"sort"

	"github.com/brightlead/solar-lead-exchange-backend/internal/service/capacity"
)

// RoutingWeights control the candidate-ranking blend. They must sum to 1.0
// for scores to stay in 0-1; Normalize enforces that at construction.
type RoutingWeights struct {
	ExpectedRevenue float64 `json:"expected_revenue" koanf:"expected_revenue"`
	Acceptance      float64 `json:"acceptance" koanf:"acceptance"`
	Headroom        float64 `json:"headroom" koanf:"headroom"`
	TierMatch       float64 `json:"tier_match" koanf:"tier_match"`
	Geography       float64 `json:"geography" koanf:"geography"`
	AvgValue        float64 `json:"avg_value" koanf:"avg_value"`
}

// DefaultRoutingWeights returns the calibrated ranking blend.
func DefaultRoutingWeights() RoutingWeights {
	return RoutingWeights{
		ExpectedRevenue: 0.40,
		Acceptance:      0.25,
		Headroom:        0.15,
		TierMatch:       0.10,
		Geography:       0.05,
		AvgValue:        0.05,
	}
}

// Normalize scales the weights to sum to 1.0; all-zero weights fall back to
// the defaults.
func (w RoutingWeights) Normalize() RoutingWeights {
	sum := w.ExpectedRevenue + w.Acceptance + w.Headroom + w.TierMatch + w.Geography + w.AvgValue
	if sum <= 0 {
		return DefaultRoutingWeights()
	}
	w.ExpectedRevenue /= sum
	w.Acceptance /= sum
	w.Headroom /= sum
	w.TierMatch /= sum
	w.Geography /= sum
	w.AvgValue /= sum
	return w
}

// ranked is one scored candidate.
type ranked struct {
	candidate   capacity.Candidate
	score       float64
	utilization float64
	expected    float64 // price * acceptance, USD
}

// rankCandidates scores and orders candidates best first. Expected revenue
// and average lead value are normalized against the best in the set so the
// blend stays comparable across days with very different price levels.
// Ties break on lower utilization, then lexical platform ID, so identical
// inputs always produce the same order.
func rankCandidates(candidates []capacity.Candidate, w RoutingWeights, targetTier, borough, zipCode string) []ranked {
	var maxExpected, maxAvgValue float64
	for _, c := range candidates {
		if e := c.Platform.PricePerLead.ToFloat64() * c.Platform.AcceptanceRate; e > maxExpected {
			maxExpected = e
		}
		if v := c.Platform.AvgLeadValue.ToFloat64(); v > maxAvgValue {
			maxAvgValue = v
		}
	}

	out := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		p := c.Platform
		expected := p.PricePerLead.ToFloat64() * p.AcceptanceRate
		util := c.Capacity.Utilization(p.DailyCapacity)

		var s float64
		if maxExpected > 0 {
			s += w.ExpectedRevenue * (expected / maxExpected)
		}
		s += w.Acceptance * p.AcceptanceRate
		s += w.Headroom * headroomScore(util)
		if p.Tier.String() == targetTier {
			s += w.TierMatch
		}
		if geographicMatch(c, borough, zipCode) {
			s += w.Geography
		}
		if maxAvgValue > 0 {
			s += w.AvgValue * (p.AvgLeadValue.ToFloat64() / maxAvgValue)
		}

		out = append(out, ranked{candidate: c, score: s, utilization: util, expected: expected})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].utilization != out[j].utilization {
			return out[i].utilization < out[j].utilization
		}
		return out[i].candidate.Platform.ID < out[j].candidate.Platform.ID
	})
	return out
}

func headroomScore(utilization float64) float64 {
	h := 1.0 - utilization
	if h < 0 {
		return 0
	}
	return h
}

// geographicMatch reports whether the platform explicitly targets the
// lead's borough or zip; blanket buyers with no preference do not count.
func geographicMatch(c capacity.Candidate, borough, zipCode string) bool {
	for _, b := range c.Platform.Boroughs {
		if b == borough && borough != "" {
			return true
		}
	}
	for _, z := range c.Platform.ZipCodes {
		if z == zipCode && zipCode != "" {
			return true
		}
	}
	return false
}
