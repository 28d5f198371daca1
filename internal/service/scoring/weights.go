package scoring

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Factor names used by weight adjustments.
const (
	FactorBaseQualification = "base_qualification"
	FactorBehavioral        = "behavioral"
	FactorMarketTiming      = "market_timing"
	FactorNYCIntelligence   = "nyc_intelligence"
)

// minWeight keeps any single factor from being adjusted out of existence.
const minWeight = 0.05

// Weights is an immutable snapshot of the scoring weight table. Every
// published snapshot carries a monotonically increasing version.
type Weights struct {
	BaseQualification float64   `json:"base_qualification"`
	Behavioral        float64   `json:"behavioral"`
	MarketTiming      float64   `json:"market_timing"`
	NYCIntelligence   float64   `json:"nyc_intelligence"`
	Version           int       `json:"version"`
	PublishedAt       time.Time `json:"published_at"`
}

// DefaultWeights returns the calibrated starting weights.
func DefaultWeights() Weights {
	return Weights{
		BaseQualification: 0.40,
		Behavioral:        0.30,
		MarketTiming:      0.20,
		NYCIntelligence:   0.10,
		Version:           1,
	}
}

// normalized scales the weights to sum to 1.0, flooring each at minWeight.
func (w Weights) normalized() Weights {
	for _, v := range []*float64{&w.BaseQualification, &w.Behavioral, &w.MarketTiming, &w.NYCIntelligence} {
		if *v < minWeight {
			*v = minWeight
		}
	}
	sum := w.BaseQualification + w.Behavioral + w.MarketTiming + w.NYCIntelligence
	w.BaseQualification /= sum
	w.Behavioral /= sum
	w.MarketTiming /= sum
	w.NYCIntelligence /= sum
	return w
}

// WeightTable publishes immutable weight snapshots with an atomic pointer
// swap. Readers always see a whole consistent snapshot; concurrent scoring
// calls never observe a partially applied update.
type WeightTable struct {
	current atomic.Pointer[Weights]
}

// NewWeightTable creates a table seeded with the given weights.
func NewWeightTable(w Weights) *WeightTable {
	t := &WeightTable{}
	if w.Version == 0 {
		w.Version = 1
	}
	w = w.normalized()
	t.current.Store(&w)
	return t
}

// Snapshot returns the current weight snapshot.
func (t *WeightTable) Snapshot() Weights {
	return *t.current.Load()
}

// Publish installs a new snapshot, stamping the next version. Copy-on-write:
// the previous snapshot is untouched.
func (t *WeightTable) Publish(w Weights, at time.Time) Weights {
	prev := t.current.Load()
	w = w.normalized()
	w.Version = prev.Version + 1
	w.PublishedAt = at
	t.current.Store(&w)
	return w
}

// Adjust applies a delta to one factor, renormalizes, and publishes the
// resulting snapshot.
func (t *WeightTable) Adjust(factor string, delta float64, at time.Time) (Weights, error) {
	w := t.Snapshot()
	switch factor {
	case FactorBaseQualification:
		w.BaseQualification += delta
	case FactorBehavioral:
		w.Behavioral += delta
	case FactorMarketTiming:
		w.MarketTiming += delta
	case FactorNYCIntelligence:
		w.NYCIntelligence += delta
	default:
		return w, fmt.Errorf("unknown scoring factor %q", factor)
	}
	return t.Publish(w, at), nil
}
