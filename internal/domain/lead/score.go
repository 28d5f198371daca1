package lead

import (
	"time"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Score is an immutable snapshot of a scoring pass over a conversation.
// A fresh one is produced on every turn and cached with a 1 hour TTL keyed
// by session.
type Score struct {
	SessionID string `json:"session_id"`

	// Weighted sub-scores, each 0-100
	BaseQualification float64 `json:"base_qualification"`
	Behavioral        float64 `json:"behavioral"`
	MarketTiming      float64 `json:"market_timing"`
	NYCIntelligence   float64 `json:"nyc_intelligence"`

	Total int         `json:"total"`
	Tier  QualityTier `json:"quality_tier"`

	RevenuePotential      values.Money `json:"revenue_potential"`
	ConversionProbability float64      `json:"conversion_probability"`
	TargetBuyerTier       string       `json:"target_buyer_tier"`

	// Factors lists the individual contributions that produced the
	// sub-scores, for explainability and test assertions.
	Factors map[string]float64 `json:"factors,omitempty"`

	WeightsVersion int       `json:"weights_version"`
	ScoredAt       time.Time `json:"scored_at"`
}

// Qualified reports whether the scored lead can be routed to a buyer.
func (s *Score) Qualified() bool {
	return s.Tier.Qualified()
}
