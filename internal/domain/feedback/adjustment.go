package feedback

import (
	"time"

	"github.com/google/uuid"
)

// ScoringAdjustment is a proposed delta to one scoring weight factor,
// produced by the batch analyzer from buyer outcome trends. Adjustments are
// persisted for audit and applied to the versioned weight table.
type ScoringAdjustment struct {
	ID      uuid.UUID `json:"id"`
	BuyerID string    `json:"buyer_id"`

	// Factor names one of the scorer's weight components
	// (base_qualification, behavioral, market_timing, nyc_intelligence).
	Factor string  `json:"factor"`
	Delta  float64 `json:"delta"`

	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`

	EffectiveAt time.Time `json:"effective_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewScoringAdjustment constructs an adjustment proposal.
func NewScoringAdjustment(buyerID, factor string, delta float64, reason string, confidence float64, at time.Time) *ScoringAdjustment {
	return &ScoringAdjustment{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		Factor:      factor,
		Delta:       delta,
		Reason:      reason,
		Confidence:  confidence,
		EffectiveAt: at,
		CreatedAt:   at,
	}
}
