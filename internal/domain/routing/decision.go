package routing

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// FallbackBuyerID is the sentinel buyer for leads no platform can take right
// now. Fallback decisions park the lead at a fixed low price so the
// conversation can proceed; the lead is re-offered when capacity returns.
const FallbackBuyerID = "fallback"

// Fallback decision constants.
const (
	fallbackPriceUSD   = 25.0
	FallbackConfidence = 0.3
	FallbackReason     = "no available buyers"
)

// Decision is the immutable record of one routing outcome. It is persisted
// for audit and later correlated with buyer feedback.
type Decision struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"lead_id"`
	SessionID string    `json:"session_id"`

	BuyerID   string     `json:"buyer_id"`
	BuyerTier buyer.Tier `json:"buyer_tier"`

	Price           values.Money `json:"price"`
	ExpectedRevenue values.Money `json:"expected_revenue"`

	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`

	// Up to two runner-up platform IDs, best first.
	Alternates []string `json:"alternates,omitempty"`

	RoutedAt time.Time `json:"routed_at"`
}

// NewDecision builds a routing decision for a winning platform.
func NewDecision(leadID uuid.UUID, sessionID, buyerID string, tier buyer.Tier, price, expected values.Money, reason string, confidence float64, alternates []string, at time.Time) *Decision {
	if len(alternates) > 2 {
		alternates = alternates[:2]
	}
	return &Decision{
		ID:              uuid.New(),
		LeadID:          leadID,
		SessionID:       sessionID,
		BuyerID:         buyerID,
		BuyerTier:       tier,
		Price:           price,
		ExpectedRevenue: expected,
		Reason:          reason,
		Confidence:      confidence,
		Alternates:      alternates,
		RoutedAt:        at,
	}
}

// NewFallbackDecision builds the deterministic decision used when no buyer
// qualifies. It never fails and never blocks.
func NewFallbackDecision(leadID uuid.UUID, sessionID string, at time.Time) *Decision {
	price := values.USDFromFloat(fallbackPriceUSD)
	return &Decision{
		ID:              uuid.New(),
		LeadID:          leadID,
		SessionID:       sessionID,
		BuyerID:         FallbackBuyerID,
		BuyerTier:       buyer.TierVolume,
		Price:           price,
		ExpectedRevenue: price,
		Reason:          FallbackReason,
		Confidence:      FallbackConfidence,
		RoutedAt:        at,
	}
}

// IsFallback reports whether the decision parked the lead.
func (d *Decision) IsFallback() bool {
	return d.BuyerID == FallbackBuyerID
}
