package feedback

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Type classifies buyer feedback on a delivered lead.
type Type string

const (
	TypeAccepted   Type = "accepted"
	TypeRejected   Type = "rejected"
	TypeConverted  Type = "converted"
	TypeLowQuality Type = "low_quality"
)

// Valid reports whether the feedback type is one of the known values.
func (t Type) Valid() bool {
	switch t {
	case TypeAccepted, TypeRejected, TypeConverted, TypeLowQuality:
		return true
	}
	return false
}

// Feedback is an immutable event: one buyer's verdict on one lead.
type Feedback struct {
	ID      uuid.UUID `json:"id"`
	LeadID  uuid.UUID `json:"lead_id"`
	BuyerID string    `json:"buyer_id"`

	Type   Type   `json:"type"`
	Score  int    `json:"score" validate:"min=1,max=10"`
	Reason string `json:"reason,omitempty"`

	// ConversionValue is set when the buyer reports realized revenue.
	ConversionValue *values.Money `json:"conversion_value,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// New validates and constructs a feedback event.
func New(leadID uuid.UUID, buyerID string, typ Type, score int, reason string, conversionValue *values.Money, at time.Time) (*Feedback, error) {
	if leadID == uuid.Nil {
		return nil, fmt.Errorf("lead ID cannot be nil")
	}
	if buyerID == "" {
		return nil, fmt.Errorf("buyer ID cannot be empty")
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown feedback type %q", typ)
	}
	if score < 1 || score > 10 {
		return nil, fmt.Errorf("feedback score must be 1-10, got %d", score)
	}

	return &Feedback{
		ID:              uuid.New(),
		LeadID:          leadID,
		BuyerID:         buyerID,
		Type:            typ,
		Score:           score,
		Reason:          reason,
		ConversionValue: conversionValue,
		SubmittedAt:     at,
	}, nil
}
