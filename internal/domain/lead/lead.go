package lead

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Lead is the persistent record of a prospect captured via chat.
type Lead struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`

	Score int         `json:"score"`
	Tier  QualityTier `json:"quality_tier"`

	Borough  string `json:"borough,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
	HomeType string `json:"home_type,omitempty"`

	// Set once the lead has been routed and sold
	BuyerID   *string       `json:"buyer_id,omitempty"`
	SalePrice *values.Money `json:"sale_price,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusNew Status = iota
	StatusQualified
	StatusRouted
	StatusDelivered
	StatusConverted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusQualified:
		return "qualified"
	case StatusRouted:
		return "routed"
	case StatusDelivered:
		return "delivered"
	case StatusConverted:
		return "converted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewLead creates a lead for a chat session.
func NewLead(sessionID string) (*Lead, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	now := clock.Now()
	return &Lead{
		ID:        uuid.New(),
		SessionID: sessionID,
		Status:    StatusNew,
		Tier:      TierUnqualified,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateScore records the latest score and keeps tier and status consistent.
func (l *Lead) UpdateScore(score int) {
	l.Score = score
	l.Tier = TierForScore(score)
	if l.Status == StatusNew && l.Tier.Qualified() {
		l.Status = StatusQualified
	}
	l.UpdatedAt = clock.Now()
}

// MarkRouted records the winning buyer and sale price.
func (l *Lead) MarkRouted(buyerID string, price values.Money) error {
	if l.Status != StatusQualified && l.Status != StatusNew {
		return fmt.Errorf("lead cannot be routed from status %s", l.Status)
	}
	l.Status = StatusRouted
	l.BuyerID = &buyerID
	l.SalePrice = &price
	l.UpdatedAt = clock.Now()
	return nil
}

// MarkDelivered records a successful outbound delivery to the buyer.
func (l *Lead) MarkDelivered() error {
	if l.Status != StatusRouted {
		return fmt.Errorf("lead cannot be delivered from status %s", l.Status)
	}
	l.Status = StatusDelivered
	l.UpdatedAt = clock.Now()
	return nil
}

// MarkConverted records a buyer-confirmed conversion.
func (l *Lead) MarkConverted() error {
	if l.Status != StatusDelivered {
		return fmt.Errorf("lead cannot be converted from status %s", l.Status)
	}
	l.Status = StatusConverted
	l.UpdatedAt = clock.Now()
	return nil
}

// Fail terminates the lead after exhausted deliveries or a buyer rejection.
func (l *Lead) Fail() {
	l.Status = StatusFailed
	l.UpdatedAt = clock.Now()
}
