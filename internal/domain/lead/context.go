package lead

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// ConversationContext carries everything learned about a prospect during a
// chat session. One instance exists per session and is only ever mutated by
// the task handling that session's current turn.
//
// Every qualification fact is an explicit field. Absent facts are zero values
// and simply contribute nothing to scoring; they never cause errors.
type ConversationContext struct {
	SessionID string     `json:"session_id"`
	LeadID    *uuid.UUID `json:"lead_id,omitempty"`

	// Qualification facts
	HomeownerVerified bool         `json:"homeowner_verified"`
	MonthlyBill       values.Money `json:"monthly_bill"`
	ZipCode           string       `json:"zip_code,omitempty"`
	Borough           string       `json:"borough,omitempty"`
	Neighborhood      string       `json:"neighborhood,omitempty"`
	HomeType          string       `json:"home_type,omitempty"`
	RoofType          string       `json:"roof_type,omitempty"`
	RoofSizeSqFt      float64      `json:"roof_size_sqft,omitempty"`
	ShadingFactor     float64      `json:"shading_factor,omitempty"`
	Timeline          string       `json:"timeline,omitempty"`
	CreditIndicators  []string     `json:"credit_indicators,omitempty"`

	// Behavioral signals accumulated over the conversation
	TechnicalQuestions int           `json:"technical_questions"`
	ObjectionsRaised   int           `json:"objections_raised"`
	ObjectionsResolved int           `json:"objections_resolved"`
	AverageSentiment   float64       `json:"average_sentiment"` // -1.0 .. 1.0
	HighIntentSignals  int           `json:"high_intent_signals"`
	DecisionMaker      bool          `json:"decision_maker"`
	ComparingOffers    bool          `json:"comparing_offers"`
	SessionDuration    time.Duration `json:"session_duration"`

	// Derived state
	LeadScore      int         `json:"lead_score"`
	Tier           QualityTier `json:"quality_tier"`
	UrgencyCreated bool        `json:"urgency_created"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationContext creates the per-session context at conversation start.
func NewConversationContext(sessionID string) *ConversationContext {
	now := clock.Now()
	return &ConversationContext{
		SessionID: sessionID,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// ApplyScore records a fresh lead score and derives the quality tier from it.
// The tier field has no other writer.
func (c *ConversationContext) ApplyScore(score int) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	c.LeadScore = score
	c.Tier = TierForScore(score)
	c.UpdatedAt = clock.Now()
}

// Touch advances the session duration and updated timestamp on a new turn.
func (c *ConversationContext) Touch() {
	now := clock.Now()
	c.SessionDuration = now.Sub(c.StartedAt)
	c.UpdatedAt = now
}

// HasBill reports whether a usable monthly bill amount is known.
func (c *ConversationContext) HasBill() bool {
	return c.MonthlyBill.IsPositive()
}

// HasCreditIndicator reports whether a specific credit tag was captured.
func (c *ConversationContext) HasCreditIndicator(tag string) bool {
	for _, t := range c.CreditIndicators {
		if t == tag {
			return true
		}
	}
	return false
}
