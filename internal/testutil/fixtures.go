// Package testutil provides shared fixtures for service tests.
package testutil

import (
	"time"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Platform returns a valid active API-delivery platform. Callers mutate the
// returned value to shape the scenario.
func Platform(id string, tier buyer.Tier) *buyer.Platform {
	return &buyer.Platform{
		ID:             id,
		Name:           id,
		Tier:           tier,
		MinLeadScore:   50,
		DailyCapacity:  10,
		WeeklyCapacity: 50,
		PricePerLead:   values.USDFromFloat(150),
		AcceptanceRate: 0.8,
		AvgLeadValue:   values.USDFromFloat(160),
		Delivery: buyer.DeliveryConfig{
			Method:   buyer.DeliveryAPI,
			Endpoint: "https://buyer.example.com/leads",
			Secret:   "test-secret",
		},
		Active:    true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// QualifiedContext returns a context that scores premium: Manhattan
// homeowner, high bill, engaged and urgent.
func QualifiedContext(sessionID string) *lead.ConversationContext {
	cc := lead.NewConversationContext(sessionID)
	cc.HomeownerVerified = true
	cc.MonthlyBill = values.USDFromFloat(380)
	cc.Borough = "manhattan"
	cc.Neighborhood = "upper_east_side"
	cc.ZipCode = "10021"
	cc.HomeType = "townhouse"
	cc.Timeline = "asap"
	cc.CreditIndicators = []string{"excellent_credit", "owns_outright"}
	cc.TechnicalQuestions = 5
	cc.ObjectionsResolved = 2
	cc.AverageSentiment = 0.7
	cc.HighIntentSignals = 3
	cc.DecisionMaker = true
	cc.ComparingOffers = true
	cc.SessionDuration = 6 * time.Minute
	return cc
}

// RenterContext returns a context for a prospect who is not a homeowner.
func RenterContext(sessionID string) *lead.ConversationContext {
	cc := QualifiedContext(sessionID)
	cc.HomeownerVerified = false
	return cc
}

// QualifiedLead returns a lead with the given score applied.
func QualifiedLead(sessionID string, score int) *lead.Lead {
	l, err := lead.NewLead(sessionID)
	if err != nil {
		panic(err)
	}
	l.Borough = "manhattan"
	l.ZipCode = "10021"
	l.HomeType = "townhouse"
	l.UpdateScore(score)
	return l
}

// Score returns a minimal score snapshot for routing tests.
func Score(sessionID string, total int) *lead.Score {
	tier := lead.TierForScore(total)
	target := ""
	switch tier {
	case lead.TierPremium:
		target = "premium"
	case lead.TierStandard:
		target = "standard"
	case lead.TierBasic:
		target = "volume"
	}
	return &lead.Score{
		SessionID:        sessionID,
		Total:            total,
		Tier:             tier,
		RevenuePotential: values.USDFromFloat(float64(total) * 2),
		TargetBuyerTier:  target,
		ScoredAt:         time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
}
