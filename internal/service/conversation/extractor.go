package conversation

import (
	"context"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Signals is what one inbound message contributed: qualification facts and
// behavioral observations. Zero-valued fields mean "nothing learned";
// pointer fields distinguish "not mentioned" from explicit values.
type Signals struct {
	HomeownerVerified *bool
	MonthlyBill       *float64
	ZipCode           string
	Borough           string
	Neighborhood      string
	HomeType          string
	RoofType          string
	Timeline          string
	CreditIndicators  []string

	TechnicalQuestion bool
	ObjectionRaised   bool
	ObjectionResolved bool
	HighIntent        bool
	DecisionMaker     *bool
	ComparingOffers   *bool
	Sentiment         float64 // -1.0 .. 1.0 for this message
}

// Extractor turns a raw chat message into structured signals. Production
// uses the external NLP service; tests use a stub.
type Extractor interface {
	Extract(ctx context.Context, message string, cc *lead.ConversationContext) (Signals, error)
}

// apply folds the signals into the conversation context.
func apply(cc *lead.ConversationContext, s Signals, turns int) {
	if s.HomeownerVerified != nil {
		cc.HomeownerVerified = *s.HomeownerVerified
	}
	if s.MonthlyBill != nil && *s.MonthlyBill > 0 {
		cc.MonthlyBill = billMoney(*s.MonthlyBill)
	}
	if s.ZipCode != "" {
		cc.ZipCode = s.ZipCode
	}
	if s.Borough != "" {
		cc.Borough = s.Borough
	}
	if s.Neighborhood != "" {
		cc.Neighborhood = s.Neighborhood
	}
	if s.HomeType != "" {
		cc.HomeType = s.HomeType
	}
	if s.RoofType != "" {
		cc.RoofType = s.RoofType
	}
	if s.Timeline != "" {
		cc.Timeline = s.Timeline
	}
	for _, tag := range s.CreditIndicators {
		if !cc.HasCreditIndicator(tag) {
			cc.CreditIndicators = append(cc.CreditIndicators, tag)
		}
	}

	if s.TechnicalQuestion {
		cc.TechnicalQuestions++
	}
	if s.ObjectionRaised {
		cc.ObjectionsRaised++
	}
	if s.ObjectionResolved {
		cc.ObjectionsResolved++
	}
	if s.HighIntent {
		cc.HighIntentSignals++
	}
	if s.DecisionMaker != nil {
		cc.DecisionMaker = *s.DecisionMaker
	}
	if s.ComparingOffers != nil {
		cc.ComparingOffers = *s.ComparingOffers
	}

	// Running mean over turns.
	n := float64(turns)
	cc.AverageSentiment += (s.Sentiment - cc.AverageSentiment) / n
}

func billMoney(v float64) values.Money {
	return values.USDFromFloat(v)
}
