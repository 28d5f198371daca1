package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
)

// Sub-score computations. Each returns a 0-100 score plus the individual
// factor contributions for the explainability breakdown. Missing context
// fields contribute zero; nothing here errors.

func baseQualificationScore(cc *lead.ConversationContext, factors map[string]float64) float64 {
	// Hard gate: renters cannot buy solar.
	if !cc.HomeownerVerified {
		factors["base.homeowner"] = 0
		return 0
	}

	score := 40.0
	factors["base.homeowner"] = 40

	bill := cc.MonthlyBill.ToFloat64()
	var billPts float64
	switch {
	case bill >= 400:
		billPts = 30
	case bill >= 300:
		billPts = 25
	case bill >= 200:
		billPts = 20
	case bill >= 100:
		billPts = 10
	}
	score += billPts
	factors["base.bill"] = billPts

	geoPts := boroughPremium[cc.Borough] + neighborhoodPremium[cc.Neighborhood]
	geoPts = math.Min(geoPts, 20)
	score += geoPts
	factors["base.geography"] = geoPts

	homePts := homeTypeScore[cc.HomeType]
	score += homePts
	factors["base.home_type"] = homePts

	return math.Min(score, 100)
}

func behavioralScore(cc *lead.ConversationContext, factors map[string]float64) float64 {
	score := 50.0

	var durationPts float64
	switch d := cc.SessionDuration; {
	case d >= 10*time.Minute:
		durationPts = 20
	case d >= 5*time.Minute:
		durationPts = 15
	case d >= 3*time.Minute:
		durationPts = 10
	case d >= time.Minute:
		durationPts = 5
	}
	score += durationPts
	factors["behavioral.duration"] = durationPts

	techPts := math.Min(float64(cc.TechnicalQuestions)*3, 20)
	score += techPts
	factors["behavioral.technical_questions"] = techPts

	objectionPts := math.Min(float64(cc.ObjectionsResolved)*5, 15)
	score += objectionPts
	factors["behavioral.objections_resolved"] = objectionPts

	var sentimentPts float64
	switch s := cc.AverageSentiment; {
	case s >= 0.6:
		sentimentPts = 15
	case s >= 0.3:
		sentimentPts = 10
	case s >= 0:
		sentimentPts = 5
	}
	score += sentimentPts
	factors["behavioral.sentiment"] = sentimentPts

	intentPts := math.Min(float64(cc.HighIntentSignals)*3, 10)
	score += intentPts
	factors["behavioral.intent_signals"] = intentPts

	return math.Min(score, 100)
}

func marketTimingScore(cc *lead.ConversationContext, now time.Time, factors map[string]float64) float64 {
	score := 50.0

	timelinePts := timelineUrgency(cc.Timeline)
	score += timelinePts
	factors["timing.timeline"] = timelinePts

	creditPts := math.Min(float64(len(cc.CreditIndicators))*8, 20)
	score += creditPts
	factors["timing.credit_signals"] = creditPts

	var decisionPts float64
	if cc.DecisionMaker {
		decisionPts = 15
	}
	score += decisionPts
	factors["timing.decision_maker"] = decisionPts

	var competitivePts float64
	if cc.ComparingOffers {
		competitivePts += 10
	}
	if cc.UrgencyCreated {
		competitivePts += 5
	}
	score += competitivePts
	factors["timing.competitive"] = competitivePts

	seasonPts := seasonTimingScore(now.Month())
	score += seasonPts
	factors["timing.season"] = seasonPts

	return math.Min(score, 100)
}

func nycIntelligenceScore(cc *lead.ConversationContext, now time.Time, factors map[string]float64) float64 {
	score := 50.0

	adoptionPts := math.Min(boroughAdoptionRate[cc.Borough]*100, 30)
	score += adoptionPts
	factors["nyc.adoption"] = adoptionPts

	incomePts := incomeBracketScore(boroughMedianIncome[cc.Borough])
	score += incomePts
	factors["nyc.income"] = incomePts

	var installerPts float64
	if boroughInstallersAvailable[cc.Borough] {
		installerPts = 10
	}
	score += installerPts
	factors["nyc.installers"] = installerPts

	seasonPts := seasonIntelligenceScore(now.Month())
	score += seasonPts
	factors["nyc.season"] = seasonPts

	return math.Min(score, 100)
}

// timelineUrgency maps free-text install timelines to up to 25 points.
func timelineUrgency(timeline string) float64 {
	t := strings.ToLower(timeline)
	switch {
	case t == "":
		return 0
	case strings.Contains(t, "asap"), strings.Contains(t, "immediately"), strings.Contains(t, "now"):
		return 25
	case strings.Contains(t, "month"), strings.Contains(t, "spring"), strings.Contains(t, "summer"):
		return 18
	case strings.Contains(t, "year"), strings.Contains(t, "fall"), strings.Contains(t, "winter"):
		return 10
	default:
		return 5
	}
}

// conversionProbability scales the total score by conversation-length and
// engagement multipliers, capped at 1.0.
func conversionProbability(total int, cc *lead.ConversationContext) float64 {
	p := float64(total) / 100

	switch d := cc.SessionDuration; {
	case d >= 5*time.Minute:
		p *= 1.1
	case d < 2*time.Minute:
		p *= 0.9
	}

	if cc.UrgencyCreated {
		p *= 1.15
	}
	if cc.TechnicalQuestions >= 3 {
		p *= 1.1
	}

	return math.Min(p, 1.0)
}

// surgeForUtilization is the demand curve translating capacity utilization
// into the revenue-potential surge multiplier.
func surgeForUtilization(utilization float64) float64 {
	switch {
	case utilization >= 0.9:
		return 1.3
	case utilization >= 0.75:
		return 1.2
	case utilization >= 0.5:
		return 1.1
	default:
		return 1.0
	}
}
