package revenue

import (
	"sort"
	"time"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
)

// Recommendation is one optimization suggestion for a live conversation.
type Recommendation struct {
	Action         string  `json:"action"`
	Detail         string  `json:"detail"`
	ExpectedImpact float64 `json:"expected_impact"` // fractional revenue lift
}

// maxRecommendations caps how many suggestions an update returns.
const maxRecommendations = 3

type rule struct {
	action string
	detail string
	impact float64
	fires  func(s *State) bool
}

// rules are re-evaluated in full on every update; each rule is independent
// and several may fire at once.
var rules = []rule{
	{
		action: "create_urgency",
		detail: "mention limited NYSERDA rebate window",
		impact: 0.25,
		fires: func(s *State) bool {
			return !s.UrgencyCreated &&
				s.Duration >= 3*time.Minute &&
				s.Tier >= lead.TierStandard
		},
	},
	{
		action: "probe_technical",
		detail: "ask about roof age and electrical panel",
		impact: 0.20,
		fires: func(s *State) bool {
			return s.TechnicalEngagement < 2 && s.QuestionCount >= 3
		},
	},
	{
		action: "address_objections",
		detail: "surface financing options to counter cost concerns",
		impact: 0.18,
		fires: func(s *State) bool {
			return s.ObjectionCount > s.ObjectionsResolved
		},
	},
	{
		action: "push_qualification",
		detail: "confirm homeownership and monthly bill",
		impact: 0.30,
		fires: func(s *State) bool {
			return s.Duration >= 2*time.Minute && s.Tier == lead.TierUnqualified
		},
	},
	{
		action: "close_for_handoff",
		detail: "offer installer consultation booking",
		impact: 0.15,
		fires: func(s *State) bool {
			return s.Tier >= lead.TierPremium && s.revenueTrendRising()
		},
	},
}

// evaluate runs every rule against the state and returns the top firing
// recommendations by expected impact, at most maxRecommendations.
func evaluate(s *State) []Recommendation {
	var out []Recommendation
	for _, r := range rules {
		if r.fires(s) {
			out = append(out, Recommendation{
				Action:         r.action,
				Detail:         r.detail,
				ExpectedImpact: r.impact,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpectedImpact != out[j].ExpectedImpact {
			return out[i].ExpectedImpact > out[j].ExpectedImpact
		}
		return out[i].Action < out[j].Action
	})
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}
