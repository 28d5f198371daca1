package conversation

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
)

// KeywordExtractor derives signals from keyword and pattern matches on the
// raw message. It is the default extractor; deployments with an NLP service
// swap it out.
type KeywordExtractor struct{}

func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

var (
	billPattern = regexp.MustCompile(`\$\s?(\d{2,4})(?:\.\d{2})?\b`)
	zipPattern  = regexp.MustCompile(`\b(1[01]\d{3})\b`)
)

var boroughKeywords = map[string]string{
	"manhattan":     "manhattan",
	"brooklyn":      "brooklyn",
	"queens":        "queens",
	"bronx":         "bronx",
	"staten island": "staten_island",
}

var neighborhoodKeywords = map[string]string{
	"upper east side": "upper_east_side",
	"park slope":      "park_slope",
	"forest hills":    "forest_hills",
	"riverdale":       "riverdale",
	"todt hill":       "todt_hill",
}

var homeTypeKeywords = map[string]string{
	"single family": "single_family",
	"townhouse":     "townhouse",
	"brownstone":    "townhouse",
	"two family":    "two_family",
	"condo":         "condo",
	"co-op":         "coop",
	"coop":          "coop",
}

var roofTypeKeywords = map[string]string{
	"flat roof":    "flat",
	"sloped roof":  "sloped",
	"pitched roof": "sloped",
	"shingle":      "sloped",
}

var technicalKeywords = []string{
	"kw", "kilowatt", "inverter", "panel efficiency", "net metering",
	"battery", "warranty", "degradation", "payback",
}

var objectionKeywords = []string{
	"too expensive", "not sure", "scam", "worried", "concern",
	"don't trust", "hoa", "landmark",
}

var resolutionKeywords = []string{
	"makes sense", "that helps", "good point", "that answers",
	"feel better about", "glad you explained",
}

var intentKeywords = []string{
	"sign up", "get started", "schedule", "ready to", "how do i start",
	"send me", "next step",
}

var creditKeywords = map[string]string{
	"excellent credit": "excellent_credit",
	"good credit":      "good_credit",
	"own outright":     "owns_outright",
	"paid off":         "owns_outright",
	"refinanc":         "recent_refinance",
}

var positiveWords = []string{"great", "love", "interested", "perfect", "awesome", "thanks", "yes"}
var negativeWords = []string{"no", "not", "never", "bad", "hate", "waste", "annoying"}

// Extract is pure string work; the context is accepted for interface
// compatibility and never blocks.
func (e *KeywordExtractor) Extract(_ context.Context, message string, _ *lead.ConversationContext) (Signals, error) {
	msg := strings.ToLower(message)
	var s Signals

	switch {
	case containsAny(msg, []string{"i own", "i'm the owner", "my house", "my home", "homeowner"}):
		s.HomeownerVerified = boolPtr(true)
	case containsAny(msg, []string{"i rent", "renting", "renter", "my landlord", "tenant"}):
		s.HomeownerVerified = boolPtr(false)
	}

	if m := billPattern.FindStringSubmatch(msg); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 20 && v <= 3000 {
			s.MonthlyBill = &v
		}
	}
	if m := zipPattern.FindString(msg); m != "" {
		s.ZipCode = m
	}
	s.Borough = firstMatch(msg, boroughKeywords)
	s.Neighborhood = firstMatch(msg, neighborhoodKeywords)
	s.HomeType = firstMatch(msg, homeTypeKeywords)
	s.RoofType = firstMatch(msg, roofTypeKeywords)

	switch {
	case containsAny(msg, []string{"immediately", "right away", "asap", "this month"}):
		s.Timeline = "immediately"
	case containsAny(msg, []string{"few months", "this year", "soon"}):
		s.Timeline = "within_6_months"
	case containsAny(msg, []string{"next year", "someday", "eventually", "just researching"}):
		s.Timeline = "researching"
	}

	for kw, tag := range creditKeywords {
		if strings.Contains(msg, kw) {
			s.CreditIndicators = append(s.CreditIndicators, tag)
		}
	}

	s.TechnicalQuestion = containsAny(msg, technicalKeywords)
	s.ObjectionRaised = containsAny(msg, objectionKeywords)
	s.ObjectionResolved = containsAny(msg, resolutionKeywords)
	s.HighIntent = containsAny(msg, intentKeywords)

	switch {
	case containsAny(msg, []string{"i decide", "my decision", "it's up to me"}):
		s.DecisionMaker = boolPtr(true)
	case containsAny(msg, []string{"ask my", "talk to my", "spouse", "partner decides"}):
		s.DecisionMaker = boolPtr(false)
	}
	if containsAny(msg, []string{"other quote", "another company", "comparing", "competitor"}) {
		s.ComparingOffers = boolPtr(true)
	}

	s.Sentiment = sentimentOf(msg)
	return s, nil
}

// sentimentOf is a crude word-count polarity in [-1, 1].
func sentimentOf(msg string) float64 {
	var pos, neg int
	for _, w := range positiveWords {
		if strings.Contains(msg, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(msg, w) {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func firstMatch(msg string, keywords map[string]string) string {
	for kw, canonical := range keywords {
		if strings.Contains(msg, kw) {
			return canonical
		}
	}
	return ""
}

func containsAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
