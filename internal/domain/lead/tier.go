package lead

// QualityTier buckets a lead score into the band that determines buyer
// eligibility and base pricing.
type QualityTier int

const (
	TierUnqualified QualityTier = iota
	TierBasic
	TierStandard
	TierPremium
)

// Tier thresholds. A tier is ALWAYS derived from the score via TierForScore;
// setting a tier independently of its score is a bug.
const (
	PremiumThreshold  = 85
	StandardThreshold = 70
	BasicThreshold    = 50
)

func (t QualityTier) String() string {
	switch t {
	case TierPremium:
		return "premium"
	case TierStandard:
		return "standard"
	case TierBasic:
		return "basic"
	case TierUnqualified:
		return "unqualified"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the tier as its string name.
func (t QualityTier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses a tier from its string name.
func (t *QualityTier) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"premium"`:
		*t = TierPremium
	case `"standard"`:
		*t = TierStandard
	case `"basic"`:
		*t = TierBasic
	default:
		*t = TierUnqualified
	}
	return nil
}

// TierForScore maps a 0-100 lead score to its quality tier.
// This is the only way a tier may be produced.
func TierForScore(score int) QualityTier {
	switch {
	case score >= PremiumThreshold:
		return TierPremium
	case score >= StandardThreshold:
		return TierStandard
	case score >= BasicThreshold:
		return TierBasic
	default:
		return TierUnqualified
	}
}

// Qualified reports whether the tier is sellable to any buyer.
func (t QualityTier) Qualified() bool {
	return t != TierUnqualified
}
