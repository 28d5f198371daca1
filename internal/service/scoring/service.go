// Package scoring computes the multi-factor lead score: four weighted
// sub-scores, revenue potential, conversion probability, and the buyer tier
// the lead should target. Scoring never fails; missing data lowers the score
// instead of producing an error.
package scoring

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// MarketView exposes the live buyer-market signals that feed revenue
// potential. Implemented by the capacity registry.
type MarketView interface {
	// TierUtilization returns 0-1 aggregate utilization for a buyer tier.
	TierUtilization(tier string) float64
	// HasExclusiveBuyer reports whether an exclusive buyer is open in the tier.
	HasExclusiveBuyer(tier string) bool
	// HasGeographicMatch reports whether any buyer targets this geography.
	HasGeographicMatch(borough, zipCode string) bool
}

// ScoreCache stores score snapshots keyed by session. Writes are best
// effort; a cache failure never fails a scoring call.
type ScoreCache interface {
	SetScore(ctx context.Context, sessionID string, score *lead.Score) error
}

// Revenue potential base values per quality tier, in USD.
const (
	premiumRevenueBase  = 250.0
	standardRevenueBase = 125.0
	basicRevenueBase    = 75.0
)

const (
	exclusiveBuyerBonus = 25.0
	geographicBonus     = 10.0
)

// Scorer computes lead scores from conversation context. All collaborators
// are optional; a nil MarketView or cache degrades gracefully.
type Scorer struct {
	weights *WeightTable
	market  MarketView
	cache   ScoreCache
	clock   lead.Clock
	logger  *zap.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

func WithMarketView(m MarketView) Option {
	return func(s *Scorer) { s.market = m }
}

func WithScoreCache(c ScoreCache) Option {
	return func(s *Scorer) { s.cache = c }
}

func WithClock(c lead.Clock) Option {
	return func(s *Scorer) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// NewScorer creates a Scorer over the given weight table.
func NewScorer(weights *WeightTable, opts ...Option) *Scorer {
	s := &Scorer{
		weights: weights,
		clock:   lead.RealClock{},
		logger:  zap.NewNop(),
	}
	if s.weights == nil {
		s.weights = NewWeightTable(DefaultWeights())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes a full score snapshot for the conversation. It always
// returns a usable score; there is no error path.
func (s *Scorer) Score(ctx context.Context, cc *lead.ConversationContext) *lead.Score {
	now := s.clock.Now()
	weights := s.weights.Snapshot()
	factors := make(map[string]float64, 16)

	base := baseQualificationScore(cc, factors)
	behavioral := behavioralScore(cc, factors)
	timing := marketTimingScore(cc, now, factors)
	nyc := nycIntelligenceScore(cc, now, factors)

	weighted := base*weights.BaseQualification +
		behavioral*weights.Behavioral +
		timing*weights.MarketTiming +
		nyc*weights.NYCIntelligence

	total := int(math.Round(weighted))
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	// A renter can never sell as standard or premium, no matter how the
	// weights have been adjusted.
	if !cc.HomeownerVerified && total >= lead.StandardThreshold {
		total = lead.StandardThreshold - 1
	}
	tier := lead.TierForScore(total)

	score := &lead.Score{
		SessionID:             cc.SessionID,
		BaseQualification:     base,
		Behavioral:            behavioral,
		MarketTiming:          timing,
		NYCIntelligence:       nyc,
		Total:                 total,
		Tier:                  tier,
		RevenuePotential:      s.revenuePotential(tier, cc),
		ConversionProbability: conversionProbability(total, cc),
		TargetBuyerTier:       TargetBuyerTier(tier),
		Factors:               factors,
		WeightsVersion:        weights.Version,
		ScoredAt:              now,
	}

	if s.cache != nil {
		if err := s.cache.SetScore(ctx, cc.SessionID, score); err != nil {
			s.logger.Warn("score cache write failed",
				zap.String("session_id", cc.SessionID),
				zap.Error(err))
		}
	}

	return score
}

// revenuePotential estimates what the lead will sell for: the tier base
// scaled by live demand, exclusivity and geography bonuses, and the NYC
// neighborhood and income premiums.
func (s *Scorer) revenuePotential(tier lead.QualityTier, cc *lead.ConversationContext) values.Money {
	var base float64
	switch tier {
	case lead.TierPremium:
		base = premiumRevenueBase
	case lead.TierStandard:
		base = standardRevenueBase
	case lead.TierBasic:
		base = basicRevenueBase
	default:
		return values.ZeroUSD()
	}

	tierName := TargetBuyerTier(tier)

	surge := 1.0
	if s.market != nil {
		surge = surgeForUtilization(s.market.TierUtilization(tierName))
	}

	amount := base * surge

	if s.market != nil {
		if s.market.HasExclusiveBuyer(tierName) {
			amount += exclusiveBuyerBonus
		}
		if s.market.HasGeographicMatch(cc.Borough, cc.ZipCode) {
			amount += geographicBonus
		}
	}

	if mult, ok := neighborhoodRevenueMultiplier[cc.Neighborhood]; ok {
		amount *= mult
	}
	amount *= nycIncomePremiumMultiplier(cc.Borough)

	return values.USDFromFloat(math.Round(amount*100) / 100)
}

// TargetBuyerTier maps a quality tier to the buyer tier it should route to.
func TargetBuyerTier(tier lead.QualityTier) string {
	switch tier {
	case lead.TierPremium:
		return "premium"
	case lead.TierStandard:
		return "standard"
	case lead.TierBasic:
		return "volume"
	default:
		return ""
	}
}
