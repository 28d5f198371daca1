package cache

import (
	"context"
	"fmt"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/solarcalc"
)

// ScoreCache stores the latest score snapshot per session with a 1 hour
// TTL. Satisfies the scoring service's cache interface.
type ScoreCache struct {
	cache Cache
}

// NewScoreCache wraps a Cache for score storage.
func NewScoreCache(c Cache) *ScoreCache {
	return &ScoreCache{cache: c}
}

// SetScore stores the session's latest score.
func (s *ScoreCache) SetScore(ctx context.Context, sessionID string, score *lead.Score) error {
	return s.cache.SetJSON(ctx, ScorePrefix+sessionID, score, ScoreTTL)
}

// GetScore retrieves the session's latest score; found is false on a miss.
func (s *ScoreCache) GetScore(ctx context.Context, sessionID string) (*lead.Score, bool, error) {
	var score lead.Score
	err := s.cache.GetJSON(ctx, ScorePrefix+sessionID, &score)
	if err != nil {
		if _, ok := err.(ErrCacheKeyNotFound); ok {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &score, true, nil
}

// CapacityMirror exposes the shared counter increments the capacity
// registry mirrors into Redis.
type CapacityMirror struct {
	cache Cache
}

// NewCapacityMirror wraps a Cache for capacity counter mirroring.
func NewCapacityMirror(c Cache) *CapacityMirror {
	return &CapacityMirror{cache: c}
}

// Increment bumps the shared counter for a registry key.
func (m *CapacityMirror) Increment(ctx context.Context, key string) (int64, error) {
	n, err := m.cache.Increment(ctx, CapacityPrefix+key)
	if err != nil {
		return 0, err
	}
	// Counters self-expire so a crashed rollover cannot leak keys.
	_ = m.cache.Expire(ctx, CapacityPrefix+key, CapacityTTL)
	return n, nil
}

// RevenueStateCache mirrors live conversation revenue state per session.
// Satisfies the revenue tracker's state cache interface.
type RevenueStateCache struct {
	cache Cache
}

// NewRevenueStateCache wraps a Cache for session state mirroring.
func NewRevenueStateCache(c Cache) *RevenueStateCache {
	return &RevenueStateCache{cache: c}
}

// SetState stores the session's live tracking state.
func (r *RevenueStateCache) SetState(ctx context.Context, sessionID string, state interface{}) error {
	return r.cache.SetJSON(ctx, RevenuePrefix+"state:"+sessionID, state, RevenueTTL)
}

// GetState loads the session's mirrored state; found is false on a miss.
func (r *RevenueStateCache) GetState(ctx context.Context, sessionID string, dest interface{}) (bool, error) {
	err := r.cache.GetJSON(ctx, RevenuePrefix+"state:"+sessionID, dest)
	if err != nil {
		if _, ok := err.(ErrCacheKeyNotFound); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteState drops the mirror entry for an ended session.
func (r *RevenueStateCache) DeleteState(ctx context.Context, sessionID string) error {
	return r.cache.Delete(ctx, RevenuePrefix+"state:"+sessionID)
}

// SolarCache stores calculator output keyed by the inputs that determine
// it. The calculation is deterministic, so prospects with the same zip,
// bill, and roof type share an entry.
type SolarCache struct {
	cache Cache
}

// NewSolarCache wraps a Cache for solar recommendation storage.
func NewSolarCache(c Cache) *SolarCache {
	return &SolarCache{cache: c}
}

func solarKey(zip string, monthlyBill float64, roofType string) string {
	return fmt.Sprintf("%s%s:%.0f:%s", SolarPrefix, zip, monthlyBill, roofType)
}

// SetRecommendation stores a computed recommendation.
func (s *SolarCache) SetRecommendation(ctx context.Context, zip string, monthlyBill float64, roofType string, rec *solarcalc.Recommendation) error {
	return s.cache.SetJSON(ctx, solarKey(zip, monthlyBill, roofType), rec, SolarTTL)
}

// GetRecommendation retrieves a cached recommendation; found is false on
// a miss.
func (s *SolarCache) GetRecommendation(ctx context.Context, zip string, monthlyBill float64, roofType string) (*solarcalc.Recommendation, bool, error) {
	var rec solarcalc.Recommendation
	err := s.cache.GetJSON(ctx, solarKey(zip, monthlyBill, roofType), &rec)
	if err != nil {
		if _, ok := err.(ErrCacheKeyNotFound); ok {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rec, true, nil
}
