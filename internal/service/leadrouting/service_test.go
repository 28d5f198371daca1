package leadrouting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/routing"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/capacity"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/pricing"
	"github.com/brightlead/solar-lead-exchange-backend/internal/testutil"
)

type stubRegistry struct {
	candidates []capacity.Candidate
	// reserveFull lists platform IDs whose reservation fails.
	reserveFull map[string]bool
	reserved    []string
	released    []string
}

func (r *stubRegistry) Eligible(_ int, _ string, preferred []string) []capacity.Candidate {
	if len(preferred) == 0 {
		return r.candidates
	}
	allowed := make(map[string]bool, len(preferred))
	for _, id := range preferred {
		allowed[id] = true
	}
	var out []capacity.Candidate
	for _, c := range r.candidates {
		if allowed[c.Platform.ID] {
			out = append(out, c)
		}
	}
	return out
}

func (r *stubRegistry) Reserve(_ context.Context, platformID string) error {
	if r.reserveFull[platformID] {
		return domainerrors.NewCapacityError("full")
	}
	r.reserved = append(r.reserved, platformID)
	return nil
}

func (r *stubRegistry) Release(platformID string) { r.released = append(r.released, platformID) }

func (r *stubRegistry) Utilization(string) float64 { return 0.4 }

type recordingStore struct {
	decisions []*routing.Decision
	err       error
}

func (s *recordingStore) SaveDecision(_ context.Context, d *routing.Decision) error {
	s.decisions = append(s.decisions, d)
	return s.err
}

func candidate(p *buyer.Platform) capacity.Candidate {
	return capacity.Candidate{
		Platform: p,
		Capacity: buyer.Capacity{PlatformID: p.ID, Available: true, SurgeMultiplier: 1.0},
	}
}

func testOptimizer(reg CapacityRegistry, store DecisionStore) *Optimizer {
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)}
	return NewOptimizer(reg, pricing.NewEngineWithClock(clk), store, WithClock(clk))
}

func TestRouteUnqualifiedFallsBack(t *testing.T) {
	store := &recordingStore{}
	o := testOptimizer(&stubRegistry{}, store)

	l := testutil.QualifiedLead("session-1", 40)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 40))

	require.NotNil(t, d)
	assert.True(t, d.IsFallback())
	assert.Equal(t, routing.FallbackConfidence, d.Confidence)
	assert.Len(t, store.decisions, 1)
}

func TestRouteNoCandidatesFallsBack(t *testing.T) {
	store := &recordingStore{}
	o := testOptimizer(&stubRegistry{}, store)

	l := testutil.QualifiedLead("session-1", 90)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 90))

	require.NotNil(t, d)
	assert.Equal(t, routing.FallbackBuyerID, d.BuyerID)
	assert.Equal(t, routing.FallbackReason, d.Reason)
	assert.True(t, d.Price.IsPositive(), "fallback still carries the park price")
}

func TestRoutePicksHighestExpectedRevenue(t *testing.T) {
	rich := testutil.Platform("rich", buyer.TierPremium)
	rich.PricePerLead = values.USDFromFloat(250)
	rich.AcceptanceRate = 0.9
	rich.AvgLeadValue = values.USDFromFloat(260)

	poor := testutil.Platform("poor", buyer.TierPremium)
	poor.PricePerLead = values.USDFromFloat(80)
	poor.AcceptanceRate = 0.5
	poor.AvgLeadValue = values.USDFromFloat(90)

	reg := &stubRegistry{candidates: []capacity.Candidate{candidate(poor), candidate(rich)}}
	store := &recordingStore{}
	o := testOptimizer(reg, store)

	l := testutil.QualifiedLead("session-1", 90)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 90))

	assert.Equal(t, "rich", d.BuyerID)
	assert.Equal(t, []string{"rich"}, reg.reserved)
	assert.Equal(t, []string{"poor"}, d.Alternates)
	assert.True(t, d.ExpectedRevenue.IsPositive())
	assert.Greater(t, d.Confidence, 0.5)
}

func TestRoutePreferredBuyersRestrictCandidates(t *testing.T) {
	rich := testutil.Platform("rich", buyer.TierPremium)
	rich.PricePerLead = values.USDFromFloat(250)
	rich.AcceptanceRate = 0.9

	poor := testutil.Platform("poor", buyer.TierPremium)
	poor.PricePerLead = values.USDFromFloat(80)
	poor.AcceptanceRate = 0.5

	reg := &stubRegistry{candidates: []capacity.Candidate{candidate(poor), candidate(rich)}}
	o := testOptimizer(reg, &recordingStore{})

	l := testutil.QualifiedLead("session-1", 90)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 90), "poor")

	assert.Equal(t, "poor", d.BuyerID, "the preferred set overrides expected revenue")
	assert.Empty(t, d.Alternates)
}

func TestRoutePreferredBuyersUnavailableFallsBack(t *testing.T) {
	only := testutil.Platform("only", buyer.TierPremium)
	reg := &stubRegistry{candidates: []capacity.Candidate{candidate(only)}}
	o := testOptimizer(reg, &recordingStore{})

	l := testutil.QualifiedLead("session-1", 90)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 90), "absent")
	assert.True(t, d.IsFallback())
}

func TestRouteSkipsLostReservations(t *testing.T) {
	first := testutil.Platform("first", buyer.TierPremium)
	first.PricePerLead = values.USDFromFloat(300)
	second := testutil.Platform("second", buyer.TierPremium)

	reg := &stubRegistry{
		candidates:  []capacity.Candidate{candidate(first), candidate(second)},
		reserveFull: map[string]bool{"first": true},
	}
	o := testOptimizer(reg, &recordingStore{})

	l := testutil.QualifiedLead("session-1", 90)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 90))

	assert.Equal(t, "second", d.BuyerID, "losing the race moves to the next candidate")
}

func TestRouteAllReservationsLostFallsBack(t *testing.T) {
	only := testutil.Platform("only", buyer.TierPremium)
	reg := &stubRegistry{
		candidates:  []capacity.Candidate{candidate(only)},
		reserveFull: map[string]bool{"only": true},
	}
	o := testOptimizer(reg, &recordingStore{})

	l := testutil.QualifiedLead("session-1", 90)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 90))
	assert.True(t, d.IsFallback())
}

func TestRouteSurvivesStoreFailure(t *testing.T) {
	reg := &stubRegistry{candidates: []capacity.Candidate{candidate(testutil.Platform("solo", buyer.TierPremium))}}
	o := testOptimizer(reg, &recordingStore{err: assert.AnError})

	l := testutil.QualifiedLead("session-1", 90)
	d := o.Route(context.Background(), l, testutil.Score("session-1", 90))

	require.NotNil(t, d, "persistence failure never loses the decision")
	assert.Equal(t, "solo", d.BuyerID)
}

func TestRankCandidatesDeterministicTieBreak(t *testing.T) {
	a := testutil.Platform("alpha", buyer.TierStandard)
	b := testutil.Platform("beta", buyer.TierStandard)

	order := rankCandidates(
		[]capacity.Candidate{candidate(b), candidate(a)},
		DefaultRoutingWeights(), "standard", "", "")

	require.Len(t, order, 2)
	assert.Equal(t, "alpha", order[0].candidate.Platform.ID, "equal scores break on platform ID")
}

func TestNormalizeWeights(t *testing.T) {
	w := RoutingWeights{ExpectedRevenue: 2, Acceptance: 2}.Normalize()
	assert.InDelta(t, 0.5, w.ExpectedRevenue, 1e-9)
	assert.InDelta(t, 0.5, w.Acceptance, 1e-9)

	zero := RoutingWeights{}.Normalize()
	assert.Equal(t, DefaultRoutingWeights(), zero)
}
