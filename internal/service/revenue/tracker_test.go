package revenue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

type captureStore struct {
	saved []*State
	err   error
}

func (s *captureStore) SaveOutcome(_ context.Context, st *State) error {
	s.saved = append(s.saved, st)
	return s.err
}

func newTestTracker(store OutcomeStore) (*Tracker, *lead.MockClock) {
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	return NewTracker(store, WithClock(clk)), clk
}

func TestTrackerLifecycle(t *testing.T) {
	store := &captureStore{}
	tr, clk := newTestTracker(store)

	s := tr.Start("session-1")
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 1, tr.ActiveSessions())

	clk.Advance(2 * time.Minute)
	s = tr.Track(context.Background(), "session-1", Update{
		RevenuePotential: values.USDFromFloat(180),
		Tier:             lead.TierStandard,
		NewQuestions:     2,
	})
	assert.Equal(t, 2*time.Minute, s.Duration)
	assert.InDelta(t, 90.0, s.RevenuePerMinute, 1e-9)
	require.Len(t, s.Trend, 1)

	clk.Advance(time.Minute)
	final, err := tr.End(context.Background(), "session-1", values.USDFromFloat(200), true)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, final.Status)
	assert.True(t, final.Converted)
	require.NotNil(t, final.FinalRevenue)
	assert.True(t, final.FinalRevenue.Equal(values.USDFromFloat(200)))

	assert.Equal(t, 0, tr.ActiveSessions(), "ended sessions are evicted")
	require.Len(t, store.saved, 1)
	assert.Equal(t, "session-1", store.saved[0].SessionID)
}

func TestTrackImplicitlyStartsUnknownSession(t *testing.T) {
	tr, _ := newTestTracker(nil)

	s := tr.Track(context.Background(), "never-started", Update{RevenuePotential: values.USDFromFloat(75), Tier: lead.TierBasic})
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, StatusActive, tr.SessionStatus("never-started"))
}

func TestStartIsIdempotent(t *testing.T) {
	tr, clk := newTestTracker(nil)

	first := tr.Start("session-1")
	clk.Advance(time.Minute)
	second := tr.Start("session-1")
	assert.Equal(t, first.StartTime, second.StartTime)
	assert.Equal(t, 1, tr.ActiveSessions())
}

func TestEndUnknownSession(t *testing.T) {
	tr, _ := newTestTracker(nil)

	_, err := tr.End(context.Background(), "ghost", values.USDFromFloat(0), false)
	assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeNotFound))
}

func TestEndPropagatesStoreError(t *testing.T) {
	store := &captureStore{err: errors.New("db down")}
	tr, _ := newTestTracker(store)

	tr.Start("session-1")
	final, err := tr.End(context.Background(), "session-1", values.USDFromFloat(50), false)
	assert.Error(t, err)
	assert.Equal(t, StatusEnded, final.Status, "the final state is still returned")
}

func TestTrendIsBounded(t *testing.T) {
	tr, clk := newTestTracker(nil)

	tr.Start("session-1")
	for i := 0; i < maxTrendPoints+25; i++ {
		clk.Advance(time.Second)
		tr.Track(context.Background(), "session-1", Update{RevenuePotential: values.USDFromFloat(float64(i)), Tier: lead.TierBasic})
	}
	s := tr.Track(context.Background(), "session-1", Update{RevenuePotential: values.USDFromFloat(999), Tier: lead.TierBasic})
	assert.Len(t, s.Trend, maxTrendPoints)
}

func TestRecommendationRules(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []string
	}{
		{
			name: "urgency for engaged standard lead",
			state: State{
				Duration: 4 * time.Minute,
				Tier:     lead.TierStandard,
			},
			want: []string{"create_urgency"},
		},
		{
			name: "probe technical when questions outpace engagement",
			state: State{
				QuestionCount:       4,
				TechnicalEngagement: 1,
				UrgencyCreated:      true,
			},
			want: []string{"probe_technical"},
		},
		{
			name: "unresolved objections",
			state: State{
				ObjectionCount:      2,
				ObjectionsResolved:  1,
				TechnicalEngagement: 3,
				UrgencyCreated:      true,
			},
			want: []string{"address_objections"},
		},
		{
			name: "push qualification on a stalled conversation",
			state: State{
				Duration:            3 * time.Minute,
				Tier:                lead.TierUnqualified,
				TechnicalEngagement: 2,
				UrgencyCreated:      true,
			},
			want: []string{"push_qualification"},
		},
		{
			name: "cap at three sorted by impact",
			state: State{
				Duration:            4 * time.Minute,
				Tier:                lead.TierUnqualified,
				QuestionCount:       4,
				TechnicalEngagement: 0,
				ObjectionCount:      1,
			},
			// push_qualification 0.30, probe_technical 0.20, address_objections 0.18.
			want: []string{"push_qualification", "probe_technical", "address_objections"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.state
			assert.Equal(t, tt.want, actionsOf(evaluate(&s)))
		})
	}
}

func TestCloseForHandoffNeedsRisingTrend(t *testing.T) {
	tr, clk := newTestTracker(nil)
	tr.Start("session-1")

	u := Update{RevenuePotential: values.USDFromFloat(250), Tier: lead.TierPremium, TechnicalEngagement: 3, UrgencyCreated: true}
	clk.Advance(time.Minute)
	s := tr.Track(context.Background(), "session-1", u)
	assert.NotContains(t, actionsOf(s.Recommendations), "close_for_handoff", "one point is not a trend")

	u.RevenuePotential = values.USDFromFloat(300)
	clk.Advance(time.Minute)
	s = tr.Track(context.Background(), "session-1", u)
	assert.Contains(t, actionsOf(s.Recommendations), "close_for_handoff")
}

type stateCacheStub struct {
	states map[string][]byte
	err    error
}

func newStateCacheStub() *stateCacheStub {
	return &stateCacheStub{states: make(map[string][]byte)}
}

func (c *stateCacheStub) SetState(_ context.Context, sessionID string, state interface{}) error {
	if c.err != nil {
		return c.err
	}
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	c.states[sessionID] = b
	return nil
}

func (c *stateCacheStub) GetState(_ context.Context, sessionID string, dest interface{}) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	b, ok := c.states[sessionID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *stateCacheStub) DeleteState(_ context.Context, sessionID string) error {
	delete(c.states, sessionID)
	return nil
}

func TestTrackMirrorsState(t *testing.T) {
	mirror := newStateCacheStub()
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(nil, WithClock(clk), WithStateCache(mirror))

	tr.Track(context.Background(), "session-1", Update{RevenuePotential: values.USDFromFloat(120), Tier: lead.TierStandard})

	require.Contains(t, mirror.states, "session-1")
	var mirrored State
	require.NoError(t, json.Unmarshal(mirror.states["session-1"], &mirrored))
	assert.Equal(t, StatusActive, mirrored.Status)
	assert.Len(t, mirrored.Trend, 1)
}

func TestTrackResumesFromMirror(t *testing.T) {
	start := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	mirror := newStateCacheStub()
	require.NoError(t, mirror.SetState(context.Background(), "session-1", &State{
		SessionID:     "session-1",
		Status:        StatusActive,
		StartTime:     start,
		QuestionCount: 3,
	}))

	// A fresh tracker, as after a process restart.
	clk := &lead.MockClock{CurrentTime: start.Add(5 * time.Minute)}
	tr := NewTracker(nil, WithClock(clk), WithStateCache(mirror))

	s := tr.Track(context.Background(), "session-1", Update{RevenuePotential: values.USDFromFloat(150), Tier: lead.TierStandard, NewQuestions: 1})
	assert.True(t, s.StartTime.Equal(start), "the original start time survives the restart")
	assert.Equal(t, 5*time.Minute, s.Duration)
	assert.Equal(t, 4, s.QuestionCount)
}

func TestTrackSurvivesMirrorFailure(t *testing.T) {
	mirror := newStateCacheStub()
	mirror.err = errors.New("redis down")
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(nil, WithClock(clk), WithStateCache(mirror))

	s := tr.Track(context.Background(), "session-1", Update{RevenuePotential: values.USDFromFloat(80), Tier: lead.TierBasic})
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 1, tr.ActiveSessions())
}

func TestEndClearsMirror(t *testing.T) {
	mirror := newStateCacheStub()
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(nil, WithClock(clk), WithStateCache(mirror))

	tr.Track(context.Background(), "session-1", Update{RevenuePotential: values.USDFromFloat(80), Tier: lead.TierBasic})
	require.Contains(t, mirror.states, "session-1")

	_, err := tr.End(context.Background(), "session-1", values.USDFromFloat(100), true)
	require.NoError(t, err)
	assert.NotContains(t, mirror.states, "session-1")
}

func actionsOf(recs []Recommendation) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.Action)
	}
	return out
}
