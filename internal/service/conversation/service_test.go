package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/llm"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/revenue"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/solarcalc"
	"github.com/brightlead/solar-lead-exchange-backend/internal/testutil"
)

type scriptedScorer struct {
	mu     sync.Mutex
	totals []int
	calls  int
}

func (s *scriptedScorer) Score(_ context.Context, cc *lead.ConversationContext) *lead.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.totals[s.calls]
	if s.calls < len(s.totals)-1 {
		s.calls++
	}
	return testutil.Score(cc.SessionID, total)
}

type handoffSpy struct {
	calls chan *lead.Lead
}

func newHandoffSpy() *handoffSpy {
	return &handoffSpy{calls: make(chan *lead.Lead, 8)}
}

func (h *handoffSpy) HandleQualified(_ context.Context, l *lead.Lead, _ *lead.Score) {
	h.calls <- l
}

type leadStoreSpy struct {
	mu       sync.Mutex
	saved    []*lead.Lead
	existing *lead.Lead
	getCalls int
	done     chan struct{}
}

func (s *leadStoreSpy) SaveLead(_ context.Context, l *lead.Lead) error {
	s.mu.Lock()
	s.saved = append(s.saved, l)
	s.mu.Unlock()
	select {
	case s.done <- struct{}{}:
	default:
	}
	return nil
}

func (s *leadStoreSpy) GetLead(_ context.Context, id uuid.UUID) (*lead.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.existing != nil && s.existing.ID == id {
		return s.existing, nil
	}
	return nil, domainerrors.ErrLeadNotFound
}

func (s *leadStoreSpy) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(context.Context, string, []llm.Message) (string, error) {
	return g.reply, g.err
}

func newConversationService(scorer Scorer, generator llm.Generator, clk lead.Clock, opts ...Option) (*Service, *revenue.Tracker) {
	tracker := revenue.NewTracker(nil, revenue.WithClock(clk))
	base := []Option{WithClock(clk)}
	svc := NewService(NewKeywordExtractor(), scorer, tracker, solarcalc.NewCalculator(), generator, append(base, opts...)...)
	return svc, tracker
}

func TestProcessMessageQualifiesAndHandsOffOnce(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{40, 90, 92}}
	handoff := newHandoffSpy()
	store := &leadStoreSpy{done: make(chan struct{}, 1)}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, _ := newConversationService(scorer, nil, clk, WithHandoff(handoff), WithLeadStore(store))

	res := svc.ProcessMessage(context.Background(), "session-1", "hi there")
	assert.Equal(t, 40, res.LeadScore)
	assert.Equal(t, lead.TierUnqualified, res.QualityTier)
	select {
	case <-handoff.calls:
		t.Fatal("unqualified turn must not hand off")
	case <-time.After(50 * time.Millisecond):
	}

	res = svc.ProcessMessage(context.Background(), "session-1", "I own my house in manhattan, bill is $380")
	assert.Equal(t, 90, res.LeadScore)
	assert.Equal(t, lead.TierPremium, res.QualityTier)

	var qualified *lead.Lead
	select {
	case qualified = <-handoff.calls:
	case <-time.After(time.Second):
		t.Fatal("qualified lead was never handed off")
	}
	assert.Equal(t, "session-1", qualified.SessionID)
	assert.Equal(t, "manhattan", qualified.Borough)
	assert.Equal(t, 90, qualified.Score)

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("qualified lead was never persisted")
	}

	// A later, higher-scoring turn must not create a second lead.
	svc.ProcessMessage(context.Background(), "session-1", "and my credit is excellent")
	select {
	case <-handoff.calls:
		t.Fatal("handoff must fire exactly once per session")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcessMessageCannedResponseWithoutGenerator(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{10}}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, _ := newConversationService(scorer, nil, clk)

	res := svc.ProcessMessage(context.Background(), "session-1", "hello")
	assert.Equal(t, StageGreeting, res.Stage)
	assert.Equal(t, cannedResponses[StageGreeting], res.Response)
	assert.NotEmpty(t, res.Response)
}

func TestProcessMessageFallsBackOnGeneratorError(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{10}}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, _ := newConversationService(scorer, &stubGenerator{err: errors.New("llm down")}, clk)

	res := svc.ProcessMessage(context.Background(), "session-1", "hello")
	assert.Equal(t, cannedResponses[res.Stage], res.Response)
}

func TestProcessMessageUsesGeneratorReply(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{10}}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, _ := newConversationService(scorer, &stubGenerator{reply: "Do you own your place?"}, clk)

	res := svc.ProcessMessage(context.Background(), "session-1", "hello")
	assert.Equal(t, "Do you own your place?", res.Response)
}

func TestProcessMessageCreatesUrgencyFromRecommendation(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{75, 78}}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, _ := newConversationService(scorer, nil, clk)

	res := svc.ProcessMessage(context.Background(), "session-1", "I own my home in queens, bill is $200")
	assert.False(t, res.UrgencyCreated)

	// Four minutes in with a standard-tier lead the rule engine asks for
	// urgency.
	clk.Advance(4 * time.Minute)
	res = svc.ProcessMessage(context.Background(), "session-1", "tell me more")
	assert.True(t, res.UrgencyCreated)
}

func TestProcessMessageFeedsObjectionsToTracker(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{40, 42, 45}}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, tracker := newConversationService(scorer, nil, clk)

	svc.ProcessMessage(context.Background(), "session-1", "honestly this seems too expensive")
	svc.ProcessMessage(context.Background(), "session-1", "and I don't trust door to door offers")

	st, ok := tracker.Session("session-1")
	require.True(t, ok)
	assert.Equal(t, 2, st.ObjectionCount)
	assert.Equal(t, 0, st.ObjectionsResolved)

	var actions []string
	for _, r := range st.Recommendations {
		actions = append(actions, r.Action)
	}
	assert.Contains(t, actions, "address_objections")

	svc.ProcessMessage(context.Background(), "session-1", "ok that makes sense, good point")
	st, ok = tracker.Session("session-1")
	require.True(t, ok)
	assert.Equal(t, 2, st.ObjectionCount)
	assert.Equal(t, 1, st.ObjectionsResolved)
}

func TestProcessMessageReattachesExistingLead(t *testing.T) {
	existing, err := lead.NewLead("old-session")
	require.NoError(t, err)
	existing.Borough = "queens"
	existing.ZipCode = "11432"
	existing.HomeType = "single_family"
	existing.UpdateScore(88)

	scorer := &scriptedScorer{totals: []int{90, 91}}
	handoff := newHandoffSpy()
	store := &leadStoreSpy{existing: existing, done: make(chan struct{}, 1)}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, _ := newConversationService(scorer, nil, clk, WithHandoff(handoff), WithLeadStore(store))

	svc.ProcessMessage(context.Background(), "session-2", "hi, I spoke with you last week",
		WithLeadID(existing.ID))
	assert.Equal(t, 1, store.getCalls)

	// Qualifying against a reattached lead must not mint a duplicate.
	select {
	case <-handoff.calls:
		t.Fatal("reattached lead must not be handed off again")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, store.savedCount())

	// The lead loads once per session.
	svc.ProcessMessage(context.Background(), "session-2", "still interested",
		WithLeadID(existing.ID))
	assert.Equal(t, 1, store.getCalls)
}

func TestProcessMessageUnknownLeadIDDegrades(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{90}}
	handoff := newHandoffSpy()
	store := &leadStoreSpy{done: make(chan struct{}, 1)}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, _ := newConversationService(scorer, nil, clk, WithHandoff(handoff), WithLeadStore(store))

	// A stale lead_id leaves the session detached and the turn qualifies
	// a fresh lead as usual.
	svc.ProcessMessage(context.Background(), "session-3", "I own my house in brooklyn, bill is $300",
		WithLeadID(uuid.New()))

	select {
	case l := <-handoff.calls:
		assert.Equal(t, "session-3", l.SessionID)
	case <-time.After(time.Second):
		t.Fatal("qualified lead was never handed off")
	}
}

type solarCacheStub struct {
	mu      sync.Mutex
	entries map[string]*solarcalc.Recommendation
	gets    int
	sets    int
}

func newSolarCacheStub() *solarCacheStub {
	return &solarCacheStub{entries: make(map[string]*solarcalc.Recommendation)}
}

func (s *solarCacheStub) key(zip string, bill float64, roof string) string {
	return fmt.Sprintf("%s:%.0f:%s", zip, bill, roof)
}

func (s *solarCacheStub) GetRecommendation(_ context.Context, zip string, bill float64, roof string) (*solarcalc.Recommendation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	rec, ok := s.entries[s.key(zip, bill, roof)]
	return rec, ok, nil
}

func (s *solarCacheStub) SetRecommendation(_ context.Context, zip string, bill float64, roof string, rec *solarcalc.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.entries[s.key(zip, bill, roof)] = rec
	return nil
}

func TestRecommendUsesSolarCache(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{40}}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	sc := newSolarCacheStub()
	svc, _ := newConversationService(scorer, nil, clk, WithSolarCache(sc))

	cc := testutil.QualifiedContext("session-1")

	first := svc.recommend(context.Background(), cc)
	require.NotNil(t, first)
	assert.Equal(t, 1, sc.gets)
	assert.Equal(t, 1, sc.sets, "a miss computes and stores")

	second := svc.recommend(context.Background(), cc)
	assert.Equal(t, 2, sc.gets)
	assert.Equal(t, 1, sc.sets, "a hit must not recompute or rewrite")
	assert.Equal(t, first.SystemSizeKW, second.SystemSizeKW)

	// A different bill misses and stores its own entry.
	cc.MonthlyBill = billMoney(120)
	svc.recommend(context.Background(), cc)
	assert.Equal(t, 2, sc.sets)
}

func TestStageProgression(t *testing.T) {
	tests := []struct {
		name string
		cc   func() *lead.ConversationContext
		want Stage
	}{
		{"unknown prospect", func() *lead.ConversationContext {
			return lead.NewConversationContext("s")
		}, StageGreeting},
		{"homeowner without bill", func() *lead.ConversationContext {
			cc := lead.NewConversationContext("s")
			cc.HomeownerVerified = true
			return cc
		}, StageDiscovery},
		{"facts but unqualified", func() *lead.ConversationContext {
			cc := testutil.QualifiedContext("s")
			cc.Timeline = ""
			return cc
		}, StageQualification},
		{"qualified with timeline", func() *lead.ConversationContext {
			cc := testutil.QualifiedContext("s")
			cc.ApplyScore(90)
			return cc
		}, StageClosing},
		{"qualified, no timeline", func() *lead.ConversationContext {
			cc := testutil.QualifiedContext("s")
			cc.Timeline = ""
			cc.ApplyScore(60)
			return cc
		}, StageRecommendation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stageFor(tt.cc()))
		})
	}
}

func TestEndSession(t *testing.T) {
	scorer := &scriptedScorer{totals: []int{90}}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	svc, tracker := newConversationService(scorer, nil, clk)

	svc.ProcessMessage(context.Background(), "session-1", "I own my house, bill $300, manhattan")
	require.Equal(t, 1, tracker.ActiveSessions())

	require.NoError(t, svc.EndSession(context.Background(), "session-1", false))
	assert.Equal(t, 0, tracker.ActiveSessions())

	assert.NoError(t, svc.EndSession(context.Background(), "never-seen", false),
		"ending an unknown session is a no-op")
}
