package feedback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainfeedback "github.com/brightlead/solar-lead-exchange-backend/internal/domain/feedback"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/scoring"
)

type memoryStore struct {
	mu          sync.Mutex
	feedback    []*domainfeedback.Feedback
	adjustments []*domainfeedback.ScoringAdjustment
}

func (s *memoryStore) SaveFeedback(_ context.Context, f *domainfeedback.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, f)
	return nil
}

func (s *memoryStore) SaveAdjustment(_ context.Context, a *domainfeedback.ScoringAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustments = append(s.adjustments, a)
	return nil
}

type publisherSpy struct {
	factors []string
	deltas  []float64
}

func (p *publisherSpy) Adjust(factor string, delta float64, _ time.Time) (scoring.Weights, error) {
	p.factors = append(p.factors, factor)
	p.deltas = append(p.deltas, delta)
	return scoring.Weights{Version: len(p.factors) + 1}, nil
}

func newTestLoop() (*Loop, *memoryStore, *publisherSpy, *lead.MockClock) {
	store := &memoryStore{}
	pub := &publisherSpy{}
	clk := &lead.MockClock{CurrentTime: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	return NewLoop(store, store, pub, WithClock(clk)), store, pub, clk
}

func submitN(t *testing.T, l *Loop, buyerID string, n int, typ domainfeedback.Type, score int, reason string) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Submit(context.Background(), SubmitRequest{
			LeadID:  uuid.New(),
			BuyerID: buyerID,
			Type:    typ,
			Score:   score,
			Reason:  reason,
		})
		require.NoError(t, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	l, _, _, _ := newTestLoop()

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing lead", SubmitRequest{BuyerID: "b", Type: domainfeedback.TypeAccepted, Score: 5}},
		{"missing buyer", SubmitRequest{LeadID: uuid.New(), Type: domainfeedback.TypeAccepted, Score: 5}},
		{"score too low", SubmitRequest{LeadID: uuid.New(), BuyerID: "b", Type: domainfeedback.TypeAccepted, Score: 0}},
		{"score too high", SubmitRequest{LeadID: uuid.New(), BuyerID: "b", Type: domainfeedback.TypeAccepted, Score: 11}},
		{"unknown type", SubmitRequest{LeadID: uuid.New(), BuyerID: "b", Type: "meh", Score: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Submit(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestSubmitUpdatesMetricsSynchronously(t *testing.T) {
	l, _, _, _ := newTestLoop()

	submitN(t, l, "solarmax-nyc", 3, domainfeedback.TypeAccepted, 8, "")
	submitN(t, l, "solarmax-nyc", 1, domainfeedback.TypeRejected, 2, "not_homeowner")

	m, ok := l.Metrics("solarmax-nyc")
	require.True(t, ok)
	assert.Equal(t, 4, m.TotalFeedback)
	assert.Equal(t, 3, m.Accepted)
	assert.Equal(t, 1, m.Rejected)
	assert.InDelta(t, 0.75, m.AcceptanceRate(), 1e-9)
	assert.InDelta(t, 6.5, m.MeanScore, 1e-9)
	assert.Equal(t, 1, m.RejectionReasons["not_homeowner"])

	_, ok = l.Metrics("never-heard-of")
	assert.False(t, ok)
}

func TestAnalyzeAcceptanceDrop(t *testing.T) {
	l, store, pub, clk := newTestLoop()

	// A month of good outcomes, then a bad week.
	submitN(t, l, "solarmax-nyc", 30, domainfeedback.TypeAccepted, 8, "")
	clk.Advance(8 * 24 * time.Hour)
	submitN(t, l, "solarmax-nyc", 10, domainfeedback.TypeRejected, 2, "not_homeowner")

	require.NoError(t, l.Analyze(context.Background()))

	require.Len(t, store.adjustments, 1)
	adj := store.adjustments[0]
	assert.Equal(t, "solarmax-nyc", adj.BuyerID)
	assert.Equal(t, scoring.FactorBaseQualification, adj.Factor)
	assert.Equal(t, -adjustmentDelta, adj.Delta)
	assert.Equal(t, acceptanceDropConfidence, adj.Confidence)

	assert.Equal(t, []string{scoring.FactorBaseQualification}, pub.factors)
	assert.Equal(t, []float64{-adjustmentDelta}, pub.deltas)
}

func TestAnalyzeDominantRejectionReason(t *testing.T) {
	l, store, pub, _ := newTestLoop()

	// Acceptance is steady so the drop rule stays quiet, but rejections
	// cluster on timing.
	submitN(t, l, "brightgrid", 10, domainfeedback.TypeAccepted, 7, "")
	submitN(t, l, "brightgrid", 10, domainfeedback.TypeRejected, 3, "bad_timing")

	require.NoError(t, l.Analyze(context.Background()))

	require.Len(t, store.adjustments, 1)
	assert.Equal(t, scoring.FactorMarketTiming, store.adjustments[0].Factor)
	assert.Equal(t, dominantReasonConfidence, store.adjustments[0].Confidence)
	assert.Equal(t, []string{scoring.FactorMarketTiming}, pub.factors)
}

func TestAnalyzeHealthyBuyerNoAdjustment(t *testing.T) {
	l, store, pub, _ := newTestLoop()

	submitN(t, l, "brightgrid", 20, domainfeedback.TypeAccepted, 8, "")
	submitN(t, l, "brightgrid", 2, domainfeedback.TypeRejected, 4, "low_intent")

	require.NoError(t, l.Analyze(context.Background()))
	assert.Empty(t, store.adjustments)
	assert.Empty(t, pub.factors)
}

func TestRunDrainsQueueOnShutdown(t *testing.T) {
	l, store, _, _ := newTestLoop()

	submitN(t, l, "solarmax-nyc", 5, domainfeedback.TypeAccepted, 8, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, time.Hour) }()

	// Give the loop a moment to pick events off the queue, then stop it.
	time.Sleep(50 * time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.feedback, 5, "every submitted event must be persisted")
}
