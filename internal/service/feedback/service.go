// Package feedback ingests buyer verdicts on delivered leads, maintains
// per-buyer quality aggregates, and closes the loop by adjusting scoring
// weights when a buyer's outcomes drift.
package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/google/uuid"

	domainfeedback "github.com/brightlead/solar-lead-exchange-backend/internal/domain/feedback"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/scoring"
)

// SubmitRequest is the inbound feedback payload.
type SubmitRequest struct {
	LeadID          uuid.UUID           `json:"lead_id" validate:"required"`
	BuyerID         string              `json:"buyer_id" validate:"required"`
	Type            domainfeedback.Type `json:"type" validate:"required"`
	Score           int                 `json:"score" validate:"min=1,max=10"`
	Reason          string              `json:"reason,omitempty"`
	ConversionValue *values.Money       `json:"conversion_value,omitempty"`
}

// FeedbackStore persists feedback events.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, f *domainfeedback.Feedback) error
}

// AdjustmentStore persists scoring adjustments for audit.
type AdjustmentStore interface {
	SaveAdjustment(ctx context.Context, a *domainfeedback.ScoringAdjustment) error
}

// WeightPublisher applies an adjustment to the live scoring weights.
// Satisfied by the scoring weight table.
type WeightPublisher interface {
	Adjust(factor string, delta float64, at time.Time) (scoring.Weights, error)
}

// queueSize bounds the persistence backlog; overflow is persisted inline so
// no event is lost.
const queueSize = 1024

// recentWindow is the trailing window the analyzer compares against
// all-time metrics.
const recentWindow = 7 * 24 * time.Hour

type recentEvent struct {
	at       time.Time
	accepted bool
}

// Loop is the quality feedback service: synchronous metric updates on
// submit, asynchronous persistence, and a periodic analyzer that publishes
// weight adjustments.
type Loop struct {
	mu      sync.Mutex
	metrics map[string]*domainfeedback.QualityMetrics
	recent  map[string][]recentEvent

	queue chan *domainfeedback.Feedback

	validate    *validator.Validate
	store       FeedbackStore
	adjustments AdjustmentStore
	weights     WeightPublisher
	clock       lead.Clock
	logger      *zap.Logger
}

// Option configures a Loop.
type Option func(*Loop)

func WithClock(c lead.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

func WithLogger(lg *zap.Logger) Option {
	return func(l *Loop) { l.logger = lg }
}

// NewLoop creates the feedback loop. store persists events, adjustments
// records analyzer output, weights receives published deltas.
func NewLoop(store FeedbackStore, adjustments AdjustmentStore, weights WeightPublisher, opts ...Option) *Loop {
	l := &Loop{
		metrics:     make(map[string]*domainfeedback.QualityMetrics),
		recent:      make(map[string][]recentEvent),
		queue:       make(chan *domainfeedback.Feedback, queueSize),
		validate:    validator.New(),
		store:       store,
		adjustments: adjustments,
		weights:     weights,
		clock:       lead.RealClock{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit validates the feedback, folds it into the buyer's aggregate, and
// queues it for persistence. The metric update is O(1); Submit never blocks
// on the database.
func (l *Loop) Submit(ctx context.Context, req SubmitRequest) (*domainfeedback.Feedback, error) {
	if err := l.validate.Struct(req); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	f, err := domainfeedback.New(req.LeadID, req.BuyerID, req.Type, req.Score, req.Reason, req.ConversionValue, now)
	if err != nil {
		return nil, err
	}

	accepted := f.Type == domainfeedback.TypeAccepted || f.Type == domainfeedback.TypeConverted

	l.mu.Lock()
	m, ok := l.metrics[f.BuyerID]
	if !ok {
		m = domainfeedback.NewQualityMetrics(f.BuyerID)
		l.metrics[f.BuyerID] = m
	}
	m.Record(f)
	l.recent[f.BuyerID] = pruneRecent(append(l.recent[f.BuyerID], recentEvent{at: now, accepted: accepted}), now)
	l.mu.Unlock()

	select {
	case l.queue <- f:
	default:
		// Backlog full; persist inline rather than drop.
		if err := l.store.SaveFeedback(ctx, f); err != nil {
			l.logger.Error("feedback persistence failed",
				zap.String("buyer_id", f.BuyerID), zap.Error(err))
		}
	}
	return f, nil
}

// Metrics returns a copy of one buyer's aggregate.
func (l *Loop) Metrics(buyerID string) (domainfeedback.QualityMetrics, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.metrics[buyerID]
	if !ok {
		return domainfeedback.QualityMetrics{}, false
	}
	return *m, true
}

// recentAcceptanceRate computes the trailing-window acceptance rate and
// sample size for a buyer.
func (l *Loop) recentAcceptanceRate(buyerID string, now time.Time) (rate float64, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := pruneRecent(l.recent[buyerID], now)
	l.recent[buyerID] = events
	if len(events) == 0 {
		return 0, 0
	}
	accepted := 0
	for _, e := range events {
		if e.accepted {
			accepted++
		}
	}
	return float64(accepted) / float64(len(events)), len(events)
}

func pruneRecent(events []recentEvent, now time.Time) []recentEvent {
	cutoff := now.Add(-recentWindow)
	i := 0
	for i < len(events) && events[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		events = append(events[:0], events[i:]...)
	}
	return events
}
