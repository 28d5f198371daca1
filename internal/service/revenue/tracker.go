// Package revenue tracks the revenue trajectory of live conversations and
// suggests in-conversation optimizations. Each session is a small state
// machine: not started, active, ended.
package revenue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Status is the session tracking lifecycle.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
)

// TrendPoint is one observation of revenue potential over the conversation.
type TrendPoint struct {
	At    time.Time    `json:"at"`
	Value values.Money `json:"value"`
}

// State is the mutable per-session revenue tracker. Only the tracker
// mutates it; callers receive copies.
type State struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`

	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`

	Trend []TrendPoint `json:"trend,omitempty"`

	QuestionCount       int  `json:"question_count"`
	ObjectionCount      int  `json:"objection_count"`
	ObjectionsResolved  int  `json:"objections_resolved"`
	TechnicalEngagement int  `json:"technical_engagement"`
	UrgencyCreated      bool `json:"urgency_created"`

	Tier lead.QualityTier `json:"quality_tier"`

	RevenuePerMinute float64          `json:"revenue_per_minute"`
	Recommendations  []Recommendation `json:"recommendations,omitempty"`

	FinalRevenue *values.Money `json:"final_revenue,omitempty"`
	Converted    bool          `json:"converted"`
	EndedAt      time.Time     `json:"ended_at,omitempty"`
}

// revenueTrendRising reports whether the last trend point exceeds the one
// before it.
func (s *State) revenueTrendRising() bool {
	n := len(s.Trend)
	if n < 2 {
		return false
	}
	last := s.Trend[n-1].Value.ToFloat64()
	prev := s.Trend[n-2].Value.ToFloat64()
	return last > prev
}

// Update is the per-turn delta applied to a session's state.
type Update struct {
	RevenuePotential values.Money
	Tier             lead.QualityTier

	NewQuestions        int
	NewObjections       int
	ObjectionsResolved  int
	TechnicalEngagement int
	UrgencyCreated      bool
}

// OutcomeStore persists the final state of an ended conversation.
type OutcomeStore interface {
	SaveOutcome(ctx context.Context, s *State) error
}

// StateCache mirrors live session state to a shared store so a restarted
// process can resume a conversation mid-flight. Mirror writes are best
// effort; the in-memory map stays authoritative.
type StateCache interface {
	SetState(ctx context.Context, sessionID string, state interface{}) error
	GetState(ctx context.Context, sessionID string, dest interface{}) (bool, error)
	DeleteState(ctx context.Context, sessionID string) error
}

// maxTrendPoints bounds per-session memory for very long conversations.
const maxTrendPoints = 200

// Tracker manages live session states. Safe for concurrent use; one
// session is only ever updated by its own conversation turn.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*State

	store  OutcomeStore
	states StateCache
	clock  lead.Clock
	logger *zap.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithClock(c lead.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithStateCache(c StateCache) Option {
	return func(t *Tracker) { t.states = c }
}

// NewTracker creates a Tracker persisting ended sessions to store.
func NewTracker(store OutcomeStore, opts ...Option) *Tracker {
	t := &Tracker{
		sessions: make(map[string]*State),
		store:    store,
		clock:    lead.RealClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins tracking a session. Starting an already-active session is a
// no-op returning the existing state.
func (t *Tracker) Start(sessionID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[sessionID]; ok {
		return *s
	}
	s := &State{
		SessionID: sessionID,
		Status:    StatusActive,
		StartTime: t.clock.Now(),
	}
	t.sessions[sessionID] = s
	return *s
}

// Track applies a turn delta, re-runs the full rule set, and returns the
// updated state. Updating an unknown or ended session restores the state
// from the mirror when one exists, otherwise starts fresh, so a tracker
// restart never breaks a live conversation.
func (t *Tracker) Track(ctx context.Context, sessionID string, u Update) State {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok || s.Status != StatusActive {
		t.mu.Unlock()
		restored := t.resume(ctx, sessionID)
		t.mu.Lock()
		if cur, ok := t.sessions[sessionID]; ok && cur.Status == StatusActive {
			s = cur
		} else {
			s = restored
			t.sessions[sessionID] = s
		}
	}

	now := t.clock.Now()
	s.Duration = now.Sub(s.StartTime)
	s.Trend = append(s.Trend, TrendPoint{At: now, Value: u.RevenuePotential})
	if len(s.Trend) > maxTrendPoints {
		s.Trend = s.Trend[len(s.Trend)-maxTrendPoints:]
	}
	s.QuestionCount += u.NewQuestions
	s.ObjectionCount += u.NewObjections
	s.ObjectionsResolved += u.ObjectionsResolved
	if u.TechnicalEngagement > s.TechnicalEngagement {
		s.TechnicalEngagement = u.TechnicalEngagement
	}
	if u.UrgencyCreated {
		s.UrgencyCreated = true
	}
	s.Tier = u.Tier

	if minutes := s.Duration.Minutes(); minutes > 0 {
		s.RevenuePerMinute = u.RevenuePotential.ToFloat64() / minutes
	}

	s.Recommendations = evaluate(s)
	final := *s
	t.mu.Unlock()

	t.mirror(ctx, &final)
	return final
}

// resume rebuilds a session from the mirror, falling back to a fresh one.
func (t *Tracker) resume(ctx context.Context, sessionID string) *State {
	if t.states != nil {
		var s State
		found, err := t.states.GetState(ctx, sessionID, &s)
		if err != nil {
			t.logger.Warn("session state restore failed",
				zap.String("session_id", sessionID), zap.Error(err))
		} else if found && s.Status == StatusActive && s.SessionID == sessionID {
			return &s
		}
	}
	return &State{
		SessionID: sessionID,
		Status:    StatusActive,
		StartTime: t.clock.Now(),
	}
}

func (t *Tracker) mirror(ctx context.Context, s *State) {
	if t.states == nil {
		return
	}
	if err := t.states.SetState(ctx, s.SessionID, s); err != nil {
		t.logger.Warn("session state mirror failed",
			zap.String("session_id", s.SessionID), zap.Error(err))
	}
}

// End finalizes the session, persists the outcome, and evicts it from the
// live map. Ending an unknown session returns a not-found error.
func (t *Tracker) End(ctx context.Context, sessionID string, finalRevenue values.Money, converted bool) (State, error) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return State{}, domainerrors.NewNotFoundError("conversation session").WithDetails(map[string]interface{}{"session_id": sessionID})
	}
	now := t.clock.Now()
	s.Status = StatusEnded
	s.Duration = now.Sub(s.StartTime)
	s.FinalRevenue = &finalRevenue
	s.Converted = converted
	s.EndedAt = now
	final := *s
	delete(t.sessions, sessionID)
	t.mu.Unlock()

	if t.states != nil {
		if err := t.states.DeleteState(ctx, sessionID); err != nil {
			t.logger.Warn("session state mirror cleanup failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if t.store != nil {
		if err := t.store.SaveOutcome(ctx, &final); err != nil {
			t.logger.Error("failed to persist conversation outcome",
				zap.String("session_id", sessionID), zap.Error(err))
			return final, err
		}
	}
	return final, nil
}

// Session returns a copy of the live state for a session.
func (t *Tracker) Session(sessionID string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// SessionStatus returns the lifecycle status for a session.
func (t *Tracker) SessionStatus(sessionID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; ok {
		return StatusActive
	}
	return StatusNotStarted
}

// ActiveSessions reports how many conversations are being tracked.
func (t *Tracker) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
