// Package conversation orchestrates one chat turn: extract signals, update
// context, rescore, track revenue, and generate the reply under a strict
// per-turn budget. Anything that fails degrades to a canned response; the
// prospect never sees an error.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/llm"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/revenue"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/solarcalc"
)

// TurnResult is what the transport layer returns to the chat client.
type TurnResult struct {
	Response       string           `json:"response"`
	Stage          Stage            `json:"stage"`
	LeadScore      int              `json:"lead_score"`
	QualityTier    lead.QualityTier `json:"quality_tier"`
	UrgencyCreated bool             `json:"urgency_created"`
}

// Scorer is the slice of the scoring service conversations need.
type Scorer interface {
	Score(ctx context.Context, cc *lead.ConversationContext) *lead.Score
}

// Handoff receives leads the moment they first qualify, to route and
// deliver them. Implementations must not block the conversation turn.
type Handoff interface {
	HandleQualified(ctx context.Context, l *lead.Lead, score *lead.Score)
}

// LeadStore persists leads and loads them back when a returning prospect
// reattaches to a session.
type LeadStore interface {
	SaveLead(ctx context.Context, l *lead.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*lead.Lead, error)
}

// SolarCache stores calculator output by the inputs that determine it.
// The calculation is deterministic, so a hit skips the recompute.
type SolarCache interface {
	GetRecommendation(ctx context.Context, zip string, monthlyBill float64, roofType string) (*solarcalc.Recommendation, bool, error)
	SetRecommendation(ctx context.Context, zip string, monthlyBill float64, roofType string, rec *solarcalc.Recommendation) error
}

// defaultTurnBudget bounds end-to-end turn latency. The LLM call is the
// only slow step and gets whatever remains of the budget.
const defaultTurnBudget = 3 * time.Second

// extractBudget is the slice of the turn budget given to signal extraction.
const extractBudget = 500 * time.Millisecond

type session struct {
	cc    *lead.ConversationContext
	ld    *lead.Lead
	turns int
}

// Service drives chat turns end to end.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session

	extractor  Extractor
	scorer     Scorer
	tracker    *revenue.Tracker
	calculator *solarcalc.Calculator
	generator  llm.Generator
	handoff    Handoff
	leads      LeadStore
	solarCache SolarCache

	turnBudget time.Duration
	clock      lead.Clock
	logger     *zap.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithHandoff(h Handoff) Option {
	return func(s *Service) { s.handoff = h }
}

func WithLeadStore(ls LeadStore) Option {
	return func(s *Service) { s.leads = ls }
}

func WithSolarCache(sc SolarCache) Option {
	return func(s *Service) { s.solarCache = sc }
}

func WithTurnBudget(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.turnBudget = d
		}
	}
}

func WithClock(c lead.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the turn pipeline.
func NewService(extractor Extractor, scorer Scorer, tracker *revenue.Tracker, calculator *solarcalc.Calculator, generator llm.Generator, opts ...Option) *Service {
	s := &Service{
		sessions:   make(map[string]*session),
		extractor:  extractor,
		scorer:     scorer,
		tracker:    tracker,
		calculator: calculator,
		generator:  generator,
		turnBudget: defaultTurnBudget,
		clock:      lead.RealClock{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TurnOption adjusts a single conversation turn.
type TurnOption func(*turnConfig)

type turnConfig struct {
	leadID *uuid.UUID
}

// WithLeadID binds the session to an existing persisted lead, so a
// returning prospect requalifies against it instead of getting a
// duplicate.
func WithLeadID(id uuid.UUID) TurnOption {
	return func(c *turnConfig) { c.leadID = &id }
}

// ProcessMessage handles one inbound chat message and returns the reply.
// It always returns a result; every failure path degrades instead of
// erroring.
func (s *Service) ProcessMessage(ctx context.Context, sessionID, message string, opts ...TurnOption) TurnResult {
	ctx, cancel := context.WithTimeout(ctx, s.turnBudget)
	defer cancel()

	var tc turnConfig
	for _, opt := range opts {
		opt(&tc)
	}

	sess := s.session(sessionID)
	if tc.leadID != nil {
		s.attachLead(ctx, sess, *tc.leadID)
	}
	sess.turns++
	sess.cc.Touch()

	signals := s.extract(ctx, sess, message)

	score := s.scorer.Score(ctx, sess.cc)
	sess.cc.ApplyScore(score.Total)

	trackState := s.track(ctx, sess, score, signals)
	if urgencyRecommended(trackState) {
		sess.cc.UrgencyCreated = true
	}

	s.maybeQualify(sess, score)

	stage := stageFor(sess.cc)
	response := s.generate(ctx, sess, stage, message)

	return TurnResult{
		Response:       response,
		Stage:          stage,
		LeadScore:      sess.cc.LeadScore,
		QualityTier:    sess.cc.Tier,
		UrgencyCreated: sess.cc.UrgencyCreated,
	}
}

// EndSession finalizes revenue tracking for a finished conversation.
func (s *Service) EndSession(ctx context.Context, sessionID string, converted bool) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	final := billMoney(0)
	if sess.ld != nil && sess.ld.SalePrice != nil {
		final = *sess.ld.SalePrice
	}
	_, err := s.tracker.End(ctx, sessionID, final, converted)
	return err
}

func (s *Service) session(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{cc: lead.NewConversationContext(sessionID)}
		s.sessions[sessionID] = sess
		s.tracker.Start(sessionID)
	}
	return sess
}

func (s *Service) extract(ctx context.Context, sess *session, message string) Signals {
	ectx, cancel := context.WithTimeout(ctx, extractBudget)
	defer cancel()

	signals, err := s.extractor.Extract(ectx, message, sess.cc)
	if err != nil {
		s.logger.Warn("signal extraction failed, continuing without",
			zap.String("session_id", sess.cc.SessionID), zap.Error(err))
		return Signals{}
	}
	apply(sess.cc, signals, sess.turns)
	return signals
}

func (s *Service) track(ctx context.Context, sess *session, score *lead.Score, sig Signals) revenue.State {
	u := revenue.Update{
		RevenuePotential:    score.RevenuePotential,
		Tier:                score.Tier,
		NewQuestions:        1,
		TechnicalEngagement: sess.cc.TechnicalQuestions,
		UrgencyCreated:      sess.cc.UrgencyCreated,
	}
	if sig.ObjectionRaised {
		u.NewObjections = 1
	}
	if sig.ObjectionResolved {
		u.ObjectionsResolved = 1
	}
	return s.tracker.Track(ctx, sess.cc.SessionID, u)
}

// attachLead loads an existing lead into the session so maybeQualify does
// not create a duplicate. Persisted facts backfill anything the
// conversation has not learned yet. Load failures leave the session
// detached; the turn proceeds either way.
func (s *Service) attachLead(ctx context.Context, sess *session, id uuid.UUID) {
	if sess.ld != nil || s.leads == nil {
		return
	}
	l, err := s.leads.GetLead(ctx, id)
	if err != nil {
		s.logger.Warn("lead reattachment failed",
			zap.String("session_id", sess.cc.SessionID),
			zap.String("lead_id", id.String()),
			zap.Error(err))
		return
	}
	sess.ld = l
	sess.cc.LeadID = &l.ID
	if sess.cc.Borough == "" {
		sess.cc.Borough = l.Borough
	}
	if sess.cc.ZipCode == "" {
		sess.cc.ZipCode = l.ZipCode
	}
	if sess.cc.HomeType == "" {
		sess.cc.HomeType = l.HomeType
	}
	s.logger.Info("session reattached to lead",
		zap.String("session_id", sess.cc.SessionID),
		zap.String("lead_id", l.ID.String()))
}

// maybeQualify creates and hands off the lead the first time it qualifies.
func (s *Service) maybeQualify(sess *session, score *lead.Score) {
	if !score.Qualified() || sess.ld != nil {
		return
	}

	l, err := lead.NewLead(sess.cc.SessionID)
	if err != nil {
		s.logger.Error("lead creation failed", zap.Error(err))
		return
	}
	l.Borough = sess.cc.Borough
	l.ZipCode = sess.cc.ZipCode
	l.HomeType = sess.cc.HomeType
	l.UpdateScore(score.Total)
	sess.ld = l
	sess.cc.LeadID = &l.ID

	if s.leads != nil {
		// Persist off the turn path.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.leads.SaveLead(ctx, l); err != nil {
				s.logger.Error("lead persistence failed",
					zap.String("lead_id", l.ID.String()), zap.Error(err))
			}
		}()
	}
	if s.handoff != nil {
		go s.handoff.HandleQualified(context.Background(), l, score)
	}
	s.logger.Info("lead qualified",
		zap.String("session_id", sess.cc.SessionID),
		zap.String("lead_id", l.ID.String()),
		zap.Int("score", score.Total),
		zap.String("tier", score.Tier.String()))
}

// generate produces the reply, falling back to a canned line when the LLM
// errors or the budget is spent.
func (s *Service) generate(ctx context.Context, sess *session, stage Stage, message string) string {
	if s.generator == nil || ctx.Err() != nil {
		return cannedResponses[stage]
	}

	reply, err := s.generator.Generate(ctx, s.systemPrompt(ctx, sess, stage), []llm.Message{
		{Role: llm.RoleUser, Content: message},
	})
	if err != nil || reply == "" {
		if err != nil {
			s.logger.Warn("reply generation failed, using canned response",
				zap.String("session_id", sess.cc.SessionID),
				zap.String("stage", string(stage)),
				zap.Error(err))
		}
		return cannedResponses[stage]
	}
	return reply
}

// systemPrompt assembles the per-turn grounding for the LLM, including the
// solar economics when enough is known to compute them.
func (s *Service) systemPrompt(ctx context.Context, sess *session, stage Stage) string {
	cc := sess.cc
	prompt := fmt.Sprintf(
		"You are a solar advisor for NYC homeowners. Conversation stage: %s. "+
			"Known facts: homeowner=%t borough=%q home_type=%q timeline=%q.",
		stage, cc.HomeownerVerified, cc.Borough, cc.HomeType, cc.Timeline)

	if cc.HasBill() {
		rec := s.recommend(ctx, cc)
		prompt += fmt.Sprintf(
			" Estimated system: %.1f kW, net cost %s, annual savings %s, payback %.1f years.",
			rec.SystemSizeKW, rec.NetCost, rec.AnnualSavings, rec.PaybackYears)
	}
	return prompt
}

// recommend returns the solar economics for the session, consulting the
// cache first. Cache failures degrade to a fresh calculation.
func (s *Service) recommend(ctx context.Context, cc *lead.ConversationContext) *solarcalc.Recommendation {
	bill := cc.MonthlyBill.ToFloat64()
	if s.solarCache != nil {
		rec, found, err := s.solarCache.GetRecommendation(ctx, cc.ZipCode, bill, cc.RoofType)
		if err != nil {
			s.logger.Warn("solar cache read failed",
				zap.String("session_id", cc.SessionID), zap.Error(err))
		} else if found {
			return rec
		}
	}

	rec := s.calculator.Calculate(solarcalc.Input{
		MonthlyBill:   bill,
		ZipCode:       cc.ZipCode,
		Borough:       cc.Borough,
		RoofType:      cc.RoofType,
		RoofSizeSqFt:  cc.RoofSizeSqFt,
		ShadingFactor: cc.ShadingFactor,
		HomeType:      cc.HomeType,
	})
	if s.solarCache != nil {
		if err := s.solarCache.SetRecommendation(ctx, cc.ZipCode, bill, cc.RoofType, rec); err != nil {
			s.logger.Warn("solar cache write failed",
				zap.String("session_id", cc.SessionID), zap.Error(err))
		}
	}
	return rec
}

// stageFor derives the conversation stage from what is known.
func stageFor(cc *lead.ConversationContext) Stage {
	switch {
	case !cc.HomeownerVerified:
		return StageGreeting
	case !cc.HasBill() || cc.Borough == "" && cc.ZipCode == "":
		return StageDiscovery
	case !cc.Tier.Qualified():
		return StageQualification
	case cc.Tier >= lead.TierStandard && cc.Timeline != "":
		return StageClosing
	default:
		return StageRecommendation
	}
}

// urgencyRecommended reports whether the rule engine asked for urgency
// creation this turn.
func urgencyRecommended(st revenue.State) bool {
	for _, r := range st.Recommendations {
		if r.Action == "create_urgency" {
			return true
		}
	}
	return false
}
