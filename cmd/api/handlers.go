package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/config"
	"github.com/brightlead/solar-lead-exchange-backend/internal/metrics"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/analytics"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/capacity"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/conversation"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/feedback"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/leadrouting"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/revenue"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/scoring"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/solarcalc"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 64 << 10

// leadSource loads persisted leads for transport-level routing calls.
type leadSource interface {
	GetLead(ctx context.Context, id uuid.UUID) (*lead.Lead, error)
}

// scoreSource reads the cached conversation score, if still fresh.
type scoreSource interface {
	GetScore(ctx context.Context, sessionID string) (*lead.Score, bool, error)
}

type serverDeps struct {
	chat       *conversation.Service
	feedback   *feedback.Loop
	analytics  *analytics.Aggregator
	capacity   *capacity.Registry
	weights    *scoring.WeightTable
	calculator *solarcalc.Calculator
	tracker    *revenue.Tracker
	optimizer  *leadrouting.Optimizer
	leads      leadSource
	scores     scoreSource
	metrics    *metrics.Registry
	pool       *pgxpool.Pool
}

type server struct {
	deps serverDeps
}

func newServer(cfg *config.Config, deps serverDeps) *http.Server {
	s := &server{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/sessions/{id}/messages", instrument("chat_message", s.handleChatMessage))
	mux.HandleFunc("POST /api/v1/chat/sessions/{id}/end", instrument("chat_end", s.handleChatEnd))
	mux.HandleFunc("POST /api/v1/feedback", instrument("feedback_submit", s.handleFeedbackSubmit))
	mux.HandleFunc("GET /api/v1/feedback/buyers/{id}/metrics", instrument("feedback_metrics", s.handleBuyerMetrics))
	mux.HandleFunc("GET /api/v1/analytics/summary", instrument("analytics_summary", s.handleAnalyticsSummary))
	mux.HandleFunc("GET /api/v1/analytics/revenue/daily", instrument("analytics_daily", s.handleRevenueDaily))
	mux.HandleFunc("GET /api/v1/analytics/revenue/platforms", instrument("analytics_platforms", s.handleRevenuePlatforms))
	mux.HandleFunc("GET /api/v1/analytics/revenue/tiers", instrument("analytics_tiers", s.handleRevenueTiers))
	mux.HandleFunc("POST /api/v1/routing/leads", instrument("route_lead", s.handleRouteLead))
	mux.HandleFunc("GET /api/v1/capacity/platforms/{id}", instrument("capacity_snapshot", s.handleCapacitySnapshot))
	mux.HandleFunc("GET /api/v1/scoring/weights", instrument("scoring_weights", s.handleScoringWeights))
	mux.HandleFunc("POST /api/v1/calculator", instrument("calculator", s.handleCalculator))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metricsHandler())

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

type chatMessageRequest struct {
	Message string `json:"message"`
	// LeadID reattaches the session to an existing lead, for prospects
	// returning after their original session expired.
	LeadID *uuid.UUID `json:"lead_id,omitempty"`
}

func (s *server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req chatMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Message == "" {
		writeError(w, domainerrors.NewValidationError("EMPTY_MESSAGE", "message must not be empty"))
		return
	}
	var opts []conversation.TurnOption
	if req.LeadID != nil && *req.LeadID != uuid.Nil {
		opts = append(opts, conversation.WithLeadID(*req.LeadID))
	}

	start := time.Now()
	result := s.deps.chat.ProcessMessage(r.Context(), sessionID, req.Message, opts...)

	s.deps.metrics.TurnDuration.Record(r.Context(), float64(time.Since(start).Milliseconds()))
	s.deps.metrics.TurnCounter.Add(r.Context(), 1)
	s.deps.metrics.RecordTier(r.Context(), result.QualityTier.String())
	s.deps.metrics.SetActiveSessions(int64(s.deps.tracker.ActiveSessions()))
	conversationTurns.WithLabelValues(string(result.Stage), result.QualityTier.String()).Inc()
	if result.QualityTier.Qualified() {
		leadsQualified.WithLabelValues(result.QualityTier.String()).Inc()
	}

	writeJSON(w, http.StatusOK, result)
}

type chatEndRequest struct {
	Converted bool `json:"converted"`
}

func (s *server) handleChatEnd(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req chatEndRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.chat.EndSession(r.Context(), sessionID, req.Converted); err != nil {
		writeError(w, err)
		return
	}
	s.deps.metrics.SetActiveSessions(int64(s.deps.tracker.ActiveSessions()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *server) handleFeedbackSubmit(w http.ResponseWriter, r *http.Request) {
	var req feedback.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.deps.feedback.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	feedbackReceived.WithLabelValues(string(f.Type)).Inc()
	writeJSON(w, http.StatusAccepted, f)
}

func (s *server) handleBuyerMetrics(w http.ResponseWriter, r *http.Request) {
	m, ok := s.deps.feedback.Metrics(r.PathValue("id"))
	if !ok {
		writeError(w, domainerrors.NewNotFoundError("buyer metrics"))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := s.deps.analytics.Summary(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleRevenueDaily(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := s.deps.analytics.RevenueByDay(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *server) handleRevenuePlatforms(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	platforms, err := s.deps.analytics.RevenueByPlatform(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, platforms)
}

func (s *server) handleRevenueTiers(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tiers, err := s.deps.analytics.RevenueByTier(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tiers)
}

type routeLeadRequest struct {
	LeadID          uuid.UUID `json:"lead_id"`
	PreferredBuyers []string  `json:"preferred_buyers,omitempty"`
}

func (s *server) handleRouteLead(w http.ResponseWriter, r *http.Request) {
	var req routeLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.LeadID == uuid.Nil {
		writeError(w, domainerrors.NewValidationError("MISSING_LEAD_ID", "lead_id is required"))
		return
	}
	l, err := s.deps.leads.GetLead(r.Context(), req.LeadID)
	if err != nil {
		writeError(w, err)
		return
	}

	d := s.deps.optimizer.Route(r.Context(), l, s.routingScore(r.Context(), l), req.PreferredBuyers...)
	writeJSON(w, http.StatusOK, d)
}

// routingScore prefers the cached conversation score; a lead whose cache
// entry expired is rebuilt from its persisted total.
func (s *server) routingScore(ctx context.Context, l *lead.Lead) *lead.Score {
	if cached, found, err := s.deps.scores.GetScore(ctx, l.SessionID); err == nil && found {
		return cached
	}
	tier := lead.TierForScore(l.Score)
	return &lead.Score{
		SessionID:       l.SessionID,
		Total:           l.Score,
		Tier:            tier,
		TargetBuyerTier: scoring.TargetBuyerTier(tier),
		ScoredAt:        time.Now().UTC(),
	}
}

func (s *server) handleCapacitySnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.deps.capacity.Snapshot(id)
	if !ok {
		writeError(w, domainerrors.NewNotFoundError("buyer platform"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"platform_id": id,
		"capacity":    snap,
		"utilization": s.deps.capacity.Utilization(id),
	})
}

func (s *server) handleScoringWeights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.weights.Snapshot())
}

func (s *server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	var in solarcalc.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.calculator.Calculate(in))
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.pool.Ping(r.Context()); err != nil {
		writeError(w, domainerrors.NewInternalError("database not reachable").WithCause(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// timeRange parses the from/to query parameters, defaulting to the trailing
// 30 days. Accepts RFC 3339 or plain dates.
func timeRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.AddDate(0, 0, -30), now

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = parseTime(v); err != nil {
			return from, to, domainerrors.NewValidationError("INVALID_RANGE", "invalid from parameter")
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = parseTime(v); err != nil {
			return from, to, domainerrors.NewValidationError("INVALID_RANGE", "invalid to parameter")
		}
	}
	if to.Before(from) {
		return from, to, domainerrors.NewValidationError("INVALID_RANGE", "to precedes from")
	}
	return from, to, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domainerrors.NewValidationError("MALFORMED_BODY", "request body is not valid JSON").WithCause(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *domainerrors.AppError
	if !errors.As(err, &appErr) {
		appErr = domainerrors.NewInternalError("internal error").WithCause(err)
	}
	writeJSON(w, appErr.StatusCode, map[string]any{"error": appErr})
}
