package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/delivery"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/revenue"
)

// OutcomeRepository persists conversation outcomes and delivery results.
// These are the transaction records the analytics rollups read.
type OutcomeRepository struct {
	db *pgxpool.Pool
}

func NewOutcomeRepository(db *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// SaveOutcome records a finished conversation's revenue state. The trend
// and recommendations are stored as JSONB; they are read back for analysis,
// never queried by field.
func (r *OutcomeRepository) SaveOutcome(ctx context.Context, s *revenue.State) error {
	trend, err := json.Marshal(s.Trend)
	if err != nil {
		return domainerrors.NewInternalError("failed to marshal revenue trend").WithCause(err)
	}
	recommendations, err := json.Marshal(s.Recommendations)
	if err != nil {
		return domainerrors.NewInternalError("failed to marshal recommendations").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO conversation_outcomes (
			session_id, started_at, ended_at, duration_seconds,
			quality_tier, question_count, objection_count, objections_resolved,
			technical_engagement, urgency_created, revenue_per_minute,
			final_revenue, converted, trend, recommendations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			duration_seconds = EXCLUDED.duration_seconds,
			final_revenue = EXCLUDED.final_revenue,
			converted = EXCLUDED.converted,
			trend = EXCLUDED.trend,
			recommendations = EXCLUDED.recommendations
	`, s.SessionID, s.StartTime, s.EndedAt, int(s.Duration.Seconds()),
		s.Tier.String(), s.QuestionCount, s.ObjectionCount, s.ObjectionsResolved,
		s.TechnicalEngagement, s.UrgencyCreated, s.RevenuePerMinute,
		s.FinalRevenue, s.Converted, trend, recommendations)
	if err != nil {
		return domainerrors.NewInternalError("failed to save conversation outcome").WithCause(err)
	}
	return nil
}

// SaveDeliveryResult records one delivery attempt chain's outcome.
func (r *OutcomeRepository) SaveDeliveryResult(ctx context.Context, res *delivery.Result) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO delivery_results (
			lead_id, platform_id, method, attempts, delivered, error, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, res.LeadID, res.PlatformID, res.Method, res.Attempts, res.Delivered, res.Error, res.FinishedAt)
	if err != nil {
		return domainerrors.NewInternalError("failed to save delivery result").WithCause(err)
	}
	return nil
}
