package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/feedback"
)

// FeedbackRepository persists buyer feedback events and the scoring
// adjustments derived from them.
type FeedbackRepository struct {
	db *pgxpool.Pool
}

func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// SaveFeedback records one feedback event.
func (r *FeedbackRepository) SaveFeedback(ctx context.Context, f *feedback.Feedback) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO buyer_feedback (
			id, lead_id, buyer_id, type, score, reason, conversion_value, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, f.ID, f.LeadID, f.BuyerID, string(f.Type), f.Score, f.Reason, f.ConversionValue, f.SubmittedAt)
	if err != nil {
		return domainerrors.NewInternalError("failed to save feedback").WithCause(err)
	}
	return nil
}

// SaveAdjustment records one scoring adjustment for audit.
func (r *FeedbackRepository) SaveAdjustment(ctx context.Context, a *feedback.ScoringAdjustment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO scoring_adjustments (
			id, buyer_id, factor, delta, reason, confidence, effective_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.BuyerID, a.Factor, a.Delta, a.Reason, a.Confidence, a.EffectiveAt, a.CreatedAt)
	if err != nil {
		return domainerrors.NewInternalError("failed to save scoring adjustment").WithCause(err)
	}
	return nil
}

// ListFeedbackByBuyer returns recent feedback for one buyer, newest first.
func (r *FeedbackRepository) ListFeedbackByBuyer(ctx context.Context, buyerID string, limit int) ([]*feedback.Feedback, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, buyer_id, type, score, reason, conversion_value, submitted_at
		FROM buyer_feedback WHERE buyer_id = $1
		ORDER BY submitted_at DESC LIMIT $2
	`, buyerID, limit)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to list feedback").WithCause(err)
	}
	defer rows.Close()

	var out []*feedback.Feedback
	for rows.Next() {
		var (
			f   feedback.Feedback
			typ string
		)
		if err := rows.Scan(&f.ID, &f.LeadID, &f.BuyerID, &typ, &f.Score, &f.Reason, &f.ConversionValue, &f.SubmittedAt); err != nil {
			return nil, domainerrors.NewInternalError("failed to scan feedback").WithCause(err)
		}
		f.Type = feedback.Type(typ)
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewInternalError("feedback iteration failed").WithCause(err)
	}
	return out, nil
}
