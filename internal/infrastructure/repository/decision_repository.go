package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/routing"
)

// DecisionRepository persists routing decisions for audit and feedback
// correlation.
type DecisionRepository struct {
	db *pgxpool.Pool
}

func NewDecisionRepository(db *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// SaveDecision records one routing outcome. Decisions are immutable; there
// is no update path.
func (r *DecisionRepository) SaveDecision(ctx context.Context, d *routing.Decision) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO routing_decisions (
			id, lead_id, session_id, buyer_id, buyer_tier,
			price, expected_revenue, reason, confidence, alternates, routed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, d.ID, d.LeadID, d.SessionID, d.BuyerID, d.BuyerTier.String(),
		d.Price, d.ExpectedRevenue, d.Reason, d.Confidence, d.Alternates, d.RoutedAt)
	if err != nil {
		return domainerrors.NewInternalError("failed to save routing decision").WithCause(err)
	}
	return nil
}

// GetDecision loads one decision by id.
func (r *DecisionRepository) GetDecision(ctx context.Context, id uuid.UUID) (*routing.Decision, error) {
	var (
		d    routing.Decision
		tier string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, lead_id, session_id, buyer_id, buyer_tier,
		       price, expected_revenue, reason, confidence, alternates, routed_at
		FROM routing_decisions WHERE id = $1
	`, id).Scan(&d.ID, &d.LeadID, &d.SessionID, &d.BuyerID, &tier,
		&d.Price, &d.ExpectedRevenue, &d.Reason, &d.Confidence, &d.Alternates, &d.RoutedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrDecisionNotFound
		}
		return nil, domainerrors.NewInternalError("failed to load routing decision").WithCause(err)
	}
	d.BuyerTier = buyer.TierFromString(tier)
	return &d, nil
}

// ListDecisionsByLead returns every decision made for one lead, newest
// first. A lead re-offered after a fallback can have several.
func (r *DecisionRepository) ListDecisionsByLead(ctx context.Context, leadID uuid.UUID) ([]*routing.Decision, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, session_id, buyer_id, buyer_tier,
		       price, expected_revenue, reason, confidence, alternates, routed_at
		FROM routing_decisions WHERE lead_id = $1
		ORDER BY routed_at DESC
	`, leadID)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to list routing decisions").WithCause(err)
	}
	defer rows.Close()

	var out []*routing.Decision
	for rows.Next() {
		var (
			d    routing.Decision
			tier string
		)
		if err := rows.Scan(&d.ID, &d.LeadID, &d.SessionID, &d.BuyerID, &tier,
			&d.Price, &d.ExpectedRevenue, &d.Reason, &d.Confidence, &d.Alternates, &d.RoutedAt); err != nil {
			return nil, domainerrors.NewInternalError("failed to scan routing decision").WithCause(err)
		}
		d.BuyerTier = buyer.TierFromString(tier)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewInternalError("decision iteration failed").WithCause(err)
	}
	return out, nil
}
