package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
)

// LeadRepository persists leads.
type LeadRepository struct {
	db *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: db}
}

// SaveLead inserts or updates a lead. Upsert keyed by id so the turn
// pipeline can save without knowing whether the lead exists.
func (r *LeadRepository) SaveLead(ctx context.Context, l *lead.Lead) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO leads (
			id, session_id, status, score, quality_tier,
			borough, zip_code, home_type, buyer_id, sale_price,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			quality_tier = EXCLUDED.quality_tier,
			buyer_id = EXCLUDED.buyer_id,
			sale_price = EXCLUDED.sale_price,
			updated_at = EXCLUDED.updated_at
	`, l.ID, l.SessionID, l.Status.String(), l.Score, l.Tier.String(),
		l.Borough, l.ZipCode, l.HomeType, l.BuyerID, l.SalePrice,
		l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return domainerrors.NewInternalError("failed to save lead").WithCause(err)
	}
	return nil
}

// GetLead loads one lead by id.
func (r *LeadRepository) GetLead(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	var (
		l      lead.Lead
		status string
		tier   string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, session_id, status, score, quality_tier,
		       borough, zip_code, home_type, buyer_id, sale_price,
		       created_at, updated_at
		FROM leads WHERE id = $1
	`, id).Scan(&l.ID, &l.SessionID, &status, &l.Score, &tier,
		&l.Borough, &l.ZipCode, &l.HomeType, &l.BuyerID, &l.SalePrice,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrLeadNotFound
		}
		return nil, domainerrors.NewInternalError("failed to load lead").WithCause(err)
	}
	l.Status = statusFromString(status)
	l.Tier = tierFromString(tier)
	return &l, nil
}

// GetLeadBySession loads the lead created for a chat session.
func (r *LeadRepository) GetLeadBySession(ctx context.Context, sessionID string) (*lead.Lead, error) {
	var (
		l      lead.Lead
		status string
		tier   string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, session_id, status, score, quality_tier,
		       borough, zip_code, home_type, buyer_id, sale_price,
		       created_at, updated_at
		FROM leads WHERE session_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, sessionID).Scan(&l.ID, &l.SessionID, &status, &l.Score, &tier,
		&l.Borough, &l.ZipCode, &l.HomeType, &l.BuyerID, &l.SalePrice,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrLeadNotFound
		}
		return nil, domainerrors.NewInternalError("failed to load lead by session").WithCause(err)
	}
	l.Status = statusFromString(status)
	l.Tier = tierFromString(tier)
	return &l, nil
}

func statusFromString(s string) lead.Status {
	switch s {
	case "qualified":
		return lead.StatusQualified
	case "routed":
		return lead.StatusRouted
	case "delivered":
		return lead.StatusDelivered
	case "converted":
		return lead.StatusConverted
	case "failed":
		return lead.StatusFailed
	default:
		return lead.StatusNew
	}
}

func tierFromString(s string) lead.QualityTier {
	switch s {
	case "premium":
		return lead.TierPremium
	case "standard":
		return lead.TierStandard
	case "basic":
		return lead.TierBasic
	default:
		return lead.TierUnqualified
	}
}
