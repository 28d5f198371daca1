package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
)

// PlatformRepository persists buyer platforms. Geographic preferences and
// the delivery field mapping are stored as JSONB; the mapping's array order
// is the contractual CSV column order and must survive round trips, which
// JSON arrays guarantee.
type PlatformRepository struct {
	db *pgxpool.Pool
}

func NewPlatformRepository(db *pgxpool.Pool) *PlatformRepository {
	return &PlatformRepository{db: db}
}

// SavePlatform inserts or updates a platform.
func (r *PlatformRepository) SavePlatform(ctx context.Context, p *buyer.Platform) error {
	mapping, err := json.Marshal(p.Delivery.FieldMapping)
	if err != nil {
		return domainerrors.NewInternalError("failed to marshal field mapping").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO buyer_platforms (
			id, name, tier, min_lead_score, daily_capacity, weekly_capacity,
			price_per_lead, acceptance_rate, avg_lead_value, exclusive,
			boroughs, zip_codes,
			delivery_method, delivery_endpoint, delivery_secret, delivery_to, field_mapping,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		          $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tier = EXCLUDED.tier,
			min_lead_score = EXCLUDED.min_lead_score,
			daily_capacity = EXCLUDED.daily_capacity,
			weekly_capacity = EXCLUDED.weekly_capacity,
			price_per_lead = EXCLUDED.price_per_lead,
			acceptance_rate = EXCLUDED.acceptance_rate,
			avg_lead_value = EXCLUDED.avg_lead_value,
			exclusive = EXCLUDED.exclusive,
			boroughs = EXCLUDED.boroughs,
			zip_codes = EXCLUDED.zip_codes,
			delivery_method = EXCLUDED.delivery_method,
			delivery_endpoint = EXCLUDED.delivery_endpoint,
			delivery_secret = EXCLUDED.delivery_secret,
			delivery_to = EXCLUDED.delivery_to,
			field_mapping = EXCLUDED.field_mapping,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Tier.String(), p.MinLeadScore, p.DailyCapacity, p.WeeklyCapacity,
		p.PricePerLead, p.AcceptanceRate, p.AvgLeadValue, p.Exclusive,
		p.Boroughs, p.ZipCodes,
		string(p.Delivery.Method), p.Delivery.Endpoint, p.Delivery.Secret, p.Delivery.To, mapping,
		p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domainerrors.NewInternalError("failed to save platform").WithCause(err)
	}
	return nil
}

// GetPlatform loads one platform by id.
func (r *PlatformRepository) GetPlatform(ctx context.Context, id string) (*buyer.Platform, error) {
	row := r.db.QueryRow(ctx, selectPlatforms+` WHERE id = $1`, id)
	p, err := scanPlatform(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrBuyerNotFound
		}
		return nil, domainerrors.NewInternalError("failed to load platform").WithCause(err)
	}
	return p, nil
}

// ListActivePlatforms loads the live buyer roster for the capacity
// registry.
func (r *PlatformRepository) ListActivePlatforms(ctx context.Context) ([]*buyer.Platform, error) {
	rows, err := r.db.Query(ctx, selectPlatforms+` WHERE active ORDER BY id`)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to list platforms").WithCause(err)
	}
	defer rows.Close()

	var out []*buyer.Platform
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, domainerrors.NewInternalError("failed to scan platform").WithCause(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewInternalError("platform iteration failed").WithCause(err)
	}
	return out, nil
}

const selectPlatforms = `
	SELECT id, name, tier, min_lead_score, daily_capacity, weekly_capacity,
	       price_per_lead, acceptance_rate, avg_lead_value, exclusive,
	       boroughs, zip_codes,
	       delivery_method, delivery_endpoint, delivery_secret, delivery_to, field_mapping,
	       active, created_at, updated_at
	FROM buyer_platforms`

func scanPlatform(row pgx.Row) (*buyer.Platform, error) {
	var (
		p       buyer.Platform
		tier    string
		method  string
		mapping []byte
	)
	err := row.Scan(&p.ID, &p.Name, &tier, &p.MinLeadScore, &p.DailyCapacity, &p.WeeklyCapacity,
		&p.PricePerLead, &p.AcceptanceRate, &p.AvgLeadValue, &p.Exclusive,
		&p.Boroughs, &p.ZipCodes,
		&method, &p.Delivery.Endpoint, &p.Delivery.Secret, &p.Delivery.To, &mapping,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Tier = buyer.TierFromString(tier)
	p.Delivery.Method = buyer.DeliveryMethod(method)
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &p.Delivery.FieldMapping); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
