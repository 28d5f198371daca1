package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/analytics"
)

// AnalyticsRepository serves the read-side rollup queries over leads and
// routing decisions.
type AnalyticsRepository struct {
	db *pgxpool.Pool
}

func NewAnalyticsRepository(db *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// RevenueByDay sums sale prices of delivered leads per calendar day.
func (r *AnalyticsRepository) RevenueByDay(ctx context.Context, from, to time.Time) ([]analytics.DayRevenue, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date_trunc('day', updated_at) AS day,
		       count(*) AS leads,
		       coalesce(sum(sale_price), 0) AS revenue
		FROM leads
		WHERE status IN ('delivered', 'converted')
		  AND updated_at >= $1 AND updated_at <= $2
		GROUP BY 1 ORDER BY 1
	`, from, to)
	if err != nil {
		return nil, domainerrors.NewInternalError("revenue by day query failed").WithCause(err)
	}
	defer rows.Close()

	var out []analytics.DayRevenue
	for rows.Next() {
		var d analytics.DayRevenue
		if err := rows.Scan(&d.Day, &d.Leads, &d.Revenue); err != nil {
			return nil, domainerrors.NewInternalError("revenue by day scan failed").WithCause(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RevenueByPlatform sums realized revenue per buyer platform.
func (r *AnalyticsRepository) RevenueByPlatform(ctx context.Context, from, to time.Time) ([]analytics.PlatformRevenue, error) {
	rows, err := r.db.Query(ctx, `
		SELECT buyer_id,
		       count(*) AS leads,
		       coalesce(sum(sale_price), 0) AS revenue,
		       coalesce(avg(sale_price), 0) AS avg_price
		FROM leads
		WHERE status IN ('delivered', 'converted')
		  AND buyer_id IS NOT NULL
		  AND updated_at >= $1 AND updated_at <= $2
		GROUP BY buyer_id ORDER BY revenue DESC
	`, from, to)
	if err != nil {
		return nil, domainerrors.NewInternalError("revenue by platform query failed").WithCause(err)
	}
	defer rows.Close()

	var out []analytics.PlatformRevenue
	for rows.Next() {
		var p analytics.PlatformRevenue
		if err := rows.Scan(&p.PlatformID, &p.Leads, &p.Revenue, &p.AvgPrice); err != nil {
			return nil, domainerrors.NewInternalError("revenue by platform scan failed").WithCause(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RevenueByTier sums realized revenue per lead quality tier.
func (r *AnalyticsRepository) RevenueByTier(ctx context.Context, from, to time.Time) ([]analytics.TierRevenue, error) {
	rows, err := r.db.Query(ctx, `
		SELECT quality_tier,
		       count(*) AS leads,
		       coalesce(sum(sale_price), 0) AS revenue
		FROM leads
		WHERE status IN ('delivered', 'converted')
		  AND updated_at >= $1 AND updated_at <= $2
		GROUP BY quality_tier ORDER BY revenue DESC
	`, from, to)
	if err != nil {
		return nil, domainerrors.NewInternalError("revenue by tier query failed").WithCause(err)
	}
	defer rows.Close()

	var out []analytics.TierRevenue
	for rows.Next() {
		var t analytics.TierRevenue
		if err := rows.Scan(&t.Tier, &t.Leads, &t.Revenue); err != nil {
			return nil, domainerrors.NewInternalError("revenue by tier scan failed").WithCause(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Summary computes the headline funnel counts for a period.
func (r *AnalyticsRepository) Summary(ctx context.Context, from, to time.Time) (*analytics.Summary, error) {
	var s analytics.Summary
	err := r.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE quality_tier <> 'unqualified'),
		       count(*) FILTER (WHERE status IN ('delivered', 'converted')),
		       count(*) FILTER (WHERE status = 'converted'),
		       coalesce(sum(sale_price) FILTER (WHERE status IN ('delivered', 'converted')), 0),
		       coalesce(avg(sale_price) FILTER (WHERE status IN ('delivered', 'converted')), 0)
		FROM leads
		WHERE created_at >= $1 AND created_at <= $2
	`, from, to).Scan(&s.TotalLeads, &s.QualifiedLeads, &s.DeliveredLeads, &s.ConvertedLeads,
		&s.TotalRevenue, &s.AvgLeadPrice)
	if err != nil {
		return nil, domainerrors.NewInternalError("summary query failed").WithCause(err)
	}
	return &s, nil
}
