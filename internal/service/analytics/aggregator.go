// Package analytics serves read-side revenue rollups over persisted
// transactions. It owns no state of its own; everything is a repository
// query shaped for reporting.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// DayRevenue is revenue realized on one calendar day.
type DayRevenue struct {
	Day     time.Time    `json:"day"`
	Leads   int          `json:"leads"`
	Revenue values.Money `json:"revenue"`
}

// PlatformRevenue is revenue realized through one buyer platform.
type PlatformRevenue struct {
	PlatformID string       `json:"platform_id"`
	Leads      int          `json:"leads"`
	Revenue    values.Money `json:"revenue"`
	AvgPrice   values.Money `json:"avg_price"`
}

// TierRevenue is revenue realized per lead quality tier.
type TierRevenue struct {
	Tier    string       `json:"tier"`
	Leads   int          `json:"leads"`
	Revenue values.Money `json:"revenue"`
}

// Summary is the headline report for a period.
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalLeads     int          `json:"total_leads"`
	QualifiedLeads int          `json:"qualified_leads"`
	DeliveredLeads int          `json:"delivered_leads"`
	ConvertedLeads int          `json:"converted_leads"`
	TotalRevenue   values.Money `json:"total_revenue"`
	AvgLeadPrice   values.Money `json:"avg_lead_price"`

	QualificationRate float64 `json:"qualification_rate"`
	ConversionRate    float64 `json:"conversion_rate"`
}

// Repository provides the rollup queries, backed by postgres.
type Repository interface {
	RevenueByDay(ctx context.Context, from, to time.Time) ([]DayRevenue, error)
	RevenueByPlatform(ctx context.Context, from, to time.Time) ([]PlatformRevenue, error)
	RevenueByTier(ctx context.Context, from, to time.Time) ([]TierRevenue, error)
	Summary(ctx context.Context, from, to time.Time) (*Summary, error)
}

// Aggregator is the reporting facade.
type Aggregator struct {
	repo Repository
}

// NewAggregator creates an Aggregator over the repository.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// RevenueByDay returns per-day revenue for the period with zero-filled
// gaps, oldest first, so charting needs no client-side gap handling.
func (a *Aggregator) RevenueByDay(ctx context.Context, from, to time.Time) ([]DayRevenue, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid period: to %s before from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	rows, err := a.repo.RevenueByDay(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("revenue by day: %w", err)
	}

	byDay := make(map[string]DayRevenue, len(rows))
	for _, r := range rows {
		byDay[r.Day.Format("2006-01-02")] = r
	}

	var out []DayRevenue
	for d := from.Truncate(24 * time.Hour); !d.After(to); d = d.Add(24 * time.Hour) {
		key := d.Format("2006-01-02")
		if r, ok := byDay[key]; ok {
			out = append(out, r)
		} else {
			out = append(out, DayRevenue{Day: d, Revenue: values.ZeroUSD()})
		}
	}
	return out, nil
}

// RevenueByPlatform returns per-platform revenue for the period.
func (a *Aggregator) RevenueByPlatform(ctx context.Context, from, to time.Time) ([]PlatformRevenue, error) {
	rows, err := a.repo.RevenueByPlatform(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("revenue by platform: %w", err)
	}
	return rows, nil
}

// RevenueByTier returns per-quality-tier revenue for the period.
func (a *Aggregator) RevenueByTier(ctx context.Context, from, to time.Time) ([]TierRevenue, error) {
	rows, err := a.repo.RevenueByTier(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("revenue by tier: %w", err)
	}
	return rows, nil
}

// Summary returns the headline stats with derived rates filled in.
func (a *Aggregator) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	s, err := a.repo.Summary(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("summary stats: %w", err)
	}
	s.From, s.To = from, to
	if s.TotalLeads > 0 {
		s.QualificationRate = float64(s.QualifiedLeads) / float64(s.TotalLeads)
	}
	if s.DeliveredLeads > 0 {
		s.ConversionRate = float64(s.ConvertedLeads) / float64(s.DeliveredLeads)
	}
	return s, nil
}
