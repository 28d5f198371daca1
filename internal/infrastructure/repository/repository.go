// Package repository implements PostgreSQL persistence for leads, buyer
// platforms, routing decisions, feedback, and conversation outcomes.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlead/solar-lead-exchange-backend/internal/infrastructure/config"
)

// NewPool creates the shared pgx connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// Repositories bundles every store for wiring convenience.
type Repositories struct {
	Leads     *LeadRepository
	Platforms *PlatformRepository
	Decisions *DecisionRepository
	Feedback  *FeedbackRepository
	Outcomes  *OutcomeRepository
	Analytics *AnalyticsRepository
}

// New creates all repositories over one pool.
func New(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Leads:     NewLeadRepository(pool),
		Platforms: NewPlatformRepository(pool),
		Decisions: NewDecisionRepository(pool),
		Feedback:  NewFeedbackRepository(pool),
		Outcomes:  NewOutcomeRepository(pool),
		Analytics: NewAnalyticsRepository(pool),
	}
}
