// Package pipeline connects qualification to money: the moment a lead
// qualifies it is routed, sold, and delivered here, off the conversation
// turn path.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/delivery"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/leadrouting"
)

// PlatformSource loads platform delivery configuration.
type PlatformSource interface {
	GetPlatform(ctx context.Context, id string) (*buyer.Platform, error)
}

// LeadStore persists lead status transitions.
type LeadStore interface {
	SaveLead(ctx context.Context, l *lead.Lead) error
}

// Releaser returns a capacity reservation after a failed delivery.
type Releaser interface {
	Release(platformID string)
}

// handoffTimeout bounds the whole route-and-deliver sequence including
// delivery retries.
const handoffTimeout = 2 * time.Minute

// Pipeline implements the conversation hand-off.
type Pipeline struct {
	optimizer    *leadrouting.Optimizer
	orchestrator *delivery.Orchestrator
	platforms    PlatformSource
	leads        LeadStore
	releaser     Releaser
	logger       *zap.Logger
}

// New wires the hand-off pipeline.
func New(optimizer *leadrouting.Optimizer, orchestrator *delivery.Orchestrator, platforms PlatformSource, leads LeadStore, releaser Releaser, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		optimizer:    optimizer,
		orchestrator: orchestrator,
		platforms:    platforms,
		leads:        leads,
		releaser:     releaser,
		logger:       logger,
	}
}

// HandleQualified routes and delivers one freshly qualified lead. Runs off
// the conversation turn; all failures are logged and reflected in the
// lead's status, never surfaced to the prospect.
func (p *Pipeline) HandleQualified(ctx context.Context, l *lead.Lead, score *lead.Score) {
	ctx, cancel := context.WithTimeout(ctx, handoffTimeout)
	defer cancel()

	decision := p.optimizer.Route(ctx, l, score)
	if decision.IsFallback() {
		// Parked; the lead stays qualified and is re-offered later.
		p.logger.Info("lead parked on fallback",
			zap.String("lead_id", l.ID.String()),
			zap.Int("score", score.Total))
		p.save(ctx, l)
		return
	}

	if err := l.MarkRouted(decision.BuyerID, decision.Price); err != nil {
		p.logger.Error("routed lead in unexpected status",
			zap.String("lead_id", l.ID.String()), zap.Error(err))
		p.releaser.Release(decision.BuyerID)
		return
	}
	p.save(ctx, l)

	platform, err := p.platforms.GetPlatform(ctx, decision.BuyerID)
	if err != nil {
		p.logger.Error("winning platform vanished before delivery",
			zap.String("platform_id", decision.BuyerID), zap.Error(err))
		p.releaser.Release(decision.BuyerID)
		l.Fail()
		p.save(ctx, l)
		return
	}

	res := p.orchestrator.Deliver(ctx, platform, delivery.Record{
		Lead:  l,
		Score: score,
		Price: decision.Price,
	})
	if res.Delivered {
		if err := l.MarkDelivered(); err != nil {
			p.logger.Error("delivered lead in unexpected status",
				zap.String("lead_id", l.ID.String()), zap.Error(err))
		}
	} else {
		p.releaser.Release(decision.BuyerID)
		l.Fail()
		p.logger.Warn("lead delivery failed after retries",
			zap.String("lead_id", l.ID.String()),
			zap.String("platform_id", platform.ID),
			zap.String("error", res.Error))
	}
	p.save(ctx, l)
}

func (p *Pipeline) save(ctx context.Context, l *lead.Lead) {
	if p.leads == nil {
		return
	}
	if err := p.leads.SaveLead(ctx, l); err != nil {
		p.logger.Error("lead persistence failed",
			zap.String("lead_id", l.ID.String()), zap.Error(err))
	}
}
