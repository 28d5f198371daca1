// Package leadrouting assigns qualified leads to the buyer platform
// expected to pay the most for them, subject to capacity and preferences.
// Routing always produces a decision; when no platform can take the lead it
// parks it on the fallback buyer rather than erroring.
package leadrouting

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/routing"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/pricing"
)

// Optimizer routes scored leads to buyers.
type Optimizer struct {
	registry CapacityRegistry
	pricer   Pricer
	store    DecisionStore
	weights  RoutingWeights
	clock    lead.Clock
	logger   *zap.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

func WithRoutingWeights(w RoutingWeights) Option {
	return func(o *Optimizer) { o.weights = w.Normalize() }
}

func WithClock(c lead.Clock) Option {
	return func(o *Optimizer) { o.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// NewOptimizer creates an Optimizer with the default ranking weights.
func NewOptimizer(registry CapacityRegistry, pricer Pricer, store DecisionStore, opts ...Option) *Optimizer {
	o := &Optimizer{
		registry: registry,
		pricer:   pricer,
		store:    store,
		weights:  DefaultRoutingWeights(),
		clock:    lead.RealClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Route assigns the lead to the best available platform and returns the
// decision. A non-empty preferred set restricts routing to those buyers.
// The result is never nil: an unqualified lead, an empty candidate set, or
// losing every reservation race all produce a fallback decision. A
// persistence failure is logged, not surfaced; the reservation stands and
// the decision is still returned.
func (o *Optimizer) Route(ctx context.Context, l *lead.Lead, score *lead.Score, preferred ...string) *routing.Decision {
	now := o.clock.Now()

	if !score.Qualified() {
		return o.persist(ctx, routing.NewFallbackDecision(l.ID, l.SessionID, now))
	}

	candidates := o.registry.Eligible(score.Total, l.Borough, preferred)
	if len(candidates) == 0 {
		o.logger.Info("no eligible buyers, parking lead",
			zap.String("lead_id", l.ID.String()),
			zap.Int("score", score.Total))
		return o.persist(ctx, routing.NewFallbackDecision(l.ID, l.SessionID, now))
	}

	order := rankCandidates(candidates, o.weights, score.TargetBuyerTier, l.Borough, l.ZipCode)

	// Walk best-first; a platform can fill between Eligible and Reserve, so
	// losing the reservation race just moves to the next candidate.
	for i, r := range order {
		p := r.candidate.Platform
		if err := o.registry.Reserve(ctx, p.ID); err != nil {
			o.logger.Debug("reservation lost, trying next candidate",
				zap.String("platform_id", p.ID), zap.Error(err))
			continue
		}

		quote := o.pricer.Price(pricing.Input{
			BuyerTier:       p.Tier,
			LeadScore:       score.Total,
			Utilization:     o.registry.Utilization(p.ID),
			Borough:         l.Borough,
			ExclusiveMatch:  p.Exclusive,
			GeographicMatch: geographicMatch(r.candidate, l.Borough, l.ZipCode),
		})
		expected := values.USDFromFloat(quote.Price.ToFloat64() * p.AcceptanceRate)

		var alternates []string
		for _, alt := range order[i+1:] {
			alternates = append(alternates, alt.candidate.Platform.ID)
			if len(alternates) == 2 {
				break
			}
		}

		d := routing.NewDecision(
			l.ID, l.SessionID, p.ID, p.Tier,
			quote.Price, expected,
			fmt.Sprintf("best of %d candidates (rank score %.3f)", len(order), r.score),
			r.score,
			alternates,
			now,
		)
		return o.persist(ctx, d)
	}

	// Every candidate filled while we were choosing.
	return o.persist(ctx, routing.NewFallbackDecision(l.ID, l.SessionID, now))
}

func (o *Optimizer) persist(ctx context.Context, d *routing.Decision) *routing.Decision {
	if o.store == nil {
		return d
	}
	if err := o.store.SaveDecision(ctx, d); err != nil {
		o.logger.Error("failed to persist routing decision",
			zap.String("decision_id", d.ID.String()),
			zap.String("buyer_id", d.BuyerID),
			zap.Error(err))
	}
	return d
}
