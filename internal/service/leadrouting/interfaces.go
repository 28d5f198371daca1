package leadrouting

import (
	"context"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/routing"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/capacity"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/pricing"
)

// CapacityRegistry is the slice of the capacity registry routing needs:
// candidate discovery, atomic reservation, and utilization reads.
type CapacityRegistry interface {
	Eligible(score int, borough string, preferred []string) []capacity.Candidate
	Reserve(ctx context.Context, platformID string) error
	Release(platformID string)
	Utilization(platformID string) float64
}

// Pricer quotes a lead for a specific buyer.
type Pricer interface {
	Price(in pricing.Input) pricing.Quote
}

// DecisionStore persists routing decisions for audit and feedback
// correlation.
type DecisionStore interface {
	SaveDecision(ctx context.Context, d *routing.Decision) error
}
