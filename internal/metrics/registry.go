// Package metrics holds the domain metric instruments published over
// OpenTelemetry.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the application
type Registry struct {
	meter metric.Meter

	// Conversation metrics
	TurnDuration        metric.Float64Histogram
	TurnCounter         metric.Int64Counter
	LLMFallbackCounter  metric.Int64Counter
	ActiveConversations metric.Int64ObservableGauge

	// Scoring metrics
	ScoringDuration  metric.Float64Histogram
	LeadsByTier      metric.Int64Counter
	WeightsVersion   metric.Int64ObservableGauge
	WeightAdjustment metric.Int64Counter

	// Routing and delivery metrics
	RoutingDuration   metric.Float64Histogram
	FallbackDecisions metric.Int64Counter
	DeliverySuccess   metric.Int64Counter
	DeliveryFailure   metric.Int64Counter
	LeadRevenue       metric.Float64Histogram

	mu             sync.RWMutex
	activeSessions int64
	weightsVersion int64
}

// NewRegistry creates a metrics registry with all domain metrics.
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	var err error
	if r.TurnDuration, err = r.meter.Float64Histogram(
		"slx.conversation.turn_duration",
		metric.WithDescription("End-to-end chat turn latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(50, 100, 250, 500, 1000, 2000, 4000, 8000),
	); err != nil {
		return nil, err
	}
	if r.TurnCounter, err = r.meter.Int64Counter(
		"slx.conversation.turns",
		metric.WithDescription("Chat turns processed"),
	); err != nil {
		return nil, err
	}
	if r.LLMFallbackCounter, err = r.meter.Int64Counter(
		"slx.conversation.llm_fallbacks",
		metric.WithDescription("Turns answered with a canned response"),
	); err != nil {
		return nil, err
	}
	if r.ActiveConversations, err = r.meter.Int64ObservableGauge(
		"slx.conversation.active",
		metric.WithDescription("Live chat sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.activeSessions)
			return nil
		}),
	); err != nil {
		return nil, err
	}

	if r.ScoringDuration, err = r.meter.Float64Histogram(
		"slx.scoring.duration",
		metric.WithDescription("Lead scoring pass duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50),
	); err != nil {
		return nil, err
	}
	if r.LeadsByTier, err = r.meter.Int64Counter(
		"slx.scoring.leads_by_tier",
		metric.WithDescription("Scored leads by resulting quality tier"),
	); err != nil {
		return nil, err
	}
	if r.WeightsVersion, err = r.meter.Int64ObservableGauge(
		"slx.scoring.weights_version",
		metric.WithDescription("Version of the live scoring weight snapshot"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.weightsVersion)
			return nil
		}),
	); err != nil {
		return nil, err
	}
	if r.WeightAdjustment, err = r.meter.Int64Counter(
		"slx.scoring.weight_adjustments",
		metric.WithDescription("Weight adjustments published by the feedback loop"),
	); err != nil {
		return nil, err
	}

	if r.RoutingDuration, err = r.meter.Float64Histogram(
		"slx.routing.duration",
		metric.WithDescription("Routing decision latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100),
	); err != nil {
		return nil, err
	}
	if r.FallbackDecisions, err = r.meter.Int64Counter(
		"slx.routing.fallback_decisions",
		metric.WithDescription("Leads parked on the fallback buyer"),
	); err != nil {
		return nil, err
	}
	if r.DeliverySuccess, err = r.meter.Int64Counter(
		"slx.delivery.success",
		metric.WithDescription("Successful lead deliveries"),
	); err != nil {
		return nil, err
	}
	if r.DeliveryFailure, err = r.meter.Int64Counter(
		"slx.delivery.failure",
		metric.WithDescription("Lead deliveries failed after retries"),
	); err != nil {
		return nil, err
	}
	if r.LeadRevenue, err = r.meter.Float64Histogram(
		"slx.revenue.lead_price",
		metric.WithDescription("Sale price per routed lead in USD"),
		metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(25, 50, 75, 100, 150, 200, 300, 500),
	); err != nil {
		return nil, err
	}

	return r, nil
}

// RecordTier counts one scored lead against its tier.
func (r *Registry) RecordTier(ctx context.Context, tier string) {
	r.LeadsByTier.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordDelivery counts one delivery outcome against its platform.
func (r *Registry) RecordDelivery(ctx context.Context, platformID string, delivered bool) {
	attrs := metric.WithAttributes(attribute.String("platform", platformID))
	if delivered {
		r.DeliverySuccess.Add(ctx, 1, attrs)
	} else {
		r.DeliveryFailure.Add(ctx, 1, attrs)
	}
}

// SetActiveSessions updates the live-session gauge source.
func (r *Registry) SetActiveSessions(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeSessions = n
}

// SetWeightsVersion updates the weights-version gauge source.
func (r *Registry) SetWeightsVersion(v int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weightsVersion = v
}
