package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	domainfeedback "github.com/brightlead/solar-lead-exchange-backend/internal/domain/feedback"
	"github.com/brightlead/solar-lead-exchange-backend/internal/service/scoring"
)

// Analyzer thresholds. An adjustment fires when a buyer's trailing-window
// acceptance drops acceptanceDropThreshold below all-time, or one rejection
// reason accounts for more than dominantReasonThreshold of rejections.
const (
	acceptanceDropThreshold  = 0.20
	dominantReasonThreshold  = 0.30
	minRecentSample          = 10
	adjustmentDelta          = 0.05
	acceptanceDropConfidence = 0.7
	dominantReasonConfidence = 0.6
)

// reasonFactor maps normalized rejection-reason categories to the scoring
// factor most likely responsible.
var reasonFactor = map[string]string{
	"not_homeowner":   scoring.FactorBaseQualification,
	"low_bill":        scoring.FactorBaseQualification,
	"bad_contact":     scoring.FactorBaseQualification,
	"low_intent":      scoring.FactorBehavioral,
	"unresponsive":    scoring.FactorBehavioral,
	"bad_timing":      scoring.FactorMarketTiming,
	"not_ready":       scoring.FactorMarketTiming,
	"wrong_geography": scoring.FactorNYCIntelligence,
	"out_of_area":     scoring.FactorNYCIntelligence,
}

// Run drives the loop's background work until ctx is cancelled: draining
// the persistence queue and running the batch analyzer on the given
// interval. A failing analyzer pass retries with bounded backoff; the loop
// itself never exits on analysis errors.
func (l *Loop) Run(ctx context.Context, analyzeInterval time.Duration) error {
	if analyzeInterval <= 0 {
		analyzeInterval = 15 * time.Minute
	}
	ticker := time.NewTicker(analyzeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain(context.Background())
			return ctx.Err()
		case f := <-l.queue:
			if err := l.store.SaveFeedback(ctx, f); err != nil {
				l.logger.Error("feedback persistence failed",
					zap.String("buyer_id", f.BuyerID), zap.Error(err))
			}
		case <-ticker.C:
			l.analyzeWithBackoff(ctx)
		}
	}
}

// drain flushes queued events on shutdown with a short deadline.
func (l *Loop) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		select {
		case f := <-l.queue:
			if err := l.store.SaveFeedback(ctx, f); err != nil {
				l.logger.Error("feedback persistence failed during drain",
					zap.String("buyer_id", f.BuyerID), zap.Error(err))
				return
			}
		default:
			return
		}
	}
}

func (l *Loop) analyzeWithBackoff(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 15 * time.Second
	policy.MaxElapsedTime = time.Minute

	err := backoff.Retry(func() error {
		return l.Analyze(ctx)
	}, backoff.WithContext(policy, ctx))
	if err != nil && ctx.Err() == nil {
		l.logger.Error("feedback analysis exhausted retries", zap.Error(err))
	}
}

// Analyze runs one batch pass over every buyer's aggregates, publishing at
// most one weight adjustment per buyer per pass. Weight updates are
// eventually consistent: scores computed between passes use the previous
// snapshot.
func (l *Loop) Analyze(ctx context.Context) error {
	now := l.clock.Now()

	l.mu.Lock()
	buyers := make([]string, 0, len(l.metrics))
	for id := range l.metrics {
		buyers = append(buyers, id)
	}
	l.mu.Unlock()

	for _, buyerID := range buyers {
		adj := l.proposeAdjustment(buyerID, now)
		if adj == nil {
			continue
		}
		if err := l.applyAdjustment(ctx, adj); err != nil {
			return err
		}
	}
	return nil
}

// proposeAdjustment inspects one buyer and returns a weight adjustment or
// nil.
func (l *Loop) proposeAdjustment(buyerID string, now time.Time) *domainfeedback.ScoringAdjustment {
	m, ok := l.Metrics(buyerID)
	if !ok || m.TotalFeedback == 0 {
		return nil
	}

	recentRate, n := l.recentAcceptanceRate(buyerID, now)
	allTime := m.AcceptanceRate()

	if n >= minRecentSample && allTime-recentRate >= acceptanceDropThreshold {
		factor := scoring.FactorBehavioral
		if reason, share, ok := m.DominantRejectionReason(); ok && share > dominantReasonThreshold {
			if f, mapped := reasonFactor[reason]; mapped {
				factor = f
			}
		}
		return domainfeedback.NewScoringAdjustment(
			buyerID, factor, -adjustmentDelta,
			fmt.Sprintf("7d acceptance %.2f vs all-time %.2f (n=%d)", recentRate, allTime, n),
			acceptanceDropConfidence, now)
	}

	if reason, share, ok := m.DominantRejectionReason(); ok && share > dominantReasonThreshold && m.Rejected >= minRecentSample {
		if factor, mapped := reasonFactor[reason]; mapped {
			return domainfeedback.NewScoringAdjustment(
				buyerID, factor, -adjustmentDelta,
				fmt.Sprintf("rejection reason %q at %.0f%% of rejections", reason, share*100),
				dominantReasonConfidence, now)
		}
	}
	return nil
}

// applyAdjustment persists the adjustment and publishes the new weight
// snapshot.
func (l *Loop) applyAdjustment(ctx context.Context, adj *domainfeedback.ScoringAdjustment) error {
	if l.adjustments != nil {
		if err := l.adjustments.SaveAdjustment(ctx, adj); err != nil {
			return fmt.Errorf("persist scoring adjustment: %w", err)
		}
	}
	w, err := l.weights.Adjust(adj.Factor, adj.Delta, adj.EffectiveAt)
	if err != nil {
		return fmt.Errorf("publish weight adjustment: %w", err)
	}
	l.logger.Info("scoring weights adjusted",
		zap.String("buyer_id", adj.BuyerID),
		zap.String("factor", adj.Factor),
		zap.Float64("delta", adj.Delta),
		zap.Int("weights_version", w.Version))
	return nil
}
