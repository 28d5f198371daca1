package capacity

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Run drives the registry's background maintenance until ctx is cancelled:
// an initial load, periodic roster refreshes, and the daily/weekly counter
// rollovers. Refresh failures retry with bounded exponential backoff and
// never abort the loop; the last good roster keeps serving.
func (r *Registry) Run(ctx context.Context, refreshInterval time.Duration) error {
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Minute
	}

	if err := r.refreshWithBackoff(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	rolloverTimer := time.NewTimer(r.untilNextMidnight())
	defer rolloverTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.refreshWithBackoff(ctx); err != nil {
				return err
			}
		case <-rolloverTimer.C:
			r.RolloverDaily()
			if r.clock.Now().Weekday() == time.Monday {
				r.RolloverWeekly()
			}
			r.logger.Info("capacity counters rolled over")
			rolloverTimer.Reset(r.untilNextMidnight())
		}
	}
}

// refreshWithBackoff retries a failed refresh up to maxElapsed; only
// context cancellation surfaces as an error.
func (r *Registry) refreshWithBackoff(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 2 * time.Minute

	err := backoff.Retry(func() error {
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("capacity refresh failed, retrying", zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Exhausted retries; keep serving the stale roster.
		r.logger.Error("capacity refresh exhausted retries", zap.Error(err))
	}
	return nil
}

func (r *Registry) untilNextMidnight() time.Duration {
	now := r.clock.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	return next.Sub(now)
}
