// Package capacity tracks live buyer admission state: per-platform daily
// and weekly counters against configured caps. The registry is the single
// writer for counters; routing reserves through it so a platform can never
// be oversold under concurrent routing calls.
package capacity

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/buyer"
	domainerrors "github.com/brightlead/solar-lead-exchange-backend/internal/domain/errors"
	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/lead"
)

// PlatformSource loads the active platform roster, typically the postgres
// repository.
type PlatformSource interface {
	ListActivePlatforms(ctx context.Context) ([]*buyer.Platform, error)
}

// CounterMirror mirrors reservation counters to a shared store so other
// processes can observe them. Mirror writes are best effort.
type CounterMirror interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// Candidate pairs a platform with its live capacity snapshot.
type Candidate struct {
	Platform *buyer.Platform
	Capacity buyer.Capacity
}

type entry struct {
	platform *buyer.Platform
	state    buyer.Capacity
}

// Registry is the concurrency-safe capacity table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	source PlatformSource
	mirror CounterMirror
	clock  lead.Clock
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

func WithCounterMirror(m CounterMirror) Option {
	return func(r *Registry) { r.mirror = m }
}

func WithClock(c lead.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry; call Refresh (or Run) to load the
// roster.
func NewRegistry(source PlatformSource, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		source:  source,
		clock:   lead.RealClock{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh reloads the platform roster, preserving current counters for
// platforms that survive the reload.
func (r *Registry) Refresh(ctx context.Context) error {
	platforms, err := r.source.ListActivePlatforms(ctx)
	if err != nil {
		return fmt.Errorf("refresh platform roster: %w", err)
	}

	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*entry, len(platforms))
	for _, p := range platforms {
		if err := p.Validate(); err != nil {
			r.logger.Warn("skipping invalid platform", zap.String("platform_id", p.ID), zap.Error(err))
			continue
		}
		e := &entry{platform: p}
		if prev, ok := r.entries[p.ID]; ok {
			e.state = prev.state
			e.state.SurgeMultiplier = surgeFor(e.state.Utilization(p.DailyCapacity))
		} else {
			e.state = buyer.Capacity{
				PlatformID:      p.ID,
				SurgeMultiplier: 1.0,
				Available:       true,
				UpdatedAt:       now,
			}
		}
		next[p.ID] = e
	}
	r.entries = next
	r.logger.Info("capacity roster refreshed", zap.Int("platforms", len(next)))
	return nil
}

// Reserve atomically claims one slot on the platform. It fails without
// mutating anything when the platform is unknown, unavailable, or at
// either cap; two concurrent reservations of the last slot cannot both
// succeed.
func (r *Registry) Reserve(ctx context.Context, platformID string) error {
	r.mu.Lock()
	e, ok := r.entries[platformID]
	if !ok {
		r.mu.Unlock()
		return domainerrors.NewNotFoundError("buyer platform").WithDetails(map[string]interface{}{"platform_id": platformID})
	}
	if !e.state.HasHeadroom(e.platform.DailyCapacity, e.platform.WeeklyCapacity) {
		r.mu.Unlock()
		return domainerrors.NewCapacityError(
			fmt.Sprintf("platform %s is at capacity", platformID))
	}
	e.state.DailyCount++
	e.state.WeeklyCount++
	e.state.SurgeMultiplier = surgeFor(e.state.Utilization(e.platform.DailyCapacity))
	e.state.UpdatedAt = r.clock.Now()
	r.mu.Unlock()

	if r.mirror != nil {
		if _, err := r.mirror.Increment(ctx, counterKey(platformID)); err != nil {
			r.logger.Warn("capacity counter mirror failed",
				zap.String("platform_id", platformID), zap.Error(err))
		}
	}
	return nil
}

// Release returns one slot, used when a reserved delivery ultimately fails.
func (r *Registry) Release(platformID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[platformID]
	if !ok {
		return
	}
	if e.state.DailyCount > 0 {
		e.state.DailyCount--
	}
	if e.state.WeeklyCount > 0 {
		e.state.WeeklyCount--
	}
	e.state.SurgeMultiplier = surgeFor(e.state.Utilization(e.platform.DailyCapacity))
	e.state.UpdatedAt = r.clock.Now()
}

// RolloverDaily zeroes every daily counter; scheduled at local midnight.
func (r *Registry) RolloverDaily() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for _, e := range r.entries {
		e.state.DailyCount = 0
		e.state.SurgeMultiplier = 1.0
		e.state.UpdatedAt = now
	}
}

// RolloverWeekly zeroes every weekly counter; scheduled Monday midnight.
func (r *Registry) RolloverWeekly() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for _, e := range r.entries {
		e.state.WeeklyCount = 0
		e.state.UpdatedAt = now
	}
}

// SetAvailable flips a platform's availability, used for buyer-initiated
// pauses.
func (r *Registry) SetAvailable(platformID string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[platformID]; ok {
		e.state.Available = available
		e.state.UpdatedAt = r.clock.Now()
	}
}

// Eligible returns candidates that can take the lead right now: available,
// under both caps, min score met, and accepting the borough. A non-empty
// preferred set restricts the result to those platform IDs.
func (r *Registry) Eligible(score int, borough string, preferred []string) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Candidate
	for _, e := range r.entries {
		p := e.platform
		if !preferredContains(preferred, p.ID) {
			continue
		}
		if score < p.MinLeadScore {
			continue
		}
		if !e.state.HasHeadroom(p.DailyCapacity, p.WeeklyCapacity) {
			continue
		}
		if !p.AcceptsBorough(borough) {
			continue
		}
		out = append(out, Candidate{Platform: p, Capacity: e.state})
	}
	return out
}

// Snapshot returns the current capacity for one platform.
func (r *Registry) Snapshot(platformID string) (buyer.Capacity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[platformID]
	if !ok {
		return buyer.Capacity{}, false
	}
	return e.state, true
}

// Utilization returns the daily fill fraction for one platform, 1.0 when
// unknown so callers price conservatively.
func (r *Registry) Utilization(platformID string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[platformID]
	if !ok {
		return 1.0
	}
	return e.state.Utilization(e.platform.DailyCapacity)
}

// TierUtilization aggregates daily utilization across a buyer tier.
// An empty tier reads as fully utilized.
func (r *Registry) TierUtilization(tier string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum float64
	var n int
	for _, e := range r.entries {
		if e.platform.Tier.String() != tier {
			continue
		}
		sum += e.state.Utilization(e.platform.DailyCapacity)
		n++
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

// HasExclusiveBuyer reports whether any exclusive buyer in the tier still
// has headroom.
func (r *Registry) HasExclusiveBuyer(tier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		p := e.platform
		if p.Exclusive && p.Tier.String() == tier &&
			e.state.HasHeadroom(p.DailyCapacity, p.WeeklyCapacity) {
			return true
		}
	}
	return false
}

// HasGeographicMatch reports whether any open buyer explicitly targets the
// borough or zip. Buyers with no geographic preference do not count.
func (r *Registry) HasGeographicMatch(borough, zipCode string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		p := e.platform
		if !e.state.HasHeadroom(p.DailyCapacity, p.WeeklyCapacity) {
			continue
		}
		for _, b := range p.Boroughs {
			if b == borough && borough != "" {
				return true
			}
		}
		for _, z := range p.ZipCodes {
			if z == zipCode && zipCode != "" {
				return true
			}
		}
	}
	return false
}

// surgeFor maps daily utilization to the surge multiplier stored on the
// capacity snapshot.
func surgeFor(utilization float64) float64 {
	switch {
	case utilization >= 0.9:
		return 1.3
	case utilization >= 0.75:
		return 1.2
	case utilization >= 0.5:
		return 1.1
	default:
		return 1.0
	}
}

// preferredContains treats an empty set as "no restriction".
func preferredContains(preferred []string, id string) bool {
	if len(preferred) == 0 {
		return true
	}
	for _, p := range preferred {
		if p == id {
			return true
		}
	}
	return false
}

func counterKey(platformID string) string {
	return "capacity:daily:" + platformID
}
