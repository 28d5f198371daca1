package buyer

import "time"

// Capacity is the live admission state for one platform: how many leads it
// has taken today and this week against its configured caps. Counters are
// only ever mutated through the capacity registry's atomic operations.
type Capacity struct {
	PlatformID string `json:"platform_id"`

	DailyCount  int `json:"daily_count"`
	WeeklyCount int `json:"weekly_count"`

	SurgeMultiplier float64 `json:"surge_multiplier"`
	Available       bool    `json:"available"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Utilization returns daily fill as a 0.0-1.0+ fraction of the cap.
func (c *Capacity) Utilization(dailyCap int) float64 {
	if dailyCap <= 0 {
		return 1.0
	}
	return float64(c.DailyCount) / float64(dailyCap)
}

// HasHeadroom reports whether both the daily and weekly caps allow one more
// lead.
func (c *Capacity) HasHeadroom(dailyCap, weeklyCap int) bool {
	return c.Available && c.DailyCount < dailyCap && c.WeeklyCount < weeklyCap
}
