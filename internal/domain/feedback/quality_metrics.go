package feedback

import (
	"time"
)

// trendWindow bounds the rolling score trend kept per buyer.
const trendWindow = 30 * 24 * time.Hour

// QualityMetrics is the mutable per-buyer aggregate over all feedback ever
// received. Updates are O(1) incremental mean adjustments, never a recompute
// over history.
type QualityMetrics struct {
	BuyerID string `json:"buyer_id"`

	TotalFeedback int `json:"total_feedback"`
	Accepted      int `json:"accepted"`
	Rejected      int `json:"rejected"`
	Converted     int `json:"converted"`
	LowQuality    int `json:"low_quality"`

	// MeanScore is the running mean of 1-10 feedback scores.
	MeanScore float64 `json:"mean_score"`

	// RejectionReasons counts rejections per normalized reason category.
	RejectionReasons map[string]int `json:"rejection_reasons,omitempty"`

	// ScoreTrend holds (timestamp, score) points within the trailing 30
	// days, oldest first.
	ScoreTrend []TrendPoint `json:"score_trend,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TrendPoint is one observation in the rolling score trend.
type TrendPoint struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// NewQualityMetrics creates an empty aggregate for a buyer.
func NewQualityMetrics(buyerID string) *QualityMetrics {
	return &QualityMetrics{
		BuyerID:          buyerID,
		RejectionReasons: make(map[string]int),
	}
}

// Record folds one feedback event into the aggregate.
func (m *QualityMetrics) Record(f *Feedback) {
	m.TotalFeedback++
	// Incremental mean: mean += (x - mean) / n
	m.MeanScore += (float64(f.Score) - m.MeanScore) / float64(m.TotalFeedback)

	switch f.Type {
	case TypeAccepted:
		m.Accepted++
	case TypeRejected:
		m.Rejected++
		if f.Reason != "" {
			if m.RejectionReasons == nil {
				m.RejectionReasons = make(map[string]int)
			}
			m.RejectionReasons[f.Reason]++
		}
	case TypeConverted:
		m.Converted++
	case TypeLowQuality:
		m.LowQuality++
	}

	m.ScoreTrend = append(m.ScoreTrend, TrendPoint{At: f.SubmittedAt, Score: float64(f.Score)})
	m.pruneTrend(f.SubmittedAt)
	m.UpdatedAt = f.SubmittedAt
}

// AcceptanceRate is the all-time fraction of accepted or converted leads.
func (m *QualityMetrics) AcceptanceRate() float64 {
	if m.TotalFeedback == 0 {
		return 0
	}
	return float64(m.Accepted+m.Converted) / float64(m.TotalFeedback)
}

// DominantRejectionReason returns the most common rejection reason and its
// share of all rejections; ok is false when there are no rejections.
func (m *QualityMetrics) DominantRejectionReason() (reason string, share float64, ok bool) {
	if m.Rejected == 0 {
		return "", 0, false
	}
	best := ""
	bestCount := 0
	for r, n := range m.RejectionReasons {
		if n > bestCount || (n == bestCount && r < best) {
			best, bestCount = r, n
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, float64(bestCount) / float64(m.Rejected), true
}

func (m *QualityMetrics) pruneTrend(now time.Time) {
	cutoff := now.Add(-trendWindow)
	i := 0
	for i < len(m.ScoreTrend) && m.ScoreTrend[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		m.ScoreTrend = append(m.ScoreTrend[:0], m.ScoreTrend[i:]...)
	}
}
