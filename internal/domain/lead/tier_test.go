package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierForScore(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  QualityTier
	}{
		{"zero", 0, TierUnqualified},
		{"just below basic", 49, TierUnqualified},
		{"basic threshold", 50, TierBasic},
		{"just below standard", 69, TierBasic},
		{"standard threshold", 70, TierStandard},
		{"just below premium", 84, TierStandard},
		{"premium threshold", 85, TierPremium},
		{"max", 100, TierPremium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierForScore(tt.score))
		})
	}
}

func TestQualityTierRoundTrip(t *testing.T) {
	for _, tier := range []QualityTier{TierUnqualified, TierBasic, TierStandard, TierPremium} {
		data, err := tier.MarshalJSON()
		assert.NoError(t, err)

		var parsed QualityTier
		assert.NoError(t, parsed.UnmarshalJSON(data))
		assert.Equal(t, tier, parsed)
	}
}

func TestQualified(t *testing.T) {
	assert.False(t, TierUnqualified.Qualified())
	assert.True(t, TierBasic.Qualified())
	assert.True(t, TierStandard.Qualified())
	assert.True(t, TierPremium.Qualified())
}
