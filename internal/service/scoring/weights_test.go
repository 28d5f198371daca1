package scoring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightTableNormalizes(t *testing.T) {
	table := NewWeightTable(Weights{
		BaseQualification: 2,
		Behavioral:        1,
		MarketTiming:      1,
		NYCIntelligence:   0, // floored at minWeight before normalizing
	})

	w := table.Snapshot()
	sum := w.BaseQualification + w.Behavioral + w.MarketTiming + w.NYCIntelligence
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.GreaterOrEqual(t, w.NYCIntelligence, 0.01)
	assert.Equal(t, 1, w.Version)
}

func TestAdjustPublishesNewVersion(t *testing.T) {
	table := NewWeightTable(DefaultWeights())
	at := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	before := table.Snapshot()
	after, err := table.Adjust(FactorBehavioral, 0.05, at)
	require.NoError(t, err)

	assert.Equal(t, before.Version+1, after.Version)
	assert.Equal(t, at, after.PublishedAt)
	assert.Greater(t, after.Behavioral, before.Behavioral)

	// The previous snapshot is untouched.
	assert.InDelta(t, 0.30, before.Behavioral, 1e-9)
}

func TestAdjustUnknownFactor(t *testing.T) {
	table := NewWeightTable(DefaultWeights())
	_, err := table.Adjust("charisma", 0.05, time.Now())
	assert.Error(t, err)
	assert.Equal(t, 1, table.Snapshot().Version, "failed adjust must not publish")
}

func TestWeightTableConcurrentReaders(t *testing.T) {
	// One adjuster (the analyzer is the only writer in production) with many
	// concurrent scoring readers.
	table := NewWeightTable(DefaultWeights())
	const adjustments, readers = 200, 8

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < adjustments; j++ {
				w := table.Snapshot()
				sum := w.BaseQualification + w.Behavioral + w.MarketTiming + w.NYCIntelligence
				// Readers must always see a whole, normalized snapshot.
				assert.InDelta(t, 1.0, sum, 1e-6)
			}
		}()
	}
	for j := 0; j < adjustments; j++ {
		_, err := table.Adjust(FactorMarketTiming, 0.001, time.Now())
		assert.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, 1+adjustments, table.Snapshot().Version)
}
