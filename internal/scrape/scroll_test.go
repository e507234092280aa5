package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrollTrackerStopsAfterThreeUnchanged(t *testing.T) {
	t.Parallel()

	tr := NewScrollTracker(3)
	assert.False(t, tr.Observe(1000))
	assert.False(t, tr.Observe(1000))
	assert.False(t, tr.Observe(1000))
	assert.True(t, tr.Observe(1000))
}

func TestScrollTrackerResetsOnGrowth(t *testing.T) {
	t.Parallel()

	tr := NewScrollTracker(3)
	heights := []int64{500, 500, 500, 900, 900, 900, 1400, 1400}
	for _, h := range heights {
		assert.False(t, tr.Observe(h), "height %d", h)
	}
	assert.Equal(t, 1, tr.Unchanged())
	assert.False(t, tr.Observe(1400))
	assert.True(t, tr.Observe(1400))
}

func TestScrollTrackerZeroHeightCountsFromStart(t *testing.T) {
	t.Parallel()

	tr := NewScrollTracker(0)
	assert.False(t, tr.Observe(0))
	assert.False(t, tr.Observe(0))
	assert.True(t, tr.Observe(0))
}
