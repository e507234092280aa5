package scrape

// DefaultStableChecks is the number of consecutive unchanged scroll heights
// that ends the infinite-scroll loop.
const DefaultStableChecks = 3

// ScrollTracker decides when an infinitely scrolling page has stopped
// growing. The previous height starts at zero.
type ScrollTracker struct {
	threshold int
	last      int64
	unchanged int
}

// NewScrollTracker returns a tracker that fires after threshold consecutive
// unchanged observations.
func NewScrollTracker(threshold int) *ScrollTracker {
	if threshold <= 0 {
		threshold = DefaultStableChecks
	}
	return &ScrollTracker{threshold: threshold}
}

// Observe records the current scroll height and reports whether the loop
// should stop. Any change resets the unchanged counter.
func (t *ScrollTracker) Observe(height int64) bool {
	if height == t.last {
		t.unchanged++
	} else {
		t.unchanged = 0
	}
	t.last = height
	return t.unchanged >= t.threshold
}

// Unchanged returns the current run of unchanged observations.
func (t *ScrollTracker) Unchanged() int {
	return t.unchanged
}
