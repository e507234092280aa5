package scrape

import "sync"

// DefaultResponseLogLimit bounds a ResponseLog created with a non-positive limit.
const DefaultResponseLogLimit = 256

// ResponseLog is an append-only, bounded record of network responses. It is
// filled from the browser's event goroutine and read after navigation
// completes. Entries keep arrival order; once full, later entries are dropped.
type ResponseLog struct {
	mu      sync.Mutex
	limit   int
	entries []ResponseRecord
	dropped int
}

// NewResponseLog returns an empty log holding at most limit entries.
func NewResponseLog(limit int) *ResponseLog {
	if limit <= 0 {
		limit = DefaultResponseLogLimit
	}
	return &ResponseLog{limit: limit}
}

// Append records rec and reports whether it was kept.
func (l *ResponseLog) Append(rec ResponseRecord) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.limit {
		l.dropped++
		return false
	}
	l.entries = append(l.entries, rec)
	return true
}

// Snapshot returns a copy of the recorded entries in arrival order.
func (l *ResponseLog) Snapshot() []ResponseRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ResponseRecord(nil), l.entries...)
}

// Dropped reports how many entries were discarded because the log was full.
func (l *ResponseLog) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
