package scanner

import (
	"sync"
	"time"
)

// DebounceCache requires a route to be observed profitable on two scan
// cycles separated by at least the hold time before it becomes actionable.
// Order-book snapshots are noisy and one-tick spreads are usually stale by
// the time an order could be placed.
//
// Entries are keyed by the route hash and never evicted; the key set is the
// small, stable route universe discovered at startup. Each key has a single
// writer per cycle (one evaluation per route), but the map is guarded anyway
// because evaluations of different routes run concurrently.
type DebounceCache struct {
	mu       sync.Mutex
	holdTime time.Duration
	seen     map[string]time.Time
}

// NewDebounceCache creates a DebounceCache with the given hold time.
func NewDebounceCache(holdTime time.Duration) *DebounceCache {
	return &DebounceCache{
		holdTime: holdTime,
		seen:     make(map[string]time.Time),
	}
}

// CheckAndUpdate records a profitable observation of the route and reports
// whether it is actionable. The first observation records its timestamp and
// returns false. A later observation at least holdTime after the recorded
// one returns true; the timestamp is deliberately not refreshed in either
// the waiting or the actionable branch, so repeated actionable signals in
// quick succession remain possible, bounded by the scan interval.
func (d *DebounceCache) CheckAndUpdate(routeHash string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.seen[routeHash]
	if !ok {
		d.seen[routeHash] = now
		return false
	}
	return now.Sub(prev) >= d.holdTime
}

// Len returns the number of tracked routes.
func (d *DebounceCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
