// Package reusedist computes memory reuse distances.
//
// The reuse distance of an access to address A is the number of distinct
// addresses touched since the previous access to A. The first access to an
// address has no distance. With a configured maximum M, distances above M
// are reported as ExceedsMax and the tracker never holds more than M+1
// addresses in its window.
//
// Algorithm:
//   - Every access gets a fresh timestamp from a monotonic clock
//   - The window is an order-statistics treap of the last-access timestamp
//     of each tracked address
//   - The distance of A is the number of timestamps newer than A's previous
//     one, a single O(log n) rank query
//   - When the window grows past M+1 entries the oldest address is evicted
//     and remembered, so its next access reports ExceedsMax instead of
//     looking like a first touch
//
// Memory: the window, its treap and the timestamp maps stay within M+1
// entries. The set of evicted addresses is not capped. It costs one map
// entry per distinct address ever evicted, so it grows with the program's
// footprint rather than its access count. Dropping it would turn every
// long reuse into a false first touch.
//
// Thread Safety: Tracker is NOT synchronized. The runtime serializes calls
// through the mega-lock or its own internal mutex.
package reusedist

import (
	"fmt"
)

// Outcome classifies a single access.
type Outcome uint8

const (
	// FirstTouch means the address had never been accessed before.
	FirstTouch Outcome = iota
	// Distance means the returned distance is exact.
	Distance
	// ExceedsMax means the distance is larger than the configured maximum.
	ExceedsMax
)

func (o Outcome) String() string {
	switch o {
	case FirstTouch:
		return "first_touch"
	case Distance:
		return "distance"
	case ExceedsMax:
		return "exceeds_max"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Tracker records accesses and builds a reuse-distance histogram.
type Tracker struct {
	max    uint64
	clock  uint64
	last   map[uint64]uint64   // address → last-access timestamp
	byTime map[uint64]uint64   // timestamp → address, for eviction
	seen   map[uint64]struct{} // evicted addresses; grows with the footprint
	window *treap
	hist   *Histogram
}

// New returns a tracker. A max of 0 means distances are unbounded.
func New(max uint64) *Tracker {
	return &Tracker{
		max:    max,
		last:   make(map[uint64]uint64),
		byTime: make(map[uint64]uint64),
		seen:   make(map[uint64]struct{}),
		window: newTreap(),
		hist:   NewHistogram(),
	}
}

// Max returns the configured maximum distance, 0 if unbounded.
func (t *Tracker) Max() uint64 {
	return t.max
}

// Access records an access to addr and returns its reuse distance.
// The distance is only meaningful when the outcome is Distance.
func (t *Tracker) Access(addr uint64) (uint64, Outcome) {
	t.clock++
	now := t.clock

	var dist uint64
	outcome := FirstTouch
	if prev, ok := t.last[addr]; ok {
		dist = uint64(t.window.CountGreater(prev))
		t.window.Delete(prev)
		delete(t.byTime, prev)
		outcome = Distance
		if t.max > 0 && dist > t.max {
			outcome = ExceedsMax
		}
	} else if _, ok := t.seen[addr]; ok {
		delete(t.seen, addr)
		outcome = ExceedsMax
	}

	t.window.Insert(now)
	t.last[addr] = now
	t.byTime[now] = addr
	if t.max > 0 && uint64(t.window.Len()) > t.max+1 {
		t.evictOldest()
	}

	t.hist.Record(dist, outcome)
	return dist, outcome
}

func (t *Tracker) evictOldest() {
	ts, ok := t.window.Min()
	if !ok {
		return
	}
	addr := t.byTime[ts]
	t.window.Delete(ts)
	delete(t.byTime, ts)
	delete(t.last, addr)
	t.seen[addr] = struct{}{}
}

// WindowLen returns the number of addresses currently tracked exactly.
func (t *Tracker) WindowLen() int {
	return t.window.Len()
}

// Histogram returns the live histogram.
func (t *Tracker) Histogram() *Histogram {
	return t.hist
}

// Reset forgets every access.
func (t *Tracker) Reset() {
	*t = *New(t.max)
}
