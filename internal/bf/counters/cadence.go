package counters

import (
	"sync/atomic"
)

// Cadence decides which report calls turn into report events.
//
// With a merge count of N, only every Nth call to Tick returns true. The
// counters themselves are never touched: merging changes when totals are
// reported, not what they sum to.
//
// Algorithm: an atomic position counter incremented on every tick, with
// modulo selection. With N <= 1 every tick fires and no counter is kept.
//
// Thread Safety: All methods are safe for concurrent calls.
type Cadence struct {
	every uint64
	pos   uint64
	stats CadenceStats
}

// CadenceStats counts ticks and fired events for monitoring.
type CadenceStats struct {
	// Ticks counts every call to Tick.
	Ticks uint64 `json:"ticks"`

	// Fired counts ticks that produced a report event.
	Fired uint64 `json:"fired"`

	// Pending counts ticks absorbed since the last event.
	Pending uint64 `json:"pending"`
}

// NewCadence returns a cadence firing every n ticks. Zero is treated as one.
func NewCadence(n uint64) *Cadence {
	if n == 0 {
		n = 1
	}
	return &Cadence{every: n}
}

// Tick records one block boundary and reports whether it should fire.
func (c *Cadence) Tick() bool {
	atomic.AddUint64(&c.stats.Ticks, 1)
	if c.every <= 1 {
		atomic.AddUint64(&c.stats.Fired, 1)
		return true
	}
	pos := atomic.AddUint64(&c.pos, 1)
	if pos%c.every == 0 {
		atomic.AddUint64(&c.stats.Fired, 1)
		return true
	}
	return false
}

// Every returns the merge count.
func (c *Cadence) Every() uint64 {
	return c.every
}

// Pending returns how many ticks have been absorbed since the last event.
func (c *Cadence) Pending() uint64 {
	if c.every <= 1 {
		return 0
	}
	return atomic.LoadUint64(&c.pos) % c.every
}

// Stats returns a copy of the tick statistics.
func (c *Cadence) Stats() CadenceStats {
	return CadenceStats{
		Ticks:   atomic.LoadUint64(&c.stats.Ticks),
		Fired:   atomic.LoadUint64(&c.stats.Fired),
		Pending: c.Pending(),
	}
}
