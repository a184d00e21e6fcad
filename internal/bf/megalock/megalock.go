// Package megalock implements the single process-wide lock that
// serializes counter updates when instrumentation is thread-safe.
//
// The instrumenter always emits Acquire and Release as a pair around each
// protected region, so the lock itself carries no ownership checks. A
// disabled lock turns both calls into no-ops, which is what runs when the
// program was instrumented without thread safety.
//
// Thread Safety: All methods are safe for concurrent calls.
package megalock

import (
	"sync"
	"sync/atomic"
)

// Lock is the mega-lock.
type Lock struct {
	mu      sync.Mutex
	enabled bool
	stats   Stats
}

// Stats counts lock activity.
type Stats struct {
	// Acquisitions counts successful Acquire calls on an enabled lock.
	Acquisitions uint64 `json:"acquisitions"`

	// Contended counts acquisitions that had to wait for another holder.
	Contended uint64 `json:"contended"`
}

// New returns a lock. When enabled is false every operation is a no-op.
func New(enabled bool) *Lock {
	return &Lock{enabled: enabled}
}

// Enabled reports whether the lock serializes anything.
func (l *Lock) Enabled() bool {
	return l.enabled
}

// Acquire takes the lock, blocking while another goroutine holds it.
func (l *Lock) Acquire() {
	if !l.enabled {
		return
	}
	if !l.mu.TryLock() {
		atomic.AddUint64(&l.stats.Contended, 1)
		l.mu.Lock()
	}
	atomic.AddUint64(&l.stats.Acquisitions, 1)
}

// Release drops the lock.
func (l *Lock) Release() {
	if !l.enabled {
		return
	}
	l.mu.Unlock()
}

// With runs fn while holding the lock.
func (l *Lock) With(fn func()) {
	l.Acquire()
	defer l.Release()
	fn()
}

// Stats returns a copy of the lock statistics.
func (l *Lock) Stats() Stats {
	return Stats{
		Acquisitions: atomic.LoadUint64(&l.stats.Acquisitions),
		Contended:    atomic.LoadUint64(&l.stats.Contended),
	}
}
