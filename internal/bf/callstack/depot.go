package callstack

import (
	"hash/fnv"
	"strings"
	"sync"
)

// Depot interns call chains so per-chain tallies can be keyed by a
// 64-bit handle instead of a slice.
//
// Design:
//   - Hash-based deduplication (FNV-1a over frame names and call sites)
//   - sync.Map storage (lock-free reads, thread-safe inserts)
//   - Chains are stored by value; callers may keep mutating their stacks
//
// Thread Safety: All methods are safe for concurrent calls.
type Depot struct {
	chains sync.Map // uint64 → []Frame
}

// NewDepot returns an empty depot.
func NewDepot() *Depot {
	return &Depot{}
}

// Intern stores chain (outermost frame first) and returns its handle.
// Identical chains always yield the same handle. An empty chain is 0.
func (d *Depot) Intern(chain []Frame) uint64 {
	if len(chain) == 0 {
		return 0
	}
	h := hashChain(chain)
	if _, ok := d.chains.Load(h); ok {
		return h
	}
	cp := append([]Frame(nil), chain...)
	d.chains.LoadOrStore(h, cp)
	return h
}

// Lookup returns the chain stored under h, or nil.
func (d *Depot) Lookup(h uint64) []Frame {
	if h == 0 {
		return nil
	}
	v, ok := d.chains.Load(h)
	if !ok {
		return nil
	}
	return v.([]Frame)
}

// Len returns the number of distinct chains stored.
//
// Performance: O(N). Do not call this on a hot path.
func (d *Depot) Len() int {
	n := 0
	d.chains.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// hashChain computes an FNV-1a hash of every frame. A zero byte separates
// fields so that ("ab", "c") and ("a", "bc") hash differently.
func hashChain(chain []Frame) uint64 {
	h := fnv.New64a()
	sep := []byte{0}
	for _, f := range chain {
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write(sep)
		_, _ = h.Write([]byte(f.CallSite))
		_, _ = h.Write(sep)
	}
	sum := h.Sum64()
	if sum == 0 {
		// 0 is reserved for the empty chain.
		sum = 1
	}
	return sum
}

// FormatChain renders chain outermost first, e.g. "main > axpy@main#7".
// Call sites are shown on the callee they led to.
func FormatChain(chain []Frame) string {
	var sb strings.Builder
	for i, f := range chain {
		if i > 0 {
			sb.WriteString(" > ")
		}
		sb.WriteString(f.Name)
		if f.CallSite != "" {
			sb.WriteString("@")
			sb.WriteString(f.CallSite)
		}
	}
	return sb.String()
}
