// Package counters stores the runtime's 64-bit counters.
//
// A Tally is one complete set of counters: the named scalars, the
// per-data-type memory instruction counts and the instruction-mix
// histogram. The runtime keeps one Tally for the current basic block,
// one for the program total, one per report window and one per function
// key. Every counter is addressed through an abi.CounterRef so that new
// type categories or scalars only extend an enumeration.
//
// Thread Safety: Tally methods are NOT synchronized except AddAtomic and
// DrainInto, which use atomic operations on individual counters. Callers
// needing a consistent multi-counter view must serialize externally.
package counters

import (
	"sync/atomic"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/ir"
)

// Tally is a full set of counters.
type Tally struct {
	Scalars  [abi.NumScalars]uint64
	MemTypes [abi.NumMemTypeSlots]uint64
	InstMix  [ir.NumOpcodes]uint64
}

// slot returns the storage behind ref, or nil when ref is out of range.
func (t *Tally) slot(ref abi.CounterRef) *uint64 {
	switch ref.Set {
	case abi.SetScalar:
		if ref.Index >= 0 && ref.Index < len(t.Scalars) {
			return &t.Scalars[ref.Index]
		}
	case abi.SetMemType:
		if ref.Index >= 0 && ref.Index < len(t.MemTypes) {
			return &t.MemTypes[ref.Index]
		}
	case abi.SetInstMix:
		if ref.Index >= 0 && ref.Index < len(t.InstMix) {
			return &t.InstMix[ref.Index]
		}
	}
	return nil
}

// Add increments the counter behind ref. Unknown refs are ignored.
func (t *Tally) Add(ref abi.CounterRef, delta uint64) {
	if p := t.slot(ref); p != nil {
		*p += delta
	}
}

// AddAtomic increments the counter behind ref atomically.
func (t *Tally) AddAtomic(ref abi.CounterRef, delta uint64) {
	if p := t.slot(ref); p != nil {
		atomic.AddUint64(p, delta)
	}
}

// Get returns the counter behind ref.
func (t *Tally) Get(ref abi.CounterRef) uint64 {
	if p := t.slot(ref); p != nil {
		return *p
	}
	return 0
}

// Scalar returns a named scalar counter.
func (t *Tally) Scalar(s abi.Scalar) uint64 {
	return t.Get(s.Ref())
}

// Merge adds every counter of o into t.
func (t *Tally) Merge(o *Tally) {
	for i, v := range o.Scalars {
		t.Scalars[i] += v
	}
	for i, v := range o.MemTypes {
		t.MemTypes[i] += v
	}
	for i, v := range o.InstMix {
		t.InstMix[i] += v
	}
}

// DrainInto atomically moves every counter of t into dsts, leaving t
// zero. Increments racing with the drain land either in this drain or in
// the next one, never in both and never nowhere.
func (t *Tally) DrainInto(dsts ...*Tally) {
	drain := func(src *uint64, idx func(*Tally) *uint64) {
		v := atomic.SwapUint64(src, 0)
		if v == 0 {
			return
		}
		for _, d := range dsts {
			if d != nil {
				*idx(d) += v
			}
		}
	}
	for i := range t.Scalars {
		i := i
		drain(&t.Scalars[i], func(d *Tally) *uint64 { return &d.Scalars[i] })
	}
	for i := range t.MemTypes {
		i := i
		drain(&t.MemTypes[i], func(d *Tally) *uint64 { return &d.MemTypes[i] })
	}
	for i := range t.InstMix {
		i := i
		drain(&t.InstMix[i], func(d *Tally) *uint64 { return &d.InstMix[i] })
	}
}

// Reset zeroes every counter.
func (t *Tally) Reset() {
	*t = Tally{}
}

// IsZero reports whether every counter is zero.
func (t *Tally) IsZero() bool {
	return *t == Tally{}
}

// Clone returns a copy of t.
func (t *Tally) Clone() *Tally {
	c := *t
	return &c
}

// Named returns the non-zero counters keyed by their printable names.
func (t *Tally) Named() map[string]uint64 {
	out := make(map[string]uint64)
	for i, v := range t.Scalars {
		if v != 0 {
			out[abi.Scalar(i).String()] = v
		}
	}
	for i, v := range t.MemTypes {
		if v != 0 {
			out[abi.CounterRef{Set: abi.SetMemType, Index: i}.String()] = v
		}
	}
	for i, v := range t.InstMix {
		if v != 0 {
			out["mix_"+ir.Opcode(i).String()] = v
		}
	}
	return out
}
