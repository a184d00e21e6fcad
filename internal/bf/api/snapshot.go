package api

import (
	"sort"

	"github.com/kolkov/bytesflops/internal/bf/callstack"
	"github.com/kolkov/bytesflops/internal/bf/counters"
	"github.com/kolkov/bytesflops/internal/bf/megalock"
	"github.com/kolkov/bytesflops/internal/bf/reusedist"
)

// Snapshot is a consistent copy of everything the runtime aggregated.
type Snapshot struct {
	Options     Options               `json:"options"`
	Counters    map[string]uint64     `json:"counters"`
	Functions   []FuncSnapshot        `json:"functions,omitempty"`
	Vectors     []VectorTally         `json:"vectors,omitempty"`
	ReuseDist   *reusedist.Summary    `json:"reuse_distance,omitempty"`
	UniqueBytes uint64                `json:"unique_bytes,omitempty"`
	Reports     uint64                `json:"reports"`
	MegaLock    megalock.Stats        `json:"mega_lock"`
	Cadence     counters.CadenceStats `json:"cadence"`
}

// FuncSnapshot is the tally of one function or call chain.
type FuncSnapshot struct {
	Key         string            `json:"key"`
	Depth       int               `json:"depth"`
	Invocations uint64            `json:"invocations"`
	Counters    map[string]uint64 `json:"counters"`
	UniqueBytes uint64            `json:"unique_bytes,omitempty"`
}

// VectorTally counts vector operations of one shape.
type VectorTally struct {
	Lanes    int    `json:"lanes"`
	ElemBits int    `json:"elem_bits"`
	Flop     bool   `json:"flop"`
	Count    uint64 `json:"count"`
}

// Snapshot copies the aggregated state. It must not be called from
// instrumented code while that code holds the mega-lock.
func (r *Runtime) Snapshot() *Snapshot {
	r.lock.Acquire()
	defer r.lock.Release()
	done := r.exclusive()
	defer done()

	s := &Snapshot{
		Options:  r.opts,
		Counters: r.global.Named(),
		Reports:  r.events,
		MegaLock: r.lock.Stats(),
		Cadence:  r.cadence.Stats(),
	}
	for _, fs := range r.funcs {
		f := FuncSnapshot{
			Key:         callstack.FormatChain(fs.chain),
			Depth:       len(fs.chain),
			Invocations: fs.invocations,
			Counters:    fs.tally.Named(),
		}
		if fs.unique != nil {
			f.UniqueBytes = fs.unique.Count()
		}
		s.Functions = append(s.Functions, f)
	}
	sort.Slice(s.Functions, func(i, j int) bool { return s.Functions[i].Key < s.Functions[j].Key })

	for k, n := range r.vectors {
		s.Vectors = append(s.Vectors, VectorTally{Lanes: k.lanes, ElemBits: k.elemBits, Flop: k.flop, Count: n})
	}
	sort.Slice(s.Vectors, func(i, j int) bool {
		a, b := s.Vectors[i], s.Vectors[j]
		if a.Lanes != b.Lanes {
			return a.Lanes < b.Lanes
		}
		if a.ElemBits != b.ElemBits {
			return a.ElemBits < b.ElemBits
		}
		return !a.Flop && b.Flop
	})

	if r.reuse != nil {
		sum := r.reuse.Histogram().Summary()
		s.ReuseDist = &sum
	}
	if r.unique != nil {
		s.UniqueBytes = r.unique.Count()
	}
	return s
}

// Function returns the snapshot entry with the given key, or nil.
func (s *Snapshot) Function(key string) *FuncSnapshot {
	for i := range s.Functions {
		if s.Functions[i].Key == key {
			return &s.Functions[i]
		}
	}
	return nil
}
