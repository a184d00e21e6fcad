package instrument

import (
	"github.com/rs/zerolog"
)

// FuncStats holds the static counts for one function.
//
// Instruction counts (Loads through Calls) describe the original code.
// Increments, HookCalls and LockPairs describe what was inserted.
//
//nolint:revive // FuncStats reads better than Func at call sites
type FuncStats struct {
	Name         string `json:"name,omitempty"`
	Instrumented bool   `json:"instrumented"`
	Blocks       int    `json:"blocks"`
	Loads        int    `json:"loads"`
	Stores       int    `json:"stores"`
	Flops        int    `json:"flops"`
	Ops          int    `json:"ops"`
	VectorOps    int    `json:"vector_ops"`
	CondBrs      int    `json:"cond_brs"`
	Calls        int    `json:"calls"`
	Increments   int    `json:"increments"`
	HookCalls    int    `json:"hook_calls"`
	LockPairs    int    `json:"lock_pairs"`
	LocksElided  int    `json:"locks_elided"`
}

// Add accumulates o into s. Name and Instrumented are left alone.
func (s *FuncStats) Add(o FuncStats) {
	s.Blocks += o.Blocks
	s.Loads += o.Loads
	s.Stores += o.Stores
	s.Flops += o.Flops
	s.Ops += o.Ops
	s.VectorOps += o.VectorOps
	s.CondBrs += o.CondBrs
	s.Calls += o.Calls
	s.Increments += o.Increments
	s.HookCalls += o.HookCalls
	s.LockPairs += o.LockPairs
	s.LocksElided += o.LocksElided
}

// MarshalZerologObject lets a FuncStats be logged with Object.
func (s FuncStats) MarshalZerologObject(e *zerolog.Event) {
	if s.Name != "" {
		e.Str("func", s.Name)
	}
	e.Int("blocks", s.Blocks).
		Int("loads", s.Loads).
		Int("stores", s.Stores).
		Int("flops", s.Flops).
		Int("ops", s.Ops).
		Int("vector_ops", s.VectorOps).
		Int("cond_brs", s.CondBrs).
		Int("calls", s.Calls).
		Int("increments", s.Increments).
		Int("locks_elided", s.LocksElided)
}

// Stats summarizes a module's instrumentation.
type Stats struct {
	Functions    []FuncStats `json:"functions"`
	Totals       FuncStats   `json:"totals"`
	Instrumented int         `json:"instrumented"`
	Skipped      int         `json:"skipped"`
}

func newStats(per []FuncStats) Stats {
	s := Stats{Functions: per}
	for _, fs := range per {
		if !fs.Instrumented {
			s.Skipped++
			continue
		}
		s.Instrumented++
		s.Totals.Add(fs)
	}
	return s
}

// Func returns the stats for the named function.
func (s *Stats) Func(name string) (FuncStats, bool) {
	for _, fs := range s.Functions {
		if fs.Name == name {
			return fs, true
		}
	}
	return FuncStats{}, false
}
