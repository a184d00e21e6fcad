package api

import (
	"github.com/kolkov/bytesflops/internal/bf/abi"
)

// Options configures a Runtime. They mirror the instrumentation options
// the program was built with; the instrumenter records them as module
// globals so an executor can rebuild them with OptionsFromGlobals.
type Options struct {
	// EveryBB makes report calls produce events (subject to MergeCount).
	EveryBB bool `json:"every_bb"`

	// ByFunc keys per-function tallies by function name.
	ByFunc bool `json:"by_func"`

	// CallStack keys per-function tallies by the full frame chain.
	// Implies ByFunc.
	CallStack bool `json:"call_stack"`

	// UniqueBytes enables the unique-byte tracker.
	UniqueBytes bool `json:"unique_bytes"`

	// ThreadSafe enables the mega-lock.
	ThreadSafe bool `json:"thread_safe"`

	// Vectors enables the vector-operation histogram.
	Vectors bool `json:"vectors"`

	// MergeCount turns only every Nth report call into an event.
	// Zero is treated as one.
	MergeCount uint64 `json:"merge_count"`

	// ReuseDist selects which accesses feed the reuse-distance tracker.
	// Zero disables it.
	ReuseDist abi.AccessKind `json:"reuse_dist"`

	// MaxReuseDist caps reuse-distance tracking. Zero means unbounded.
	MaxReuseDist uint64 `json:"max_reuse_dist"`
}

func (o Options) normalize() Options {
	if o.CallStack {
		o.ByFunc = true
	}
	if o.MergeCount == 0 {
		o.MergeCount = 1
	}
	return o
}

// OptionsFromGlobals rebuilds Options from the bf_* module globals written
// by the instrumenter. Missing globals keep their zero value.
func OptionsFromGlobals(globals map[string]int64) Options {
	flag := func(name string) bool { return globals[name] != 0 }
	count := func(name string) uint64 {
		if v := globals[name]; v > 0 {
			return uint64(v)
		}
		return 0
	}
	return Options{
		EveryBB:      flag(abi.GlobalEveryBB),
		ByFunc:       flag(abi.GlobalByFunc),
		CallStack:    flag(abi.GlobalCallStack),
		UniqueBytes:  flag(abi.GlobalUniqueBytes),
		ThreadSafe:   flag(abi.GlobalThreadSafe),
		Vectors:      flag(abi.GlobalVectors),
		MergeCount:   count(abi.GlobalMergeCount),
		ReuseDist:    abi.AccessKind(count(abi.GlobalReuseDist)),
		MaxReuseDist: count(abi.GlobalMaxReuseDist),
	}.normalize()
}
