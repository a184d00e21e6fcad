package instrument

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/kolkov/bytesflops/internal/bf/abi"
)

// ErrConflictingFilters is returned when both an include list and an
// exclude list are given.
var ErrConflictingFilters = errors.New("include and exclude function lists are mutually exclusive")

// Options selects what the instrumenter counts.
//
// The zero value instruments every function for program-wide totals only.
// Use DefaultOptions for a value with a working logger and merge count.
type Options struct {
	// EveryBB reports at every basic block (subject to MergeCount) instead
	// of once at program end.
	EveryBB bool

	// ByFunc keys tallies by function name.
	ByFunc bool

	// CallStack keys tallies by the full call chain. Implies ByFunc.
	CallStack bool

	// UniqueBytes enables the unique-byte tracker.
	UniqueBytes bool

	// AllOps classifies every binary operation, not only floating-point ones.
	AllOps bool

	// Types enables per-data-type load and store counters. Implies AllOps.
	Types bool

	// InstMix enables the instruction-mix histogram.
	InstMix bool

	// MergeCount reports only every Nth basic-block boundary. Must be >= 1.
	MergeCount int

	// Include restricts instrumentation to the named functions. Entries are
	// raw comma-split tokens; see ParseFunctionNames.
	Include []string

	// Exclude instruments every function except the named ones.
	Exclude []string

	// ThreadSafe wraps every counter update in the mega-lock.
	ThreadSafe bool

	// Vectors enables vector-operation tallies.
	Vectors bool

	// ReuseDist selects which accesses feed the reuse-distance tracker.
	ReuseDist abi.AccessKind

	// MaxReuseDist caps reuse-distance tracking. Zero means unbounded.
	MaxReuseDist int64

	// Logger receives per-function debug events and the run summary.
	Logger zerolog.Logger
}

// DefaultOptions returns options that count totals only.
func DefaultOptions() Options {
	return Options{
		MergeCount: 1,
		Logger:     zerolog.Nop(),
	}
}

// Validate reports every configuration error at once.
func (o *Options) Validate() error {
	var result *multierror.Error
	if len(ParseFunctionNames(o.Include)) > 0 && len(ParseFunctionNames(o.Exclude)) > 0 {
		result = multierror.Append(result, ErrConflictingFilters)
	}
	if o.MergeCount < 1 {
		result = multierror.Append(result, fmt.Errorf("merge count must be at least 1, got %d", o.MergeCount))
	}
	if o.ReuseDist&^abi.AccessBoth != 0 {
		result = multierror.Append(result, fmt.Errorf("invalid reuse-distance access kind %d", o.ReuseDist))
	}
	if o.MaxReuseDist < 0 {
		result = multierror.Append(result, fmt.Errorf("max reuse distance must not be negative, got %d", o.MaxReuseDist))
	}
	return result.ErrorOrNil()
}

// normalized applies the implications between options.
func (o Options) normalized() Options {
	if o.Types {
		o.AllOps = true
	}
	if o.CallStack {
		o.ByFunc = true
	}
	return o
}

// globals returns the module globals that record o.
func (o Options) globals() map[string]int64 {
	b := func(v bool) int64 {
		if v {
			return 1
		}
		return 0
	}
	return map[string]int64{
		abi.GlobalEveryBB:      b(o.EveryBB),
		abi.GlobalByFunc:       b(o.ByFunc),
		abi.GlobalCallStack:    b(o.CallStack),
		abi.GlobalUniqueBytes:  b(o.UniqueBytes),
		abi.GlobalAllOps:       b(o.AllOps),
		abi.GlobalTypes:        b(o.Types),
		abi.GlobalInstMix:      b(o.InstMix),
		abi.GlobalMergeCount:   int64(o.MergeCount),
		abi.GlobalThreadSafe:   b(o.ThreadSafe),
		abi.GlobalVectors:      b(o.Vectors),
		abi.GlobalReuseDist:    int64(o.ReuseDist),
		abi.GlobalMaxReuseDist: o.MaxReuseDist,
	}
}
