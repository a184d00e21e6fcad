// Package instrument implements the bytes/flops instrumentation engine.
//
// This package rewrites an ir.Module so that executing it counts memory
// traffic, floating-point and integer operations, calls, basic blocks and
// branches. It performs the following steps:
//
//  1. Validate options and build the function Selector
//  2. Classify every instruction of each selected function (Classifier)
//  3. Insert counter increments and runtime hook calls (inject.go)
//  4. With ThreadSafe, merge abutting mega-lock regions (elide.go)
//  5. Record the options and static counts as module globals
//
// The engine never owns counter storage: it emits abi.CounterRef handles
// and calls to the bf_* hooks, and a runtime (see internal/bf/api)
// resolves them at execution time.
//
// Example:
//
//	mod, _ := ir.LoadFile("axpy.yaml")
//	opts := instrument.DefaultOptions()
//	opts.ByFunc = true
//	result, err := instrument.Instrument(mod, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stats.Totals.Flops)
package instrument

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/ir"
)

// Result contains the instrumented module and statistics.
type Result struct {
	Module *ir.Module // Instrumented module (edited in place)
	Stats  Stats      // Instrumentation statistics
}

// Instrument rewrites m in place according to opts.
//
// Functions are instrumented in parallel, one goroutine per function,
// bounded by GOMAXPROCS. Declarations and functions rejected by the
// selector are left untouched.
//
// Parameters:
//   - m: Module to instrument
//   - opts: What to count
//
// Returns:
//   - *Result: The module and static statistics
//   - error: Option errors (joined with go-multierror), ErrAlreadyInstrumented,
//     or an *InstrumentationError for a malformed function. On an
//     InstrumentationError other functions may already have been edited.
//
// Thread Safety: m must not be used by anything else during the call.
func Instrument(m *ir.Module, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if _, ok := m.Global(abi.GlobalMergeCount); ok {
		return nil, ErrAlreadyInstrumented
	}
	opts = opts.normalized()

	sel, err := NewSelector(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	per := make([]FuncStats, len(m.Funcs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range m.Funcs {
		per[i].Name = f.Name
		if f.IsDeclaration() || !sel.Selectable(f.Name) {
			continue
		}
		g.Go(func() error {
			return newInjector(f, opts, &per[i]).run()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := newStats(per)
	for name, v := range opts.globals() {
		m.SetGlobal(name, v)
	}
	m.SetGlobal(abi.GlobalStaticLoads, int64(stats.Totals.Loads))
	m.SetGlobal(abi.GlobalStaticStores, int64(stats.Totals.Stores))
	m.SetGlobal(abi.GlobalStaticFlops, int64(stats.Totals.Flops))
	m.SetGlobal(abi.GlobalStaticOps, int64(stats.Totals.Ops))
	m.SetGlobal(abi.GlobalStaticCondBrs, int64(stats.Totals.CondBrs))

	for _, fs := range stats.Functions {
		if fs.Instrumented {
			opts.Logger.Debug().Object("stats", fs).Msg("function instrumented")
		} else {
			opts.Logger.Debug().Str("func", fs.Name).Msg("function skipped")
		}
	}
	opts.Logger.Info().
		Str("module", m.Name).
		Int("instrumented", stats.Instrumented).
		Int("skipped", stats.Skipped).
		Object("totals", stats.Totals).
		Msg("module instrumented")

	return &Result{Module: m, Stats: stats}, nil
}
