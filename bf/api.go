// Package bf is the public runtime surface of bytesflops.
//
// See doc.go for detailed documentation and examples.
package bf

import (
	"github.com/rs/zerolog"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/bf/api"
)

// Options configures the runtime. See the field documentation in the
// runtime package for each option.
type Options = api.Options

// Snapshot is a copy of everything the runtime aggregated.
type Snapshot = api.Snapshot

// Event is one basic-block report.
type Event = api.Event

// Sink receives report events.
type Sink = api.Sink

// SinkFunc adapts a function to Sink.
type SinkFunc = api.SinkFunc

// Init replaces the process-default runtime with a fresh one configured
// by opts. Call it at program start, before any counted code runs:
//
//	func main() {
//		bf.Init(bf.Options{EveryBB: true})
//		defer bf.Fini()
//		// ... rest of program
//	}
//
// Init is NOT safe to call while other goroutines are counting.
func Init(opts Options) {
	api.SetDefault(api.New(opts))
}

// Fini flushes pending counts and returns the final snapshot. Only the
// first call emits the final report event.
func Fini() *Snapshot {
	return api.Default().Fini()
}

// Current returns a snapshot of the default runtime without finishing it.
func Current() *Snapshot {
	return api.Default().Snapshot()
}

// SetSink installs the receiver for report events on the default runtime.
func SetSink(s Sink) {
	api.Default().SetSink(s)
}

// SetLogger replaces the default runtime's logger.
func SetLogger(l zerolog.Logger) {
	api.Default().SetLogger(l)
}

// CountLoad records a load of n bytes at addr.
//
// The instrumenter emits the equivalent updates automatically; this is
// for hand-instrumented code and examples.
func CountLoad(addr uintptr, n uint64) {
	countAccess(abi.AccessLoads, abi.LoadInsts, abi.LoadBytes, addr, n)
}

// CountStore records a store of n bytes at addr.
func CountStore(addr uintptr, n uint64) {
	countAccess(abi.AccessStores, abi.StoreInsts, abi.StoreBytes, addr, n)
}

func countAccess(kind abi.AccessKind, insts, bytes abi.Scalar, addr uintptr, n uint64) {
	r := api.Default()
	r.AcquireMegaLock()
	defer r.ReleaseMegaLock()
	r.Increment(insts.Ref(), 1)
	r.Increment(bytes.Ref(), n)
	r.ReuseDistAddrs(kind, uint64(addr))
	r.AssocAddressesWithProg(uint64(addr), n)
}

// CountFlops records n floating-point operations on operands totalling
// bits bits.
func CountFlops(n, bits uint64) {
	r := api.Default()
	r.AcquireMegaLock()
	defer r.ReleaseMegaLock()
	r.Increment(abi.Flops.Ref(), n)
	r.Increment(abi.FPBits.Ref(), bits)
}

// EndBlock closes a hand-instrumented basic block.
func EndBlock() {
	r := api.Default()
	r.AcquireMegaLock()
	defer r.ReleaseMegaLock()
	r.Increment(abi.Blocks.Ref(), 1)
	if name, ok := r.CurrentFunction(); ok {
		r.AssocCountersWithFunc(name)
	}
	r.AccumulateBBTallies(abi.NotEnd)
	if r.Options().EveryBB {
		r.ReportBBTallies()
	}
	r.ResetBBTallies()
}

// Enter pushes name on the calling goroutine's stack and counts one
// invocation. Pair every Enter with Exit:
//
//	bf.Enter("axpy")
//	defer bf.Exit()
func Enter(name string) {
	r := api.Default()
	r.PushFunction(name)
	r.AcquireMegaLock()
	defer r.ReleaseMegaLock()
	r.IncrFuncTally(name)
}

// Exit pops the innermost frame.
func Exit() {
	api.Default().PopFunction()
}
