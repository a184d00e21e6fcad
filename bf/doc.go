// Package bf provides the runtime that counts bytes, flops and related
// statistics for programs instrumented by bytesflops.
//
// # Quick Start
//
// The bytesflops tool instruments a program and drives the runtime for
// you:
//
//	$ bytesflops run --bf-types --bf-every-bb prog.yaml
//
// For hand-instrumented Go code:
//
//	package main
//
//	import "github.com/kolkov/bytesflops/bf"
//
//	func main() {
//		bf.Init(bf.Options{ByFunc: true})
//		defer bf.Fini()
//
//		bf.Enter("main")
//		defer bf.Exit()
//		bf.CountLoad(addr, 8)
//		bf.CountFlops(1, 128)
//		bf.EndBlock()
//	}
//
// # API Overview
//
//   - Lifecycle: [Init], [Fini], [Current]
//   - Counting: [CountLoad], [CountStore], [CountFlops], [EndBlock]
//   - Attribution: [Enter], [Exit]
//   - Reporting: [SetSink], [SetLogger]
//   - Version information: [GetInfo], [Version]
//
// # Counting Model
//
// Counts accumulate in the calling goroutine's basic-block tally and are
// flushed into the program total at each block boundary. With Options.EveryBB every
// flush can produce an [Event]; Options.MergeCount N keeps only every
// Nth one, and the events always add up to the program total.
//
// Block tallies are per goroutine, so per-function attribution is exact
// for multi-threaded programs. With Options.ThreadSafe the aggregate
// updates run under a single process-wide lock; without it the runtime
// serializes them internally.
package bf
