// Package api implements the runtime entry points that instrumented code
// calls.
//
// Instrumented code talks to a Runtime in two ways. Counter updates arrive
// through Increment with an abi.CounterRef handle and land in the calling
// goroutine's basic-block tally. Everything else arrives through the bf_* hooks named
// in package abi: block flushes, report and reset calls, function entry
// and exit, mega-lock acquire and release, and the tracker feeds.
//
// Counting protocol:
//  1. Increment adds to the basic-block tally (atomic, never blocks)
//  2. AssocCountersWithFunc picks the per-function tally the goroutine's
//     next flush also feeds
//  3. AccumulateBBTallies moves the goroutine's block tally into the
//     program total, the report window and the associated function tally
//  4. ReportBBTallies turns the report window into an event every
//     MergeCount calls
//  5. ResetBBTallies closes the block
//
// Every value the block tally held ends up in the program total exactly
// once, so the sum of all flushed tallies equals the program total at any
// observation point.
//
// Thread Safety: All entry points are safe for concurrent calls. The
// block tally and the pending function association belong to one
// goroutine, so a flush only ever moves that goroutine's own counts. With
// ThreadSafe set, instrumented code holds the mega-lock around every
// aggregate update and the runtime relies on that; without it the runtime
// guards its shared maps and tallies with an internal mutex.
package api

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/bf/callstack"
	"github.com/kolkov/bytesflops/internal/bf/counters"
	"github.com/kolkov/bytesflops/internal/bf/megalock"
	"github.com/kolkov/bytesflops/internal/bf/reusedist"
	"github.com/kolkov/bytesflops/internal/bf/uniquebytes"
)

// Event is one report emitted by ReportBBTallies or Fini.
type Event struct {
	// Seq numbers events from 1.
	Seq uint64

	// Status is the end-of-block tag of the most recent flush.
	Status abi.BlockEnd

	// Tally holds everything flushed since the previous event.
	Tally *counters.Tally

	// Final marks the event emitted by Fini for the remaining window.
	Final bool
}

// Sink receives report events. It is called while the runtime holds its
// aggregation lock and must not call back into the runtime.
type Sink interface {
	ReportEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// ReportEvent calls f(e).
func (f SinkFunc) ReportEvent(e Event) { f(e) }

type funcState struct {
	chain       []callstack.Frame
	tally       counters.Tally
	invocations uint64
	unique      *uniquebytes.Set
}

// threadState is the per-goroutine half of the counting state.
type threadState struct {
	bb    counters.Tally
	assoc *funcState
}

type vectorKey struct {
	lanes    int
	elemBits int
	flop     bool
}

// Runtime aggregates the counts of one instrumented program.
type Runtime struct {
	opts Options
	log  zerolog.Logger
	sink Sink

	lock *megalock.Lock
	mu   sync.Mutex // taken only when the mega-lock is disabled

	global counters.Tally
	window counters.Tally

	stack   *callstack.Tracker
	threads sync.Map // *callstack.Stack → *threadState
	depot   *callstack.Depot
	funcs   map[uint64]*funcState
	cadence *counters.Cadence
	reuse   *reusedist.Tracker
	unique  *uniquebytes.Set
	vectors map[vectorKey]uint64

	lastStatus abi.BlockEnd
	events     uint64
	finished   atomic.Bool
}

// New returns a runtime configured by opts.
func New(opts Options) *Runtime {
	opts = opts.normalize()
	r := &Runtime{
		opts:    opts,
		log:     zerolog.Nop(),
		lock:    megalock.New(opts.ThreadSafe),
		stack:   callstack.NewTracker(),
		depot:   callstack.NewDepot(),
		funcs:   make(map[uint64]*funcState),
		cadence: counters.NewCadence(opts.MergeCount),
		vectors: make(map[vectorKey]uint64),
	}
	if opts.ReuseDist != 0 {
		r.reuse = reusedist.New(opts.MaxReuseDist)
	}
	if opts.UniqueBytes {
		r.unique = uniquebytes.New()
	}
	return r
}

// SetLogger replaces the runtime's logger.
func (r *Runtime) SetLogger(l zerolog.Logger) {
	r.log = l.With().Str("component", "bf-runtime").Logger()
}

// SetSink installs the receiver for report events. Nil drops events.
func (r *Runtime) SetSink(s Sink) {
	r.sink = s
}

// Options returns the normalized options.
func (r *Runtime) Options() Options {
	return r.opts
}

// exclusive serializes access to shared state when the mega-lock is off.
// With the mega-lock on, the caller already holds it.
func (r *Runtime) exclusive() func() {
	if r.lock.Enabled() {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// thread returns the calling goroutine's counting state, creating it on
// first use.
func (r *Runtime) thread() *threadState {
	st := r.stack.Current()
	if v, ok := r.threads.Load(st); ok {
		return v.(*threadState)
	}
	v, _ := r.threads.LoadOrStore(st, &threadState{})
	return v.(*threadState)
}

// Increment adds delta to the counter behind ref in the calling
// goroutine's basic-block tally.
func (r *Runtime) Increment(ref abi.CounterRef, delta uint64) {
	r.thread().bb.AddAtomic(ref, delta)
}

// AccumulateBBTallies flushes the calling goroutine's basic-block tally
// into the program total, the report window and the function picked by
// the goroutine's most recent AssocCountersWithFunc.
func (r *Runtime) AccumulateBBTallies(status abi.BlockEnd) {
	th := r.thread()
	switch status {
	case abi.UncondBranchEnd:
		th.bb.AddAtomic(abi.UncondBranches.Ref(), 1)
	case abi.CondBranchEnd:
		th.bb.AddAtomic(abi.CondBranches.Ref(), 1)
	}

	done := r.exclusive()
	defer done()
	var fn *counters.Tally
	if th.assoc != nil {
		fn = &th.assoc.tally
		th.assoc = nil
	}
	th.bb.DrainInto(&r.global, &r.window, fn)
	r.lastStatus = status
}

// ReportBBTallies emits the report window as an event on every
// MergeCount-th call.
func (r *Runtime) ReportBBTallies() {
	done := r.exclusive()
	defer done()

	if !r.cadence.Tick() {
		return
	}
	r.emit(false)
}

// emit drains the report window into an event. Caller holds exclusion.
func (r *Runtime) emit(final bool) {
	ev := Event{Status: r.lastStatus, Tally: r.window.Clone(), Final: final}
	r.window.Reset()
	r.events++
	ev.Seq = r.events
	r.log.Debug().
		Uint64("seq", ev.Seq).
		Stringer("status", ev.Status).
		Bool("final", final).
		Fields(toFields(ev.Tally.Named())).
		Msg("basic-block report")
	if r.sink != nil {
		r.sink.ReportEvent(ev)
	}
}

// ResetBBTallies closes the calling goroutine's block. Counts added after
// the flush are carried into the aggregates rather than discarded.
func (r *Runtime) ResetBBTallies() {
	th := r.thread()
	th.assoc = nil
	if th.bb.IsZero() {
		return
	}
	done := r.exclusive()
	defer done()
	th.bb.DrainInto(&r.global, &r.window)
}

// funcKey interns the frame chain for name: just name when aggregating by
// function, or the calling goroutine's full stack with CallStack.
func (r *Runtime) funcKey(name string) (uint64, []callstack.Frame) {
	chain := []callstack.Frame{{Name: name}}
	if r.opts.CallStack {
		if frames := r.stack.Current().Frames(); len(frames) > 0 {
			chain = frames
		}
	}
	h := r.depot.Intern(chain)
	return h, r.depot.Lookup(h)
}

// function returns the state for name, creating it. Caller holds exclusion.
func (r *Runtime) function(name string) *funcState {
	h, chain := r.funcKey(name)
	fs := r.funcs[h]
	if fs == nil {
		fs = &funcState{chain: chain}
		r.funcs[h] = fs
	}
	return fs
}

// AssocCountersWithFunc makes the next flush also feed name's tally.
func (r *Runtime) AssocCountersWithFunc(name string) {
	if !r.opts.ByFunc {
		return
	}
	th := r.thread()
	done := r.exclusive()
	defer done()
	th.assoc = r.function(name)
}

// IncrFuncTally counts one invocation of name.
func (r *Runtime) IncrFuncTally(name string) {
	if !r.opts.ByFunc {
		return
	}
	done := r.exclusive()
	defer done()
	r.function(name).invocations++
}

// PushFunction enters name on the calling goroutine's stack.
func (r *Runtime) PushFunction(name string) {
	r.stack.Push(name)
}

// PopFunction leaves the innermost frame. Popping an empty stack is a no-op.
func (r *Runtime) PopFunction() {
	r.stack.Pop()
}

// NoteCallSite attaches site to the next frame this goroutine pushes.
func (r *Runtime) NoteCallSite(site string) {
	r.stack.NoteCallSite(site)
}

// ReleaseThread forgets the calling goroutine's stack and block state.
// Counts the goroutine never flushed go to the program total.
func (r *Runtime) ReleaseThread() {
	st := r.stack.Current()
	if v, ok := r.threads.LoadAndDelete(st); ok {
		if th := v.(*threadState); !th.bb.IsZero() {
			r.lock.Acquire()
			done := r.exclusive()
			th.bb.DrainInto(&r.global, &r.window)
			done()
			r.lock.Release()
		}
	}
	r.stack.Release()
}

// CurrentFunction returns the innermost function on the calling
// goroutine's stack.
func (r *Runtime) CurrentFunction() (string, bool) {
	f, ok := r.stack.Current().Top()
	return f.Name, ok
}

// StackDepth returns the depth of the calling goroutine's stack.
func (r *Runtime) StackDepth() int {
	return r.stack.Current().Depth()
}

// AcquireMegaLock takes the mega-lock. A no-op unless ThreadSafe.
func (r *Runtime) AcquireMegaLock() {
	r.lock.Acquire()
}

// ReleaseMegaLock drops the mega-lock. A no-op unless ThreadSafe.
func (r *Runtime) ReleaseMegaLock() {
	r.lock.Release()
}

// TallyVectorOperation counts one vector operation by shape.
func (r *Runtime) TallyVectorOperation(lanes, elemBits int, isFlop bool) {
	if !r.opts.Vectors {
		return
	}
	done := r.exclusive()
	defer done()
	r.vectors[vectorKey{lanes: lanes, elemBits: elemBits, flop: isFlop}]++
}

// ReuseDistAddrs feeds one access of the given kind to the reuse-distance
// tracker. Kinds not selected by Options.ReuseDist are ignored.
func (r *Runtime) ReuseDistAddrs(kind abi.AccessKind, addr uint64) {
	if r.reuse == nil || r.opts.ReuseDist&kind == 0 {
		return
	}
	done := r.exclusive()
	defer done()
	r.reuse.Access(addr)
}

// AssocAddressesWithProg records n bytes at addr in the program footprint.
func (r *Runtime) AssocAddressesWithProg(addr, n uint64) {
	if r.unique == nil {
		return
	}
	done := r.exclusive()
	defer done()
	r.unique.Touch(addr, n)
}

// AssocAddressesWithFunc records n bytes at addr in name's footprint.
func (r *Runtime) AssocAddressesWithFunc(name string, addr, n uint64) {
	if r.unique == nil || !r.opts.ByFunc {
		return
	}
	done := r.exclusive()
	defer done()
	fs := r.function(name)
	if fs.unique == nil {
		fs.unique = uniquebytes.New()
	}
	fs.unique.Touch(addr, n)
}

// Totals returns a copy of the program-wide counters.
func (r *Runtime) Totals() counters.Tally {
	r.lock.Acquire()
	defer r.lock.Release()
	done := r.exclusive()
	defer done()
	return r.global
}

// Fini flushes whatever is still pending, emits a final event when the
// report window is not empty, and returns the final snapshot. Only the
// first call emits; later calls just return a snapshot.
func (r *Runtime) Fini() *Snapshot {
	if r.finished.CompareAndSwap(false, true) {
		r.lock.Acquire()
		done := r.exclusive()
		r.threads.Range(func(_, v any) bool {
			if th := v.(*threadState); !th.bb.IsZero() {
				th.bb.DrainInto(&r.global, &r.window)
			}
			return true
		})
		if !r.window.IsZero() && r.opts.EveryBB {
			r.emit(true)
		}
		r.window.Reset()
		done()
		r.lock.Release()
	}

	snap := r.Snapshot()
	r.log.Info().
		Uint64("flops", snap.Counters[abi.Flops.String()]).
		Uint64("load_bytes", snap.Counters[abi.LoadBytes.String()]).
		Uint64("store_bytes", snap.Counters[abi.StoreBytes.String()]).
		Int("functions", len(snap.Functions)).
		Uint64("events", snap.Reports).
		Msg("runtime finished")
	return snap
}

func toFields(m map[string]uint64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
