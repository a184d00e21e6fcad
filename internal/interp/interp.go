// Package interp executes ir modules.
//
// The interpreter stands in for the native host program: it runs the
// (usually instrumented) IR on one or more goroutines and forwards every
// counter increment and bf_* hook call to an api.Runtime. It models just
// enough of a machine for that: a flat address space of value cells,
// a bump allocator for alloca, and direct calls.
//
// Thread Safety: A Machine may run several threads at once; memory cells
// are individually atomic, so racy programs see some interleaving of
// whole values but never corrupt the machine.
package interp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/bf/api"
	"github.com/kolkov/bytesflops/internal/ir"
)

// Errors returned by Run.
var (
	ErrNoEntry        = errors.New("entry function not found")
	ErrUnreachable    = errors.New("reached unreachable")
	ErrDivideByZero   = errors.New("integer divide by zero")
	ErrStepLimit      = errors.New("step limit exceeded")
	ErrCallDepthLimit = errors.New("call depth limit exceeded")
)

const (
	// heapBase is the first address handed out by alloca.
	heapBase = 0x1000

	// DefaultMaxSteps bounds the instructions one Run may execute.
	DefaultMaxSteps = 50_000_000

	maxCallDepth = 10_000
)

// Machine runs a module against a runtime.
type Machine struct {
	mod *ir.Module
	rt  *api.Runtime
	log zerolog.Logger

	mem      sync.Map // uint64 address -> Value
	next     atomic.Uint64
	steps    atomic.Uint64
	maxSteps uint64
}

// New returns a machine for mod reporting to rt.
func New(mod *ir.Module, rt *api.Runtime) *Machine {
	m := &Machine{mod: mod, rt: rt, log: zerolog.Nop(), maxSteps: DefaultMaxSteps}
	m.next.Store(heapBase)
	return m
}

// SetLogger replaces the machine's logger.
func (m *Machine) SetLogger(l zerolog.Logger) {
	m.log = l.With().Str("component", "interp").Logger()
}

// SetMaxSteps bounds the instructions a Run may execute across all
// threads. Zero means DefaultMaxSteps.
func (m *Machine) SetMaxSteps(n uint64) {
	if n == 0 {
		n = DefaultMaxSteps
	}
	m.maxSteps = n
}

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() uint64 { return m.steps.Load() }

// Load returns the cell at addr.
func (m *Machine) Load(addr uint64) Value {
	v, ok := m.mem.Load(addr)
	if !ok {
		return Value{}
	}
	return v.(Value)
}

// Store writes the cell at addr.
func (m *Machine) Store(addr uint64, v Value) {
	m.mem.Store(addr, v)
}

// alloc reserves size bytes, 8-byte aligned.
func (m *Machine) alloc(size int) uint64 {
	if size < 1 {
		size = 1
	}
	n := uint64(size+7) &^ 7
	return m.next.Add(n) - n
}

// Run calls entry on threads goroutines and waits for all of them. When
// entry takes parameters the first receives the thread index and the
// rest are zero. Each thread releases its call stack on exit.
//
// Returns the first error any thread hits; the remaining threads are
// cancelled at their next block boundary.
func (m *Machine) Run(ctx context.Context, entry string, threads int) ([]Value, error) {
	fn := m.mod.Func(entry)
	if fn == nil || fn.IsDeclaration() {
		return nil, fmt.Errorf("%w: %q", ErrNoEntry, entry)
	}
	if threads < 1 {
		threads = 1
	}

	results := make([]Value, threads)
	g, ctx := errgroup.WithContext(ctx)
	for t := 0; t < threads; t++ {
		g.Go(func() error {
			defer m.rt.ReleaseThread()
			args := make([]Value, len(fn.Params))
			if len(args) > 0 {
				args[0] = Int(int64(t))
			}
			th := &thread{m: m, ctx: ctx}
			v, err := th.call(fn, args)
			if err != nil {
				return fmt.Errorf("thread %d: %w", t, err)
			}
			results[t] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m.log.Debug().Str("entry", entry).Int("threads", threads).Uint64("steps", m.Steps()).Msg("run finished")
	return results, nil
}

// thread is one goroutine's execution state.
type thread struct {
	m     *Machine
	ctx   context.Context
	depth int
}

// frame holds the SSA values of one activation.
type frame struct {
	fn   *ir.Function
	args []Value
	vals map[*ir.Instr]Value
}

func (fr *frame) eval(v ir.Value) Value {
	switch x := v.(type) {
	case *ir.Instr:
		return fr.vals[x]
	case *ir.Param:
		if x.Index < len(fr.args) {
			return fr.args[x.Index]
		}
	case *ir.Const:
		if x.Ty.IsFloat() {
			return Float(x.Float)
		}
		return Int(x.Int)
	}
	return Value{}
}

func (t *thread) call(fn *ir.Function, args []Value) (Value, error) {
	t.depth++
	defer func() { t.depth-- }()
	if t.depth > maxCallDepth {
		return Value{}, ErrCallDepthLimit
	}

	fr := &frame{fn: fn, args: args, vals: make(map[*ir.Instr]Value)}
	blk := fn.Blocks[0]
	var prev ir.BlockID = -1
	for {
		if err := t.ctx.Err(); err != nil {
			return Value{}, err
		}
		next, ret, done, err := t.block(fr, blk, prev)
		if err != nil {
			return Value{}, fmt.Errorf("%s:%s: %w", fn.Name, blk.Name(), err)
		}
		if done {
			return ret, nil
		}
		prev = blk.ID
		blk = fn.Block(next)
		if blk == nil {
			return Value{}, fmt.Errorf("%s: branch to unknown block %d", fn.Name, next)
		}
	}
}

// block executes b after arriving from prev. It returns the next block,
// or done with the return value.
func (t *thread) block(fr *frame, b *ir.Block, prev ir.BlockID) (next ir.BlockID, ret Value, done bool, err error) {
	i := 0
	// Phis read their inputs before any of them is written.
	var phis []Value
	for ; i < len(b.Instrs) && b.Instrs[i].Op == ir.OpPhi; i++ {
		phi := b.Instrs[i]
		var v Value
		for k, from := range phi.Targets {
			if from == prev {
				v = fr.eval(phi.Args[k])
				break
			}
		}
		phis = append(phis, v)
	}
	for k, v := range phis {
		fr.vals[b.Instrs[k]] = v
	}

	for ; i < len(b.Instrs); i++ {
		in := b.Instrs[i]
		if t.m.steps.Add(1) > t.m.maxSteps {
			return 0, Value{}, false, ErrStepLimit
		}
		switch in.Op {
		case ir.OpBr:
			return in.Targets[0], Value{}, false, nil
		case ir.OpCondBr:
			if fr.eval(in.Args[0]).I != 0 {
				return in.Targets[0], Value{}, false, nil
			}
			return in.Targets[1], Value{}, false, nil
		case ir.OpSwitch:
			x := fr.eval(in.Args[0]).I
			for k, c := range in.Args[1:] {
				if fr.eval(c).I == x {
					return in.Targets[k+1], Value{}, false, nil
				}
			}
			return in.Targets[0], Value{}, false, nil
		case ir.OpRet:
			if len(in.Args) > 0 {
				return 0, fr.eval(in.Args[0]), true, nil
			}
			return 0, Value{}, true, nil
		case ir.OpUnreachable:
			return 0, Value{}, false, ErrUnreachable
		}
		v, err := t.exec(fr, in)
		if err != nil {
			return 0, Value{}, false, fmt.Errorf("%d (%s): %w", i, in.Op, err)
		}
		if !in.Type().IsVoid() {
			fr.vals[in] = v
		}
	}
	return 0, Value{}, false, errors.New("fell off the end of the block")
}

// exec runs one non-terminator instruction.
func (t *thread) exec(fr *frame, in *ir.Instr) (Value, error) {
	m := t.m
	switch in.Op {
	case ir.OpIncrement:
		d := fr.eval(in.Args[0]).I
		if d > 0 {
			m.rt.Increment(in.Counter, uint64(d))
		}
		return Value{}, nil

	case ir.OpAlloca:
		return Int(int64(m.alloc(in.Elem.SizeBytes()))), nil

	case ir.OpLoad:
		return m.Load(uint64(fr.eval(in.Args[0]).I)), nil

	case ir.OpStore:
		m.Store(uint64(fr.eval(in.Args[0]).I), fr.eval(in.Args[1]))
		return Value{}, nil

	case ir.OpMemSet:
		addr := uint64(fr.eval(in.Args[0]).I)
		val := Int(fr.eval(in.Args[1]).I & 0xff)
		n := fr.eval(in.Args[2]).I
		for k := int64(0); k < n; k++ {
			m.Store(addr+uint64(k), val)
		}
		return Value{}, nil

	case ir.OpPtrAdd:
		return Int(fr.eval(in.Args[0]).I + fr.eval(in.Args[1]).I), nil

	case ir.OpCast:
		return convert(in.Type(), in.Args[0].Type(), fr.eval(in.Args[0])), nil

	case ir.OpSelect:
		if fr.eval(in.Args[0]).I != 0 {
			return fr.eval(in.Args[1]), nil
		}
		return fr.eval(in.Args[2]), nil

	case ir.OpCall:
		return t.callInstr(fr, in)

	case ir.OpOther:
		return zero(in.Type()), nil

	case ir.OpICmp, ir.OpFCmp:
		ty := in.Args[0].Type()
		return lanewise(ty, func(a, b Value) (Value, error) {
			var r bool
			var err error
			if in.Op == ir.OpFCmp || ty.IsFloat() {
				r, err = floatCompare(in.Pred, a.F, b.F)
			} else {
				r, err = intCompare(in.Pred, a.I, b.I)
			}
			return boolValue(r), err
		}, fr.eval(in.Args[0]), fr.eval(in.Args[1]))
	}

	if in.Op.IsBinary() {
		ty := in.Type()
		a := fr.eval(in.Args[0])
		var b Value
		if len(in.Args) > 1 {
			b = fr.eval(in.Args[1])
		}
		return lanewise(ty, func(x, y Value) (Value, error) {
			if in.Op.IsFloatOp() || ty.IsFloat() {
				f, err := floatBinary(in.Op, x.F, y.F)
				return Float(f), err
			}
			i, err := intBinary(in.Op, ty, x.I, y.I)
			return Int(i), err
		}, a, b)
	}
	return Value{}, fmt.Errorf("cannot execute %s", in.Op)
}

// callInstr dispatches a call to a hook, a defined function or an extern.
func (t *thread) callInstr(fr *frame, in *ir.Instr) (Value, error) {
	if abi.IsHook(in.Callee) {
		t.hook(fr, in)
		return Value{}, nil
	}
	args := make([]Value, len(in.Args))
	for i, a := range in.Args {
		args[i] = fr.eval(a)
	}
	if callee := t.m.mod.Func(in.Callee); callee != nil && !callee.IsDeclaration() {
		return t.call(callee, args)
	}
	if fn, ok := externs[in.Callee]; ok && len(args) == 1 {
		return Float(fn(args[0].F)), nil
	}
	t.m.log.Debug().Str("callee", in.Callee).Msg("call to unknown external returns zero")
	return zero(in.Type()), nil
}

// hook forwards an instrumentation call to the runtime.
func (t *thread) hook(fr *frame, in *ir.Instr) {
	rt := t.m.rt
	sym := func(i int) string {
		if i < len(in.Args) {
			if s, ok := in.Args[i].(*ir.Symbol); ok {
				return s.Name
			}
		}
		return ""
	}
	arg := func(i int) int64 {
		if i < len(in.Args) {
			return fr.eval(in.Args[i]).I
		}
		return 0
	}

	switch abi.Hook(in.Callee) {
	case abi.HookPushFunction:
		rt.PushFunction(sym(0))
	case abi.HookPopFunction:
		rt.PopFunction()
	case abi.HookNoteCallSite:
		rt.NoteCallSite(sym(0))
	case abi.HookIncrFuncTally:
		rt.IncrFuncTally(sym(0))
	case abi.HookAccumulateBB:
		rt.AccumulateBBTallies(abi.BlockEnd(arg(0)))
	case abi.HookReportBB:
		rt.ReportBBTallies()
	case abi.HookResetBB:
		rt.ResetBBTallies()
	case abi.HookAssocCountersFunc:
		rt.AssocCountersWithFunc(sym(0))
	case abi.HookAssocAddrsFunc:
		// A memset with a non-positive length touches nothing.
		if n := arg(2); n > 0 {
			rt.AssocAddressesWithFunc(sym(0), uint64(arg(1)), uint64(n))
		}
	case abi.HookAssocAddrsProg:
		if n := arg(1); n > 0 {
			rt.AssocAddressesWithProg(uint64(arg(0)), uint64(n))
		}
	case abi.HookAcquireMegaLock:
		rt.AcquireMegaLock()
	case abi.HookReleaseMegaLock:
		rt.ReleaseMegaLock()
	case abi.HookTallyVector:
		rt.TallyVectorOperation(int(arg(0)), int(arg(1)), arg(2) != 0)
	case abi.HookReuseDistAddrs:
		rt.ReuseDistAddrs(abi.AccessKind(arg(0)), uint64(arg(1)))
	}
}
