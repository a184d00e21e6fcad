// Package instrument - Counter injection.
//
// This file inserts counter updates and runtime hook calls into one
// function. The layout of an instrumented block is:
//
//	[bf_push_function, incr_func_tally]      entry block only
//	phi nodes, then the updates for them
//	original instruction
//	  updates for it (loads, stores, operations)
//	updates for a call, mid-block flush,
//	  [bf_note_call_site], then the call
//	...
//	terminator updates, Blocks += 1,
//	  [assoc], accumulate(status), [report], reset,
//	  [bf_pop_function]                      returns only
//	terminator
//
// With ThreadSafe every counter update and aggregate hook call is wrapped
// in its own acquire/release pair. ElideMegaLocks then merges abutting
// pairs, so each run of updates ends up in one critical section.
//
// Thread Safety: One injector per function. Distinct functions may be
// instrumented concurrently.
package instrument

import (
	"fmt"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/ir"
)

// injector instruments a single function.
type injector struct {
	fn    *ir.Function
	opts  Options
	cls   Classifier
	stats *FuncStats
	name  *ir.Symbol
}

func newInjector(fn *ir.Function, opts Options, stats *FuncStats) *injector {
	return &injector{
		fn:    fn,
		opts:  opts,
		cls:   Classifier{AllOps: opts.AllOps},
		stats: stats,
		name:  ir.Sym(fn.Name),
	}
}

// run instruments every block of the function.
func (j *injector) run() error {
	if err := j.fn.Verify(); err != nil {
		return fromVerifyError(err)
	}
	for i, b := range j.fn.Blocks {
		if err := j.block(b, i == 0); err != nil {
			return err
		}
	}
	j.stats.Instrumented = true
	if j.opts.ThreadSafe {
		j.stats.LocksElided = ElideMegaLocks(j.fn)
	}
	return nil
}

// incr returns Counter[ref] += delta.
func (j *injector) incr(ref abi.CounterRef, delta ir.Value) *ir.Instr {
	in := j.fn.NewInstr(ir.OpIncrement, ir.Void, delta)
	in.Counter = ref
	in.Injected = true
	j.stats.Increments++
	return in
}

func (j *injector) incrN(ref abi.CounterRef, n int64) *ir.Instr {
	return j.incr(ref, ir.ConstInt(ir.I64, n))
}

// hook returns a call to a runtime entry point.
func (j *injector) hook(h abi.Hook, args ...ir.Value) *ir.Instr {
	in := j.fn.NewInstr(ir.OpCall, ir.Void, args...)
	in.Callee = string(h)
	in.Injected = true
	switch h {
	case abi.HookAcquireMegaLock, abi.HookReleaseMegaLock:
	default:
		j.stats.HookCalls++
	}
	return in
}

// locked wraps each update in its own mega-lock region when ThreadSafe.
func (j *injector) locked(updates ...*ir.Instr) []*ir.Instr {
	if !j.opts.ThreadSafe || len(updates) == 0 {
		return updates
	}
	out := make([]*ir.Instr, 0, 3*len(updates))
	for _, u := range updates {
		out = append(out, j.hook(abi.HookAcquireMegaLock), u, j.hook(abi.HookReleaseMegaLock))
		j.stats.LockPairs++
	}
	return out
}

// count records the static tallies for one original instruction.
func (j *injector) count(in *ir.Instr, rec Record) {
	switch rec.Category {
	case Load:
		j.stats.Loads++
	case Store:
		j.stats.Stores++
	case Call:
		j.stats.Calls++
	case Branch:
		if blockEnd(in) == abi.CondBranchEnd {
			j.stats.CondBrs++
		}
	case FloatingPointOp, GenericOp, VectorOp:
		if rec.IsFlop {
			j.stats.Flops++
		}
		if j.cls.CountsOps(rec) {
			j.stats.Ops++
		}
		if rec.Category == VectorOp {
			j.stats.VectorOps++
		}
	}
}

// updates returns the unwrapped counter updates for in.
func (j *injector) updates(in *ir.Instr, rec Record) []*ir.Instr {
	var out []*ir.Instr
	if j.opts.InstMix {
		out = append(out, j.incrN(abi.CounterRef{Set: abi.SetInstMix, Index: int(in.Op)}, 1))
	}

	switch rec.Category {
	case Load:
		width := ir.ConstInt(ir.I64, int64(rec.ByteWidth))
		out = append(out,
			j.incrN(abi.LoadInsts.Ref(), 1),
			j.incr(abi.LoadBytes.Ref(), width))
		if j.opts.Types {
			out = append(out, j.incrN(abi.MemTypeRef(abi.MemLoad, rec.DataType), 1))
		}
		out = append(out, j.trackAccess(abi.AccessLoads, rec, width)...)

	case Store:
		var width ir.Value = ir.ConstInt(ir.I64, int64(rec.ByteWidth))
		if rec.LenOperand != nil {
			width = rec.LenOperand
		}
		out = append(out,
			j.incrN(abi.StoreInsts.Ref(), 1),
			j.incr(abi.StoreBytes.Ref(), width))
		if j.opts.Types {
			out = append(out, j.incrN(abi.MemTypeRef(abi.MemStore, rec.DataType), 1))
		}
		out = append(out, j.trackAccess(abi.AccessStores, rec, width)...)

	case FloatingPointOp, GenericOp, VectorOp:
		lanes := int64(rec.VectorLen)
		if rec.IsFlop {
			out = append(out,
				j.incrN(abi.Flops.Ref(), lanes),
				j.incrN(abi.FPBits.Ref(), int64(rec.OperandBits)))
		}
		if j.cls.CountsOps(rec) {
			out = append(out,
				j.incrN(abi.Ops.Ref(), lanes),
				j.incrN(abi.OpBits.Ref(), int64(rec.OperandBits)))
		}
		if rec.Category == VectorOp && j.opts.Vectors {
			flop := int64(0)
			if rec.IsFlop {
				flop = 1
			}
			out = append(out, j.hook(abi.HookTallyVector,
				ir.ConstInt(ir.I64, lanes),
				ir.ConstInt(ir.I64, int64(rec.ElemBits)),
				ir.ConstInt(ir.I1, flop)))
		}

	case Call:
		out = append(out, j.incrN(abi.Calls.Ref(), 1))
	}
	return out
}

// trackAccess feeds an access of n bytes to the enabled trackers.
func (j *injector) trackAccess(kind abi.AccessKind, rec Record, n ir.Value) []*ir.Instr {
	if rec.AddrOperand == nil {
		return nil
	}
	var out []*ir.Instr
	if j.opts.ReuseDist&kind != 0 {
		out = append(out, j.hook(abi.HookReuseDistAddrs, ir.ConstInt(ir.I8, int64(kind)), rec.AddrOperand))
	}
	if j.opts.UniqueBytes {
		out = append(out, j.hook(abi.HookAssocAddrsProg, rec.AddrOperand, n))
		if j.opts.ByFunc {
			out = append(out, j.hook(abi.HookAssocAddrsFunc, j.name, rec.AddrOperand, n))
		}
	}
	return out
}

// flush returns the hook sequence that closes a basic-block tally.
func (j *injector) flush(status abi.BlockEnd, report bool) []*ir.Instr {
	var out []*ir.Instr
	if j.opts.ByFunc {
		out = append(out, j.hook(abi.HookAssocCountersFunc, j.name))
	}
	out = append(out, j.hook(abi.HookAccumulateBB, ir.ConstInt(ir.I8, int64(status))))
	if report {
		out = append(out, j.hook(abi.HookReportBB))
	}
	return append(out, j.hook(abi.HookResetBB))
}

// block instruments b. Original instructions are visited from a copy of
// the instruction list, so insertions never shift the iteration.
func (j *injector) block(b *ir.Block, entry bool) error {
	term := b.Terminator()
	if term == nil {
		return NewInstrumentationErrorWithSuggestion(b, nil,
			"block does not end in a terminator",
			"End every block with br, condbr, switch, ret or unreachable")
	}
	j.stats.Blocks++

	orig := append([]*ir.Instr(nil), b.Instrs...)
	var head []*ir.Instr
	var lastPhi *ir.Instr
	if entry && j.opts.ByFunc {
		head = append(head, j.hook(abi.HookPushFunction, j.name))
		head = append(head, j.locked(j.hook(abi.HookIncrFuncTally, j.name))...)
	}

	var termRec Record
	for _, in := range orig {
		if in.Injected {
			continue
		}
		rec := j.cls.Classify(in)
		j.count(in, rec)
		if in == term {
			termRec = rec
			continue
		}
		upd := j.locked(j.updates(in, rec)...)

		switch {
		case in.Op == ir.OpPhi:
			// Nothing may sit between phi nodes.
			lastPhi = in
			head = append(head, upd...)

		case rec.Category == Call:
			pre := append(upd, j.locked(j.flush(abi.NotEnd, false)...)...)
			if j.opts.CallStack {
				site := fmt.Sprintf("%s#%d", j.fn.Name, in.ID)
				pre = append(pre, j.hook(abi.HookNoteCallSite, ir.Sym(site)))
			}
			if err := b.InsertBefore(in, pre...); err != nil {
				return NewInstrumentationError(b, in, err.Error())
			}

		case len(upd) > 0:
			if err := b.InsertAfter(in, upd...); err != nil {
				return NewInstrumentationError(b, in, err.Error())
			}
		}
	}

	if len(head) > 0 {
		var err error
		if lastPhi != nil {
			err = b.InsertAfter(lastPhi, head...)
		} else {
			err = b.InsertBefore(b.Instrs[0], head...)
		}
		if err != nil {
			return NewInstrumentationError(b, nil, err.Error())
		}
	}

	tail := j.updates(term, termRec)
	tail = append(tail, j.incrN(abi.Blocks.Ref(), 1))
	tail = append(tail, j.flush(blockEnd(term), j.opts.EveryBB)...)
	tail = j.locked(tail...)
	if term.Op == ir.OpRet && j.opts.ByFunc {
		tail = append(tail, j.hook(abi.HookPopFunction))
	}
	if err := b.InsertBefore(term, tail...); err != nil {
		return NewInstrumentationError(b, term, err.Error())
	}
	return nil
}

// blockEnd maps a terminator to its flush status: one successor is an
// unconditional branch, several are a conditional one, none (ret,
// unreachable) is NOT_END.
func blockEnd(term *ir.Instr) abi.BlockEnd {
	switch term.Op {
	case ir.OpBr, ir.OpCondBr, ir.OpSwitch:
		if len(term.Targets) > 1 {
			return abi.CondBranchEnd
		}
		return abi.UncondBranchEnd
	}
	return abi.NotEnd
}
