package frontend

import (
	"go/constant"
	"go/token"
	"go/types"
	"strconv"

	"golang.org/x/tools/go/ssa"

	"github.com/kolkov/bytesflops/internal/ir"
)

// Callee names for calls the IR cannot resolve statically.
const (
	IndirectCallee = "<indirect>"
	PanicCallee    = "runtime.gopanic"
)

var intOps = map[token.Token]ir.Opcode{
	token.ADD:     ir.OpAdd,
	token.SUB:     ir.OpSub,
	token.MUL:     ir.OpMul,
	token.QUO:     ir.OpDiv,
	token.REM:     ir.OpRem,
	token.SHL:     ir.OpShl,
	token.SHR:     ir.OpShr,
	token.AND:     ir.OpAnd,
	token.OR:      ir.OpOr,
	token.XOR:     ir.OpXor,
	token.AND_NOT: ir.OpAndNot,
}

var floatOps = map[token.Token]ir.Opcode{
	token.ADD: ir.OpFAdd,
	token.SUB: ir.OpFSub,
	token.MUL: ir.OpFMul,
	token.QUO: ir.OpFDiv,
}

// predicate returns the comparison predicate for tok.
func predicate(tok token.Token, float, unsigned bool) (string, bool) {
	switch tok {
	case token.EQL:
		if float {
			return "oeq", true
		}
		return "eq", true
	case token.NEQ:
		if float {
			return "one", true
		}
		return "ne", true
	}
	prefix := "s"
	switch {
	case float:
		prefix = "o"
	case unsigned:
		prefix = "u"
	}
	switch tok {
	case token.LSS:
		return prefix + "lt", true
	case token.LEQ:
		return prefix + "le", true
	case token.GTR:
		return prefix + "gt", true
	case token.GEQ:
		return prefix + "ge", true
	}
	return "", false
}

// lowerer translates one SSA function body. Each lowerer owns its target
// function exclusively.
type lowerer struct {
	src    *ssa.Function
	fn     *ir.Function
	params map[ssa.Value]*ir.Param
	instrs map[ssa.Value]*ir.Instr
}

func newLowerer(src *ssa.Function, fn *ir.Function) *lowerer {
	l := &lowerer{
		src:    src,
		fn:     fn,
		params: make(map[ssa.Value]*ir.Param),
		instrs: make(map[ssa.Value]*ir.Instr),
	}
	for i, p := range src.Params {
		l.params[p] = fn.Params[i]
	}
	for i, fv := range src.FreeVars {
		l.params[fv] = fn.Params[len(src.Params)+i]
	}
	return l
}

// signature returns the IR result and parameter types of fn. Free
// variables of closures follow the declared parameters.
func signature(fn *ssa.Function) (*ir.Type, []*ir.Type) {
	params := make([]*ir.Type, 0, len(fn.Params)+len(fn.FreeVars))
	for _, p := range fn.Params {
		params = append(params, lowerType(p.Type()))
	}
	for _, fv := range fn.FreeVars {
		params = append(params, lowerType(fv.Type()))
	}
	return lowerTuple(fn.Signature.Results()), params
}

// lower fills l.fn with one IR block per SSA block. Block ids match SSA
// block indices.
func (l *lowerer) lower() {
	for _, sb := range l.src.Blocks {
		label := sb.Comment
		if label == "" {
			label = "block"
		}
		l.fn.AddBlock(label + "." + strconv.Itoa(sb.Index))
	}
	for _, sb := range l.src.Blocks {
		blk := l.fn.Blocks[sb.Index]
		for _, instr := range sb.Instrs {
			l.instr(blk, sb, instr)
		}
	}
}

// shell returns the IR instruction standing for v, creating a placeholder
// on first reference so operands may be used before their definition is
// lowered.
func (l *lowerer) shell(v ssa.Value) *ir.Instr {
	if in, ok := l.instrs[v]; ok {
		return in
	}
	in := l.fn.NewInstr(ir.OpOther, lowerType(v.Type()))
	l.instrs[v] = in
	return in
}

func (l *lowerer) value(v ssa.Value) ir.Value {
	switch x := v.(type) {
	case *ssa.Const:
		return lowerConst(x)
	case *ssa.Parameter, *ssa.FreeVar:
		if p, ok := l.params[v]; ok {
			return p
		}
	case *ssa.Function:
		return ir.Sym(x.String())
	case *ssa.Global:
		return ir.Sym(x.String())
	case *ssa.Builtin:
		return ir.Sym(x.Name())
	case ssa.Instruction:
		return l.shell(v)
	}
	return ir.ConstInt(lowerType(v.Type()), 0)
}

func (l *lowerer) operands(instr ssa.Instruction) []ir.Value {
	var args []ir.Value
	for _, op := range instr.Operands(nil) {
		if op != nil && *op != nil {
			args = append(args, l.value(*op))
		}
	}
	return args
}

func lowerConst(c *ssa.Const) *ir.Const {
	t := lowerType(c.Type())
	if c.Value == nil {
		return ir.ConstInt(t, 0)
	}
	switch c.Value.Kind() {
	case constant.Int:
		if v, exact := constant.Int64Val(c.Value); exact {
			if t.IsFloat() {
				return ir.ConstFloat(t, float64(v))
			}
			return ir.ConstInt(t, v)
		}
		u, _ := constant.Uint64Val(c.Value)
		return ir.ConstInt(t, int64(u))
	case constant.Float:
		f, _ := constant.Float64Val(c.Value)
		if t.IsFloat() {
			return ir.ConstFloat(t, f)
		}
		return ir.ConstInt(t, int64(f))
	case constant.Bool:
		if constant.BoolVal(c.Value) {
			return ir.ConstInt(t, 1)
		}
		return ir.ConstInt(t, 0)
	case constant.Complex:
		f, _ := constant.Float64Val(constant.Real(c.Value))
		return ir.ConstFloat(t, f)
	}
	return ir.ConstInt(t, 0)
}

func (l *lowerer) emit(blk *ir.Block, in *ir.Instr) {
	blk.Append(in)
}

func (l *lowerer) instr(blk *ir.Block, sb *ssa.BasicBlock, instr ssa.Instruction) {
	switch i := instr.(type) {
	case *ssa.DebugRef:
		return

	case *ssa.Alloc:
		in := l.shell(i)
		in.Op, in.Ty = ir.OpAlloca, ir.Ptr
		if p, ok := i.Type().Underlying().(*types.Pointer); ok {
			in.Elem = lowerType(p.Elem())
		}
		l.emit(blk, in)

	case *ssa.UnOp:
		l.emit(blk, l.unOp(i))

	case *ssa.BinOp:
		l.emit(blk, l.binOp(i))

	case *ssa.Store:
		val := l.value(i.Val)
		in := l.fn.NewInstr(ir.OpStore, ir.Void, l.value(i.Addr), val)
		in.Elem = val.Type()
		l.emit(blk, in)

	case *ssa.FieldAddr:
		in := l.shell(i)
		in.Op, in.Ty = ir.OpPtrAdd, ir.Ptr
		in.Args = []ir.Value{l.value(i.X), ir.ConstInt(ir.I64, int64(i.Field))}
		l.emit(blk, in)

	case *ssa.IndexAddr:
		in := l.shell(i)
		in.Op, in.Ty = ir.OpPtrAdd, ir.Ptr
		in.Args = []ir.Value{l.value(i.X), l.value(i.Index)}
		l.emit(blk, in)

	case *ssa.Convert:
		in := l.shell(i)
		in.Op = ir.OpCast
		in.Args = []ir.Value{l.value(i.X)}
		l.emit(blk, in)

	case *ssa.Call:
		in := l.shell(i)
		l.call(in, i.Common())
		l.emit(blk, in)

	case *ssa.Go:
		in := l.fn.NewInstr(ir.OpCall, ir.Void)
		l.call(in, i.Common())
		l.emit(blk, in)

	case *ssa.Defer:
		in := l.fn.NewInstr(ir.OpCall, ir.Void)
		l.call(in, i.Common())
		l.emit(blk, in)

	case *ssa.Phi:
		in := l.shell(i)
		in.Op = ir.OpPhi
		in.Args = make([]ir.Value, len(i.Edges))
		in.Targets = make([]ir.BlockID, len(i.Edges))
		for k, e := range i.Edges {
			in.Args[k] = l.value(e)
			in.Targets[k] = ir.BlockID(sb.Preds[k].Index)
		}
		l.emit(blk, in)

	case *ssa.If:
		in := l.fn.NewInstr(ir.OpCondBr, ir.Void, l.value(i.Cond))
		in.Targets = []ir.BlockID{ir.BlockID(sb.Succs[0].Index), ir.BlockID(sb.Succs[1].Index)}
		l.emit(blk, in)

	case *ssa.Jump:
		in := l.fn.NewInstr(ir.OpBr, ir.Void)
		in.Targets = []ir.BlockID{ir.BlockID(sb.Succs[0].Index)}
		l.emit(blk, in)

	case *ssa.Return:
		l.ret(blk, i)

	case *ssa.Panic:
		call := l.fn.NewInstr(ir.OpCall, ir.Void, l.value(i.X))
		call.Callee = PanicCallee
		l.emit(blk, call)
		l.emit(blk, l.fn.NewInstr(ir.OpUnreachable, ir.Void))

	default:
		var in *ir.Instr
		if v, ok := instr.(ssa.Value); ok {
			in = l.shell(v)
		} else {
			in = l.fn.NewInstr(ir.OpOther, ir.Void)
		}
		in.Args = l.operands(instr)
		l.emit(blk, in)
	}
}

func (l *lowerer) unOp(i *ssa.UnOp) *ir.Instr {
	in := l.shell(i)
	x := l.value(i.X)
	switch i.Op {
	case token.MUL:
		in.Op = ir.OpLoad
		in.Elem = in.Ty
		in.Args = []ir.Value{x}
	case token.SUB:
		if x.Type().IsFloat() {
			in.Op = ir.OpFNeg
			in.Args = []ir.Value{x}
		} else {
			in.Op = ir.OpSub
			in.Args = []ir.Value{ir.ConstInt(x.Type(), 0), x}
		}
	case token.NOT:
		in.Op = ir.OpXor
		in.Args = []ir.Value{x, ir.ConstInt(x.Type(), 1)}
	case token.XOR:
		in.Op = ir.OpXor
		in.Args = []ir.Value{x, ir.ConstInt(x.Type(), -1)}
	default:
		in.Args = []ir.Value{x}
	}
	return in
}

func (l *lowerer) binOp(i *ssa.BinOp) *ir.Instr {
	in := l.shell(i)
	x, y := l.value(i.X), l.value(i.Y)
	in.Args = []ir.Value{x, y}
	xt := i.X.Type()
	float := x.Type().IsFloat()

	if pred, ok := predicate(i.Op, float, isUnsigned(xt)); ok {
		if !float && !isOrdered(xt) {
			// Strings, interfaces and aggregates compare through the runtime.
			return in
		}
		in.Op = ir.OpICmp
		if float {
			in.Op = ir.OpFCmp
		}
		in.Pred = pred
		in.Ty = ir.I1
		return in
	}

	ops := intOps
	if float {
		ops = floatOps
	}
	if op, ok := ops[i.Op]; ok && (float || isOrdered(xt)) {
		in.Op = op
	}
	return in
}

func (l *lowerer) call(in *ir.Instr, c *ssa.CallCommon) {
	args := make([]ir.Value, 0, len(c.Args)+1)
	if c.IsInvoke() {
		args = append(args, l.value(c.Value))
	}
	for _, a := range c.Args {
		args = append(args, l.value(a))
	}
	in.Args = args

	if _, ok := c.Value.(*ssa.Builtin); ok {
		in.Op = ir.OpOther
		return
	}
	in.Op = ir.OpCall
	switch {
	case c.IsInvoke():
		in.Callee = c.Method.FullName()
	case c.StaticCallee() != nil:
		in.Callee = c.StaticCallee().String()
	default:
		in.Callee = IndirectCallee
	}
}

func (l *lowerer) ret(blk *ir.Block, i *ssa.Return) {
	switch len(i.Results) {
	case 0:
		l.emit(blk, l.fn.NewInstr(ir.OpRet, ir.Void))
	case 1:
		l.emit(blk, l.fn.NewInstr(ir.OpRet, ir.Void, l.value(i.Results[0])))
	default:
		vals := make([]ir.Value, len(i.Results))
		for k, r := range i.Results {
			vals[k] = l.value(r)
		}
		tuple := l.fn.NewInstr(ir.OpOther, l.fn.Result, vals...)
		l.emit(blk, tuple)
		l.emit(blk, l.fn.NewInstr(ir.OpRet, ir.Void, tuple))
	}
}
