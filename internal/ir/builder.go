package ir

// Builder appends instructions to a current block.
type Builder struct {
	fn  *Function
	blk *Block
}

// NewBuilder returns a builder for f positioned at no block.
func NewBuilder(f *Function) *Builder {
	return &Builder{fn: f}
}

// Func returns the function being built.
func (b *Builder) Func() *Function { return b.fn }

// SetBlock positions the builder at the end of blk.
func (b *Builder) SetBlock(blk *Block) { b.blk = blk }

// Block returns the current block.
func (b *Builder) Block() *Block { return b.blk }

// Param returns the i-th parameter of the function.
func (b *Builder) Param(i int) *Param { return b.fn.Params[i] }

func (b *Builder) emit(in *Instr) *Instr {
	b.blk.Append(in)
	return in
}

// Binary emits a two-operand arithmetic or logical operation.
func (b *Builder) Binary(op Opcode, x, y Value) *Instr {
	return b.emit(b.fn.NewInstr(op, x.Type(), x, y))
}

// FNeg emits a floating-point negation.
func (b *Builder) FNeg(x Value) *Instr {
	return b.emit(b.fn.NewInstr(OpFNeg, x.Type(), x))
}

// Cmp emits an integer or floating comparison producing i1 (or a vector
// of i1 for vector operands).
func (b *Builder) Cmp(op Opcode, pred string, x, y Value) *Instr {
	rt := I1
	if t := x.Type(); t.IsVector() {
		rt = VectorOf(I1, t.Len)
	}
	in := b.fn.NewInstr(op, rt, x, y)
	in.Pred = pred
	return b.emit(in)
}

// Alloca reserves storage for one value of type t.
func (b *Builder) Alloca(t *Type) *Instr {
	in := b.fn.NewInstr(OpAlloca, Ptr)
	in.Elem = t
	return b.emit(in)
}

// Load reads a value of type t from addr.
func (b *Builder) Load(t *Type, addr Value) *Instr {
	in := b.fn.NewInstr(OpLoad, t, addr)
	in.Elem = t
	return b.emit(in)
}

// Store writes val to addr.
func (b *Builder) Store(val, addr Value) *Instr {
	in := b.fn.NewInstr(OpStore, Void, addr, val)
	in.Elem = val.Type()
	return b.emit(in)
}

// PtrAdd offsets a pointer by a byte count.
func (b *Builder) PtrAdd(base, offset Value) *Instr {
	return b.emit(b.fn.NewInstr(OpPtrAdd, Ptr, base, offset))
}

// MemSet fills n bytes at addr with val.
func (b *Builder) MemSet(addr, val, n Value) *Instr {
	return b.emit(b.fn.NewInstr(OpMemSet, Void, addr, val, n))
}

// Cast converts x to type t.
func (b *Builder) Cast(t *Type, x Value) *Instr {
	return b.emit(b.fn.NewInstr(OpCast, t, x))
}

// Select picks x when c is non-zero, otherwise y.
func (b *Builder) Select(c, x, y Value) *Instr {
	return b.emit(b.fn.NewInstr(OpSelect, x.Type(), c, x, y))
}

// Phi merges values flowing in from predecessor blocks.
func (b *Builder) Phi(t *Type, preds []BlockID, vals []Value) *Instr {
	in := b.fn.NewInstr(OpPhi, t, vals...)
	in.Targets = append([]BlockID(nil), preds...)
	return b.emit(in)
}

// Call calls callee by name.
func (b *Builder) Call(callee string, result *Type, args ...Value) *Instr {
	in := b.fn.NewInstr(OpCall, result, args...)
	in.Callee = callee
	return b.emit(in)
}

// Other emits an operation the IR does not model.
func (b *Builder) Other(t *Type, args ...Value) *Instr {
	return b.emit(b.fn.NewInstr(OpOther, t, args...))
}

// Br jumps unconditionally.
func (b *Builder) Br(target *Block) *Instr {
	in := b.fn.NewInstr(OpBr, Void)
	in.Targets = []BlockID{target.ID}
	return b.emit(in)
}

// CondBr jumps to then when c is non-zero, else to els.
func (b *Builder) CondBr(c Value, then, els *Block) *Instr {
	in := b.fn.NewInstr(OpCondBr, Void, c)
	in.Targets = []BlockID{then.ID, els.ID}
	return b.emit(in)
}

// Switch jumps to the block matching x, or to def.
func (b *Builder) Switch(x Value, def *Block, cases []*Const, targets []*Block) *Instr {
	in := b.fn.NewInstr(OpSwitch, Void, x)
	in.Targets = []BlockID{def.ID}
	for i, c := range cases {
		in.Args = append(in.Args, c)
		in.Targets = append(in.Targets, targets[i].ID)
	}
	return b.emit(in)
}

// Ret returns from the function, optionally with a value.
func (b *Builder) Ret(v ...Value) *Instr {
	return b.emit(b.fn.NewInstr(OpRet, Void, v...))
}

// Unreachable marks the end of a block that cannot complete.
func (b *Builder) Unreachable() *Instr {
	return b.emit(b.fn.NewInstr(OpUnreachable, Void))
}
