package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/ir"
)

func TestClassify(t *testing.T) {
	m := ir.NewModule("c")
	f, err := m.AddFunction("f", ir.Void, ir.Ptr, ir.F64, ir.I32, ir.VectorOf(ir.F32, 4))
	require.NoError(t, err)
	b := ir.NewBuilder(f)
	b.SetBlock(f.AddBlock("entry"))
	p, x, n, v := b.Param(0), b.Param(1), b.Param(2), b.Param(3)

	load := b.Load(ir.F64, p)
	store := b.Store(n, p)
	memset := b.MemSet(p, ir.ConstInt(ir.I8, 0), ir.ConstInt(ir.I64, 64))
	fadd := b.Binary(ir.OpFAdd, x, x)
	fneg := b.FNeg(x)
	fcmp := b.Cmp(ir.OpFCmp, "olt", x, x)
	iadd := b.Binary(ir.OpAdd, n, n)
	icmp := b.Cmp(ir.OpICmp, "eq", n, n)
	vmul := b.Binary(ir.OpFMul, v, v)
	call := b.Call("g", ir.Void)
	hook := b.Call(string(abi.HookReportBB), ir.Void)
	cast := b.Cast(ir.I64, n)
	ret := b.Ret()

	tests := []struct {
		name   string
		in     *ir.Instr
		allOps bool
		want   Record
	}{
		{name: "load", in: load, want: Record{Category: Load, DataType: abi.Float64, ByteWidth: 8, VectorLen: 1, ElemBits: 64, AddrOperand: p}},
		{name: "store", in: store, want: Record{Category: Store, DataType: abi.Int32, ByteWidth: 4, VectorLen: 1, ElemBits: 32, AddrOperand: p}},
		{name: "memset", in: memset, want: Record{Category: Store, DataType: abi.Int8, VectorLen: 1, ElemBits: 8, AddrOperand: p, LenOperand: memset.Args[2]}},
		{name: "fadd", in: fadd, want: Record{Category: FloatingPointOp, DataType: abi.Float64, OperandBits: 192, VectorLen: 1, ElemBits: 64, IsFlop: true}},
		{name: "fneg", in: fneg, want: Record{Category: FloatingPointOp, DataType: abi.Float64, OperandBits: 128, VectorLen: 1, ElemBits: 64, IsFlop: true}},
		{name: "fcmp", in: fcmp, want: Record{Category: FloatingPointOp, DataType: abi.OtherType, OperandBits: 129, VectorLen: 1, ElemBits: 64, IsFlop: true}},
		{name: "int add without all-ops", in: iadd, want: Record{Category: Other, VectorLen: 1}},
		{name: "int add with all-ops", in: iadd, allOps: true, want: Record{Category: GenericOp, DataType: abi.Int32, OperandBits: 96, VectorLen: 1, ElemBits: 32}},
		{name: "icmp with all-ops", in: icmp, allOps: true, want: Record{Category: GenericOp, DataType: abi.OtherType, OperandBits: 65, VectorLen: 1, ElemBits: 32}},
		{name: "vector fmul", in: vmul, want: Record{Category: VectorOp, DataType: abi.OtherType, OperandBits: 384, VectorLen: 4, ElemBits: 32, IsFlop: true}},
		{name: "call", in: call, want: Record{Category: Call, VectorLen: 1}},
		{name: "hook call", in: hook, want: Record{Category: Other, VectorLen: 1}},
		{name: "cast", in: cast, want: Record{Category: Other, VectorLen: 1}},
		{name: "ret", in: ret, want: Record{Category: Other, VectorLen: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classifier{AllOps: tt.allOps}.Classify(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Branches(t *testing.T) {
	m := ir.NewModule("c")
	f, err := m.AddFunction("f", ir.Void, ir.I1)
	require.NoError(t, err)
	b := ir.NewBuilder(f)
	entry, left, right := f.AddBlock("entry"), f.AddBlock("left"), f.AddBlock("right")
	b.SetBlock(entry)
	cbr := b.CondBr(b.Param(0), left, right)
	b.SetBlock(left)
	br := b.Br(right)
	b.SetBlock(right)
	ret := b.Ret()

	cls := Classifier{}
	assert.Equal(t, Branch, cls.Classify(cbr).Category)
	assert.Equal(t, Branch, cls.Classify(br).Category)
	assert.Equal(t, abi.CondBranchEnd, blockEnd(cbr))
	assert.Equal(t, abi.UncondBranchEnd, blockEnd(br))
	assert.Equal(t, abi.NotEnd, blockEnd(ret))
}

func TestTypeCategory(t *testing.T) {
	tests := []struct {
		ty   *ir.Type
		want abi.TypeCategory
	}{
		{ir.F32, abi.Float32},
		{ir.F64, abi.Float64},
		{ir.I8, abi.Int8},
		{ir.I16, abi.Int16},
		{ir.I32, abi.Int32},
		{ir.I64, abi.Int64},
		{ir.Ptr, abi.Pointer},
		{ir.I1, abi.OtherType},
		{ir.VectorOf(ir.F64, 2), abi.OtherType},
		{ir.ArrayOf(ir.I8, 4), abi.OtherType},
		{ir.StructOf(ir.I8, ir.F64), abi.OtherType},
		{nil, abi.OtherType},
	}
	for _, tt := range tests {
		t.Run(tt.ty.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, TypeCategory(tt.ty))
		})
	}
}

func TestClassifier_CountsOps(t *testing.T) {
	assert.True(t, Classifier{}.CountsOps(Record{Category: GenericOp}))
	assert.False(t, Classifier{}.CountsOps(Record{Category: FloatingPointOp}))
	assert.True(t, Classifier{AllOps: true}.CountsOps(Record{Category: FloatingPointOp}))
	assert.False(t, Classifier{AllOps: true}.CountsOps(Record{Category: Load}))
}
