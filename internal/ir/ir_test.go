package ir

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLoop(t *testing.T) (*Module, *Function) {
	t.Helper()
	m := NewModule("loop")
	f, err := m.AddFunction("sum", F64, Ptr, I64)
	require.NoError(t, err)

	b := NewBuilder(f)
	entry := f.AddBlock("entry")
	body := f.AddBlock("body")
	exit := f.AddBlock("exit")

	b.SetBlock(entry)
	b.Br(body)

	b.SetBlock(body)
	x := b.Load(F64, b.Param(0))
	y := b.Binary(OpFAdd, x, ConstFloat(F64, 1))
	b.Store(y, b.Param(0))
	c := b.Cmp(OpICmp, "slt", b.Param(1), ConstInt(I64, 10))
	b.CondBr(c, body, exit)

	b.SetBlock(exit)
	b.Ret(y)
	return m, f
}

func TestBuilderAndVerify(t *testing.T) {
	m, f := buildLoop(t)
	require.NoError(t, m.Verify())

	assert.Equal(t, 3, len(f.Blocks))
	assert.Equal(t, 7, f.NumInstrs())
	assert.Equal(t, OpCondBr, f.Block(1).Terminator().Op)
	assert.Same(t, f, m.Func("sum"))
	assert.Nil(t, m.Func("missing"))

	_, err := m.AddFunction("sum", Void)
	assert.Error(t, err)
}

func TestInsertAndRemove(t *testing.T) {
	_, f := buildLoop(t)
	body := f.Block(1)
	load := body.Instrs[0]

	marker := f.NewInstr(OpOther, Void)
	require.NoError(t, body.InsertAfter(load, marker))
	assert.Equal(t, 1, body.Index(marker))
	assert.Same(t, body, marker.Block())

	first := f.NewInstr(OpOther, Void)
	require.NoError(t, body.InsertBefore(load, first))
	assert.Equal(t, 0, body.Index(first))
	assert.Equal(t, 1, body.Index(load))

	require.NoError(t, body.Remove(marker))
	assert.Equal(t, -1, body.Index(marker))
	assert.Nil(t, marker.Block())

	err := body.Remove(marker)
	assert.True(t, errors.Is(err, ErrNotInBlock))

	ids := make(map[InstrID]bool)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			assert.False(t, ids[in.ID], "duplicate id %d", in.ID)
			ids[in.ID] = true
		}
	}
}

func TestVerifyRejectsMissingTerminator(t *testing.T) {
	m := NewModule("bad")
	f, err := m.AddFunction("f", Void)
	require.NoError(t, err)
	b := NewBuilder(f)
	b.SetBlock(f.AddBlock("entry"))
	b.Alloca(I32)

	err = f.Verify()
	require.Error(t, err)
	var ve *VerifyError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "entry", ve.Block)
	assert.Contains(t, ve.Msg, "terminator")
}

func TestTypeSizes(t *testing.T) {
	tests := []struct {
		ty    *Type
		bits  int
		bytes int
		str   string
	}{
		{I1, 1, 1, "i1"},
		{I32, 32, 4, "i32"},
		{F64, 64, 8, "f64"},
		{Ptr, 64, 8, "ptr"},
		{VectorOf(F32, 4), 128, 16, "<4 x f32>"},
		{ArrayOf(I16, 3), 48, 6, "[3 x i16]"},
		{StructOf(I8, F64), 72, 9, "{i8, f64}"},
		{Void, 0, 0, "void"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.bits, tt.ty.SizeBits())
			assert.Equal(t, tt.bytes, tt.ty.SizeBytes())
			assert.Equal(t, tt.str, tt.ty.String())

			parsed, err := ParseType(tt.str)
			require.NoError(t, err)
			assert.True(t, parsed.Equal(tt.ty))
		})
	}

	_, err := ParseType("q7")
	assert.Error(t, err)
	_, err = ParseType("<4 f32>")
	assert.Error(t, err)
}

const loopProgram = `
name: demo
functions:
  - name: main
    params: [i64]
    blocks:
      - label: entry
        instrs:
          - {id: p, op: alloca, type: f64}
          - {op: store, type: f64, args: ["%p", "f64:2.5"]}
          - {op: br, targets: [loop]}
      - label: loop
        instrs:
          - {id: i, op: phi, type: i64, args: ["i64:0", "%next"], targets: [entry, loop]}
          - {id: x, op: load, type: f64, args: ["%p"]}
          - {id: y, op: fmul, args: ["%x", "f64:2"]}
          - {op: store, args: ["%p", "%y"]}
          - {id: next, op: add, args: ["%i", "i64:1"]}
          - {id: c, op: icmp, pred: slt, args: ["%next", "$0"]}
          - {op: condbr, args: ["%c"], targets: [loop, exit]}
      - label: exit
        instrs:
          - {op: ret}
`

func TestDecode(t *testing.T) {
	m, err := Decode(strings.NewReader(loopProgram))
	require.NoError(t, err)

	f := m.Func("main")
	require.NotNil(t, f)
	loop := f.BlockByLabel("loop")
	require.NotNil(t, loop)

	phi := loop.Instrs[0]
	assert.Equal(t, OpPhi, phi.Op)
	assert.Equal(t, []BlockID{0, 1}, phi.Targets)
	assert.Equal(t, "%next", phi.Args[1].Ref())

	mul := loop.Instrs[2]
	assert.Equal(t, OpFMul, mul.Op)
	assert.True(t, mul.Type().Equal(F64))

	store := loop.Instrs[3]
	assert.True(t, store.AccessType().Equal(F64))

	cmp := loop.Instrs[5]
	assert.True(t, cmp.Type().Equal(I1))

	out := m.String()
	assert.Contains(t, out, "func void @main($0 i64)")
	assert.Contains(t, out, "condbr %c -> b1 b2")
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown opcode",
			src:  "name: x\nfunctions:\n  - name: f\n    blocks:\n      - label: e\n        instrs:\n          - {op: frobnicate}\n",
			want: "unknown opcode",
		},
		{
			name: "undefined value",
			src:  "name: x\nfunctions:\n  - name: f\n    blocks:\n      - label: e\n        instrs:\n          - {op: ret, args: [\"%nope\"]}\n",
			want: "undefined value",
		},
		{
			name: "unknown target",
			src:  "name: x\nfunctions:\n  - name: f\n    blocks:\n      - label: e\n        instrs:\n          - {op: br, targets: [nowhere]}\n",
			want: "unknown target",
		},
		{
			name: "missing terminator",
			src:  "name: x\nfunctions:\n  - name: f\n    blocks:\n      - label: e\n        instrs:\n          - {op: alloca, type: i8}\n",
			want: "terminator",
		},
		{
			name: "injected opcode",
			src:  "name: x\nfunctions:\n  - name: f\n    blocks:\n      - label: e\n        instrs:\n          - {op: increment}\n",
			want: "unknown opcode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
