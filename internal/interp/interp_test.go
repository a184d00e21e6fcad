package interp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/bf/api"
	"github.com/kolkov/bytesflops/internal/ir"
)

const sumProgram = `
name: sum
functions:
  - name: main
    result: i64
    params: [i64]
    blocks:
      - label: entry
        instrs:
          - {op: br, targets: [loop]}
      - label: loop
        instrs:
          - {id: i, op: phi, type: i64, args: ["i64:0", "%next"], targets: [entry, loop]}
          - {id: acc, op: phi, type: i64, args: ["i64:0", "%acc2"], targets: [entry, loop]}
          - {id: acc2, op: add, type: i64, args: ["%acc", "%i"]}
          - {id: next, op: add, type: i64, args: ["%i", "i64:1"]}
          - {id: c, op: icmp, pred: slt, args: ["%next", "i64:5"]}
          - {op: condbr, args: ["%c"], targets: [loop, exit]}
      - label: exit
        instrs:
          - {op: ret, args: ["%acc2"]}
`

func load(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := ir.Decode(strings.NewReader(src))
	require.NoError(t, err)
	return m
}

func TestRun_LoopWithPhis(t *testing.T) {
	m := load(t, sumProgram)
	mach := New(m, api.New(api.Options{}))

	res, err := mach.Run(context.Background(), "main", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, int64(0+1+2+3+4), res[0].I)
	assert.Positive(t, mach.Steps())
}

func TestRun_MemoryAndCalls(t *testing.T) {
	src := `
name: mem
functions:
  - name: sqrt
    result: f64
    params: [f64]
  - name: half
    result: f64
    params: [f64]
    blocks:
      - instrs:
          - {id: h, op: fmul, type: f64, args: ["$0", "f64:0.5"]}
          - {op: ret, args: ["%h"]}
  - name: main
    result: f64
    blocks:
      - instrs:
          - {id: p, op: alloca, type: f64}
          - {op: store, args: ["%p", "f64:16"]}
          - {id: x, op: load, type: f64, args: ["%p"]}
          - {id: r, op: call, callee: sqrt, type: f64, args: ["%x"]}
          - {id: y, op: call, callee: half, type: f64, args: ["%r"]}
          - {op: ret, args: ["%y"]}
`
	m := load(t, src)
	res, err := New(m, api.New(api.Options{})).Run(context.Background(), "main", 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res[0].F, 1e-12)
}

func TestRun_Threads(t *testing.T) {
	src := `
name: tid
functions:
  - name: main
    result: i64
    params: [i64]
    blocks:
      - instrs:
          - {id: x, op: mul, type: i64, args: ["$0", "i64:10"]}
          - {op: ret, args: ["%x"]}
`
	res, err := New(load(t, src), api.New(api.Options{})).Run(context.Background(), "main", 4)
	require.NoError(t, err)
	require.Len(t, res, 4)
	for i, v := range res {
		assert.Equal(t, int64(i*10), v.I)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "unreachable",
			src: `
name: u
functions:
  - name: main
    blocks:
      - instrs:
          - {op: unreachable}
`,
			want: ErrUnreachable,
		},
		{
			name: "divide by zero",
			src: `
name: d
functions:
  - name: main
    blocks:
      - instrs:
          - {id: x, op: div, type: i64, args: ["i64:1", "i64:0"]}
          - {op: ret}
`,
			want: ErrDivideByZero,
		},
		{
			name: "infinite loop",
			src: `
name: l
functions:
  - name: main
    blocks:
      - label: spin
        instrs:
          - {op: br, targets: [spin]}
`,
			want: ErrStepLimit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mach := New(load(t, tt.src), api.New(api.Options{}))
			mach.SetMaxSteps(1000)
			_, err := mach.Run(context.Background(), "main", 1)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := New(load(t, sumProgram), api.New(api.Options{})).Run(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, ErrNoEntry)
}

func TestRun_DispatchesHooks(t *testing.T) {
	m := ir.NewModule("hooks")
	f, err := m.AddFunction("main", ir.Void)
	require.NoError(t, err)
	b := ir.NewBuilder(f)
	b.SetBlock(f.AddBlock("entry"))
	b.Call(string(abi.HookPushFunction), ir.Void, ir.Sym("main"))
	inc := f.NewInstr(ir.OpIncrement, ir.Void, ir.ConstInt(ir.I64, 8))
	inc.Counter = abi.LoadBytes.Ref()
	b.Block().Append(inc)
	b.Call(string(abi.HookAssocCountersFunc), ir.Void, ir.Sym("main"))
	b.Call(string(abi.HookAccumulateBB), ir.Void, ir.ConstInt(ir.I8, int64(abi.UncondBranchEnd)))
	b.Call(string(abi.HookResetBB), ir.Void)
	b.Call(string(abi.HookPopFunction), ir.Void)
	b.Ret()

	rt := api.New(api.Options{ByFunc: true})
	_, err = New(m, rt).Run(context.Background(), "main", 1)
	require.NoError(t, err)

	snap := rt.Fini()
	assert.Equal(t, uint64(8), snap.Counters["load_bytes"])
	assert.Equal(t, uint64(1), snap.Counters["uncond_branches"])
	fs := snap.Function("main")
	require.NotNil(t, fs)
	assert.Equal(t, uint64(8), fs.Counters["load_bytes"])
}

func TestConvertAndTruncate(t *testing.T) {
	assert.Equal(t, int64(-1), truncate(ir.I8, 255))
	assert.Equal(t, int64(1), truncate(ir.I1, 3))
	assert.Equal(t, int64(3), convert(ir.I64, ir.F64, Float(3.9)).I)
	assert.InDelta(t, 7.0, convert(ir.F64, ir.I32, Int(7)).F, 0)
}

func TestRun_NegativeMemSetLength(t *testing.T) {
	m := ir.NewModule("memset")
	f, err := m.AddFunction("main", ir.Void)
	require.NoError(t, err)
	b := ir.NewBuilder(f)
	b.SetBlock(f.AddBlock("entry"))
	p := b.Alloca(ir.I64)
	n := ir.ConstInt(ir.I64, -1)
	b.MemSet(p, ir.ConstInt(ir.I8, 0), n)
	b.Call(string(abi.HookAssocAddrsProg), ir.Void, p, n)
	b.Call(string(abi.HookAssocAddrsFunc), ir.Void, ir.Sym("main"), p, n)
	b.Call(string(abi.HookAssocAddrsProg), ir.Void, p, ir.ConstInt(ir.I64, 4))
	b.Ret()

	rt := api.New(api.Options{UniqueBytes: true, ByFunc: true})
	_, err = New(m, rt).Run(context.Background(), "main", 1)
	require.NoError(t, err)

	snap := rt.Fini()
	assert.Equal(t, uint64(4), snap.UniqueBytes)
	assert.Nil(t, snap.Function("main"))
}
