package frontend

import (
	"context"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/kolkov/bytesflops/internal/ir"
)

const kernelSrc = `package kernel

func Axpy(a float64, x, y []float64) {
	for i := range y {
		y[i] = a*x[i] + y[i]
	}
}

func Sum(xs []int) (total int) {
	for _, v := range xs {
		total += v
	}
	return total
}

func Pair(a, b float32) (float32, float32) {
	return a + b, a - b
}

func Scale(k float64) func(float64) float64 {
	return func(v float64) float64 { return k * v }
}

func Must(ok bool) {
	if !ok {
		panic("not ok")
	}
}
`

// buildKernel builds kernelSrc into SSA without invoking the go command.
func buildKernel(t *testing.T) *ssa.Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "kernel.go", kernelSrc, parser.ParseComments)
	require.NoError(t, err)
	pkg := types.NewPackage("example.com/kernel", "kernel")
	ssaPkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()}, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	require.NoError(t, err)
	return ssaPkg
}

func lowerKernel(t *testing.T) *ir.Module {
	t.Helper()
	pkg := buildKernel(t)
	keep := func(p *ssa.Package) bool { return p == pkg }
	mod, err := lowerAll(context.Background(), "example.com/kernel", selectFunctions(pkg.Prog, keep))
	require.NoError(t, err)
	require.NoError(t, mod.Verify())
	return mod
}

func opcodes(f *ir.Function) map[ir.Opcode]int {
	n := make(map[ir.Opcode]int)
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			n[in.Op]++
		}
	}
	return n
}

func TestLower_Axpy(t *testing.T) {
	mod := lowerKernel(t)
	f := mod.Func("example.com/kernel.Axpy")
	require.NotNil(t, f)

	require.Len(t, f.Params, 3)
	assert.Equal(t, ir.F64, f.Params[0].Type())
	assert.True(t, f.Result.IsVoid())

	ops := opcodes(f)
	assert.Equal(t, 2, ops[ir.OpLoad], "x[i] and y[i]")
	assert.Equal(t, 1, ops[ir.OpStore])
	assert.Equal(t, 1, ops[ir.OpFMul])
	assert.Equal(t, 1, ops[ir.OpFAdd])
	assert.Equal(t, 1, ops[ir.OpCondBr])
	assert.GreaterOrEqual(t, ops[ir.OpPhi], 1)
	assert.Equal(t, 1, ops[ir.OpRet])

	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Op == ir.OpLoad || in.Op == ir.OpStore {
				assert.Equal(t, ir.F64, in.Elem)
			}
			if in.Op == ir.OpICmp {
				assert.Equal(t, "slt", in.Pred)
			}
		}
	}
}

func TestLower_Sum(t *testing.T) {
	f := lowerKernel(t).Func("example.com/kernel.Sum")
	require.NotNil(t, f)
	assert.Equal(t, ir.I64, f.Result)

	ops := opcodes(f)
	assert.Equal(t, 1, ops[ir.OpLoad])
	assert.Zero(t, ops[ir.OpStore])
	assert.GreaterOrEqual(t, ops[ir.OpAdd], 2, "accumulation and induction")
	assert.Zero(t, ops[ir.OpFAdd])
}

func TestLower_MultipleResults(t *testing.T) {
	f := lowerKernel(t).Func("example.com/kernel.Pair")
	require.NotNil(t, f)
	assert.Equal(t, ir.StructOf(ir.F32, ir.F32).String(), f.Result.String())

	ops := opcodes(f)
	assert.Equal(t, 1, ops[ir.OpFAdd])
	assert.Equal(t, 1, ops[ir.OpFSub])

	entry := f.Blocks[0]
	ret := entry.Terminator()
	require.NotNil(t, ret)
	require.Len(t, ret.Args, 1)
	tuple, ok := ret.Args[0].(*ir.Instr)
	require.True(t, ok)
	assert.Equal(t, ir.OpOther, tuple.Op)
	assert.Len(t, tuple.Args, 2)
}

func TestLower_ClosureFreeVars(t *testing.T) {
	mod := lowerKernel(t)
	f := mod.Func("example.com/kernel.Scale$1")
	require.NotNil(t, f)
	// v followed by the captured k.
	require.Len(t, f.Params, 2)
	assert.Equal(t, 1, opcodes(f)[ir.OpFMul])

	outer := mod.Func("example.com/kernel.Scale")
	require.NotNil(t, outer)
	assert.Equal(t, ir.Ptr, outer.Result)
}

func TestLower_Panic(t *testing.T) {
	f := lowerKernel(t).Func("example.com/kernel.Must")
	require.NotNil(t, f)

	var sawPanic bool
	for _, b := range f.Blocks {
		term := b.Terminator()
		require.NotNil(t, term, b.Name())
		if term.Op == ir.OpUnreachable {
			call := b.Instrs[len(b.Instrs)-2]
			assert.Equal(t, ir.OpCall, call.Op)
			assert.Equal(t, PanicCallee, call.Callee)
			sawPanic = true
		}
	}
	assert.True(t, sawPanic)
}

func TestLower_SkipsSynthetic(t *testing.T) {
	mod := lowerKernel(t)
	for _, f := range mod.Funcs {
		assert.True(t, strings.HasPrefix(f.Name, "example.com/kernel."), f.Name)
		assert.NotEqual(t, "example.com/kernel.init", f.Name)
	}
	// Sorted by name.
	for i := 1; i < len(mod.Funcs); i++ {
		assert.Less(t, mod.Funcs[i-1].Name, mod.Funcs[i].Name)
	}
}

func TestLowerType(t *testing.T) {
	tests := []struct {
		name string
		in   types.Type
		want *ir.Type
	}{
		{"bool", types.Typ[types.Bool], ir.I1},
		{"uint8", types.Typ[types.Uint8], ir.I8},
		{"int16", types.Typ[types.Int16], ir.I16},
		{"rune", types.Typ[types.Int32], ir.I32},
		{"int", types.Typ[types.Int], ir.I64},
		{"uintptr", types.Typ[types.Uintptr], ir.I64},
		{"float32", types.Typ[types.Float32], ir.F32},
		{"float64", types.Typ[types.Float64], ir.F64},
		{"complex128", types.Typ[types.Complex128], ir.VectorOf(ir.F64, 2)},
		{"string", types.Typ[types.String], ir.StructOf(ir.Ptr, ir.I64)},
		{"pointer", types.NewPointer(types.Typ[types.Int]), ir.Ptr},
		{"slice", types.NewSlice(types.Typ[types.Float64]), ir.StructOf(ir.Ptr, ir.I64, ir.I64)},
		{"array", types.NewArray(types.Typ[types.Float32], 4), ir.ArrayOf(ir.F32, 4)},
		{"map", types.NewMap(types.Typ[types.String], types.Typ[types.Int]), ir.Ptr},
		{"nil", nil, ir.Void},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want.String(), lowerType(tt.in).String())
		})
	}
}

func TestPredicate(t *testing.T) {
	tests := []struct {
		tok      token.Token
		float    bool
		unsigned bool
		want     string
	}{
		{token.EQL, false, false, "eq"},
		{token.EQL, true, false, "oeq"},
		{token.NEQ, true, false, "one"},
		{token.LSS, false, false, "slt"},
		{token.LSS, false, true, "ult"},
		{token.GEQ, true, false, "oge"},
		{token.GTR, false, true, "ugt"},
	}
	for _, tt := range tests {
		got, ok := predicate(tt.tok, tt.float, tt.unsigned)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, tt.tok.String())
	}
	_, ok := predicate(token.ADD, false, false)
	assert.False(t, ok)
}

func TestMainModulePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/kernel\n\ngo 1.24\n"), 0o644))
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	assert.Equal(t, filepath.Join(root, "go.mod"), FindGoMod(sub))

	path, err := MainModulePath(sub)
	require.NoError(t, err)
	assert.Equal(t, "example.com/kernel", path)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "go.mod"), []byte("not a go.mod {"), 0o644))
	_, err = MainModulePath(sub)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/kernel\n\ngo 1.21\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kernel.go"), []byte(kernelSrc), 0o644))

	mod, err := Load(context.Background(), Config{Dir: dir, Logger: zerolog.Nop()}, "./...")
	require.NoError(t, err)
	assert.Equal(t, "example.com/kernel", mod.Name)
	assert.NotNil(t, mod.Func("example.com/kernel.Axpy"))
	assert.NotNil(t, mod.Func("example.com/kernel.Scale$1"))
}

func TestLoad_PackageErrors(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/broken\n\ngo 1.21\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package broken\n\nfunc F() int { return \"x\" }\n"), 0o644))

	_, err := Load(context.Background(), Config{Dir: dir, Logger: zerolog.Nop()}, ".")
	assert.Error(t, err)
}
