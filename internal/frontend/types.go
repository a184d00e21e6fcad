package frontend

import (
	"go/types"

	"github.com/kolkov/bytesflops/internal/ir"
)

// lowerType maps a Go type onto the IR's type vocabulary.
//
// Scalars keep their width. Complex numbers become two-lane float
// vectors so each complex operation counts both halves. Strings, slices
// and interfaces become their runtime headers. Anything reference-like
// (maps, channels, functions, type parameters) is a pointer.
func lowerType(t types.Type) *ir.Type {
	if t == nil {
		return ir.Void
	}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		return lowerBasic(u)
	case *types.Pointer, *types.Map, *types.Chan, *types.Signature:
		return ir.Ptr
	case *types.Slice:
		return ir.StructOf(ir.Ptr, ir.I64, ir.I64)
	case *types.Interface:
		return ir.StructOf(ir.Ptr, ir.Ptr)
	case *types.Array:
		if u.Len() <= 0 {
			return ir.StructOf()
		}
		return ir.ArrayOf(lowerType(u.Elem()), int(u.Len()))
	case *types.Struct:
		fields := make([]*ir.Type, u.NumFields())
		for i := range fields {
			fields[i] = lowerType(u.Field(i).Type())
		}
		return ir.StructOf(fields...)
	case *types.Tuple:
		return lowerTuple(u)
	}
	return ir.Ptr
}

func lowerTuple(tup *types.Tuple) *ir.Type {
	switch tup.Len() {
	case 0:
		return ir.Void
	case 1:
		return lowerType(tup.At(0).Type())
	}
	fields := make([]*ir.Type, tup.Len())
	for i := range fields {
		fields[i] = lowerType(tup.At(i).Type())
	}
	return ir.StructOf(fields...)
}

func lowerBasic(b *types.Basic) *ir.Type {
	switch b.Kind() {
	case types.Bool, types.UntypedBool:
		return ir.I1
	case types.Int8, types.Uint8:
		return ir.I8
	case types.Int16, types.Uint16:
		return ir.I16
	case types.Int32, types.Uint32, types.UntypedRune:
		return ir.I32
	case types.Int, types.Int64, types.Uint, types.Uint64, types.Uintptr, types.UntypedInt:
		return ir.I64
	case types.Float32:
		return ir.F32
	case types.Float64, types.UntypedFloat:
		return ir.F64
	case types.Complex64:
		return ir.VectorOf(ir.F32, 2)
	case types.Complex128, types.UntypedComplex:
		return ir.VectorOf(ir.F64, 2)
	case types.String, types.UntypedString:
		return ir.StructOf(ir.Ptr, ir.I64)
	}
	return ir.Ptr
}

// isUnsigned reports whether comparisons on t use unsigned predicates.
func isUnsigned(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsUnsigned != 0
}

// isOrdered reports whether t is a numeric or boolean scalar that the IR
// compares natively.
func isOrdered(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	if !ok {
		_, isPtr := t.Underlying().(*types.Pointer)
		return isPtr
	}
	return b.Info()&(types.IsInteger|types.IsFloat|types.IsBoolean) != 0
}
