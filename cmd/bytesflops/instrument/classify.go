package instrument

import (
	"fmt"

	"github.com/kolkov/bytesflops/internal/bf/abi"
	"github.com/kolkov/bytesflops/internal/ir"
)

// Category is the counting class of an instruction.
type Category uint8

const (
	Other Category = iota
	Load
	Store
	FloatingPointOp
	GenericOp
	VectorOp
	Call
	Branch
)

var categoryNames = [...]string{
	Other:           "other",
	Load:            "load",
	Store:           "store",
	FloatingPointOp: "fp_op",
	GenericOp:       "op",
	VectorOp:        "vector_op",
	Call:            "call",
	Branch:          "branch",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// Record describes how one instruction is counted.
//
// Records are computed once per instruction and never change.
//
// Fields:
//   - Category: Counting class
//   - DataType: Data-type bucket of the accessed value (loads, stores) or
//     of the result (operations)
//   - ByteWidth: Bytes moved by a load or store, lanes included. Zero for
//     a MemSet, whose length is only known at run time (see LenOperand)
//   - OperandBits: Sum of operand widths plus the result width
//   - VectorLen: Lane count, 1 for scalars
//   - ElemBits: Width of one lane
//   - IsFlop: Operation counts as floating point
//   - AddrOperand: Address operand of a load, store or MemSet
//   - LenOperand: Dynamic length operand of a MemSet
type Record struct {
	Category    Category
	DataType    abi.TypeCategory
	ByteWidth   int
	OperandBits int
	VectorLen   int
	ElemBits    int
	IsFlop      bool
	AddrOperand ir.Value
	LenOperand  ir.Value
}

// Classifier labels instructions.
//
// With AllOps unset only floating-point operations are operations; integer
// binary operations (and integer comparisons) are Other. With AllOps set
// they become GenericOp.
//
// Thread Safety: Stateless, safe for concurrent use.
type Classifier struct {
	AllOps bool
}

// Classify returns the record for in. It never fails: anything it does
// not understand is Other.
func (c Classifier) Classify(in *ir.Instr) Record {
	rec := Record{VectorLen: 1}
	switch in.Op {
	case ir.OpLoad:
		rec.Category = Load
		return c.access(rec, in, in.Elem)

	case ir.OpStore:
		rec.Category = Store
		return c.access(rec, in, in.Elem)

	case ir.OpMemSet:
		rec.Category = Store
		rec.DataType = abi.Int8
		rec.ElemBits = 8
		if len(in.Args) > 0 {
			rec.AddrOperand = in.Args[0]
		}
		if len(in.Args) > 2 {
			rec.LenOperand = in.Args[2]
		}
		return rec

	case ir.OpCall:
		if abi.IsHook(in.Callee) {
			return rec
		}
		rec.Category = Call
		return rec

	case ir.OpBr, ir.OpCondBr, ir.OpSwitch:
		rec.Category = Branch
		return rec
	}

	if !in.Op.IsBinary() {
		return rec
	}

	operand := in.Type()
	if len(in.Args) > 0 {
		operand = in.Args[0].Type()
	}
	rec.IsFlop = in.Op.IsFloatOp() || operand.IsFloat() || in.Type().IsFloat()
	rec.VectorLen = operand.Lanes()
	rec.ElemBits = operand.Scalar().SizeBits()
	rec.DataType = TypeCategory(in.Type())
	rec.OperandBits = operandBits(in)

	switch {
	case operand.IsVector():
		// Integer vector ops feed the vector tally even without AllOps.
		rec.Category = VectorOp
	case rec.IsFlop:
		rec.Category = FloatingPointOp
	case c.AllOps:
		rec.Category = GenericOp
	default:
		return Record{VectorLen: 1}
	}
	return rec
}

func (c Classifier) access(rec Record, in *ir.Instr, t *ir.Type) Record {
	rec.DataType = TypeCategory(t)
	rec.ByteWidth = t.SizeBytes()
	rec.VectorLen = t.Lanes()
	rec.ElemBits = t.Scalar().SizeBits()
	if len(in.Args) > 0 {
		rec.AddrOperand = in.Args[0]
	}
	return rec
}

// CountsOps reports whether rec feeds the Ops and OpBits counters.
func (c Classifier) CountsOps(rec Record) bool {
	switch rec.Category {
	case GenericOp:
		return true
	case FloatingPointOp, VectorOp:
		return c.AllOps
	}
	return false
}

// operandBits sums the widths of every operand plus the result. Pointers
// count PointerBits; vectors count lanes times element width.
func operandBits(in *ir.Instr) int {
	n := in.Type().SizeBits()
	for _, a := range in.Args {
		n += a.Type().SizeBits()
	}
	return n
}

// TypeCategory maps t to the per-type counter bucket. Vectors, arrays,
// structs and odd-width scalars are OtherType.
func TypeCategory(t *ir.Type) abi.TypeCategory {
	if t == nil {
		return abi.OtherType
	}
	switch t.Kind {
	case ir.KindFloat:
		switch t.Bits {
		case 32:
			return abi.Float32
		case 64:
			return abi.Float64
		}
	case ir.KindInt:
		switch t.Bits {
		case 8:
			return abi.Int8
		case 16:
			return abi.Int16
		case 32:
			return abi.Int32
		case 64:
			return abi.Int64
		}
	case ir.KindPointer:
		return abi.Pointer
	}
	return abi.OtherType
}
