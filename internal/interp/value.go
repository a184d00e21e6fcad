package interp

import (
	"fmt"
	"math"
	"strings"

	"github.com/kolkov/bytesflops/internal/ir"
)

// Value is a runtime value. Integers and pointers use I, floats use F and
// vectors hold one Value per lane in V.
type Value struct {
	I int64
	F float64
	V []Value
}

func (v Value) String() string {
	if v.V != nil {
		parts := make([]string, len(v.V))
		for i, l := range v.V {
			parts[i] = l.String()
		}
		return "<" + strings.Join(parts, ", ") + ">"
	}
	if v.F != 0 {
		return fmt.Sprint(v.F)
	}
	return fmt.Sprint(v.I)
}

// Int returns an integer value.
func Int(i int64) Value { return Value{I: i} }

// Float returns a floating-point value.
func Float(f float64) Value { return Value{F: f} }

// zero returns the zero value of t.
func zero(t *ir.Type) Value {
	if t.IsVector() {
		lanes := make([]Value, t.Len)
		return Value{V: lanes}
	}
	return Value{}
}

// truncate wraps an integer to the width of t.
func truncate(t *ir.Type, i int64) int64 {
	bits := t.Scalar().SizeBits()
	if t.Scalar().Kind != ir.KindInt || bits <= 0 || bits >= 64 {
		return i
	}
	if bits == 1 {
		return i & 1
	}
	shift := 64 - uint(bits)
	return (i << shift) >> shift
}

// lanewise applies fn to each lane of vector operands, or once for scalars.
func lanewise(t *ir.Type, fn func(a, b Value) (Value, error), a, b Value) (Value, error) {
	if !t.IsVector() && a.V == nil {
		return fn(a, b)
	}
	out := make([]Value, len(a.V))
	for i := range a.V {
		var bl Value
		if i < len(b.V) {
			bl = b.V[i]
		}
		r, err := fn(a.V[i], bl)
		if err != nil {
			return Value{}, err
		}
		out[i] = r
	}
	return Value{V: out}, nil
}

func intBinary(op ir.Opcode, t *ir.Type, a, b int64) (int64, error) {
	var r int64
	switch op {
	case ir.OpAdd:
		r = a + b
	case ir.OpSub:
		r = a - b
	case ir.OpMul:
		r = a * b
	case ir.OpDiv:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		r = a / b
	case ir.OpRem:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		r = a % b
	case ir.OpShl:
		r = a << uint64(b&63)
	case ir.OpShr:
		r = a >> uint64(b&63)
	case ir.OpAnd:
		r = a & b
	case ir.OpOr:
		r = a | b
	case ir.OpXor:
		r = a ^ b
	case ir.OpAndNot:
		r = a &^ b
	default:
		return 0, fmt.Errorf("%s is not an integer operation", op)
	}
	return truncate(t, r), nil
}

func floatBinary(op ir.Opcode, a, b float64) (float64, error) {
	switch op {
	case ir.OpFAdd, ir.OpAdd:
		return a + b, nil
	case ir.OpFSub, ir.OpSub:
		return a - b, nil
	case ir.OpFMul, ir.OpMul:
		return a * b, nil
	case ir.OpFDiv, ir.OpDiv:
		return a / b, nil
	case ir.OpFRem, ir.OpRem:
		return math.Mod(a, b), nil
	case ir.OpFNeg:
		return -a, nil
	}
	return 0, fmt.Errorf("%s is not a floating-point operation", op)
}

func intCompare(pred string, a, b int64) (bool, error) {
	switch pred {
	case "eq":
		return a == b, nil
	case "ne":
		return a != b, nil
	case "slt", "lt":
		return a < b, nil
	case "sle", "le":
		return a <= b, nil
	case "sgt", "gt":
		return a > b, nil
	case "sge", "ge":
		return a >= b, nil
	case "ult":
		return uint64(a) < uint64(b), nil
	case "ule":
		return uint64(a) <= uint64(b), nil
	case "ugt":
		return uint64(a) > uint64(b), nil
	case "uge":
		return uint64(a) >= uint64(b), nil
	}
	return false, fmt.Errorf("unknown integer predicate %q", pred)
}

func floatCompare(pred string, a, b float64) (bool, error) {
	switch pred {
	case "oeq", "eq":
		return a == b, nil
	case "one", "ne":
		return a != b, nil
	case "olt", "lt":
		return a < b, nil
	case "ole", "le":
		return a <= b, nil
	case "ogt", "gt":
		return a > b, nil
	case "oge", "ge":
		return a >= b, nil
	}
	return false, fmt.Errorf("unknown floating-point predicate %q", pred)
}

func boolValue(b bool) Value {
	if b {
		return Value{I: 1}
	}
	return Value{}
}

// convert implements OpCast between scalar kinds.
func convert(to, from *ir.Type, v Value) Value {
	if to.IsVector() && v.V != nil {
		out := make([]Value, len(v.V))
		for i, l := range v.V {
			out[i] = convert(to.Elem, from.Scalar(), l)
		}
		return Value{V: out}
	}
	switch {
	case to.IsFloat() && from.IsFloat():
		if to.Bits == 32 {
			return Value{F: float64(float32(v.F))}
		}
		return Value{F: v.F}
	case to.IsFloat():
		return Value{F: float64(v.I)}
	case from.IsFloat():
		return Value{I: truncate(to, int64(v.F))}
	}
	return Value{I: truncate(to, v.I)}
}

// externs are the body-less functions the interpreter can evaluate.
var externs = map[string]func(float64) float64{
	"sqrt": math.Sqrt,
	"fabs": math.Abs,
	"exp":  math.Exp,
	"log":  math.Log,
	"sin":  math.Sin,
	"cos":  math.Cos,
}
