package ir

import "fmt"

// Opcode is the operation an instruction performs.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Integer binary operations.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpAndNot

	// Floating-point operations.
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFRem
	OpFNeg

	// Comparisons. Pred holds the predicate.
	OpICmp
	OpFCmp

	// Memory.
	OpAlloca
	OpLoad
	OpStore
	OpPtrAdd
	OpMemSet

	// Miscellaneous value-producing operations.
	OpCast
	OpSelect
	OpPhi
	OpCall

	// Injected counter update: Counter += Args[0].
	OpIncrement

	// Terminators.
	OpBr
	OpCondBr
	OpSwitch
	OpRet
	OpUnreachable

	// OpOther stands for any operation the IR does not model further.
	OpOther

	NumOpcodes
)

var opcodeNames = [NumOpcodes]string{
	OpInvalid:     "invalid",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpRem:         "rem",
	OpShl:         "shl",
	OpShr:         "shr",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpAndNot:      "andnot",
	OpFAdd:        "fadd",
	OpFSub:        "fsub",
	OpFMul:        "fmul",
	OpFDiv:        "fdiv",
	OpFRem:        "frem",
	OpFNeg:        "fneg",
	OpICmp:        "icmp",
	OpFCmp:        "fcmp",
	OpAlloca:      "alloca",
	OpLoad:        "load",
	OpStore:       "store",
	OpPtrAdd:      "ptradd",
	OpMemSet:      "memset",
	OpCast:        "cast",
	OpSelect:      "select",
	OpPhi:         "phi",
	OpCall:        "call",
	OpIncrement:   "increment",
	OpBr:          "br",
	OpCondBr:      "condbr",
	OpSwitch:      "switch",
	OpRet:         "ret",
	OpUnreachable: "unreachable",
	OpOther:       "other",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, NumOpcodes)
	for op, name := range opcodeNames {
		m[name] = Opcode(op)
	}
	return m
}()

func (op Opcode) String() string {
	if op < NumOpcodes {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// ParseOpcode looks an opcode up by its textual name.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok && op != OpInvalid
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpBr, OpCondBr, OpSwitch, OpRet, OpUnreachable:
		return true
	}
	return false
}

// IsBinary reports whether op combines operands arithmetically or
// logically, including comparisons and unary negation.
func (op Opcode) IsBinary() bool {
	return (op >= OpAdd && op <= OpFNeg) || op == OpICmp || op == OpFCmp
}

// IsFloatOp reports whether op is a floating-point operation regardless
// of operand type.
func (op Opcode) IsFloatOp() bool {
	return (op >= OpFAdd && op <= OpFNeg) || op == OpFCmp
}
