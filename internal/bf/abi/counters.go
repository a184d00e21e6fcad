package abi

import "fmt"

// CounterSet selects one of the runtime's counter arrays.
type CounterSet uint8

const (
	// SetScalar holds the named program-wide counters, indexed by Scalar.
	SetScalar CounterSet = iota
	// SetMemType holds per-data-type load and store instruction counts,
	// indexed by MemTypeIndex.
	SetMemType
	// SetInstMix is the instruction-mix histogram, indexed by opcode.
	SetInstMix
)

func (s CounterSet) String() string {
	switch s {
	case SetScalar:
		return "scalar"
	case SetMemType:
		return "memtype"
	case SetInstMix:
		return "instmix"
	}
	return fmt.Sprintf("CounterSet(%d)", uint8(s))
}

// CounterRef is the handle the engine emits for a counter. The runtime
// owns the storage behind it.
type CounterRef struct {
	Set   CounterSet
	Index int
}

func (r CounterRef) String() string {
	switch r.Set {
	case SetScalar:
		return Scalar(r.Index).String()
	case SetMemType:
		op, tc := SplitMemTypeIndex(r.Index)
		return fmt.Sprintf("%s_%s", tc, op)
	}
	return fmt.Sprintf("%s[%d]", r.Set, r.Index)
}

// Scalar enumerates the named program-wide counters.
type Scalar int

const (
	LoadBytes Scalar = iota
	StoreBytes
	LoadInsts
	StoreInsts
	Flops
	FPBits
	Ops
	OpBits
	Calls
	Blocks
	UncondBranches
	CondBranches

	NumScalars
)

var scalarNames = [NumScalars]string{
	LoadBytes:      "load_bytes",
	StoreBytes:     "store_bytes",
	LoadInsts:      "load_insts",
	StoreInsts:     "store_insts",
	Flops:          "flops",
	FPBits:         "fp_bits",
	Ops:            "ops",
	OpBits:         "op_bits",
	Calls:          "calls",
	Blocks:         "blocks",
	UncondBranches: "uncond_branches",
	CondBranches:   "cond_branches",
}

func (s Scalar) String() string {
	if s >= 0 && s < NumScalars {
		return scalarNames[s]
	}
	return fmt.Sprintf("Scalar(%d)", int(s))
}

// Ref returns the handle for s.
func (s Scalar) Ref() CounterRef {
	return CounterRef{Set: SetScalar, Index: int(s)}
}

// TypeCategory is the fixed data-type enumeration used for per-type
// memory counters.
type TypeCategory uint8

const (
	Float32 TypeCategory = iota
	Float64
	Int8
	Int16
	Int32
	Int64
	Pointer
	OtherType

	NumTypeCategories
)

var typeCategoryNames = [NumTypeCategories]string{
	Float32:   "float32",
	Float64:   "float64",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Pointer:   "pointer",
	OtherType: "other",
}

func (c TypeCategory) String() string {
	if c < NumTypeCategories {
		return typeCategoryNames[c]
	}
	return fmt.Sprintf("TypeCategory(%d)", uint8(c))
}

// MemOp distinguishes loads from stores in the per-type counters.
type MemOp uint8

const (
	MemLoad MemOp = iota
	MemStore

	NumMemOps
)

func (m MemOp) String() string {
	if m == MemStore {
		return "stores"
	}
	return "loads"
}

// NumMemTypeSlots is the length of the per-type counter array.
const NumMemTypeSlots = int(NumMemOps) * int(NumTypeCategories)

// MemTypeIndex returns the per-type counter slot for op and category.
func MemTypeIndex(op MemOp, tc TypeCategory) int {
	return int(op)*int(NumTypeCategories) + int(tc)
}

// SplitMemTypeIndex is the inverse of MemTypeIndex.
func SplitMemTypeIndex(idx int) (MemOp, TypeCategory) {
	return MemOp(idx / int(NumTypeCategories)), TypeCategory(idx % int(NumTypeCategories))
}

// MemTypeRef returns the handle for the per-type counter of op and tc.
func MemTypeRef(op MemOp, tc TypeCategory) CounterRef {
	return CounterRef{Set: SetMemType, Index: MemTypeIndex(op, tc)}
}
