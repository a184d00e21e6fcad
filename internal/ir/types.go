package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindFloat
	KindPointer
	KindVector
	KindArray
	KindStruct
)

// PointerBits is the width of every pointer value.
const PointerBits = 64

// Type describes the shape of an IR value.
//
// Scalars carry their width in Bits. Vectors and arrays carry Len
// elements of Elem. Structs carry Fields. Types are immutable once built
// and may be shared freely.
type Type struct {
	Kind   Kind
	Bits   int
	Elem   *Type
	Len    int
	Fields []*Type
}

// Predeclared scalar types.
var (
	Void = &Type{Kind: KindVoid}
	I1   = &Type{Kind: KindInt, Bits: 1}
	I8   = &Type{Kind: KindInt, Bits: 8}
	I16  = &Type{Kind: KindInt, Bits: 16}
	I32  = &Type{Kind: KindInt, Bits: 32}
	I64  = &Type{Kind: KindInt, Bits: 64}
	F32  = &Type{Kind: KindFloat, Bits: 32}
	F64  = &Type{Kind: KindFloat, Bits: 64}
	Ptr  = &Type{Kind: KindPointer}
)

// IntType returns the integer type of the given width.
func IntType(bits int) *Type {
	switch bits {
	case 1:
		return I1
	case 8:
		return I8
	case 16:
		return I16
	case 32:
		return I32
	case 64:
		return I64
	}
	return &Type{Kind: KindInt, Bits: bits}
}

// FloatType returns the floating-point type of the given width.
func FloatType(bits int) *Type {
	switch bits {
	case 32:
		return F32
	case 64:
		return F64
	}
	return &Type{Kind: KindFloat, Bits: bits}
}

// VectorOf returns a fixed-length vector of n elements of elem.
func VectorOf(elem *Type, n int) *Type {
	return &Type{Kind: KindVector, Elem: elem, Len: n}
}

// ArrayOf returns a fixed-length array of n elements of elem.
func ArrayOf(elem *Type, n int) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: n}
}

// StructOf returns a struct with the given field types.
func StructOf(fields ...*Type) *Type {
	return &Type{Kind: KindStruct, Fields: fields}
}

// SizeBits returns the storage width of t in bits.
func (t *Type) SizeBits() int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case KindInt, KindFloat:
		return t.Bits
	case KindPointer:
		return PointerBits
	case KindVector, KindArray:
		return t.Len * t.Elem.SizeBits()
	case KindStruct:
		n := 0
		for _, f := range t.Fields {
			n += f.SizeBits()
		}
		return n
	}
	return 0
}

// SizeBytes returns the storage width of t rounded up to whole bytes.
func (t *Type) SizeBytes() int {
	return (t.SizeBits() + 7) / 8
}

// IsFloat reports whether t is a float or a vector of floats.
func (t *Type) IsFloat() bool {
	if t == nil {
		return false
	}
	if t.Kind == KindVector {
		return t.Elem.IsFloat()
	}
	return t.Kind == KindFloat
}

// IsVoid reports whether t carries no value.
func (t *Type) IsVoid() bool {
	return t == nil || t.Kind == KindVoid
}

// IsVector reports whether t is a fixed-length vector.
func (t *Type) IsVector() bool {
	return t != nil && t.Kind == KindVector
}

// Lanes returns the vector length of t, or 1 for non-vectors.
func (t *Type) Lanes() int {
	if t.IsVector() {
		return t.Len
	}
	return 1
}

// Scalar returns the element type of a vector, or t itself.
func (t *Type) Scalar() *Type {
	if t.IsVector() {
		return t.Elem
	}
	return t
}

// Equal reports structural equality.
func (t *Type) Equal(u *Type) bool {
	if t == u {
		return true
	}
	if t == nil || u == nil {
		return false
	}
	return t.String() == u.String()
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return "i" + strconv.Itoa(t.Bits)
	case KindFloat:
		return "f" + strconv.Itoa(t.Bits)
	case KindPointer:
		return "ptr"
	case KindVector:
		return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
	case KindArray:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case KindStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("Kind(%d)", t.Kind)
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "void":
		return Void, nil
	case "ptr":
		return Ptr, nil
	}
	if len(s) >= 2 && (s[0] == '<' || s[0] == '[') {
		closer := byte('>')
		if s[0] == '[' {
			closer = ']'
		}
		if s[len(s)-1] != closer {
			return nil, fmt.Errorf("unterminated aggregate type %q", s)
		}
		inner := s[1 : len(s)-1]
		n, elem, ok := strings.Cut(inner, " x ")
		if !ok {
			return nil, fmt.Errorf("aggregate type %q lacks \"N x T\"", s)
		}
		count, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("bad element count in %q", s)
		}
		et, err := ParseType(elem)
		if err != nil {
			return nil, err
		}
		if s[0] == '<' {
			return VectorOf(et, count), nil
		}
		return ArrayOf(et, count), nil
	}
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		var fields []*Type
		for _, part := range splitTopLevel(s[1 : len(s)-1]) {
			ft, err := ParseType(part)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ft)
		}
		return StructOf(fields...), nil
	}
	if len(s) >= 2 && (s[0] == 'i' || s[0] == 'f') {
		bits, err := strconv.Atoi(s[1:])
		if err == nil && bits > 0 {
			if s[0] == 'i' {
				return IntType(bits), nil
			}
			return FloatType(bits), nil
		}
	}
	return nil, fmt.Errorf("unknown type %q", s)
}

// splitTopLevel splits a comma-separated field list, ignoring commas
// nested inside brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '[', '{':
			depth++
		case '>', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		parts = append(parts, s[start:])
	}
	return parts
}
