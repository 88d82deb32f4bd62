package types

import (
	"strconv"
	"strings"
)

// ValueType is a core WebAssembly value kind, encoded with its binary opcode.
type ValueType byte

const (
	I32       ValueType = 0x7F
	I64       ValueType = 0x7E
	F32       ValueType = 0x7D
	F64       ValueType = 0x7C
	V128      ValueType = 0x7B
	FuncRef   ValueType = 0x70
	ExternRef ValueType = 0x6F
	ExnRef    ValueType = 0x69
)

// ValueTypes lists every kind in declaration order.
var ValueTypes = []ValueType{I32, I64, F32, F64, V128, ExternRef, FuncRef, ExnRef}

func (v ValueType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case V128:
		return "v128"
	case FuncRef:
		return "funcref"
	case ExternRef:
		return "externref"
	case ExnRef:
		return "exnref"
	default:
		return "unknown(0x" + strconv.FormatUint(uint64(v), 16) + ")"
	}
}

// IsRef reports whether v is a reference kind.
func (v ValueType) IsRef() bool {
	return v == FuncRef || v == ExternRef || v == ExnRef
}

// Valid reports whether v is one of the known kinds.
func (v ValueType) Valid() bool {
	switch v {
	case I32, I64, F32, F64, V128, FuncRef, ExternRef, ExnRef:
		return true
	}
	return false
}

// FunctionType is a positional function signature.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// NewFunctionType copies params and results into a new signature.
func NewFunctionType(params, results []ValueType) FunctionType {
	return FunctionType{
		Params:  append([]ValueType(nil), params...),
		Results: append([]ValueType(nil), results...),
	}
}

// Equal compares two signatures by value.
func (t FunctionType) Equal(o FunctionType) bool {
	return equalTypes(t.Params, o.Params) && equalTypes(t.Results, o.Results)
}

// Slots returns the raw buffer length a call with this signature needs.
func (t FunctionType) Slots() int {
	return max(len(t.Params), len(t.Results))
}

func (t FunctionType) String() string {
	var b strings.Builder
	writeList(&b, t.Params)
	b.WriteString(" -> ")
	writeList(&b, t.Results)
	return b.String()
}

// Mutability of a global.
type Mutability uint8

const (
	Const Mutability = iota
	Var
)

func (m Mutability) String() string {
	if m == Var {
		return "var"
	}
	return "const"
}

// GlobalType describes a global's value kind and mutability.
type GlobalType struct {
	Type       ValueType
	Mutability Mutability
}

func (g GlobalType) String() string {
	if g.Mutability == Var {
		return "(mut " + g.Type.String() + ")"
	}
	return g.Type.String()
}

func equalTypes(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeList(b *strings.Builder, list []ValueType) {
	b.WriteByte('(')
	for i, v := range list {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(')')
}

// TypeNames renders a list of kinds for error messages.
func TypeNames(list []ValueType) string {
	var b strings.Builder
	writeList(&b, list)
	return b.String()
}
