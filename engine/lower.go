package engine

import (
	"github.com/wippyai/wasm-bridge/types"
)

// Every backend speaks only i32, i64, f32 and f64 at its native boundary.
// Wider kinds are lowered onto those slots:
//
//	v128                         two i64 slots (lo, hi)
//	funcref, externref, exnref   one i64 slot holding the raw reference
//
// Slots are uint64 bit patterns in the wazero stack encoding: i32 and f32
// occupy the low 32 bits.

// LowerType returns the native slot kinds a value of type t occupies.
func LowerType(t types.ValueType) []types.ValueType {
	switch t {
	case types.I32, types.I64, types.F32, types.F64:
		return []types.ValueType{t}
	case types.V128:
		return []types.ValueType{types.I64, types.I64}
	default:
		return []types.ValueType{types.I64}
	}
}

// LowerTypes lowers a list of value kinds.
func LowerTypes(list []types.ValueType) []types.ValueType {
	out := make([]types.ValueType, 0, len(list))
	for _, t := range list {
		out = append(out, LowerType(t)...)
	}
	return out
}

// SlotCount returns how many native slots list occupies.
func SlotCount(list []types.ValueType) int {
	n := 0
	for _, t := range list {
		if t == types.V128 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// StackSize returns the native stack length a call with ty needs.
func StackSize(ty types.FunctionType) int {
	return max(SlotCount(ty.Params), SlotCount(ty.Results))
}

// LowerSlots writes values of kinds list from src into native slots dst.
func LowerSlots(list []types.ValueType, src []types.RawValue, dst []uint64) {
	j := 0
	for i, t := range list {
		v := src[i]
		switch t {
		case types.I32, types.F32:
			dst[j] = uint64(uint32(v.Lo))
		case types.V128:
			dst[j] = v.Lo
			dst[j+1] = v.Hi
			j++
		default:
			dst[j] = v.Lo
		}
		j++
	}
}

// LiftSlots reads values of kinds list from native slots src into dst.
func LiftSlots(list []types.ValueType, src []uint64, dst []types.RawValue) {
	j := 0
	for i, t := range list {
		switch t {
		case types.I32, types.F32:
			dst[i] = types.RawValue{Lo: uint64(uint32(src[j]))}
		case types.V128:
			dst[i] = types.RawValue{Lo: src[j], Hi: src[j+1]}
			j++
		default:
			dst[i] = types.RawValue{Lo: src[j]}
		}
		j++
	}
}
