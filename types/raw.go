package types

import "math"

// RawValue is one fixed-width slot of the flat call buffer.
//
// Scalars occupy Lo: an i32 in its low 32 bits, floats as their IEEE 754 bit
// pattern. V128 uses both halves. Reference kinds carry a registry index
// plus one, so the zero slot is the null reference.
type RawValue struct {
	Lo uint64
	Hi uint64
}

// Vec128 is a 128-bit vector split into little-endian halves.
type Vec128 struct {
	Lo uint64
	Hi uint64
}

func RawI32(v int32) RawValue { return RawValue{Lo: uint64(uint32(v))} }
func RawI64(v int64) RawValue { return RawValue{Lo: uint64(v)} }
func RawF32(v float32) RawValue { return RawValue{Lo: uint64(math.Float32bits(v))} }
func RawF64(v float64) RawValue { return RawValue{Lo: math.Float64bits(v)} }
func RawF32Bits(b uint32) RawValue { return RawValue{Lo: uint64(b)} }
func RawF64Bits(b uint64) RawValue { return RawValue{Lo: b} }
func RawV128(v Vec128) RawValue { return RawValue{Lo: v.Lo, Hi: v.Hi} }

func (r RawValue) I32() int32 { return int32(uint32(r.Lo)) }
func (r RawValue) I64() int64 { return int64(r.Lo) }
func (r RawValue) F32() float32 { return math.Float32frombits(uint32(r.Lo)) }
func (r RawValue) F64() float64 { return math.Float64frombits(r.Lo) }
func (r RawValue) F32Bits() uint32 { return uint32(r.Lo) }
func (r RawValue) V128() Vec128 { return Vec128{Lo: r.Lo, Hi: r.Hi} }

// Ref returns the reference payload and whether it is non-null. The result
// is only meaningful when ValidRef reports true.
func (r RawValue) Ref() (uint32, bool) {
	if r.Lo == 0 {
		return 0, false
	}
	return uint32(r.Lo - 1), true
}

// ValidRef reports whether r can encode a reference: null, or a registry
// index that fits in 32 bits with the upper half clear.
func (r RawValue) ValidRef() bool {
	return r.Hi == 0 && (r.Lo == 0 || r.Lo-1 <= math.MaxUint32)
}

// RawRef encodes a non-null reference to registry index idx.
func RawRef(idx uint32) RawValue { return RawValue{Lo: uint64(idx) + 1} }

// RawNull is the null reference slot.
var RawNull = RawValue{}
