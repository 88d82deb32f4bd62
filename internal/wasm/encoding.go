package wasm

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// ValTypeToWasm converts a wazero value type to WASM encoding.
func ValTypeToWasm(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI32:
		return 0x7f
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

// ConstExpr encodes a constant initializer for a value of type t whose raw
// bit pattern is bits. Float initializers are emitted as their exact bits,
// so NaN payloads survive.
func ConstExpr(t api.ValueType, bits uint64) []byte {
	var expr []byte
	switch t {
	case api.ValueTypeI64:
		expr = append(expr, 0x42)
		expr = append(expr, EncodeSLEB128(int64(bits))...)
	case api.ValueTypeF32:
		expr = append(expr, 0x43)
		expr = binary.LittleEndian.AppendUint32(expr, uint32(bits))
	case api.ValueTypeF64:
		expr = append(expr, 0x44)
		expr = binary.LittleEndian.AppendUint64(expr, bits)
	default:
		expr = append(expr, 0x41)
		expr = append(expr, EncodeSLEB128(int32(uint32(bits)))...)
	}
	return append(expr, 0x0B)
}

func appendName(dst []byte, name string) []byte {
	dst = append(dst, EncodeULEB128(uint32(len(name)))...)
	return append(dst, name...)
}

func appendSection(dst []byte, id byte, body []byte) []byte {
	dst = append(dst, id)
	dst = append(dst, EncodeULEB128(uint32(len(body)))...)
	return append(dst, body...)
}
