package wasm

import (
	"bytes"
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func TestEncodeULEB128(t *testing.T) {
	tests := []struct {
		expected []byte
		input    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
	}

	for _, tt := range tests {
		if result := EncodeULEB128(tt.input); !bytes.Equal(result, tt.expected) {
			t.Errorf("EncodeULEB128(%d): expected % x, got % x", tt.input, tt.expected, result)
		}
	}
}

func TestEncodeSLEB128(t *testing.T) {
	if got := EncodeSLEB128(int32(-1)); !bytes.Equal(got, []byte{0x7f}) {
		t.Errorf("-1: got % x", got)
	}
	if got := EncodeSLEB128(int32(64)); !bytes.Equal(got, []byte{0xc0, 0x00}) {
		t.Errorf("64: got % x", got)
	}
	if got := EncodeSLEB128(int64(-123456)); !bytes.Equal(got, []byte{0xc0, 0xbb, 0x78}) {
		t.Errorf("-123456: got % x", got)
	}
}

func TestValTypeToWasm(t *testing.T) {
	tests := map[api.ValueType]byte{
		api.ValueTypeI32: 0x7f,
		api.ValueTypeI64: 0x7e,
		api.ValueTypeF32: 0x7d,
		api.ValueTypeF64: 0x7c,
	}
	for in, want := range tests {
		if got := ValTypeToWasm(in); got != want {
			t.Errorf("ValTypeToWasm(%v) = %#x, want %#x", in, got, want)
		}
	}
}
