package main

import (
	"strconv"
	"strings"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/types"
)

// parseValue reads a command-line argument as a value of kind t.
// Floats accept a "0x" prefix for raw IEEE bits; v128 takes "hi:lo" in hex.
func parseValue(t types.ValueType, s string) (runtime.Value, error) {
	s = strings.TrimSpace(s)
	switch t {
	case types.I32:
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return runtime.Value{}, parseError(t, s, err)
		}
		return runtime.I32(int32(v)), nil
	case types.I64:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return runtime.Value{}, parseError(t, s, err)
		}
		return runtime.I64(v), nil
	case types.F32:
		if bits, ok := hexBits(s, 32); ok {
			return runtime.F32Bits(uint32(bits)), nil
		}
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return runtime.Value{}, parseError(t, s, err)
		}
		return runtime.F32(float32(v)), nil
	case types.F64:
		if bits, ok := hexBits(s, 64); ok {
			return runtime.F64Bits(bits), nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return runtime.Value{}, parseError(t, s, err)
		}
		return runtime.F64(v), nil
	case types.V128:
		hi, lo, ok := strings.Cut(s, ":")
		if !ok {
			return runtime.Value{}, parseError(t, s, nil)
		}
		h, err := strconv.ParseUint(strings.TrimPrefix(hi, "0x"), 16, 64)
		if err != nil {
			return runtime.Value{}, parseError(t, s, err)
		}
		l, err := strconv.ParseUint(strings.TrimPrefix(lo, "0x"), 16, 64)
		if err != nil {
			return runtime.Value{}, parseError(t, s, err)
		}
		return runtime.V128(types.Vec128{Lo: l, Hi: h}), nil
	}
	if t.IsRef() && s == "null" {
		return runtime.NullRef(t), nil
	}
	return runtime.Value{}, errors.New(errors.PhaseConfig, errors.KindUnsupported).
		Expected(t.String()).
		Actual(s).
		Detail("cannot be given on the command line").
		Build()
}

func hexBits(s string, size int) (uint64, bool) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:], 16, size)
	return v, err == nil
}

func parseError(t types.ValueType, s string, cause error) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Expected(t.String()).
		Actual(strconv.Quote(s)).
		Cause(cause).
		Build()
}

func formatValues(vals []runtime.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
