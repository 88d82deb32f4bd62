package engine

import (
	"strings"

	"github.com/wippyai/wasm-bridge/errors"
)

// Kind selects one backend. The set is closed and known at build time.
type Kind uint8

const (
	// Compiler is wazero's optimizing compiler (amd64 and arm64 only).
	Compiler Kind = iota + 1
	// Interpreter is wazero's portable interpreter.
	Interpreter
	// Wasmtime is wasmtime via cgo (build tag "wasmtime").
	Wasmtime
	// Wasmer is wasmer via cgo (build tag "wasmer").
	Wasmer
	// WasmEdge is WasmEdge via cgo (build tag "wasmedge").
	WasmEdge
	// Naive runs host functions in-process with no guest engine.
	Naive
)

var kindNames = map[Kind]string{
	Compiler:    "compiler",
	Interpreter: "interpreter",
	Wasmtime:    "wasmtime",
	Wasmer:      "wasmer",
	WasmEdge:    "wasmedge",
	Naive:       "naive",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Kinds returns every backend kind in declaration order.
func Kinds() []Kind {
	return []Kind{Compiler, Interpreter, Wasmtime, Wasmer, WasmEdge, Naive}
}

// Available reports whether k was compiled into this binary.
func (k Kind) Available() bool {
	switch k {
	case Compiler:
		return CompilerSupported
	case Interpreter, Naive:
		return true
	case Wasmtime:
		return wasmtimeEnabled
	case Wasmer:
		return wasmerEnabled
	case WasmEdge:
		return wasmedgeEnabled
	}
	return false
}

// AvailableKinds returns the kinds usable in this binary.
func AvailableKinds() []Kind {
	var out []Kind
	for _, k := range Kinds() {
		if k.Available() {
			out = append(out, k)
		}
	}
	return out
}

// ParseKind parses a backend name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errors.NotFound(errors.PhaseConfig, "backend", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
