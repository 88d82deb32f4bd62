//go:build !wasmtime

package engine

const wasmtimeEnabled = false

func newWasmtimeEngine(*Config) (Engine, error) {
	return nil, unsupportedBackend(Wasmtime, "wasmtime")
}
