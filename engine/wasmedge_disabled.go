//go:build !wasmedge

package engine

const wasmedgeEnabled = false

func newWasmEdgeEngine(*Config) (Engine, error) {
	return nil, unsupportedBackend(WasmEdge, "wasmedge")
}
