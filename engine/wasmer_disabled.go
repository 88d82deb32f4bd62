//go:build !wasmer

package engine

const wasmerEnabled = false

func newWasmerEngine(*Config) (Engine, error) {
	return nil, unsupportedBackend(Wasmer, "wasmer")
}
