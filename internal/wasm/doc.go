// Package wasm emits the minimal WebAssembly binaries the wazero engines
// instantiate for themselves: forwarder modules that route a call through
// compiled guest code into a host import, and modules that own exported
// globals.
//
//	b := wasm.NewSynthModuleBuilder("bridge.host.0")
//	b.AddForwarder("fn", "call", params, results)
//	bin := b.Build()
//
// Only i32, i64, f32 and f64 appear here; wider or reference kinds are
// lowered before they reach this package.
package wasm
