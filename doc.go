// Package wasmbridge is a backend-neutral bridge between Go host code and
// WebAssembly engines.
//
// It lets an embedder create host functions, globals and opaque references
// once and use them with whichever engine was selected when the Engine was
// built. Values cross the boundary as typed Values or as raw 128-bit slots,
// and every entity is bound to the Store that created it.
//
// # Architecture Overview
//
//	wasmbridge/
//	├── runtime/         Host-facing API: Engine, Store, Function, Global, refs
//	├── engine/          Backend adapters: wazero, wasmtime, wasmer, WasmEdge, naive
//	├── registry/        Store-owned object registry and store-tagged handles
//	├── types/           Value kinds, function types and raw slot encoding
//	├── errors/          Structured error types for debugging
//	├── internal/wasm/   Synthetic module builder used by the wazero backend
//	└── cmd/run/         CLI and TUI for calling demo host functions
//
// # Quick Start
//
//	ctx := context.Background()
//	eng, err := runtime.NewEngine(ctx, runtime.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	store, err := runtime.NewStore(ctx, eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close(ctx)
//
//	double, err := runtime.NewTypedFunction(ctx, store, func(x int64) int64 {
//	    return x * 2
//	})
//	out, err := double.Call(ctx, store, runtime.I64(21))
//	fmt.Println(out[0].I64()) // 42
//
// # Backends
//
// wazero's compiler and interpreter are always built in. wasmtime, wasmer
// and WasmEdge need cgo and the build tags "wasmtime", "wasmer" and
// "wasmedge". The naive backend calls host functions directly and is meant
// for tests and platforms without any engine.
//
// # Thread Safety
//
// Engine is safe for concurrent use. A Store and the entities it owns
// should be used by one goroutine at a time.
package wasmbridge
