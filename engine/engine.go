package engine

import (
	"context"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

// HostCall is the fixed-shape native entry every host function is lowered to.
//
// buf holds max(len(params), len(results)) slots. On entry the first
// len(params) slots hold the arguments; on a nil return the first
// len(results) slots hold the results. A non-nil error aborts the call.
type HostCall func(ctx context.Context, buf []types.RawValue) error

// Engine creates stores for one backend.
type Engine interface {
	Kind() Kind
	NewStore(ctx context.Context) (Store, error)
	Close(ctx context.Context) error
}

// Store is a backend's native store. Objects created by a Store are only
// valid together with it.
type Store interface {
	Kind() Kind
	NewHostFunction(ctx context.Context, ty types.FunctionType, call HostCall) (Function, error)
	NewGlobal(ctx context.Context, ty types.GlobalType, init types.RawValue) (Global, error)
	Close(ctx context.Context) error
}

// Function is a backend-native callable.
type Function interface {
	Kind() Kind
	Type() types.FunctionType
	// Call is the native trampoline: buf carries the arguments in and the
	// results out, with the same layout as HostCall.
	Call(ctx context.Context, buf []types.RawValue) error
}

// Global is a backend-native global.
type Global interface {
	Kind() Kind
	Type() types.GlobalType
	Get(ctx context.Context) (types.RawValue, error)
	Set(ctx context.Context, v types.RawValue) error
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages caps guest memories in pages (64KB each); 0 keeps the backend default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`

	// CloseOnContextDone aborts guest execution with a trap when the call
	// context is cancelled or its deadline passes (wazero backends).
	CloseOnContextDone bool `yaml:"close_on_context_done"`

	// CompilationCacheDir persists compiled synthetic modules across
	// processes (wazero backends). Empty keeps the cache in memory.
	CompilationCacheDir string `yaml:"compilation_cache_dir"`
}

// New creates an engine of the given kind.
func New(ctx context.Context, kind Kind, cfg *Config) (Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var (
		e   Engine
		err error
	)
	switch kind {
	case Compiler, Interpreter:
		e, err = newWazeroEngine(ctx, kind, cfg)
	case Wasmtime:
		e, err = newWasmtimeEngine(cfg)
	case Wasmer:
		e, err = newWasmerEngine(cfg)
	case WasmEdge:
		e, err = newWasmEdgeEngine(cfg)
	case Naive:
		e = &naiveEngine{}
	default:
		return nil, errors.New(errors.PhaseEngine, errors.KindInvalidInput).
			Value(kind).
			Detail("unknown backend kind %d", uint8(kind)).
			Build()
	}
	if err != nil {
		return nil, err
	}
	Logger().Debug("engine created", kindField(kind))
	return e, nil
}

// CheckKind panics with an incompatible-backend error when got differs from want.
// Mixing two backends inside one store is a build or wiring bug, not a
// recoverable condition.
func CheckKind(want, got Kind) {
	if want != got {
		panic(errors.IncompatibleBackend(want.String(), got.String()))
	}
}

func unsupportedBackend(kind Kind, tag string) error {
	return errors.New(errors.PhaseEngine, errors.KindUnsupported).
		Value(kind).
		Detail("%s backend not compiled in (build with -tags %s)", kind, tag).
		Build()
}
