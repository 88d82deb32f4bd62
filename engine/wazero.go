package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasm"
	"github.com/wippyai/wasm-bridge/types"
)

const (
	hostModulePrefix = "bridge.host."
	hostExportName   = "fn"
	thunkExportName  = "call"
)

// wazeroEngine backs the Compiler and Interpreter kinds. Every store it
// creates gets its own wazero.Runtime; compiled synthetic modules are
// shared through one compilation cache.
type wazeroEngine struct {
	cache   wazero.CompilationCache
	runtime wazero.RuntimeConfig
	kind    Kind
}

func newWazeroEngine(_ context.Context, kind Kind, cfg *Config) (*wazeroEngine, error) {
	var runtimeCfg wazero.RuntimeConfig
	switch kind {
	case Compiler:
		if !CompilerSupported {
			return nil, errors.Unsupported(errors.PhaseEngine, "compiler backend is not supported on this platform")
		}
		runtimeCfg = wazero.NewRuntimeConfigCompiler()
	default:
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}

	var cache wazero.CompilationCache
	if cfg.CompilationCacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.CompilationCacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "open compilation cache")
		}
	} else {
		cache = wazero.NewCompilationCache()
	}

	runtimeCfg = runtimeCfg.
		WithCoreFeatures(api.CoreFeaturesV2).
		WithCompilationCache(cache).
		WithCloseOnContextDone(cfg.CloseOnContextDone)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &wazeroEngine{cache: cache, runtime: runtimeCfg, kind: kind}, nil
}

func (e *wazeroEngine) Kind() Kind { return e.kind }

func (e *wazeroEngine) NewStore(ctx context.Context) (Store, error) {
	return &wazeroStore{
		runtime: wazero.NewRuntimeWithConfig(ctx, e.runtime),
		kind:    e.kind,
	}, nil
}

func (e *wazeroEngine) Close(ctx context.Context) error {
	return e.cache.Close(ctx)
}

type wazeroStore struct {
	runtime wazero.Runtime
	seq     uint64
	kind    Kind
	closed  bool
}

func (s *wazeroStore) Kind() Kind { return s.kind }

// Runtime exposes the store's wazero runtime so embedders can instantiate
// their own modules next to the bridge's.
func (s *wazeroStore) Runtime() wazero.Runtime { return s.runtime }

// NewHostFunction exports call from a host module and instantiates a guest
// module whose only export forwards to it. Calls enter through the guest
// export, so the host function always runs beneath real guest frames.
func (s *wazeroStore) NewHostFunction(ctx context.Context, ty types.FunctionType, call HostCall) (Function, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wazero store")
	}

	params := apiTypes(LowerTypes(ty.Params))
	results := apiTypes(LowerTypes(ty.Results))
	name := fmt.Sprintf("%s%d", hostModulePrefix, s.seq)
	s.seq++

	host, err := s.runtime.NewHostModuleBuilder(name).
		NewFunctionBuilder().
		WithGoModuleFunction(wazeroHostFunc(ty, call), params, results).
		Export(hostExportName).
		Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "instantiate host module "+name)
	}

	b := wasm.NewSynthModuleBuilder(name)
	b.AddForwarder(hostExportName, thunkExportName, params, results)
	guest, err := s.runtime.InstantiateWithConfig(ctx, b.Build(), wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = host.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "instantiate forwarder for "+name)
	}

	Logger().Debug("host function registered",
		kindField(s.kind),
		zap.String("module", name),
		zap.Stringer("type", ty))

	return &wazeroFunction{
		fn:        guest.ExportedFunction(thunkExportName),
		ty:        ty,
		stackSize: StackSize(ty),
		kind:      s.kind,
		module:    name,
	}, nil
}

func (s *wazeroStore) NewGlobal(ctx context.Context, ty types.GlobalType, init types.RawValue) (Global, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wazero store")
	}

	lowered := LowerType(ty.Type)
	slots := make([]uint64, len(lowered))
	LowerSlots([]types.ValueType{ty.Type}, []types.RawValue{init}, slots)

	b := wasm.NewSynthModuleBuilder("")
	for i, lt := range lowered {
		b.AddGlobal(globalExportName(i), apiType(lt), ty.Mutability == types.Var, slots[i])
	}
	mod, err := s.runtime.InstantiateWithConfig(ctx, b.Build(), wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "instantiate global module")
	}

	cells := make([]api.Global, len(lowered))
	for i := range lowered {
		cells[i] = mod.ExportedGlobal(globalExportName(i))
	}
	return &wazeroGlobal{cells: cells, ty: ty, kind: s.kind}, nil
}

func (s *wazeroStore) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.runtime.Close(ctx)
}

// wazeroHostFunc adapts a HostCall to wazero's stack-based host ABI. An
// error from call is raised as a panic; wazero recovers it at the guest
// boundary and returns it, still wrapped, from the outer CallWithStack.
func wazeroHostFunc(ty types.FunctionType, call HostCall) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		buf := make([]types.RawValue, ty.Slots())
		LiftSlots(ty.Params, stack, buf)
		if err := call(ctx, buf); err != nil {
			panic(err)
		}
		LowerSlots(ty.Results, buf, stack)
	}
}

type wazeroFunction struct {
	fn        api.Function
	module    string
	ty        types.FunctionType
	stackSize int
	kind      Kind
}

func (f *wazeroFunction) Kind() Kind               { return f.kind }
func (f *wazeroFunction) Type() types.FunctionType { return f.ty }

// ImportPath names the host export backing f, for guest modules that want
// to import it directly. Empty for wrapped guest functions.
func (f *wazeroFunction) ImportPath() (module, name string) {
	if f.module == "" {
		return "", ""
	}
	return f.module, hostExportName
}

// Wazero returns the underlying wazero function.
func (f *wazeroFunction) Wazero() api.Function { return f.fn }

func (f *wazeroFunction) Call(ctx context.Context, buf []types.RawValue) error {
	stack := make([]uint64, f.stackSize)
	LowerSlots(f.ty.Params, buf, stack)
	if err := f.fn.CallWithStack(ctx, stack); err != nil {
		return err
	}
	LiftSlots(f.ty.Results, stack, buf)
	return nil
}

// WrapFunction lifts a function exported by a module instantiated in a
// wazero store into an engine Function. Only numeric signatures are
// accepted; guest reference values have no registry representation.
func WrapFunction(kind Kind, fn api.Function) (Function, error) {
	if kind != Compiler && kind != Interpreter {
		return nil, errors.IncompatibleBackend("wazero", kind.String())
	}
	def := fn.Definition()
	params, err := fromAPITypes(def.ParamTypes())
	if err != nil {
		return nil, err
	}
	results, err := fromAPITypes(def.ResultTypes())
	if err != nil {
		return nil, err
	}
	ty := types.FunctionType{Params: params, Results: results}
	return &wazeroFunction{fn: fn, ty: ty, stackSize: StackSize(ty), kind: kind}, nil
}

type wazeroGlobal struct {
	cells []api.Global
	ty    types.GlobalType
	kind  Kind
}

func (g *wazeroGlobal) Kind() Kind             { return g.kind }
func (g *wazeroGlobal) Type() types.GlobalType { return g.ty }

func (g *wazeroGlobal) Get(context.Context) (types.RawValue, error) {
	slots := make([]uint64, len(g.cells))
	for i, c := range g.cells {
		slots[i] = c.Get()
	}
	out := make([]types.RawValue, 1)
	LiftSlots([]types.ValueType{g.ty.Type}, slots, out)
	return out[0], nil
}

func (g *wazeroGlobal) Set(_ context.Context, v types.RawValue) error {
	slots := make([]uint64, len(g.cells))
	LowerSlots([]types.ValueType{g.ty.Type}, []types.RawValue{v}, slots)
	for i, c := range g.cells {
		mg, ok := c.(api.MutableGlobal)
		if !ok {
			return errors.Immutable("global")
		}
		mg.Set(slots[i])
	}
	return nil
}

func globalExportName(i int) string {
	return fmt.Sprintf("g%d", i)
}

func apiType(t types.ValueType) api.ValueType {
	switch t {
	case types.I64:
		return api.ValueTypeI64
	case types.F32:
		return api.ValueTypeF32
	case types.F64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}

func apiTypes(list []types.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(list))
	for i, t := range list {
		out[i] = apiType(t)
	}
	return out
}

func fromAPITypes(list []api.ValueType) ([]types.ValueType, error) {
	out := make([]types.ValueType, len(list))
	for i, t := range list {
		switch t {
		case api.ValueTypeI32:
			out[i] = types.I32
		case api.ValueTypeI64:
			out[i] = types.I64
		case api.ValueTypeF32:
			out[i] = types.F32
		case api.ValueTypeF64:
			out[i] = types.F64
		default:
			return nil, errors.Unsupported(errors.PhaseEngine,
				fmt.Sprintf("guest function uses %s", api.ValueTypeName(t)))
		}
	}
	return out, nil
}
