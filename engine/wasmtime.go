//go:build wasmtime

package engine

import (
	"context"
	"math"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

const wasmtimeEnabled = true

type wasmtimeEngine struct {
	engine *wasmtime.Engine
}

func newWasmtimeEngine(cfg *Config) (Engine, error) {
	c := wasmtime.NewConfig()
	c.SetWasmMultiValue(true)
	c.SetWasmSIMD(true)
	return &wasmtimeEngine{engine: wasmtime.NewEngineWithConfig(c)}, nil
}

func (e *wasmtimeEngine) Kind() Kind { return Wasmtime }

func (e *wasmtimeEngine) NewStore(context.Context) (Store, error) {
	return &wasmtimeStore{store: wasmtime.NewStore(e.engine)}, nil
}

func (e *wasmtimeEngine) Close(context.Context) error { return nil }

type wasmtimeStore struct {
	store  *wasmtime.Store
	frames hostFrames
	closed bool
}

func (s *wasmtimeStore) Kind() Kind { return Wasmtime }

func (s *wasmtimeStore) NewHostFunction(_ context.Context, ty types.FunctionType, call HostCall) (Function, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wasmtime store")
	}

	params := LowerTypes(ty.Params)
	results := LowerTypes(ty.Results)
	fty := wasmtime.NewFuncType(wasmtimeValTypes(params), wasmtimeValTypes(results))

	fn := wasmtime.NewFunc(s.store, fty, func(_ *wasmtime.Caller, args []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
		stack := make([]uint64, StackSize(ty))
		for i, a := range args {
			stack[i] = wasmtimeBits(a)
		}
		buf := make([]types.RawValue, ty.Slots())
		LiftSlots(ty.Params, stack, buf)
		if err := s.frames.invoke(call, buf); err != nil {
			return nil, wasmtime.NewTrap(err.Error())
		}
		LowerSlots(ty.Results, buf, stack)
		out := make([]wasmtime.Val, len(results))
		for i, rt := range results {
			out[i] = wasmtimeVal(rt, stack[i])
		}
		return out, nil
	})

	return &wasmtimeFunction{store: s, fn: fn, ty: ty, params: params, results: results}, nil
}

func (s *wasmtimeStore) NewGlobal(_ context.Context, ty types.GlobalType, init types.RawValue) (Global, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wasmtime store")
	}

	lowered := LowerType(ty.Type)
	slots := make([]uint64, len(lowered))
	LowerSlots([]types.ValueType{ty.Type}, []types.RawValue{init}, slots)

	cells := make([]*wasmtime.Global, len(lowered))
	for i, lt := range lowered {
		gty := wasmtime.NewGlobalType(wasmtime.NewValType(wasmtimeKind(lt)), ty.Mutability == types.Var)
		g, err := wasmtime.NewGlobal(s.store, gty, wasmtimeVal(lt, slots[i]))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "create wasmtime global")
		}
		cells[i] = g
	}
	return &wasmtimeGlobal{store: s, cells: cells, lowered: lowered, ty: ty}, nil
}

func (s *wasmtimeStore) Close(context.Context) error {
	s.closed = true
	return nil
}

type wasmtimeFunction struct {
	store   *wasmtimeStore
	fn      *wasmtime.Func
	ty      types.FunctionType
	params  []types.ValueType
	results []types.ValueType
}

func (f *wasmtimeFunction) Kind() Kind               { return Wasmtime }
func (f *wasmtimeFunction) Type() types.FunctionType { return f.ty }

func (f *wasmtimeFunction) Call(ctx context.Context, buf []types.RawValue) error {
	stack := make([]uint64, StackSize(f.ty))
	LowerSlots(f.ty.Params, buf, stack)

	args := make([]interface{}, len(f.params))
	for i, pt := range f.params {
		args[i] = goValue(pt, stack[i])
	}

	frame := f.store.frames.enter(ctx)
	res, callErr := f.fn.Call(f.store.store, args...)
	f.store.frames.leave()
	if err := frame.result(callErr); err != nil {
		return err
	}

	switch v := res.(type) {
	case nil:
	case []wasmtime.Val:
		for i := range v {
			stack[i] = wasmtimeBits(v[i])
		}
	default:
		stack[0] = goBits(v)
	}
	LiftSlots(f.ty.Results, stack, buf)
	return nil
}

type wasmtimeGlobal struct {
	store   *wasmtimeStore
	cells   []*wasmtime.Global
	lowered []types.ValueType
	ty      types.GlobalType
}

func (g *wasmtimeGlobal) Kind() Kind             { return Wasmtime }
func (g *wasmtimeGlobal) Type() types.GlobalType { return g.ty }

func (g *wasmtimeGlobal) Get(context.Context) (types.RawValue, error) {
	slots := make([]uint64, len(g.cells))
	for i, c := range g.cells {
		slots[i] = wasmtimeBits(c.Get(g.store.store))
	}
	out := make([]types.RawValue, 1)
	LiftSlots([]types.ValueType{g.ty.Type}, slots, out)
	return out[0], nil
}

func (g *wasmtimeGlobal) Set(_ context.Context, v types.RawValue) error {
	if g.ty.Mutability != types.Var {
		return errors.Immutable("global")
	}
	slots := make([]uint64, len(g.cells))
	LowerSlots([]types.ValueType{g.ty.Type}, []types.RawValue{v}, slots)
	for i, c := range g.cells {
		if err := c.Set(g.store.store, wasmtimeVal(g.lowered[i], slots[i])); err != nil {
			return errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "set wasmtime global")
		}
	}
	return nil
}

func wasmtimeKind(t types.ValueType) wasmtime.ValKind {
	switch t {
	case types.I64:
		return wasmtime.KindI64
	case types.F32:
		return wasmtime.KindF32
	case types.F64:
		return wasmtime.KindF64
	default:
		return wasmtime.KindI32
	}
}

func wasmtimeValTypes(list []types.ValueType) []*wasmtime.ValType {
	out := make([]*wasmtime.ValType, len(list))
	for i, t := range list {
		out[i] = wasmtime.NewValType(wasmtimeKind(t))
	}
	return out
}

func wasmtimeVal(t types.ValueType, bits uint64) wasmtime.Val {
	switch t {
	case types.I64:
		return wasmtime.ValI64(int64(bits))
	case types.F32:
		return wasmtime.ValF32(math.Float32frombits(uint32(bits)))
	case types.F64:
		return wasmtime.ValF64(math.Float64frombits(bits))
	default:
		return wasmtime.ValI32(int32(uint32(bits)))
	}
}

func wasmtimeBits(v wasmtime.Val) uint64 {
	switch v.Kind() {
	case wasmtime.KindI64:
		return uint64(v.I64())
	case wasmtime.KindF32:
		return uint64(math.Float32bits(v.F32()))
	case wasmtime.KindF64:
		return math.Float64bits(v.F64())
	default:
		return uint64(uint32(v.I32()))
	}
}
