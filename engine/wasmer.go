//go:build wasmer

package engine

import (
	"context"
	"math"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

const wasmerEnabled = true

type wasmerEngine struct {
	engine *wasmer.Engine
}

func newWasmerEngine(*Config) (Engine, error) {
	return &wasmerEngine{engine: wasmer.NewEngine()}, nil
}

func (e *wasmerEngine) Kind() Kind { return Wasmer }

func (e *wasmerEngine) NewStore(context.Context) (Store, error) {
	return &wasmerStore{store: wasmer.NewStore(e.engine)}, nil
}

func (e *wasmerEngine) Close(context.Context) error { return nil }

type wasmerStore struct {
	store  *wasmer.Store
	frames hostFrames
	closed bool
}

func (s *wasmerStore) Kind() Kind { return Wasmer }

func (s *wasmerStore) NewHostFunction(_ context.Context, ty types.FunctionType, call HostCall) (Function, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wasmer store")
	}

	params := LowerTypes(ty.Params)
	results := LowerTypes(ty.Results)
	fty := wasmer.NewFunctionType(wasmerValueTypes(params), wasmerValueTypes(results))

	fn := wasmer.NewFunction(s.store, fty, func(args []wasmer.Value) ([]wasmer.Value, error) {
		stack := make([]uint64, StackSize(ty))
		for i := range args {
			stack[i] = wasmerBits(args[i])
		}
		buf := make([]types.RawValue, ty.Slots())
		LiftSlots(ty.Params, stack, buf)
		if err := s.frames.invoke(call, buf); err != nil {
			return nil, err
		}
		LowerSlots(ty.Results, buf, stack)
		out := make([]wasmer.Value, len(results))
		for i, rt := range results {
			out[i] = wasmerValue(rt, stack[i])
		}
		return out, nil
	})

	return &wasmerFunction{store: s, fn: fn, ty: ty, params: params}, nil
}

func (s *wasmerStore) NewGlobal(_ context.Context, ty types.GlobalType, init types.RawValue) (Global, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wasmer store")
	}

	lowered := LowerType(ty.Type)
	slots := make([]uint64, len(lowered))
	LowerSlots([]types.ValueType{ty.Type}, []types.RawValue{init}, slots)

	mutability := wasmer.IMMUTABLE
	if ty.Mutability == types.Var {
		mutability = wasmer.MUTABLE
	}

	cells := make([]*wasmer.Global, len(lowered))
	for i, lt := range lowered {
		gty := wasmer.NewGlobalType(wasmer.NewValueType(wasmerKind(lt)), mutability)
		cells[i] = wasmer.NewGlobal(s.store, gty, wasmerValue(lt, slots[i]))
	}
	return &wasmerGlobal{cells: cells, lowered: lowered, ty: ty}, nil
}

// Close marks the store unusable; the native store is released by its finalizer.
func (s *wasmerStore) Close(context.Context) error {
	s.closed = true
	return nil
}

type wasmerFunction struct {
	store  *wasmerStore
	fn     *wasmer.Function
	ty     types.FunctionType
	params []types.ValueType
}

func (f *wasmerFunction) Kind() Kind               { return Wasmer }
func (f *wasmerFunction) Type() types.FunctionType { return f.ty }

func (f *wasmerFunction) Call(ctx context.Context, buf []types.RawValue) error {
	stack := make([]uint64, StackSize(f.ty))
	LowerSlots(f.ty.Params, buf, stack)

	args := make([]interface{}, len(f.params))
	for i, pt := range f.params {
		args[i] = goValue(pt, stack[i])
	}

	frame := f.store.frames.enter(ctx)
	res, callErr := f.fn.Call(args...)
	f.store.frames.leave()
	if err := frame.result(callErr); err != nil {
		return err
	}

	switch v := res.(type) {
	case nil:
	case []interface{}:
		for i := range v {
			stack[i] = goBits(v[i])
		}
	default:
		stack[0] = goBits(v)
	}
	LiftSlots(f.ty.Results, stack, buf)
	return nil
}

type wasmerGlobal struct {
	cells   []*wasmer.Global
	lowered []types.ValueType
	ty      types.GlobalType
}

func (g *wasmerGlobal) Kind() Kind             { return Wasmer }
func (g *wasmerGlobal) Type() types.GlobalType { return g.ty }

func (g *wasmerGlobal) Get(context.Context) (types.RawValue, error) {
	slots := make([]uint64, len(g.cells))
	for i, c := range g.cells {
		v, err := c.Get()
		if err != nil {
			return types.RawValue{}, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "get wasmer global")
		}
		slots[i] = goBits(v)
	}
	out := make([]types.RawValue, 1)
	LiftSlots([]types.ValueType{g.ty.Type}, slots, out)
	return out[0], nil
}

func (g *wasmerGlobal) Set(_ context.Context, v types.RawValue) error {
	if g.ty.Mutability != types.Var {
		return errors.Immutable("global")
	}
	slots := make([]uint64, len(g.cells))
	LowerSlots([]types.ValueType{g.ty.Type}, []types.RawValue{v}, slots)
	for i, c := range g.cells {
		if err := c.Set(goValue(g.lowered[i], slots[i]), wasmerKind(g.lowered[i])); err != nil {
			return errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "set wasmer global")
		}
	}
	return nil
}

func wasmerKind(t types.ValueType) wasmer.ValueKind {
	switch t {
	case types.I64:
		return wasmer.I64
	case types.F32:
		return wasmer.F32
	case types.F64:
		return wasmer.F64
	default:
		return wasmer.I32
	}
}

func wasmerValueTypes(list []types.ValueType) []*wasmer.ValueType {
	kinds := make([]wasmer.ValueKind, len(list))
	for i, t := range list {
		kinds[i] = wasmerKind(t)
	}
	return wasmer.NewValueTypes(kinds...)
}

func wasmerValue(t types.ValueType, bits uint64) wasmer.Value {
	switch t {
	case types.I64:
		return wasmer.NewI64(int64(bits))
	case types.F32:
		return wasmer.NewF32(math.Float32frombits(uint32(bits)))
	case types.F64:
		return wasmer.NewF64(math.Float64frombits(bits))
	default:
		return wasmer.NewI32(int32(uint32(bits)))
	}
}

func wasmerBits(v wasmer.Value) uint64 {
	switch v.Kind() {
	case wasmer.I64:
		return uint64(v.I64())
	case wasmer.F32:
		return uint64(math.Float32bits(v.F32()))
	case wasmer.F64:
		return math.Float64bits(v.F64())
	default:
		return uint64(uint32(v.I32()))
	}
}
