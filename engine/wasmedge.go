//go:build wasmedge

package engine

import (
	"context"
	"fmt"

	"github.com/second-state/WasmEdge-go/wasmedge"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

const wasmedgeEnabled = true

type wasmedgeEngine struct {
	conf *wasmedge.Configure
}

func newWasmEdgeEngine(*Config) (Engine, error) {
	return &wasmedgeEngine{conf: wasmedge.NewConfigure()}, nil
}

func (e *wasmedgeEngine) Kind() Kind { return WasmEdge }

func (e *wasmedgeEngine) NewStore(context.Context) (Store, error) {
	store := wasmedge.NewStore()
	return &wasmedgeStore{
		store: store,
		vm:    wasmedge.NewVMWithConfigAndStore(e.conf, store),
	}, nil
}

func (e *wasmedgeEngine) Close(context.Context) error {
	if e.conf != nil {
		e.conf.Release()
		e.conf = nil
	}
	return nil
}

type wasmedgeStore struct {
	store   *wasmedge.Store
	vm      *wasmedge.VM
	imports []*wasmedge.ImportObject
	globals []*wasmedge.Global
	frames  hostFrames
	seq     uint64
	closed  bool
}

func (s *wasmedgeStore) Kind() Kind { return WasmEdge }

func (s *wasmedgeStore) NewHostFunction(_ context.Context, ty types.FunctionType, call HostCall) (Function, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wasmedge store")
	}

	params := LowerTypes(ty.Params)
	results := LowerTypes(ty.Results)
	fty := wasmedge.NewFunctionType(wasmedgeValTypes(params), wasmedgeValTypes(results))

	host := func(_ interface{}, _ *wasmedge.Memory, args []interface{}) ([]interface{}, wasmedge.Result) {
		stack := make([]uint64, StackSize(ty))
		for i := range args {
			stack[i] = goBits(args[i])
		}
		buf := make([]types.RawValue, ty.Slots())
		LiftSlots(ty.Params, stack, buf)
		if err := s.frames.invoke(call, buf); err != nil {
			return nil, wasmedge.Result_Fail
		}
		LowerSlots(ty.Results, buf, stack)
		out := make([]interface{}, len(results))
		for i, rt := range results {
			out[i] = goValue(rt, stack[i])
		}
		return out, wasmedge.Result_Success
	}

	name := fmt.Sprintf("%s%d", hostModulePrefix, s.seq)
	s.seq++
	obj := wasmedge.NewImportObject(name)
	obj.AddFunction(hostExportName, wasmedge.NewFunction(fty, host, nil, 0))
	if err := s.vm.RegisterImport(obj); err != nil {
		obj.Release()
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "register wasmedge import "+name)
	}
	s.imports = append(s.imports, obj)

	return &wasmedgeFunction{store: s, module: name, ty: ty, params: params}, nil
}

func (s *wasmedgeStore) NewGlobal(_ context.Context, ty types.GlobalType, init types.RawValue) (Global, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "wasmedge store")
	}

	lowered := LowerType(ty.Type)
	slots := make([]uint64, len(lowered))
	LowerSlots([]types.ValueType{ty.Type}, []types.RawValue{init}, slots)

	mut := wasmedge.ValMut_Const
	if ty.Mutability == types.Var {
		mut = wasmedge.ValMut_Var
	}

	cells := make([]*wasmedge.Global, len(lowered))
	for i, lt := range lowered {
		gty := wasmedge.NewGlobalType(wasmedgeValType(lt), mut)
		cells[i] = wasmedge.NewGlobal(gty, goValue(lt, slots[i]))
		gty.Release()
	}
	s.globals = append(s.globals, cells...)
	return &wasmedgeGlobal{cells: cells, lowered: lowered, ty: ty}, nil
}

func (s *wasmedgeStore) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, obj := range s.imports {
		obj.Release()
	}
	for _, g := range s.globals {
		g.Release()
	}
	if s.vm != nil {
		s.vm.Release()
	}
	if s.store != nil {
		s.store.Release()
	}
	return nil
}

type wasmedgeFunction struct {
	store  *wasmedgeStore
	module string
	ty     types.FunctionType
	params []types.ValueType
}

func (f *wasmedgeFunction) Kind() Kind               { return WasmEdge }
func (f *wasmedgeFunction) Type() types.FunctionType { return f.ty }

func (f *wasmedgeFunction) Call(ctx context.Context, buf []types.RawValue) error {
	stack := make([]uint64, StackSize(f.ty))
	LowerSlots(f.ty.Params, buf, stack)

	args := make([]interface{}, len(f.params))
	for i, pt := range f.params {
		args[i] = goValue(pt, stack[i])
	}

	frame := f.store.frames.enter(ctx)
	res, callErr := f.store.vm.ExecuteRegistered(f.module, hostExportName, args...)
	f.store.frames.leave()
	if err := frame.result(callErr); err != nil {
		return err
	}

	for i := range res {
		stack[i] = goBits(res[i])
	}
	LiftSlots(f.ty.Results, stack, buf)
	return nil
}

type wasmedgeGlobal struct {
	cells   []*wasmedge.Global
	lowered []types.ValueType
	ty      types.GlobalType
}

func (g *wasmedgeGlobal) Kind() Kind             { return WasmEdge }
func (g *wasmedgeGlobal) Type() types.GlobalType { return g.ty }

func (g *wasmedgeGlobal) Get(context.Context) (types.RawValue, error) {
	slots := make([]uint64, len(g.cells))
	for i, c := range g.cells {
		slots[i] = goBits(c.GetValue())
	}
	out := make([]types.RawValue, 1)
	LiftSlots([]types.ValueType{g.ty.Type}, slots, out)
	return out[0], nil
}

func (g *wasmedgeGlobal) Set(_ context.Context, v types.RawValue) error {
	if g.ty.Mutability != types.Var {
		return errors.Immutable("global")
	}
	slots := make([]uint64, len(g.cells))
	LowerSlots([]types.ValueType{g.ty.Type}, []types.RawValue{v}, slots)
	for i, c := range g.cells {
		c.SetValue(goValue(g.lowered[i], slots[i]))
	}
	return nil
}

func wasmedgeValType(t types.ValueType) wasmedge.ValType {
	switch t {
	case types.I64:
		return wasmedge.ValType_I64
	case types.F32:
		return wasmedge.ValType_F32
	case types.F64:
		return wasmedge.ValType_F64
	default:
		return wasmedge.ValType_I32
	}
}

func wasmedgeValTypes(list []types.ValueType) []wasmedge.ValType {
	out := make([]wasmedge.ValType, len(list))
	for i, t := range list {
		out[i] = wasmedgeValType(t)
	}
	return out
}
