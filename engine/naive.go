package engine

import (
	"context"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

// naiveEngine runs host functions directly on the calling goroutine. There
// is no guest code between the trampoline and the host call.
type naiveEngine struct{}

func (e *naiveEngine) Kind() Kind { return Naive }

func (e *naiveEngine) NewStore(context.Context) (Store, error) {
	return &naiveStore{}, nil
}

func (e *naiveEngine) Close(context.Context) error { return nil }

type naiveStore struct {
	closed bool
}

func (s *naiveStore) Kind() Kind { return Naive }

func (s *naiveStore) NewHostFunction(_ context.Context, ty types.FunctionType, call HostCall) (Function, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "naive store")
	}
	return &naiveFunction{ty: ty, call: call}, nil
}

func (s *naiveStore) NewGlobal(_ context.Context, ty types.GlobalType, init types.RawValue) (Global, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseEngine, "naive store")
	}
	return &naiveGlobal{ty: ty, value: init}, nil
}

func (s *naiveStore) Close(context.Context) error {
	s.closed = true
	return nil
}

type naiveFunction struct {
	call HostCall
	ty   types.FunctionType
}

func (f *naiveFunction) Kind() Kind               { return Naive }
func (f *naiveFunction) Type() types.FunctionType { return f.ty }

func (f *naiveFunction) Call(ctx context.Context, buf []types.RawValue) error {
	return f.call(ctx, buf)
}

type naiveGlobal struct {
	ty    types.GlobalType
	value types.RawValue
}

func (g *naiveGlobal) Kind() Kind             { return Naive }
func (g *naiveGlobal) Type() types.GlobalType { return g.ty }

func (g *naiveGlobal) Get(context.Context) (types.RawValue, error) {
	return g.value, nil
}

func (g *naiveGlobal) Set(_ context.Context, v types.RawValue) error {
	if g.ty.Mutability != types.Var {
		return errors.Immutable("global")
	}
	g.value = v
	return nil
}
