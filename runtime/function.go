package runtime

import (
	"context"
	"strconv"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
	"github.com/wippyai/wasm-bridge/types"
)

// HostFunc is a dynamically typed host function. args match the declared
// parameter kinds; the returned values must match the declared results.
type HostFunc func(ctx context.Context, args []Value) ([]Value, error)

// HostFuncWithEnv is a HostFunc that also receives a mutable view of its
// environment.
type HostFuncWithEnv[T any] func(ctx context.Context, env FunctionEnvMut[T], args []Value) ([]Value, error)

// Function is a callable entity: a host function created in a store, or a
// backend-native function brought in with FunctionFromNative.
type Function struct {
	handle registry.Handle[functionObject]
}

type functionObject struct {
	native  engine.Function
	env     any // keeps the environment reachable for the function's lifetime
	ty      types.FunctionType
	dynamic bool
}

// NewFunction creates a host function of type ty backed by fn.
func NewFunction(ctx context.Context, s *Store, ty types.FunctionType, fn HostFunc) (*Function, error) {
	return s.newDynamic(ctx, ty, fn, nil)
}

// NewFunctionWithEnv creates a host function that receives env on every call.
func NewFunctionWithEnv[T any](ctx context.Context, s *Store, env FunctionEnv[T], ty types.FunctionType, fn HostFuncWithEnv[T]) (*Function, error) {
	if !env.IsFromStore(s) {
		return nil, errors.CrossStore(errors.PhaseStore, "function environment")
	}
	mut := FunctionEnvMut[T]{store: s, env: env}
	return s.newDynamic(ctx, ty, func(ctx context.Context, args []Value) ([]Value, error) {
		return fn(ctx, mut, args)
	}, env)
}

func (s *Store) newDynamic(ctx context.Context, ty types.FunctionType, fn HostFunc, env any) (*Function, error) {
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return nil, err
	}
	if err := validateFunctionType(ty); err != nil {
		return nil, err
	}
	ty = types.NewFunctionType(ty.Params, ty.Results)
	native, err := s.native.NewHostFunction(ctx, ty, s.dynamicHostCall(ty, fn))
	if err != nil {
		return nil, err
	}
	return s.insertFunction(&functionObject{native: native, ty: ty, dynamic: true, env: env})
}

func (s *Store) insertFunction(obj *functionObject) (*Function, error) {
	h, err := registry.Insert(s.objects, obj)
	if err != nil {
		return nil, err
	}
	return &Function{handle: h}, nil
}

func validateFunctionType(ty types.FunctionType) error {
	for i, t := range ty.Params {
		if !t.Valid() {
			return errors.New(errors.PhaseStore, errors.KindInvalidInput).
				Path("param", strconv.Itoa(i)).
				Actual(t.String()).
				Detail("not a value type").
				Build()
		}
	}
	for i, t := range ty.Results {
		if !t.Valid() {
			return errors.New(errors.PhaseStore, errors.KindInvalidInput).
				Path("result", strconv.Itoa(i)).
				Actual(t.String()).
				Detail("not a value type").
				Build()
		}
	}
	return nil
}

// FunctionFromNative wraps a backend-native function as an entity of s.
// It panics with an incompatible-backend error when native was produced by
// a different backend than s runs.
func FunctionFromNative(s *Store, native engine.Function) (*Function, error) {
	engine.CheckKind(s.Backend(), native.Kind())
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return nil, err
	}
	return s.insertFunction(&functionObject{native: native, ty: native.Type()})
}

// FunctionFromWazero wraps a function exported by a module instantiated in
// s's wazero runtime. It panics with an incompatible-backend error on
// stores of other backends.
func FunctionFromWazero(s *Store, fn api.Function) (*Function, error) {
	native, err := engine.WrapFunction(s.Backend(), fn)
	if err != nil {
		if errors.KindOf(err) == errors.KindIncompatibleBackend {
			panic(err)
		}
		return nil, err
	}
	return FunctionFromNative(s, native)
}

func (f *Function) object(s *Store) (*functionObject, error) {
	return f.handle.Get(s.objects)
}

// Type returns the function's signature.
func (f *Function) Type(s *Store) (types.FunctionType, error) {
	obj, err := f.object(s)
	if err != nil {
		return types.FunctionType{}, err
	}
	return obj.ty, nil
}

// ParamArity returns the number of parameters.
func (f *Function) ParamArity(s *Store) (int, error) {
	ty, err := f.Type(s)
	return len(ty.Params), err
}

// ResultArity returns the number of results.
func (f *Function) ResultArity(s *Store) (int, error) {
	ty, err := f.Type(s)
	return len(ty.Results), err
}

// IsDynamic reports whether f was created from a dynamically typed HostFunc.
func (f *Function) IsDynamic(s *Store) (bool, error) {
	obj, err := f.object(s)
	if err != nil {
		return false, err
	}
	return obj.dynamic, nil
}

// IsFromStore reports whether f was created in s.
func (f *Function) IsFromStore(s *Store) bool {
	return f.handle.IsFromStore(s.objects)
}

// Equal reports whether f and o are the same entity.
func (f *Function) Equal(o *Function) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.handle == o.handle
}

// Native returns the backend-native function behind f.
func (f *Function) Native(s *Store) (engine.Function, error) {
	obj, err := f.object(s)
	if err != nil {
		return nil, err
	}
	return obj.native, nil
}

// Wazero returns the wazero function behind f. It panics with an
// incompatible-backend error when s does not run a wazero backend.
func (f *Function) Wazero(s *Store) (api.Function, error) {
	obj, err := f.object(s)
	if err != nil {
		return nil, err
	}
	w, ok := obj.native.(interface{ Wazero() api.Function })
	if !ok {
		panic(errors.IncompatibleBackend("wazero", obj.native.Kind().String()))
	}
	return w.Wazero(), nil
}
