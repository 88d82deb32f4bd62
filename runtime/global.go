package runtime

import (
	"context"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
	"github.com/wippyai/wasm-bridge/types"
)

// Global is a typed global variable living in a store.
type Global struct {
	handle registry.Handle[globalObject]
}

type globalObject struct {
	native engine.Global
}

// NewGlobal creates an immutable global initialized to v.
func NewGlobal(ctx context.Context, s *Store, v Value) (*Global, error) {
	return NewGlobalWithMutability(ctx, s, v, types.Const)
}

// NewGlobalMut creates a mutable global initialized to v.
func NewGlobalMut(ctx context.Context, s *Store, v Value) (*Global, error) {
	return NewGlobalWithMutability(ctx, s, v, types.Var)
}

// NewGlobalWithMutability creates a global of v's kind with the given mutability.
func NewGlobalWithMutability(ctx context.Context, s *Store, v Value, m types.Mutability) (*Global, error) {
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return nil, err
	}
	if !v.kind.Valid() {
		return nil, errors.InvalidInput(errors.PhaseStore, "global initializer has no value type")
	}
	raw, err := s.toRaw(errors.PhaseStore, v)
	if err != nil {
		return nil, err
	}
	native, err := s.native.NewGlobal(ctx, types.GlobalType{Type: v.kind, Mutability: m}, raw)
	if err != nil {
		return nil, err
	}
	return s.insertGlobal(native)
}

// GlobalFromNative wraps a backend-native global as an entity of s. It
// panics with an incompatible-backend error when native belongs to a
// different backend than s runs.
func GlobalFromNative(s *Store, native engine.Global) (*Global, error) {
	engine.CheckKind(s.Backend(), native.Kind())
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return nil, err
	}
	return s.insertGlobal(native)
}

func (s *Store) insertGlobal(native engine.Global) (*Global, error) {
	h, err := registry.Insert(s.objects, &globalObject{native: native})
	if err != nil {
		return nil, err
	}
	return &Global{handle: h}, nil
}

// Type returns the global's value type and mutability.
func (g *Global) Type(s *Store) (types.GlobalType, error) {
	obj, err := g.handle.Get(s.objects)
	if err != nil {
		return types.GlobalType{}, err
	}
	return obj.native.Type(), nil
}

// Get reads the current value.
func (g *Global) Get(ctx context.Context, s *Store) (Value, error) {
	obj, err := g.handle.Get(s.objects)
	if err != nil {
		return Value{}, err
	}
	raw, err := obj.native.Get(ctx)
	if err != nil {
		return Value{}, err
	}
	return s.fromRaw(errors.PhaseUnmarshal, obj.native.Type().Type, raw)
}

// Set writes v. Immutable globals reject every write; v must match the
// global's kind and, for references, belong to s.
func (g *Global) Set(ctx context.Context, s *Store, v Value) error {
	obj, err := g.handle.Get(s.objects)
	if err != nil {
		return err
	}
	ty := obj.native.Type()
	if ty.Mutability != types.Var {
		return errors.Immutable("global " + ty.String())
	}
	if v.kind != ty.Type {
		return errors.TypeMismatch(errors.PhaseStore, []string{"global"}, ty.Type.String(), v.kind.String())
	}
	raw, err := s.toRaw(errors.PhaseStore, v)
	if err != nil {
		return err
	}
	return obj.native.Set(ctx, raw)
}

// IsFromStore reports whether g was created in s.
func (g *Global) IsFromStore(s *Store) bool {
	return g.handle.IsFromStore(s.objects)
}

// Equal reports whether g and o are the same entity.
func (g *Global) Equal(o *Global) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.handle == o.handle
}

// Native returns the backend-native global behind g.
func (g *Global) Native(s *Store) (engine.Global, error) {
	obj, err := g.handle.Get(s.objects)
	if err != nil {
		return nil, err
	}
	return obj.native, nil
}
