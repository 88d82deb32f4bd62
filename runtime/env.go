package runtime

import (
	"fmt"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
)

// FunctionEnv is a typed handle to host data stored in a Store and shared
// with the host functions created with it.
type FunctionEnv[T any] struct {
	handle registry.Handle[envObject]
}

type envObject struct {
	data any // *T
}

// NewFunctionEnv moves data into s and returns a handle to it.
func NewFunctionEnv[T any](s *Store, data T) (FunctionEnv[T], error) {
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return FunctionEnv[T]{}, err
	}
	h, err := registry.Insert(s.objects, &envObject{data: &data})
	if err != nil {
		return FunctionEnv[T]{}, err
	}
	return FunctionEnv[T]{handle: h}, nil
}

// Data returns a pointer to the environment's data. The pointer stays valid
// for the lifetime of s.
func (e FunctionEnv[T]) Data(s *Store) (*T, error) {
	obj, err := e.handle.Get(s.objects)
	if err != nil {
		return nil, err
	}
	data, ok := obj.data.(*T)
	if !ok {
		return nil, errors.Downcast(fmt.Sprintf("%T", (*T)(nil)), fmt.Sprintf("%T", obj.data))
	}
	return data, nil
}

// IsFromStore reports whether e was created in s.
func (e FunctionEnv[T]) IsFromStore(s *Store) bool {
	return e.handle.IsFromStore(s.objects)
}

// Mut returns a mutable view of e bound to s.
func (e FunctionEnv[T]) Mut(s *Store) FunctionEnvMut[T] {
	return FunctionEnvMut[T]{store: s, env: e}
}

// FunctionEnvMut is the view of a FunctionEnv handed to host functions
// while they run.
type FunctionEnvMut[T any] struct {
	store *Store
	env   FunctionEnv[T]
}

// Data returns the environment's data. It panics if the environment is not
// reachable through the bound store, which only happens after the store
// was closed.
func (m FunctionEnvMut[T]) Data() *T {
	data, err := m.env.Data(m.store)
	if err != nil {
		panic(err)
	}
	return data
}

// Store returns the store the function is running in.
func (m FunctionEnvMut[T]) Store() *Store { return m.store }

// Env returns the underlying handle.
func (m FunctionEnvMut[T]) Env() FunctionEnv[T] { return m.env }
