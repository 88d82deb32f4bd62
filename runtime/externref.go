package runtime

import (
	"fmt"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
)

// ExternRef is an opaque host value that guest code can hold and pass
// back as an externref.
type ExternRef struct {
	handle registry.Handle[externObject]
}

type externObject struct {
	value any
}

// ExceptionRef is an opaque host value carried by an exnref.
type ExceptionRef struct {
	handle registry.Handle[exceptionObject]
}

type exceptionObject struct {
	value any
}

// NewExternRef stores value in s and returns a reference to it.
func NewExternRef(s *Store, value any) (*ExternRef, error) {
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return nil, err
	}
	h, err := registry.Insert(s.objects, &externObject{value: value})
	if err != nil {
		return nil, err
	}
	return &ExternRef{handle: h}, nil
}

// Value returns the stored host value.
func (r *ExternRef) Value(s *Store) (any, error) {
	obj, err := r.handle.Get(s.objects)
	if err != nil {
		return nil, err
	}
	return obj.value, nil
}

func (r *ExternRef) IsFromStore(s *Store) bool { return r.handle.IsFromStore(s.objects) }

func (r *ExternRef) Equal(o *ExternRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.handle == o.handle
}

// NewExceptionRef stores value in s and returns an exception reference to it.
func NewExceptionRef(s *Store, value any) (*ExceptionRef, error) {
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return nil, err
	}
	h, err := registry.Insert(s.objects, &exceptionObject{value: value})
	if err != nil {
		return nil, err
	}
	return &ExceptionRef{handle: h}, nil
}

// Value returns the stored host value.
func (r *ExceptionRef) Value(s *Store) (any, error) {
	obj, err := r.handle.Get(s.objects)
	if err != nil {
		return nil, err
	}
	return obj.value, nil
}

func (r *ExceptionRef) IsFromStore(s *Store) bool { return r.handle.IsFromStore(s.objects) }

func (r *ExceptionRef) Equal(o *ExceptionRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.handle == o.handle
}

// OpaqueRef is implemented by ExternRef and ExceptionRef.
type OpaqueRef interface {
	Value(s *Store) (any, error)
	IsFromStore(s *Store) bool
}

// Downcast reads the host value behind r as a T.
func Downcast[T any](s *Store, r OpaqueRef) (T, error) {
	var zero T
	if !r.IsFromStore(s) {
		return zero, errors.CrossStore(errors.PhaseConvert, fmt.Sprintf("%T", r))
	}
	v, err := r.Value(s)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.New(errors.PhaseConvert, errors.KindDowncast).
			Expected(fmt.Sprintf("%T", (*T)(nil))[1:]).
			Actual(fmt.Sprintf("%T", v)).
			Value(v).
			Build()
	}
	return t, nil
}
