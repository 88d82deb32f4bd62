package registry

import (
	"fmt"

	"github.com/wippyai/wasm-bridge/errors"
)

// Handle is a typed, store-tagged reference to an object of type T.
// The zero Handle refers to nothing.
type Handle[T any] struct {
	store    StoreID
	internal InternalHandle
}

// Insert stores obj in r and returns a handle tagged with r's identity.
func Insert[T any](r *Registry, obj *T) (Handle[T], error) {
	h, err := r.insert(obj)
	if err != nil {
		return Handle[T]{}, err
	}
	return Handle[T]{store: r.id, internal: h}, nil
}

// FromInternal rebuilds a typed handle from an index read back out of a
// raw slot. The object type is checked on Get.
func FromInternal[T any](r *Registry, h InternalHandle) Handle[T] {
	return Handle[T]{store: r.id, internal: h}
}

// Get resolves the handle against r.
func (h Handle[T]) Get(r *Registry) (*T, error) {
	if h.store != r.id {
		return nil, errors.New(errors.PhaseRegistry, errors.KindCrossStore).
			Expected(r.id.String()).
			Actual(h.store.String()).
			Detail("handle used with a store that did not create it").
			Build()
	}
	obj, err := r.Lookup(h.internal)
	if err != nil {
		return nil, err
	}
	v, ok := obj.(*T)
	if !ok {
		return nil, errors.Downcast(fmt.Sprintf("%T", (*T)(nil)), fmt.Sprintf("%T", obj))
	}
	return v, nil
}

// IsFromStore reports whether the handle was created by r.
func (h Handle[T]) IsFromStore(r *Registry) bool {
	return h.store == r.id
}

// StoreID returns the identity of the owning registry.
func (h Handle[T]) StoreID() StoreID { return h.store }

// Internal returns the untyped arena handle.
func (h Handle[T]) Internal() InternalHandle { return h.internal }

// IsZero reports whether h refers to nothing.
func (h Handle[T]) IsZero() bool { return h.internal == 0 }
