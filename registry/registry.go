package registry

import (
	"github.com/wippyai/wasm-bridge/errors"
)

// Registry is a store-scoped, append-only arena of objects.
//
// Objects are stored by pointer and never moved or removed while the
// registry lives, so an InternalHandle stays valid for the registry's whole
// lifetime and can be embedded into guest-visible reference slots.
//
// Registry has no internal lock. Callers need exclusive access for Insert
// and Close; concurrent readers are fine as long as nothing mutates.
type Registry struct {
	objects   []any
	observers []Observer
	id        StoreID
	closed    bool
}

// New creates an empty registry with a fresh identity.
func New() *Registry {
	return &Registry{id: NewStoreID()}
}

// ID returns the registry's store identity.
func (r *Registry) ID() StoreID {
	return r.id
}

// Len returns the number of objects ever inserted.
func (r *Registry) Len() int {
	return len(r.objects)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	return r.closed
}

// insert appends obj and returns its handle. obj must be a pointer.
func (r *Registry) insert(obj any) (InternalHandle, error) {
	if r.closed {
		return 0, errors.Closed(errors.PhaseRegistry, r.id.String())
	}
	r.objects = append(r.objects, obj)
	h := InternalHandle(len(r.objects))
	r.notify(Event{Type: EventInserted, Store: r.id, Handle: h, Value: obj})
	return h, nil
}

// Lookup returns the object behind h.
func (r *Registry) Lookup(h InternalHandle) (any, error) {
	if r.closed {
		return nil, errors.Closed(errors.PhaseRegistry, r.id.String())
	}
	if h == 0 || int(h) > len(r.objects) {
		return nil, errors.New(errors.PhaseRegistry, errors.KindNotFound).
			Value(uint32(h)).
			Detail("handle %d not present in %s", uint32(h), r.id).
			Build()
	}
	return r.objects[h-1], nil
}

// Each calls fn for every object in insertion order until fn returns false.
func (r *Registry) Each(fn func(InternalHandle, any) bool) {
	for i, obj := range r.objects {
		if !fn(InternalHandle(i+1), obj) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.observers = append(r.observers, o)
}

// Close drops every object and stops accepting operations. Closing twice is a no-op.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for i, obj := range r.objects {
		if d, ok := obj.(Dropper); ok {
			d.Drop()
		}
		r.notify(Event{Type: EventDropped, Store: r.id, Handle: InternalHandle(i + 1), Value: obj})
	}
	r.objects = nil
}

func (r *Registry) notify(e Event) {
	for _, o := range r.observers {
		o.OnRegistryEvent(e)
	}
}
