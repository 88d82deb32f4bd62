// Package registry provides the store-scoped object arena behind every
// runtime entity.
//
// A Registry owns objects for exactly one store. Each registry carries a
// StoreID minted when it is created; every Handle remembers the StoreID of
// the registry that produced it, so presenting a handle to any other
// registry fails with a cross-store error instead of resolving to an
// unrelated object.
//
//	reg := registry.New()
//	h, err := registry.Insert(reg, &myObject{})
//	obj, err := h.Get(reg)        // ok
//	obj, err = h.Get(otherReg)    // errors.ErrCrossStore
//
// # Stability
//
// The arena is append-only. Objects are never moved or reused while the
// registry lives, which makes an InternalHandle a stable payload for
// reference slots handed to guest code.
//
// # Observers
//
// Observers receive EventInserted for each Insert and EventDropped for each
// object released by Close. Objects implementing Dropper are dropped once
// on Close.
//
// # Concurrency
//
// Registry does not lock. A store's registry is mutated only by the thread
// that has exclusive access to the store.
package registry
