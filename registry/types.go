package registry

import (
	"strconv"
	"sync/atomic"
)

// StoreID is the identity tag minted for each registry. It is never reused
// within a process.
type StoreID uint64

var lastStoreID atomic.Uint64

// NewStoreID mints a fresh identity.
func NewStoreID() StoreID {
	return StoreID(lastStoreID.Add(1))
}

func (id StoreID) String() string {
	return "store#" + strconv.FormatUint(uint64(id), 10)
}

// InternalHandle is an index into one registry's object arena.
// InternalHandle 0 is reserved and always invalid.
type InternalHandle uint32

// Index returns the zero-based arena index.
func (h InternalHandle) Index() uint32 {
	return uint32(h) - 1
}

// FromIndex converts a zero-based arena index back into a handle.
func FromIndex(idx uint32) InternalHandle {
	return InternalHandle(idx + 1)
}

// Event types for object lifecycle notifications.
type EventType uint8

const (
	EventInserted EventType = iota
	EventDropped
)

// Event represents an object lifecycle event.
type Event struct {
	Value  any
	Store  StoreID
	Handle InternalHandle
	Type   EventType
}

// Observer receives notifications about object lifecycle events.
type Observer interface {
	OnRegistryEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnRegistryEvent(e Event) { f(e) }

// Dropper is optionally implemented by objects that hold native resources.
// Drop is called once when the owning registry is closed.
type Dropper interface {
	Drop()
}
