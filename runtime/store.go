package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
)

// Store owns a handle registry and one backend store. Every entity is
// created in, and only usable with, exactly one Store.
//
// A Store is not safe for concurrent use. Calls may nest (a host function
// may call back into the same store) but must not run in parallel.
type Store struct {
	objects *registry.Registry
	native  engine.Store
	engine  *Engine
	logger  *zap.Logger
	backend string
}

// NewStore creates an empty store on e's backend.
func NewStore(ctx context.Context, e *Engine) (*Store, error) {
	native, err := e.native.NewStore(ctx)
	if err != nil {
		return nil, err
	}

	objects := registry.New()
	backend := e.Kind().String()
	if o := e.tel.observer(backend); o != nil {
		objects.Subscribe(o)
	}

	s := &Store{
		objects: objects,
		native:  native,
		engine:  e,
		logger:  e.logger.With(zap.Stringer("store", objects.ID())),
		backend: backend,
	}
	s.logger.Debug("store created")
	return s, nil
}

// ID returns the store's identity. Every entity created in s carries it.
func (s *Store) ID() registry.StoreID {
	return s.objects.ID()
}

// Engine returns the engine the store was created from.
func (s *Store) Engine() *Engine {
	return s.engine
}

// Backend returns the store's backend kind.
func (s *Store) Backend() engine.Kind {
	return s.native.Kind()
}

// Native returns the backend store.
func (s *Store) Native() engine.Store {
	return s.native
}

// Registry exposes the store's object registry for inspection and
// lifecycle observers.
func (s *Store) Registry() *registry.Registry {
	return s.objects
}

// Same reports whether s and other are the same store. It panics when the
// two stores run different backends; comparing them is a wiring bug.
func (s *Store) Same(other *Store) bool {
	engine.CheckKind(s.Backend(), other.Backend())
	return s.ID() == other.ID()
}

// Close drops every object in the registry and releases the backend store.
// Entities of s are unusable afterwards. Closing twice is a no-op.
func (s *Store) Close(ctx context.Context) error {
	if s.objects.Closed() {
		return nil
	}
	n := s.objects.Len()
	s.objects.Close()
	err := s.native.Close(ctx)
	s.logger.Debug("store closed", zap.Int("objects", n), zap.Error(err))
	return err
}

func (s *Store) checkOpen(phase errors.Phase) error {
	if s.objects.Closed() {
		return errors.Closed(phase, s.ID().String())
	}
	return nil
}
