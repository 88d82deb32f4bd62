package main

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/types"
)

const demoNamespace = "demo"

// demoHost is registered through runtime.HostRegistry; each method becomes
// a typed host function named in kebab-case.
type demoHost struct{}

func (demoHost) Namespace() string { return demoNamespace }

func (demoHost) Mul(a, b int64) int64 { return a * b }

func (demoHost) Fdiv(a, b float64) (float64, error) {
	if b == 0 {
		return 0, fmt.Errorf("fdiv: division by zero")
	}
	return a / b, nil
}

type counterState struct {
	n int64
}

// entry is one callable item of a session: a function or a global.
type entry struct {
	fn     *runtime.Function
	global *runtime.Global
	name   string
	params []types.ValueType
	// results of a function, or the global's type
	results []types.ValueType
}

func (e entry) signature() string {
	if e.global != nil {
		return "global " + types.TypeNames(e.results)
	}
	return types.FunctionType{Params: e.params, Results: e.results}.String()
}

// session is the set of demo entities living in one store.
type session struct {
	engine  *runtime.Engine
	store   *runtime.Store
	hosts   *runtime.HostRegistry
	entries map[string]entry
}

func newSession(ctx context.Context, cfg *runtime.Config) (*session, error) {
	eng, err := runtime.NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := runtime.NewStore(ctx, eng)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}
	s := &session{
		engine:  eng,
		store:   store,
		hosts:   runtime.NewHostRegistry(store),
		entries: make(map[string]entry),
	}
	if err := s.registerDemos(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *session) registerDemos(ctx context.Context) error {
	add, err := runtime.NewFunction(ctx, s.store,
		types.NewFunctionType([]types.ValueType{types.I32, types.I32}, []types.ValueType{types.I32}),
		func(_ context.Context, args []runtime.Value) ([]runtime.Value, error) {
			return []runtime.Value{runtime.I32(args[0].I32() + args[1].I32())}, nil
		})
	if err != nil {
		return err
	}
	if err := s.hosts.Add(demoNamespace, "add", add); err != nil {
		return err
	}

	if err := s.hosts.RegisterHost(ctx, demoHost{}); err != nil {
		return err
	}

	env, err := runtime.NewFunctionEnv(s.store, counterState{})
	if err != nil {
		return err
	}
	counter, err := runtime.NewTypedFunctionWithEnv(ctx, s.store, env,
		func(env runtime.FunctionEnvMut[counterState]) int64 {
			env.Data().n++
			return env.Data().n
		})
	if err != nil {
		return err
	}
	if err := s.hosts.Add(demoNamespace, "counter", counter); err != nil {
		return err
	}

	for _, name := range s.hosts.Names(demoNamespace) {
		fn, _ := s.hosts.Lookup(demoNamespace, name)
		ty, err := fn.Type(s.store)
		if err != nil {
			return err
		}
		s.entries[name] = entry{name: name, fn: fn, params: ty.Params, results: ty.Results}
	}

	g0, err := runtime.NewGlobalMut(ctx, s.store, runtime.I32(0))
	if err != nil {
		return err
	}
	s.entries["g0"] = entry{name: "g0", global: g0, results: []types.ValueType{types.I32}}
	return nil
}

// list returns the session's entries sorted by name.
func (s *session) list() []entry {
	out := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// call invokes the named function with args parsed by its parameter kinds.
// For a global, no args reads it and one arg writes it before reading.
func (s *session) call(ctx context.Context, name string, args []string) ([]runtime.Value, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseConfig, "function", name)
	}

	if e.global != nil {
		if len(args) > 1 {
			return nil, errors.ArityMismatch(errors.PhaseMarshal, "global", 1, len(args))
		}
		if len(args) == 1 {
			v, err := parseValue(e.results[0], args[0])
			if err != nil {
				return nil, err
			}
			if err := e.global.Set(ctx, s.store, v); err != nil {
				return nil, err
			}
		}
		v, err := e.global.Get(ctx, s.store)
		if err != nil {
			return nil, err
		}
		return []runtime.Value{v}, nil
	}

	if len(args) != len(e.params) {
		return nil, errors.ArityMismatch(errors.PhaseMarshal, "params", len(e.params), len(args))
	}
	vals := make([]runtime.Value, len(args))
	for i, a := range args {
		v, err := parseValue(e.params[i], a)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return e.fn.Call(ctx, s.store, vals...)
}

func (s *session) Close(ctx context.Context) error {
	return multierr.Combine(s.store.Close(ctx), s.engine.Close(ctx))
}
