// Package runtime is the host-facing API of the bridge: stores, entities,
// host functions and the calling trampoline.
//
// # Quick Start
//
//	ctx := context.Background()
//	eng, err := runtime.NewEngine(ctx, runtime.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	store, err := runtime.NewStore(ctx, eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close(ctx)
//
//	add, err := runtime.NewTypedFunction(ctx, store, func(a, b int32) int32 {
//	    return a + b
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := add.Call(ctx, store, runtime.I32(2), runtime.I32(3))
//	fmt.Println(out[0].I32()) // 5
//
// # Stores and Entities
//
// A Store owns a registry of objects. Function, Global, ExternRef,
// ExceptionRef and FunctionEnv are small handles tagged with the identity
// of the store that created them; every operation takes the store
// explicitly and fails with a cross_store error when handed a different
// one. Objects live until the store is closed.
//
// # Host Functions
//
// Dynamic functions declare a signature and receive []Value:
//
//	ty := types.NewFunctionType(
//	    []types.ValueType{types.I32, types.I32},
//	    []types.ValueType{types.I32})
//	fn, err := runtime.NewFunction(ctx, store, ty,
//	    func(ctx context.Context, args []runtime.Value) ([]runtime.Value, error) {
//	        return []runtime.Value{runtime.I32(args[0].I32() + args[1].I32())}, nil
//	    })
//
// Typed functions derive the signature from the Go function. Handlers may
// take a leading context.Context and a FunctionEnvMut[T], and may return a
// trailing error:
//
//	env, _ := runtime.NewFunctionEnv(store, counter{})
//	next, err := runtime.NewTypedFunctionWithEnv(ctx, store, env,
//	    func(env runtime.FunctionEnvMut[counter]) int64 {
//	        env.Data().n++
//	        return env.Data().n
//	    })
//
// A returned error aborts the call with a trap wrapping it. A panic is
// carried across the engine and re-raised by Function.Call with its
// original value.
//
// # Resumption
//
// After every native invocation the trampoline consults a one-shot hook
// armed on the running call. Host functions arm it with OnCalled; callers
// can arm it up front with WithOnCalled:
//
//	runtime.OnCalled(ctx, func(ctx context.Context, s *runtime.Store) (runtime.OnCalledAction, error) {
//	    return runtime.InvokeAgain(), nil
//	})
//
// InvokeAgain re-enters the same function with the same buffer, Finish
// returns its results and TrapAction aborts the call.
//
// # Backends
//
// Config.Backend selects one engine.Kind per Engine. Every store of that
// engine uses it, and entities converted from native values must come from
// the same backend; mixing backends panics with an incompatible_backend
// error.
package runtime
