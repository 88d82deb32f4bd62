package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasm"
	"github.com/wippyai/wasm-bridge/types"
)

func newInterpreterStore(t *testing.T, cfg *Config) *wazeroStore {
	t.Helper()
	ctx := context.Background()
	e, err := New(ctx, Interpreter, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })

	s, err := e.NewStore(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s.(*wazeroStore)
}

func TestWazero_ImportPath(t *testing.T) {
	ctx := context.Background()
	s := newInterpreterStore(t, nil)

	ty := types.FunctionType{Params: []types.ValueType{types.I64}, Results: []types.ValueType{types.I64}}
	fn, err := s.NewHostFunction(ctx, ty, func(_ context.Context, buf []types.RawValue) error {
		buf[0] = types.RawI64(buf[0].I64() * 2)
		return nil
	})
	require.NoError(t, err)

	mod, name := fn.(*wazeroFunction).ImportPath()
	require.Equal(t, "bridge.host.0", mod)
	require.Equal(t, "fn", name)

	// A guest module of our own importing the host function directly.
	b := wasm.NewSynthModuleBuilder(mod)
	b.AddForwarder(name, "double", []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64})
	guest, err := s.Runtime().Instantiate(ctx, b.Build())
	require.NoError(t, err)

	wrapped, err := WrapFunction(Interpreter, guest.ExportedFunction("double"))
	require.NoError(t, err)
	require.True(t, ty.Equal(wrapped.Type()))

	buf := []types.RawValue{types.RawI64(21)}
	require.NoError(t, wrapped.Call(ctx, buf))
	require.Equal(t, int64(42), buf[0].I64())

	m, n := wrapped.(*wazeroFunction).ImportPath()
	require.Empty(t, m)
	require.Empty(t, n)
}

func TestWazero_WrapFunctionWrongKind(t *testing.T) {
	_, err := WrapFunction(Naive, nil)
	require.Equal(t, errors.KindIncompatibleBackend, errors.KindOf(err))
}

func TestWazero_SequentialModuleNames(t *testing.T) {
	ctx := context.Background()
	s := newInterpreterStore(t, nil)
	noop := func(context.Context, []types.RawValue) error { return nil }

	for i := 0; i < 3; i++ {
		_, err := s.NewHostFunction(ctx, types.FunctionType{}, noop)
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), s.seq)
}

func TestWazero_CloseOnContextDone(t *testing.T) {
	s := newInterpreterStore(t, &Config{CloseOnContextDone: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	fn, err := s.NewHostFunction(context.Background(), types.FunctionType{}, func(ctx context.Context, _ []types.RawValue) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	require.Error(t, fn.Call(ctx, nil))
}

func TestWazero_CompilationCacheDir(t *testing.T) {
	ctx := context.Background()
	s := newInterpreterStore(t, &Config{CompilationCacheDir: t.TempDir()})
	_, err := s.NewGlobal(ctx, types.GlobalType{Type: types.I32}, types.RawI32(1))
	require.NoError(t, err)
}
