package runtime

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

var errDivByZero = stderrors.New("division by zero")

func TestTypedFunction_FastPaths(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		mul, err := NewTypedFunction(ctx, s, func(a, b int64) int64 { return a * b })
		require.NoError(t, err)
		out, err := mul.Call(ctx, s, I64(6), I64(7))
		require.NoError(t, err)
		require.Equal(t, int64(42), out[0].I64())

		dyn, err := mul.IsDynamic(s)
		require.NoError(t, err)
		require.False(t, dyn)

		fdiv, err := NewTypedFunction(ctx, s, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errDivByZero
			}
			return a / b, nil
		})
		require.NoError(t, err)
		ty, err := fdiv.Type(s)
		require.NoError(t, err)
		require.Equal(t, "(f64, f64) -> (f64)", ty.String())

		out, err = fdiv.Call(ctx, s, F64(1), F64(4))
		require.NoError(t, err)
		require.Equal(t, 0.25, out[0].F64())

		_, err = fdiv.Call(ctx, s, F64(1), F64(0))
		require.ErrorIs(t, err, errors.ErrTrap)
		require.ErrorIs(t, err, errDivByZero)

		withCtx, err := NewTypedFunction(ctx, s, func(ctx context.Context, a, b int32) int32 {
			require.NotNil(t, ctx)
			return a - b
		})
		require.NoError(t, err)
		out, err = withCtx.Call(ctx, s, I32(10), I32(3))
		require.NoError(t, err)
		require.Equal(t, int32(7), out[0].I32())
	})
}

func TestTypedFunction_Reflective(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		f, err := NewTypedFunction(ctx, s, func(ctx context.Context, a uint32, b float32, v types.Vec128) (uint64, float32, types.Vec128, error) {
			return uint64(a) << 1, b, types.Vec128{Lo: v.Hi, Hi: v.Lo}, nil
		})
		require.NoError(t, err)

		ty, err := f.Type(s)
		require.NoError(t, err)
		require.Equal(t, "(i32, f32, v128) -> (i64, f32, v128)", ty.String())

		out, err := f.Call(ctx, s,
			I32(-1),
			F32Bits(0x7fc00042),
			V128(types.Vec128{Lo: 1, Hi: 2}))
		require.NoError(t, err)
		require.Equal(t, uint64(math.MaxUint32)<<1, uint64(out[0].I64()))
		require.Equal(t, uint32(0x7fc00042), out[1].F32Bits())
		require.Equal(t, types.Vec128{Lo: 2, Hi: 1}, out[2].V128())
	})
}

func TestTypedFunction_References(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		name, err := NewTypedFunction(ctx, s, func(r *ExternRef) (int32, error) {
			if r == nil {
				return -1, nil
			}
			v, err := Downcast[string](s, r)
			if err != nil {
				return 0, err
			}
			return int32(len(v)), nil
		})
		require.NoError(t, err)

		ref, err := NewExternRef(s, "hello")
		require.NoError(t, err)
		out, err := name.Call(ctx, s, ExternRefOf(ref))
		require.NoError(t, err)
		require.Equal(t, int32(5), out[0].I32())

		out, err = name.Call(ctx, s, NullRef(types.ExternRef))
		require.NoError(t, err)
		require.Equal(t, int32(-1), out[0].I32())

		bad, err := NewExternRef(s, 12)
		require.NoError(t, err)
		_, err = name.Call(ctx, s, ExternRefOf(bad))
		require.ErrorIs(t, err, errors.ErrDowncast)

		self, err := NewTypedFunction(ctx, s, func(f *Function) *Function { return f })
		require.NoError(t, err)
		out, err = self.Call(ctx, s, FuncRef(name))
		require.NoError(t, err)
		require.True(t, out[0].FuncRef().Equal(name))
	})
}

type counter struct {
	n int64
}

func TestTypedFunction_Env(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		env, err := NewFunctionEnv(s, counter{n: 10})
		require.NoError(t, err)

		next, err := NewTypedFunctionWithEnv(ctx, s, env, func(ctx context.Context, env FunctionEnvMut[counter], step int64) int64 {
			env.Data().n += step
			return env.Data().n
		})
		require.NoError(t, err)

		for want := int64(11); want <= 13; want++ {
			out, err := next.Call(ctx, s, I64(1))
			require.NoError(t, err)
			require.Equal(t, want, out[0].I64())
		}

		data, err := env.Data(s)
		require.NoError(t, err)
		require.Equal(t, int64(13), data.n)

		_, err = NewTypedFunctionWithEnv(ctx, s, env, func(step int64) int64 { return step })
		require.ErrorIs(t, err, errors.ErrTypeMismatch)

		other := newTestStore(t, s.Backend())
		_, err = NewTypedFunctionWithEnv(ctx, other, env, func(FunctionEnvMut[counter]) {})
		require.ErrorIs(t, err, errors.ErrCrossStore)
	})
}

func TestFunctionWithEnv_Dynamic(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		env, err := NewFunctionEnv(s, counter{})
		require.NoError(t, err)

		f, err := NewFunctionWithEnv(ctx, s, env,
			fnType(nil, []types.ValueType{types.I64}),
			func(_ context.Context, env FunctionEnvMut[counter], _ []Value) ([]Value, error) {
				require.True(t, env.Store().Same(s))
				env.Data().n++
				return []Value{I64(env.Data().n)}, nil
			})
		require.NoError(t, err)

		_, err = f.Call(ctx, s)
		require.NoError(t, err)
		out, err := f.Call(ctx, s)
		require.NoError(t, err)
		require.Equal(t, int64(2), out[0].I64())
	})
}

func TestTypedFunction_InvalidSignatures(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, engine.Naive)

	_, err := NewTypedFunction(ctx, s, 42)
	require.ErrorIs(t, err, errors.ErrTypeMismatch)

	_, err = NewTypedFunction(ctx, s, (func(int32))(nil))
	require.ErrorIs(t, err, errors.ErrTypeMismatch)

	_, err = NewTypedFunction(ctx, s, func(string, int) bool { return false })
	require.ErrorIs(t, err, errors.ErrUnsupported)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	require.Contains(t, e.Error(), "param.0")
	require.Contains(t, e.Error(), "param.1")
	require.Contains(t, e.Error(), "result.0")

	_, err = NewTypedFunction(ctx, s, func(...int32) {})
	require.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestTypedFunction_Panic(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		cause := stderrors.New("typed boom")
		f, err := NewTypedFunction(ctx, s, func(a int32) int32 {
			if a < 0 {
				panic(cause)
			}
			return a
		})
		require.NoError(t, err)

		require.PanicsWithError(t, cause.Error(), func() {
			_, _ = f.Call(ctx, s, I32(-1))
		})
		out, err := f.Call(ctx, s, I32(4))
		require.NoError(t, err)
		require.Equal(t, int32(4), out[0].I32())
	})
}
