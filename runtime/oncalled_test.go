package runtime

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/types"
)

// newRunCounter returns a function that reports how many times it has run.
func newRunCounter(t *testing.T, ctx context.Context, s *Store, runs *int32, body func(ctx context.Context)) *Function {
	t.Helper()
	f, err := NewFunction(ctx, s, fnType(nil, []types.ValueType{types.I32}),
		func(ctx context.Context, _ []Value) ([]Value, error) {
			*runs++
			if body != nil {
				body(ctx)
			}
			return []Value{I32(*runs)}, nil
		})
	require.NoError(t, err)
	return f
}

func TestOnCalled_InvokeAgain(t *testing.T) {
	const again = 3
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		var runs int32
		f := newRunCounter(t, ctx, s, &runs, nil)

		decisions := 0
		var hook OnCalledHandler
		hook = func(ctx context.Context, hs *Store) (OnCalledAction, error) {
			require.Same(t, s, hs)
			decisions++
			if decisions <= again {
				require.True(t, OnCalled(ctx, hook))
				return InvokeAgain(), nil
			}
			return Finish(), nil
		}

		out, err := f.Call(WithOnCalled(ctx, hook), s)
		require.NoError(t, err)
		require.Equal(t, int32(again+1), runs)
		require.Equal(t, again+1, decisions)
		require.Equal(t, int32(again+1), out[0].I32())
	})
}

func TestOnCalled_Trap(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		var runs int32
		f := newRunCounter(t, ctx, s, &runs, nil)
		stop := stderrors.New("snapshot taken")

		out, err := f.Call(WithOnCalled(ctx, func(context.Context, *Store) (OnCalledAction, error) {
			return TrapAction(stop), nil
		}), s)
		require.Same(t, stop, err)
		require.Nil(t, out)
		require.Equal(t, int32(1), runs)
	})
}

func TestOnCalled_HookError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		var runs int32
		f := newRunCounter(t, ctx, s, &runs, nil)
		failed := stderrors.New("hook failed")

		_, err := f.Call(WithOnCalled(ctx, func(context.Context, *Store) (OnCalledAction, error) {
			return Finish(), failed
		}), s)
		require.ErrorIs(t, err, failed)
	})
}

func TestOnCalled_ArmedByHost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		consulted := 0
		var runs int32
		f := newRunCounter(t, ctx, s, &runs, func(ctx context.Context) {
			if runs == 1 {
				require.True(t, OnCalled(ctx, func(context.Context, *Store) (OnCalledAction, error) {
					consulted++
					return InvokeAgain(), nil
				}))
			}
		})

		out, err := f.Call(ctx, s)
		require.NoError(t, err)
		require.Equal(t, 1, consulted)
		require.Equal(t, int32(2), out[0].I32())

		// One-shot: the next call runs once.
		_, err = f.Call(ctx, s)
		require.NoError(t, err)
		require.Equal(t, int32(3), runs)
		require.Equal(t, 1, consulted)
	})
}

func TestOnCalled_OutsideCall(t *testing.T) {
	ctx := context.Background()
	require.False(t, OnCalled(ctx, func(context.Context, *Store) (OnCalledAction, error) {
		return Finish(), nil
	}))
	require.False(t, OnCalled(WithOnCalled(ctx, nil), func(context.Context, *Store) (OnCalledAction, error) {
		return Finish(), nil
	}))
}

func TestOnCalled_NotInheritedByNestedCalls(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		var innerRuns, outerRuns int32
		inner := newRunCounter(t, ctx, s, &innerRuns, nil)
		outer := newRunCounter(t, ctx, s, &outerRuns, func(ctx context.Context) {
			_, err := inner.Call(ctx, s)
			require.NoError(t, err)
		})

		var order []string
		hooked := WithOnCalled(ctx, func(context.Context, *Store) (OnCalledAction, error) {
			order = append(order, "outer")
			return Finish(), nil
		})
		_, err := outer.Call(hooked, s)
		require.NoError(t, err)
		require.Equal(t, []string{"outer"}, order)
		require.Equal(t, int32(1), innerRuns)

		// The armed ctx is spent after one call.
		_, err = outer.Call(hooked, s)
		require.NoError(t, err)
		require.Equal(t, []string{"outer"}, order)
	})
}

func TestOnCalledAction_String(t *testing.T) {
	require.Equal(t, "invoke_again", InvokeAgain().String())
	require.Equal(t, "finish", Finish().String())
	require.Equal(t, "trap", TrapAction(nil).String())
}

func TestOnCalled_HostPanicWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, s *Store) {
		var runs int32
		decisions := 0
		again := func(context.Context, *Store) (OnCalledAction, error) {
			decisions++
			return InvokeAgain(), nil
		}
		f := newRunCounter(t, ctx, s, &runs, func(ctx context.Context) {
			if runs == 1 {
				require.True(t, OnCalled(ctx, again))
				panic("host bug")
			}
		})

		require.PanicsWithValue(t, "host bug", func() { _, _ = f.Call(ctx, s) })
		require.Equal(t, int32(1), runs)
		require.Zero(t, decisions)

		runs = 0
		trap := func(context.Context, *Store) (OnCalledAction, error) {
			decisions++
			return TrapAction(nil), nil
		}
		require.PanicsWithValue(t, "host bug", func() { _, _ = f.Call(WithOnCalled(ctx, trap), s) })
		require.Equal(t, int32(1), runs)
		require.Zero(t, decisions)

		// the store stays usable and no stale hook leaks into the next call
		runs = 1
		out, err := f.Call(ctx, s)
		require.NoError(t, err)
		require.Equal(t, int32(2), out[0].I32())
		require.Zero(t, decisions)
	})
}
