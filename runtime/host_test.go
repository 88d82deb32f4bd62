package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

type mathHost struct {
	calls int
}

func (h *mathHost) Namespace() string { return "math" }

func (h *mathHost) AddNumbers(a, b int32) int32 {
	h.calls++
	return a + b
}

func (h *mathHost) GetHTTPCode(ctx context.Context) int32 { return 200 }

type explicitHost struct{}

func (explicitHost) Namespace() string { return "explicit" }

func (explicitHost) Register() map[string]any {
	return map[string]any{
		"[method]counter.next": func(v int64) int64 { return v + 1 },
	}
}

func TestHostRegistry_RegisterHost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, engine.Naive)
	r := NewHostRegistry(s)

	h := &mathHost{}
	require.NoError(t, r.RegisterHost(ctx, h))
	require.NoError(t, r.RegisterHost(ctx, explicitHost{}))

	require.Equal(t, []string{"explicit", "math"}, r.Namespaces())
	require.Equal(t, []string{"add-numbers", "get-http-code"}, r.Names("math"))

	add, ok := r.Lookup("math", "add-numbers")
	require.True(t, ok)
	out, err := add.Call(ctx, s, I32(2), I32(3))
	require.NoError(t, err)
	require.Equal(t, int32(5), out[0].I32())
	require.Equal(t, 1, h.calls)

	next, ok := r.Lookup("explicit", "[method]counter.next")
	require.True(t, ok)
	out, err = next.Call(ctx, s, I64(41))
	require.NoError(t, err)
	require.Equal(t, int64(42), out[0].I64())

	_, ok = r.Lookup("math", "missing")
	require.False(t, ok)
}

type emptyHost struct{}

func (emptyHost) Namespace() string { return "" }

func TestHostRegistry_Errors(t *testing.T) {
	ctx := context.Background()
	r := NewHostRegistry(newTestStore(t, engine.Naive))

	require.ErrorIs(t, r.RegisterHost(ctx, emptyHost{}), errors.ErrInvalidInput)
	require.ErrorIs(t, r.RegisterFunc(ctx, "", "f", func() {}), errors.ErrInvalidInput)
	require.ErrorIs(t, r.RegisterFunc(ctx, "ns", "", func() {}), errors.ErrInvalidInput)
	require.ErrorIs(t, r.RegisterFunc(ctx, "ns", "f", func(string) {}), errors.ErrUnsupported)

	foreign := newAdd(t, ctx, newTestStore(t, engine.Naive), nil)
	require.ErrorIs(t, r.Add("ns", "add", foreign), errors.ErrCrossStore)
	_, ok := r.Lookup("ns", "add")
	require.False(t, ok)
}

func TestToKebabCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Add", "add"},
		{"GetValue", "get-value"},
		{"GetHTTPCode", "get-http-code"},
		{"GetHTTPURL", "get-httpurl"},
		{"ParseJSONBody", "parse-json-body"},
		{"lower", "lower"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, toKebabCase(tt.in), tt.in)
	}
}
