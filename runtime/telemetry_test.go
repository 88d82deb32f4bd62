package runtime

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-bridge/engine"
)

func TestTelemetry_Spans(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	eng, err := NewEngine(ctx, &Config{Backend: engine.Naive, TracerProvider: tp})
	require.NoError(t, err)
	s, err := NewStore(ctx, eng)
	require.NoError(t, err)

	add := newAdd(t, ctx, s, nil)
	_, err = add.Call(ctx, s, I32(1), I32(2))
	require.NoError(t, err)

	fail, err := NewTypedFunction(ctx, s, func() (int32, error) { return 0, stderrors.New("nope") })
	require.NoError(t, err)
	_, err = fail.Call(ctx, s)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	require.Equal(t, spanName, spans[0].Name())
	attrs := attribute.NewSet(spans[0].Attributes()...)
	backend, ok := attrs.Value("wasmbridge.backend")
	require.True(t, ok)
	require.Equal(t, "naive", backend.AsString())
	outcome, _ := attrs.Value("wasmbridge.outcome")
	require.Equal(t, outcomeOK, outcome.AsString())
	params, _ := attrs.Value("wasmbridge.params")
	require.Equal(t, int64(2), params.AsInt64())

	require.Equal(t, codes.Error, spans[1].Status().Code)
	failed := attribute.NewSet(spans[1].Attributes()...)
	outcome, _ = failed.Value("wasmbridge.outcome")
	require.Equal(t, outcomeTrap, outcome.AsString())
}

func TestTelemetry_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	eng, err := NewEngine(ctx, &Config{Backend: engine.Naive, Registerer: reg})
	require.NoError(t, err)
	// A second engine on the same registerer shares the collectors.
	peer, err := NewEngine(ctx, &Config{Backend: engine.Naive, Registerer: reg})
	require.NoError(t, err)
	require.Same(t, eng.tel.calls, peer.tel.calls)

	s, err := NewStore(ctx, eng)
	require.NoError(t, err)

	var runs int32
	f := newRunCounter(t, ctx, s, &runs, nil)
	_, err = NewExternRef(s, "x")
	require.NoError(t, err)

	objects := eng.tel.objects.WithLabelValues("naive")
	require.Equal(t, float64(2), testutil.ToFloat64(objects))

	hook := func(context.Context, *Store) (OnCalledAction, error) { return Finish(), nil }
	_, err = f.Call(WithOnCalled(ctx, hook), s)
	require.NoError(t, err)
	_, err = f.Call(ctx, s)
	require.NoError(t, err)

	require.Equal(t, float64(2), testutil.ToFloat64(eng.tel.calls.WithLabelValues("naive", outcomeOK)))
	require.Equal(t, float64(1), testutil.ToFloat64(eng.tel.resumptions.WithLabelValues("naive", "finish")))

	require.NoError(t, s.Close(ctx))
	require.Equal(t, float64(0), testutil.ToFloat64(objects))
}

func TestTelemetry_HostPanicLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)

	eng, err := NewEngine(ctx, &Config{Backend: engine.Naive, Logger: zap.New(core)})
	require.NoError(t, err)
	s, err := NewStore(ctx, eng)
	require.NoError(t, err)

	f, err := NewTypedFunction(ctx, s, func() { panic("logged") })
	require.NoError(t, err)
	require.Panics(t, func() { _, _ = f.Call(ctx, s) })

	entries := logs.FilterMessage("host function panicked").All()
	require.Len(t, entries, 1)
	require.Equal(t, "logged", entries[0].ContextMap()["panic"])
}
