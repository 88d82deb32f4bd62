package runtime

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wippyai/wasm-bridge/registry"
)

const (
	tracerName = "github.com/wippyai/wasm-bridge/runtime"
	spanName   = "wasmbridge.call"
)

// Call outcomes recorded on spans and in wasmbridge_calls_total.
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeTrap      = "trap"
	outcomeHostPanic = "host_panic"
)

// telemetry bundles the optional tracer and collectors of one Engine.
// A nil field disables that signal.
type telemetry struct {
	tracer      trace.Tracer
	calls       *prometheus.CounterVec
	resumptions *prometheus.CounterVec
	objects     *prometheus.GaugeVec
}

func newTelemetry(cfg *Config) (*telemetry, error) {
	t := &telemetry{}
	if cfg.TracerProvider != nil {
		t.tracer = cfg.TracerProvider.Tracer(tracerName)
	}
	if cfg.Registerer == nil {
		return t, nil
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wasmbridge",
		Name:      "calls_total",
		Help:      "Function calls through the trampoline by backend and outcome.",
	}, []string{"backend", "outcome"})
	resumptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wasmbridge",
		Name:      "resumptions_total",
		Help:      "Resumption hook decisions by backend and action.",
	}, []string{"backend", "action"})
	objects := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wasmbridge",
		Name:      "registry_objects",
		Help:      "Objects held by live store registries.",
	}, []string{"backend"})

	var err error
	if t.calls, err = registerCollector(cfg.Registerer, calls); err != nil {
		return nil, err
	}
	if t.resumptions, err = registerCollector(cfg.Registerer, resumptions); err != nil {
		return nil, err
	}
	if t.objects, err = registerCollector(cfg.Registerer, objects); err != nil {
		return nil, err
	}
	return t, nil
}

// registerCollector registers c, reusing an identical collector that an
// earlier Engine already put on the same registerer.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (t *telemetry) startCall(ctx context.Context, backend string, params, results int) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, nil
	}
	return t.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("wasmbridge.backend", backend),
			attribute.Int("wasmbridge.params", params),
			attribute.Int("wasmbridge.results", results),
		))
}

func (t *telemetry) endCall(span trace.Span, backend, outcome string, invocations int, err error) {
	if t.calls != nil {
		t.calls.WithLabelValues(backend, outcome).Inc()
	}
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.String("wasmbridge.outcome", outcome),
		attribute.Int("wasmbridge.invocations", invocations),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *telemetry) resumed(backend, action string) {
	if t.resumptions != nil {
		t.resumptions.WithLabelValues(backend, action).Inc()
	}
}

// observer tracks a store's registry size in wasmbridge_registry_objects.
func (t *telemetry) observer(backend string) registry.Observer {
	if t.objects == nil {
		return nil
	}
	g := t.objects.WithLabelValues(backend)
	return registry.ObserverFunc(func(e registry.Event) {
		switch e.Type {
		case registry.EventInserted:
			g.Inc()
		case registry.EventDropped:
			g.Dec()
		}
	})
}
