package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/engine"
)

// Config selects the backend and the ambient services a runtime Engine uses.
type Config struct {
	// Logger receives store and call diagnostics. Nil uses the package logger.
	Logger *zap.Logger `yaml:"-"`

	// TracerProvider enables one span per Function.Call. Nil disables tracing.
	TracerProvider trace.TracerProvider `yaml:"-"`

	// Registerer receives the call and registry collectors. Nil disables metrics.
	Registerer prometheus.Registerer `yaml:"-"`

	Engine engine.Config `yaml:",inline"`

	Backend engine.Kind `yaml:"backend"`
}

// DefaultConfig returns the optimizing compiler backend where the platform
// supports it and the interpreter elsewhere.
func DefaultConfig() *Config {
	kind := engine.Interpreter
	if engine.CompilerSupported {
		kind = engine.Compiler
	}
	return &Config{Backend: kind}
}

func (c *Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return Logger()
}
