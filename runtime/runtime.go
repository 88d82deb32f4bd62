package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Engine is one selected backend plus the ambient services its stores share.
type Engine struct {
	native engine.Engine
	logger *zap.Logger
	tel    *telemetry
	cfg    Config
}

// NewEngine creates the backend named by cfg.Backend. A nil cfg uses DefaultConfig.
func NewEngine(ctx context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Backend == 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "backend not set")
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "register metrics")
	}

	native, err := engine.New(ctx, cfg.Backend, &cfg.Engine)
	if err != nil {
		return nil, err
	}

	return &Engine{
		native: native,
		logger: cfg.logger().With(zap.Stringer("backend", cfg.Backend)),
		tel:    tel,
		cfg:    *cfg,
	}, nil
}

// Kind returns the selected backend.
func (e *Engine) Kind() engine.Kind {
	return e.native.Kind()
}

// Config returns a copy of the configuration the engine was created with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Native returns the backend engine.
func (e *Engine) Native() engine.Engine {
	return e.native
}

// Close releases the backend. Stores created from e must be closed first.
func (e *Engine) Close(ctx context.Context) error {
	return e.native.Close(ctx)
}
