package runtime

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

// dynamicHostCall adapts fn to the engine's raw calling convention.
// Results are fully validated before the first slot is written, so a
// failing call never leaves partial results in buf.
func (s *Store) dynamicHostCall(ty types.FunctionType, fn HostFunc) engine.HostCall {
	return func(ctx context.Context, buf []types.RawValue) (err error) {
		defer s.recoverHostPanic(&err)

		args := make([]Value, len(ty.Params))
		for i, pt := range ty.Params {
			if args[i], err = s.fromRaw(errors.PhaseHost, pt, buf[i]); err != nil {
				return err
			}
		}

		results, err := fn(ctx, args)
		if err != nil {
			return hostError(err)
		}
		if err := s.checkValues(errors.PhaseHost, "results", ty.Results, results); err != nil {
			return err
		}
		raws := make([]types.RawValue, len(results))
		for i, r := range results {
			if raws[i], err = s.toRaw(errors.PhaseHost, r); err != nil {
				return err
			}
		}
		copy(buf, raws)
		return nil
	}
}

// recoverHostPanic turns a host panic into a host_panic error so it can
// cross the engine. The trampoline re-raises it.
func (s *Store) recoverHostPanic(err *error) {
	r := recover()
	if r == nil {
		return
	}
	stack := debug.Stack()
	s.logger.Error("host function panicked",
		zap.Any("panic", r),
		zap.ByteString("stack", stack))
	*err = errors.HostPanic(r, stack)
}

// hostError passes structured errors through and wraps anything else as a
// trap raised by the host.
func hostError(err error) error {
	if errors.KindOf(err) != "" {
		return err
	}
	return errors.Trap(errors.PhaseHost, err)
}
