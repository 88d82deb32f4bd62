package runtime

import (
	"context"
	stderrors "errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

// Call invokes f in s with args and returns its results.
//
// Arguments are checked against f's signature before anything runs. No
// results are returned unless the call completes. A panic raised by a host
// function during the call is re-raised here with its original value.
func (f *Function) Call(ctx context.Context, s *Store, args ...Value) ([]Value, error) {
	obj, err := f.object(s)
	if err != nil {
		return nil, err
	}
	ty := obj.ty
	if err := s.checkValues(errors.PhaseMarshal, "params", ty.Params, args); err != nil {
		return nil, err
	}

	buf := make([]types.RawValue, ty.Slots())
	for i, a := range args {
		if buf[i], err = s.toRaw(errors.PhaseMarshal, a); err != nil {
			return nil, err
		}
	}

	if err := s.invoke(ctx, obj, buf); err != nil {
		return nil, err
	}

	results := make([]Value, len(ty.Results))
	for i, rt := range ty.Results {
		if results[i], err = s.fromRaw(errors.PhaseUnmarshal, rt, buf[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// CallRaw invokes f with pre-marshaled slots. buf must hold at least
// max(params, results) slots; arguments are read from its head and results
// written back in place. Reference slots are not checked.
func (f *Function) CallRaw(ctx context.Context, s *Store, buf []types.RawValue) error {
	obj, err := f.object(s)
	if err != nil {
		return err
	}
	if n := obj.ty.Slots(); len(buf) < n {
		return errors.New(errors.PhaseMarshal, errors.KindArityMismatch).
			Path("buffer").
			Expected(itoaSlots(n)).
			Actual(itoaSlots(len(buf))).
			Build()
	}
	return s.invoke(ctx, obj, buf[:obj.ty.Slots()])
}

// invoke runs the native call loop for one Function.Call.
func (s *Store) invoke(ctx context.Context, obj *functionObject, buf []types.RawValue) error {
	ctx, span := s.engine.tel.startCall(ctx, s.backend, len(obj.ty.Params), len(obj.ty.Results))
	ctx, frame := enterCall(ctx)

	var (
		err         error
		invocations int
	)
	for {
		invocations++
		err = obj.native.Call(ctx, buf)

		// Host panics bypass the resumption hook.
		if hp, ok := errors.AsHostPanic(err); ok {
			frame.take()
			s.engine.tel.endCall(span, s.backend, outcomeHostPanic, invocations, hp)
			panic(hp.Value)
		}

		hook := frame.take()
		if hook == nil {
			break
		}
		action, herr := hook(ctx, s)
		if herr != nil {
			action = TrapAction(herr)
		}
		s.engine.tel.resumed(s.backend, action.String())
		s.logger.Debug("resumption hook",
			zap.Stringer("action", action),
			zap.Int("invocation", invocations))

		if action.kind == actionInvokeAgain {
			continue
		}
		if action.kind == actionTrap {
			// Results of the last invocation are discarded.
			err = action.err
			if err == nil {
				err = errors.Trap(errors.PhaseCall, nil)
			}
			s.engine.tel.endCall(span, s.backend, outcomeTrap, invocations, err)
			return err
		}
		break
	}

	if err == nil {
		s.engine.tel.endCall(span, s.backend, outcomeOK, invocations, nil)
		return nil
	}

	err = normalizeCallError(err)
	outcome := outcomeError
	if errors.KindOf(err) == errors.KindTrap {
		outcome = outcomeTrap
	}
	s.engine.tel.endCall(span, s.backend, outcome, invocations, err)
	return err
}

// normalizeCallError unwraps the first structured error from whatever the
// backend wrapped around it and turns anything else into a trap.
func normalizeCallError(err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e
	}
	return errors.Trap(errors.PhaseCall, err)
}

func itoaSlots(n int) string {
	if n == 1 {
		return "1 slot"
	}
	return strconv.Itoa(n) + " slots"
}
