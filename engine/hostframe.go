//go:build wasmtime || wasmer || wasmedge

package engine

import (
	"context"
	"math"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

// The cgo engines invoke host closures without a context and can only
// carry a message string back out of a failed host call. hostFrames keeps
// the context of each in-flight native call and the Go error raised under
// it, so Call can return the original error instead of the C trap.
type hostFrames struct {
	frames []*hostFrame
}

type hostFrame struct {
	ctx context.Context
	err error
}

func (h *hostFrames) enter(ctx context.Context) *hostFrame {
	f := &hostFrame{ctx: ctx}
	h.frames = append(h.frames, f)
	return f
}

func (h *hostFrames) leave() {
	h.frames = h.frames[:len(h.frames)-1]
}

func (h *hostFrames) current() *hostFrame {
	if len(h.frames) == 0 {
		return &hostFrame{ctx: context.Background()}
	}
	return h.frames[len(h.frames)-1]
}

// invoke runs call under the innermost frame. A panic is recovered here
// because unwinding a Go panic through C frames aborts the process.
func (h *hostFrames) invoke(call HostCall, buf []types.RawValue) (err error) {
	frame := h.current()
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("host function panicked", zap.Any("panic", r))
			err = errors.HostPanic(r, debug.Stack())
		}
		if err != nil {
			frame.err = err
		}
	}()
	return call(frame.ctx, buf)
}

// result prefers the stashed Go error over the engine's own.
func (f *hostFrame) result(native error) error {
	if f.err != nil {
		return f.err
	}
	if native != nil {
		return errors.Trap(errors.PhaseCall, native)
	}
	return nil
}

// goBits converts a scalar returned by a cgo engine's Call into a slot.
func goBits(v interface{}) uint64 {
	switch x := v.(type) {
	case int32:
		return uint64(uint32(x))
	case int64:
		return uint64(x)
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	}
	return 0
}

// goValue converts a slot into the Go scalar the cgo engines take as a call argument.
func goValue(t types.ValueType, bits uint64) interface{} {
	switch t {
	case types.I64:
		return int64(bits)
	case types.F32:
		return math.Float32frombits(uint32(bits))
	case types.F64:
		return math.Float64frombits(bits)
	default:
		return int32(uint32(bits))
	}
}
