package runtime

import (
	"context"
)

type onCalledKind uint8

const (
	actionFinish onCalledKind = iota
	actionInvokeAgain
	actionTrap
)

// OnCalledAction is a resumption hook's decision about a finished native
// invocation.
type OnCalledAction struct {
	err  error
	kind onCalledKind
}

// InvokeAgain re-enters the same native function with the current buffer.
func InvokeAgain() OnCalledAction { return OnCalledAction{kind: actionInvokeAgain} }

// Finish ends the call with the outcome of the last invocation.
func Finish() OnCalledAction { return OnCalledAction{kind: actionFinish} }

// TrapAction aborts the call with err and extracts no results.
func TrapAction(err error) OnCalledAction { return OnCalledAction{kind: actionTrap, err: err} }

func (a OnCalledAction) String() string {
	switch a.kind {
	case actionInvokeAgain:
		return "invoke_again"
	case actionTrap:
		return "trap"
	default:
		return "finish"
	}
}

// OnCalledHandler decides how a call continues after a native invocation
// returns. A non-nil error aborts the call like TrapAction.
type OnCalledHandler func(ctx context.Context, s *Store) (OnCalledAction, error)

// callFrame is the per-call state the trampoline threads through ctx.
type callFrame struct {
	hook OnCalledHandler
	// call is false for the placeholder frames made by WithOnCalled.
	call bool
	// claimed marks a placeholder whose hook a call has taken over.
	claimed bool
}

type callFrameKey struct{}

// OnCalled arms a one-shot resumption hook on the innermost call running
// under ctx. It is meant for host functions, which receive the call's ctx.
// Arming again before the hook runs replaces it. OnCalled reports false when
// ctx carries no call.
func OnCalled(ctx context.Context, h OnCalledHandler) bool {
	f, ok := ctx.Value(callFrameKey{}).(*callFrame)
	if !ok || !f.call {
		return false
	}
	f.hook = h
	return true
}

// WithOnCalled returns a ctx whose next Function.Call starts with h armed.
// The hook is claimed by that one call; nested calls do not inherit it.
func WithOnCalled(ctx context.Context, h OnCalledHandler) context.Context {
	return context.WithValue(ctx, callFrameKey{}, &callFrame{hook: h})
}

// enterCall creates the frame for a new call under ctx, claiming a hook
// armed with WithOnCalled.
func enterCall(ctx context.Context) (context.Context, *callFrame) {
	f := &callFrame{call: true}
	if parent, ok := ctx.Value(callFrameKey{}).(*callFrame); ok && !parent.call && !parent.claimed {
		f.hook = parent.hook
		parent.hook = nil
		parent.claimed = true
	}
	return context.WithValue(ctx, callFrameKey{}, f), f
}

// take returns the armed hook and clears it.
func (f *callFrame) take() OnCalledHandler {
	h := f.hook
	f.hook = nil
	return h
}
