package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the call path the error occurred
type Phase string

const (
	PhaseMarshal   Phase = "marshal"   // typed values to raw slots
	PhaseUnmarshal Phase = "unmarshal" // raw slots to typed values
	PhaseCall      Phase = "call"      // native invocation
	PhaseHost      Phase = "host"      // host function wrapper
	PhaseStore     Phase = "store"     // store and entity operations
	PhaseRegistry  Phase = "registry"  // handle lookup
	PhaseConvert   Phase = "convert"   // static signature derivation
	PhaseEngine    Phase = "engine"    // backend engine
	PhaseConfig    Phase = "config"
)

// Kind categorizes the error
type Kind string

const (
	KindArityMismatch       Kind = "arity_mismatch"
	KindTypeMismatch        Kind = "type_mismatch"
	KindCrossStore          Kind = "cross_store"
	KindIncompatibleBackend Kind = "incompatible_backend"
	KindDowncast            Kind = "downcast"
	KindTrap                Kind = "trap"
	KindHostPanic           Kind = "host_panic"
	KindImmutable           Kind = "immutable"
	KindUnsupported         Kind = "unsupported"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindClosed              Kind = "closed"
)

// Sentinels match an error of the same Kind raised in any Phase.
var (
	ErrArityMismatch       = &Error{Kind: KindArityMismatch}
	ErrTypeMismatch        = &Error{Kind: KindTypeMismatch}
	ErrCrossStore          = &Error{Kind: KindCrossStore}
	ErrIncompatibleBackend = &Error{Kind: KindIncompatibleBackend}
	ErrDowncast            = &Error{Kind: KindDowncast}
	ErrTrap                = &Error{Kind: KindTrap}
	ErrHostPanic           = &Error{Kind: KindHostPanic}
	ErrImmutable           = &Error{Kind: KindImmutable}
	ErrUnsupported         = &Error{Kind: KindUnsupported}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrClosed              = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Expected string
	Actual   string
	Detail   string
	Path     []string
	// Stack is the host goroutine stack captured for KindHostPanic.
	Stack []byte
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	hasTypes := e.Expected != "" || e.Actual != ""
	if hasTypes {
		b.WriteString(": ")
		switch {
		case e.Expected != "" && e.Actual != "":
			b.WriteString("expected ")
			b.WriteString(e.Expected)
			b.WriteString(", got ")
			b.WriteString(e.Actual)
		case e.Expected != "":
			b.WriteString("expected ")
			b.WriteString(e.Expected)
		default:
			b.WriteString("got ")
			b.WriteString(e.Actual)
		}
	}

	if e.Detail != "" {
		if hasTypes {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a Phase
// matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the position path, e.g. "param", "1"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Expected sets the expected type or shape
func (b *Builder) Expected(t string) *Builder {
	b.err.Expected = t
	return b
}

// Actual sets the observed type or shape
func (b *Builder) Actual(t string) *Builder {
	b.err.Actual = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ArityMismatch reports a value list whose length disagrees with a signature
func ArityMismatch(phase Phase, what string, expected, actual int) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindArityMismatch,
		Path:     []string{what},
		Expected: fmt.Sprintf("%d values", expected),
		Actual:   fmt.Sprintf("%d values", actual),
	}
}

// TypeMismatch reports a value kind that disagrees with the declared kind
func TypeMismatch(phase Phase, path []string, expected, actual string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		Expected: expected,
		Actual:   actual,
	}
}

// CrossStore reports an entity or handle presented to a store that does not own it
func CrossStore(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCrossStore,
		Detail: fmt.Sprintf("%s belongs to a different store", what),
	}
}

// IncompatibleBackend is the panic payload raised when two backend
// configurations are mixed.
func IncompatibleBackend(expected, actual string) *Error {
	return &Error{
		Phase:    PhaseEngine,
		Kind:     KindIncompatibleBackend,
		Expected: expected,
		Actual:   actual,
	}
}

// Downcast reports an opaque reference read back at the wrong Go type
func Downcast(expected, actual string) *Error {
	return &Error{
		Phase:    PhaseConvert,
		Kind:     KindDowncast,
		Expected: expected,
		Actual:   actual,
	}
}

// Trap wraps a guest fault or host failure that aborts a call
func Trap(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindTrap,
		Cause: cause,
	}
}

// HostPanic records a recovered host panic so it can cross the engine as an error
func HostPanic(value any, stack []byte) *Error {
	e := &Error{
		Phase:  PhaseHost,
		Kind:   KindHostPanic,
		Value:  value,
		Stack:  stack,
		Detail: fmt.Sprint(value),
	}
	if err, ok := value.(error); ok {
		e.Cause = err
	}
	return e
}

// Immutable reports a write to a constant global
func Immutable(what string) *Error {
	return &Error{
		Phase:  PhaseStore,
		Kind:   KindImmutable,
		Detail: fmt.Sprintf("%s is immutable", what),
	}
}

// Closed reports use of a released store or engine
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the Kind of the first structured error in err's chain,
// or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsHostPanic extracts a recovered host panic from err's chain.
func AsHostPanic(err error) (*Error, bool) {
	var e *Error
	for cur := err; cur != nil; {
		if !errors.As(cur, &e) {
			return nil, false
		}
		if e.Kind == KindHostPanic {
			return e, true
		}
		cur = e.Cause
	}
	return nil, false
}
