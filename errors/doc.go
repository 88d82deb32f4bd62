// Package errors provides structured error types for the wasm bridge.
//
// Errors are categorized by Phase (where in the call path the error occurred)
// and Kind (error category). Kinds mirror the failure modes of a host/guest
// call: arity and type mismatches, cross-store use, downcast failures, traps,
// and recovered host panics.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Path("param", "1").
//		Expected("i32").
//		Actual("i64").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ArityMismatch(errors.PhaseMarshal, "params", 2, 1)
//	err := errors.Trap(errors.PhaseCall, cause)
//
// The exported sentinels match by Kind in any Phase:
//
//	if errors.Is(err, bridgeerrors.ErrCrossStore) { ... }
package errors
