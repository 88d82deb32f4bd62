package runtime

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
	"github.com/wippyai/wasm-bridge/types"
)

// Value is one typed WebAssembly value as seen by host code.
//
// Scalars carry their bits directly; NaN payloads survive every
// conversion. Reference values point at an entity of the store they were
// created in, or are null.
type Value struct {
	ref  any // *Function, *ExternRef, *ExceptionRef or nil
	raw  types.RawValue
	kind types.ValueType
}

// Scalar constructors. F32Bits and F64Bits take raw IEEE bit patterns.
func I32(v int32) Value { return Value{kind: types.I32, raw: types.RawI32(v)} }
func I64(v int64) Value { return Value{kind: types.I64, raw: types.RawI64(v)} }
func F32(v float32) Value { return Value{kind: types.F32, raw: types.RawF32(v)} }
func F64(v float64) Value { return Value{kind: types.F64, raw: types.RawF64(v)} }
func F32Bits(b uint32) Value { return Value{kind: types.F32, raw: types.RawF32Bits(b)} }
func F64Bits(b uint64) Value { return Value{kind: types.F64, raw: types.RawF64Bits(b)} }
func V128(v types.Vec128) Value { return Value{kind: types.V128, raw: types.RawV128(v)} }

// FuncRef wraps f as a funcref value; a nil f is the null funcref.
func FuncRef(f *Function) Value { return refValue(types.FuncRef, f, f == nil) }

// ExternRefOf wraps r as an externref value; a nil r is the null externref.
func ExternRefOf(r *ExternRef) Value { return refValue(types.ExternRef, r, r == nil) }

// ExnRefOf wraps r as an exnref value; a nil r is the null exnref.
func ExnRefOf(r *ExceptionRef) Value { return refValue(types.ExnRef, r, r == nil) }

// NullRef returns the null value of a reference kind.
func NullRef(kind types.ValueType) Value {
	if !kind.IsRef() {
		panic(fmt.Sprintf("runtime: %s is not a reference type", kind))
	}
	return Value{kind: kind}
}

func refValue(kind types.ValueType, ref any, null bool) Value {
	if null {
		return Value{kind: kind}
	}
	return Value{kind: kind, ref: ref}
}

// Type returns the value's kind.
func (v Value) Type() types.ValueType { return v.kind }

func (v Value) I32() int32 { return v.raw.I32() }
func (v Value) I64() int64 { return v.raw.I64() }
func (v Value) F32() float32 { return v.raw.F32() }
func (v Value) F64() float64 { return v.raw.F64() }
func (v Value) F32Bits() uint32 { return v.raw.F32Bits() }
func (v Value) F64Bits() uint64 { return v.raw.Lo }
func (v Value) V128() types.Vec128 { return v.raw.V128() }

// IsNull reports whether v is a null reference.
func (v Value) IsNull() bool { return v.kind.IsRef() && v.ref == nil }

// FuncRef returns the referenced function, nil for null or non-funcref values.
func (v Value) FuncRef() *Function {
	f, _ := v.ref.(*Function)
	return f
}

// ExternRef returns the referenced extern object, nil for null or other kinds.
func (v Value) ExternRef() *ExternRef {
	r, _ := v.ref.(*ExternRef)
	return r
}

// ExnRef returns the referenced exception, nil for null or other kinds.
func (v Value) ExnRef() *ExceptionRef {
	r, _ := v.ref.(*ExceptionRef)
	return r
}

// Equal compares kinds and bits. Floats compare by bit pattern, so NaN
// equals an identical NaN. References compare by identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind.IsRef() {
		return refHandle(v.ref) == refHandle(o.ref)
	}
	if v.kind != types.V128 {
		return v.raw.Lo == o.raw.Lo
	}
	return v.raw == o.raw
}

func (v Value) String() string {
	switch v.kind {
	case types.I32:
		return fmt.Sprintf("i32:%d", v.I32())
	case types.I64:
		return fmt.Sprintf("i64:%d", v.I64())
	case types.F32:
		f := v.F32()
		if math.IsNaN(float64(f)) {
			return fmt.Sprintf("f32:nan(0x%08x)", v.F32Bits())
		}
		return fmt.Sprintf("f32:%g", f)
	case types.F64:
		f := v.F64()
		if math.IsNaN(f) {
			return fmt.Sprintf("f64:nan(0x%016x)", v.F64Bits())
		}
		return fmt.Sprintf("f64:%g", f)
	case types.V128:
		return fmt.Sprintf("v128:0x%016x%016x", v.raw.Hi, v.raw.Lo)
	}
	if v.ref == nil {
		return v.kind.String() + ":null"
	}
	h := refHandle(v.ref)
	return fmt.Sprintf("%s:%s/%d", v.kind, h.store, uint32(h.internal))
}

// refKey identifies an entity independent of its Go type.
type refKey struct {
	store    registry.StoreID
	internal registry.InternalHandle
}

func refHandle(ref any) refKey {
	switch r := ref.(type) {
	case *Function:
		return refKey{r.handle.StoreID(), r.handle.Internal()}
	case *ExternRef:
		return refKey{r.handle.StoreID(), r.handle.Internal()}
	case *ExceptionRef:
		return refKey{r.handle.StoreID(), r.handle.Internal()}
	}
	return refKey{}
}

// toRaw lowers v into a raw slot. Reference values must belong to s.
func (s *Store) toRaw(phase errors.Phase, v Value) (types.RawValue, error) {
	if !v.kind.IsRef() {
		return v.raw, nil
	}
	if v.ref == nil {
		return types.RawNull, nil
	}
	k := refHandle(v.ref)
	if k.store != s.ID() {
		return types.RawValue{}, errors.CrossStore(phase, v.kind.String())
	}
	return types.RawRef(k.internal.Index()), nil
}

// fromRaw lifts a raw slot of the given kind. Reference slots are resolved
// against s and must name an object of the matching entity type.
func (s *Store) fromRaw(phase errors.Phase, kind types.ValueType, raw types.RawValue) (Value, error) {
	switch kind {
	case types.I32, types.F32:
		return Value{kind: kind, raw: types.RawValue{Lo: uint64(uint32(raw.Lo))}}, nil
	case types.I64, types.F64:
		return Value{kind: kind, raw: types.RawValue{Lo: raw.Lo}}, nil
	case types.V128:
		return Value{kind: kind, raw: raw}, nil
	}

	if !raw.ValidRef() {
		return Value{}, errors.New(phase, errors.KindTypeMismatch).
			Expected(kind.String()).
			Actual(fmt.Sprintf("slot %#x:%#x", raw.Hi, raw.Lo)).
			Detail("raw slot is not a reference").
			Build()
	}
	idx, ok := raw.Ref()
	if !ok {
		return Value{kind: kind}, nil
	}
	h := registry.FromIndex(idx)
	var (
		ref any
		err error
	)
	switch kind {
	case types.FuncRef:
		ref, err = liftRef[functionObject](s, h, func(h registry.Handle[functionObject]) any { return &Function{handle: h} })
	case types.ExternRef:
		ref, err = liftRef[externObject](s, h, func(h registry.Handle[externObject]) any { return &ExternRef{handle: h} })
	case types.ExnRef:
		ref, err = liftRef[exceptionObject](s, h, func(h registry.Handle[exceptionObject]) any { return &ExceptionRef{handle: h} })
	default:
		return Value{}, errors.New(phase, errors.KindTypeMismatch).
			Actual(kind.String()).
			Detail("unknown value type").
			Build()
	}
	if err != nil {
		return Value{}, errors.New(phase, errors.KindTypeMismatch).
			Expected(kind.String()).
			Cause(err).
			Detail("raw slot does not name a %s in %s", kind, s.ID()).
			Build()
	}
	return Value{kind: kind, ref: ref}, nil
}

func liftRef[T any](s *Store, h registry.InternalHandle, wrap func(registry.Handle[T]) any) (any, error) {
	handle := registry.FromInternal[T](s.objects, h)
	if _, err := handle.Get(s.objects); err != nil {
		return nil, err
	}
	return wrap(handle), nil
}

// checkValues verifies that vals match kinds one to one and that every
// reference belongs to s. what names the list in errors.
func (s *Store) checkValues(phase errors.Phase, what string, kinds []types.ValueType, vals []Value) error {
	if len(vals) != len(kinds) {
		return errors.New(phase, errors.KindArityMismatch).
			Path(what).
			Expected(fmt.Sprintf("%d values %s", len(kinds), types.TypeNames(kinds))).
			Actual(fmt.Sprintf("%d values %s", len(vals), valueTypeNames(vals))).
			Build()
	}
	for i, v := range vals {
		if v.kind != kinds[i] {
			return errors.TypeMismatch(phase, []string{what, fmt.Sprint(i)}, kinds[i].String(), v.kind.String())
		}
		if v.ref != nil && refHandle(v.ref).store != s.ID() {
			return errors.New(phase, errors.KindCrossStore).
				Path(what, fmt.Sprint(i)).
				Detail("%s belongs to a different store", v.kind).
				Build()
		}
	}
	return nil
}

func valueTypeNames(vals []Value) string {
	kinds := make([]types.ValueType, len(vals))
	for i, v := range vals {
		kinds[i] = v.kind
	}
	return types.TypeNames(kinds)
}
