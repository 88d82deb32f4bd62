package runtime

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/types"
)

var (
	contextType      = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType        = reflect.TypeOf((*error)(nil)).Elem()
	v128Type         = reflect.TypeOf(types.Vec128{})
	float32Type      = reflect.TypeOf(float32(0))
	float64Type      = reflect.TypeOf(float64(0))
	functionPtrType  = reflect.TypeOf((*Function)(nil))
	externRefPtrType = reflect.TypeOf((*ExternRef)(nil))
	exnRefPtrType    = reflect.TypeOf((*ExceptionRef)(nil))
)

// NewTypedFunction creates a host function whose signature is derived from
// fn's Go type.
//
// fn may take a leading context.Context, followed by parameters of type
// int32, uint32, int64, uint64, float32, float64, types.Vec128, *ExternRef,
// *Function or *ExceptionRef. Results use the same types and may end with
// an error. A non-nil error aborts the call as a trap.
func NewTypedFunction(ctx context.Context, s *Store, fn any) (*Function, error) {
	return s.newTyped(ctx, fn, reflect.Value{}, nil)
}

// NewTypedFunctionWithEnv is NewTypedFunction for handlers that take a
// FunctionEnvMut[T] right after the optional context.Context.
func NewTypedFunctionWithEnv[T any](ctx context.Context, s *Store, env FunctionEnv[T], fn any) (*Function, error) {
	if !env.IsFromStore(s) {
		return nil, errors.CrossStore(errors.PhaseStore, "function environment")
	}
	return s.newTyped(ctx, fn, reflect.ValueOf(env.Mut(s)), env)
}

func (s *Store) newTyped(ctx context.Context, fn any, envArg reflect.Value, env any) (*Function, error) {
	if err := s.checkOpen(errors.PhaseStore); err != nil {
		return nil, err
	}
	sig, err := s.deriveSignature(fn, envArg)
	if err != nil {
		return nil, err
	}

	call := sig.hostCall(s, envArg)
	if !envArg.IsValid() {
		if fast := typedFastPath(fn); fast != nil {
			call = fast
		}
	}
	native, err := s.native.NewHostFunction(ctx, sig.ty, s.guard(call))
	if err != nil {
		return nil, err
	}
	return s.insertFunction(&functionObject{native: native, ty: sig.ty, env: env})
}

// guard adds the panic and error boundary around a typed trampoline.
func (s *Store) guard(call engine.HostCall) engine.HostCall {
	return func(ctx context.Context, buf []types.RawValue) (err error) {
		defer s.recoverHostPanic(&err)
		if err := call(ctx, buf); err != nil {
			return hostError(err)
		}
		return nil
	}
}

type decoder func(s *Store, raw types.RawValue) (reflect.Value, error)
type encoder func(s *Store, v reflect.Value) (types.RawValue, error)

// typedSignature is the reflection plan for one handler, computed once.
type typedSignature struct {
	fn       reflect.Value
	ty       types.FunctionType
	decoders []decoder
	encoders []encoder
	hasCtx   bool
	hasErr   bool
}

func (s *Store) deriveSignature(fn any, envArg reflect.Value) (*typedSignature, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
			Actual(fmt.Sprintf("%T", fn)).
			Detail("handler must be a function").
			Build()
	}
	ft := v.Type()
	if ft.IsVariadic() {
		return nil, errors.New(errors.PhaseConvert, errors.KindUnsupported).
			Actual(ft.String()).
			Detail("variadic handlers are not supported").
			Build()
	}

	sig := &typedSignature{fn: v}
	in := 0
	if ft.NumIn() > in && ft.In(in) == contextType {
		sig.hasCtx = true
		in++
	}
	if envArg.IsValid() {
		if ft.NumIn() <= in || ft.In(in) != envArg.Type() {
			return nil, errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
				Path("param", strconv.Itoa(in)).
				Expected(envArg.Type().String()).
				Actual(ft.String()).
				Detail("handler must take its environment after the optional context").
				Build()
		}
		in++
	}

	var errs error
	for i := in; i < ft.NumIn(); i++ {
		kind, dec, _, ok := codecFor(ft.In(i))
		if !ok {
			errs = multierr.Append(errs, unsupportedType("param", i, ft.In(i)))
			continue
		}
		sig.ty.Params = append(sig.ty.Params, kind)
		sig.decoders = append(sig.decoders, dec)
	}

	out := ft.NumOut()
	if out > 0 && ft.Out(out-1) == errorType {
		sig.hasErr = true
		out--
	}
	for i := 0; i < out; i++ {
		kind, _, enc, ok := codecFor(ft.Out(i))
		if !ok {
			errs = multierr.Append(errs, unsupportedType("result", i, ft.Out(i)))
			continue
		}
		sig.ty.Results = append(sig.ty.Results, kind)
		sig.encoders = append(sig.encoders, enc)
	}
	if errs != nil {
		return nil, errors.New(errors.PhaseConvert, errors.KindUnsupported).
			Actual(ft.String()).
			Cause(errs).
			Detail("handler signature has no wasm equivalent").
			Build()
	}
	return sig, nil
}

func unsupportedType(what string, i int, t reflect.Type) error {
	return errors.New(errors.PhaseConvert, errors.KindUnsupported).
		Path(what, strconv.Itoa(i)).
		Actual(t.String()).
		Build()
}

// hostCall builds the reflective trampoline for handlers without a fast path.
func (sig *typedSignature) hostCall(s *Store, envArg reflect.Value) engine.HostCall {
	lead := 0
	if sig.hasCtx {
		lead++
	}
	if envArg.IsValid() {
		lead++
	}
	return func(ctx context.Context, buf []types.RawValue) error {
		in := make([]reflect.Value, lead+len(sig.decoders))
		i := 0
		if sig.hasCtx {
			in[i] = reflect.ValueOf(&ctx).Elem()
			i++
		}
		if envArg.IsValid() {
			in[i] = envArg
			i++
		}
		for j, dec := range sig.decoders {
			v, err := dec(s, buf[j])
			if err != nil {
				return err
			}
			in[i+j] = v
		}

		out := sig.fn.Call(in)
		if sig.hasErr {
			if errv := out[len(out)-1]; !errv.IsNil() {
				return errv.Interface().(error)
			}
		}

		raws := make([]types.RawValue, len(sig.encoders))
		for j, enc := range sig.encoders {
			raw, err := enc(s, out[j])
			if err != nil {
				return err
			}
			raws[j] = raw
		}
		copy(buf, raws)
		return nil
	}
}

// codecFor maps a Go parameter or result type to its wasm kind and slot codecs.
func codecFor(t reflect.Type) (types.ValueType, decoder, encoder, bool) {
	switch t {
	case float32Type:
		return types.F32,
			func(_ *Store, raw types.RawValue) (reflect.Value, error) {
				return reflect.ValueOf(raw.F32()), nil
			},
			func(_ *Store, v reflect.Value) (types.RawValue, error) {
				return types.RawF32(v.Interface().(float32)), nil
			}, true
	case float64Type:
		return types.F64,
			func(_ *Store, raw types.RawValue) (reflect.Value, error) {
				return reflect.ValueOf(raw.F64()), nil
			},
			func(_ *Store, v reflect.Value) (types.RawValue, error) {
				return types.RawF64(v.Interface().(float64)), nil
			}, true
	case v128Type:
		return types.V128,
			func(_ *Store, raw types.RawValue) (reflect.Value, error) {
				return reflect.ValueOf(raw.V128()), nil
			},
			func(_ *Store, v reflect.Value) (types.RawValue, error) {
				return types.RawV128(v.Interface().(types.Vec128)), nil
			}, true
	case functionPtrType:
		return refCodec(types.FuncRef, t)
	case externRefPtrType:
		return refCodec(types.ExternRef, t)
	case exnRefPtrType:
		return refCodec(types.ExnRef, t)
	}

	switch t.Kind() {
	case reflect.Int32:
		return types.I32,
			func(_ *Store, raw types.RawValue) (reflect.Value, error) {
				v := reflect.New(t).Elem()
				v.SetInt(int64(raw.I32()))
				return v, nil
			},
			func(_ *Store, v reflect.Value) (types.RawValue, error) {
				return types.RawI32(int32(v.Int())), nil
			}, true
	case reflect.Uint32:
		return types.I32,
			func(_ *Store, raw types.RawValue) (reflect.Value, error) {
				v := reflect.New(t).Elem()
				v.SetUint(uint64(uint32(raw.Lo)))
				return v, nil
			},
			func(_ *Store, v reflect.Value) (types.RawValue, error) {
				return types.RawValue{Lo: uint64(uint32(v.Uint()))}, nil
			}, true
	case reflect.Int64:
		return types.I64,
			func(_ *Store, raw types.RawValue) (reflect.Value, error) {
				v := reflect.New(t).Elem()
				v.SetInt(raw.I64())
				return v, nil
			},
			func(_ *Store, v reflect.Value) (types.RawValue, error) {
				return types.RawI64(v.Int()), nil
			}, true
	case reflect.Uint64:
		return types.I64,
			func(_ *Store, raw types.RawValue) (reflect.Value, error) {
				v := reflect.New(t).Elem()
				v.SetUint(raw.Lo)
				return v, nil
			},
			func(_ *Store, v reflect.Value) (types.RawValue, error) {
				return types.RawValue{Lo: v.Uint()}, nil
			}, true
	}
	return 0, nil, nil, false
}

func refCodec(kind types.ValueType, t reflect.Type) (types.ValueType, decoder, encoder, bool) {
	dec := func(s *Store, raw types.RawValue) (reflect.Value, error) {
		v, err := s.fromRaw(errors.PhaseHost, kind, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.ref == nil {
			return reflect.Zero(t), nil
		}
		return reflect.ValueOf(v.ref), nil
	}
	enc := func(s *Store, v reflect.Value) (types.RawValue, error) {
		if v.IsNil() {
			return types.RawNull, nil
		}
		return s.toRaw(errors.PhaseHost, Value{kind: kind, ref: v.Interface()})
	}
	return kind, dec, enc, true
}

// typedFastPath returns a reflection-free trampoline for common numeric
// handler shapes, or nil.
func typedFastPath(fn any) engine.HostCall {
	switch f := fn.(type) {
	case func():
		return func(context.Context, []types.RawValue) error {
			f()
			return nil
		}
	case func(int32):
		return func(_ context.Context, buf []types.RawValue) error {
			f(buf[0].I32())
			return nil
		}
	case func() int32:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI32(f())
			return nil
		}
	case func() int64:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI64(f())
			return nil
		}
	case func(int32) int32:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI32(f(buf[0].I32()))
			return nil
		}
	case func(int32, int32) int32:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI32(f(buf[0].I32(), buf[1].I32()))
			return nil
		}
	case func(int64) int64:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI64(f(buf[0].I64()))
			return nil
		}
	case func(int64, int64) int64:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI64(f(buf[0].I64(), buf[1].I64()))
			return nil
		}
	case func(float32, float32) float32:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawF32(f(buf[0].F32(), buf[1].F32()))
			return nil
		}
	case func(float64, float64) float64:
		return func(_ context.Context, buf []types.RawValue) error {
			buf[0] = types.RawF64(f(buf[0].F64(), buf[1].F64()))
			return nil
		}
	case func(context.Context, int32, int32) int32:
		return func(ctx context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI32(f(ctx, buf[0].I32(), buf[1].I32()))
			return nil
		}
	case func(context.Context, int64, int64) int64:
		return func(ctx context.Context, buf []types.RawValue) error {
			buf[0] = types.RawI64(f(ctx, buf[0].I64(), buf[1].I64()))
			return nil
		}
	case func(float64, float64) (float64, error):
		return func(_ context.Context, buf []types.RawValue) error {
			r, err := f(buf[0].F64(), buf[1].F64())
			if err != nil {
				return err
			}
			buf[0] = types.RawF64(r)
			return nil
		}
	}
	return nil
}
