package runtime

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/wippyai/wasm-bridge/errors"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as typed host functions.
type Host interface {
	// Namespace groups the host's functions, e.g. "demo".
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact function names when
// the automatic PascalCase-to-kebab-case conversion doesn't fit.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// HostRegistry creates host functions in one store and indexes them by
// namespace and name.
type HostRegistry struct {
	store *Store
	funcs map[string]map[string]*Function
}

func NewHostRegistry(s *Store) *HostRegistry {
	return &HostRegistry{
		store: s,
		funcs: make(map[string]map[string]*Function),
	}
}

// RegisterHost creates a typed function for every exported method of h.
// Method names are converted from PascalCase to kebab-case (GetValue -> get-value).
func (r *HostRegistry) RegisterHost(ctx context.Context, h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		for name, handler := range er.Register() {
			if err := r.RegisterFunc(ctx, ns, name, handler); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		if err := r.RegisterFunc(ctx, ns, toKebabCase(method.Name), rv.Method(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFunc creates a typed function from fn and files it under
// namespace and name. Re-registering a name replaces the entry.
func (r *HostRegistry) RegisterFunc(ctx context.Context, namespace, name string, fn any) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}

	f, err := NewTypedFunction(ctx, r.store, fn)
	if err != nil {
		kind := errors.KindOf(err)
		if kind == "" {
			kind = errors.KindInvalidInput
		}
		return errors.New(errors.PhaseHost, kind).
			Path(namespace, name).
			Cause(err).
			Detail("register host function").
			Build()
	}
	return r.Add(namespace, name, f)
}

// Add files an existing function of the registry's store under namespace and name.
func (r *HostRegistry) Add(namespace, name string, f *Function) error {
	if !f.IsFromStore(r.store) {
		return errors.New(errors.PhaseHost, errors.KindCrossStore).
			Path(namespace, name).
			Detail("function belongs to a different store").
			Build()
	}
	if r.funcs[namespace] == nil {
		r.funcs[namespace] = make(map[string]*Function)
	}
	r.funcs[namespace][name] = f
	return nil
}

// Lookup returns the function registered under namespace and name.
func (r *HostRegistry) Lookup(namespace, name string) (*Function, bool) {
	f, ok := r.funcs[namespace][name]
	return f, ok
}

// Namespaces returns the registered namespaces in sorted order.
func (r *HostRegistry) Namespaces() []string {
	out := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Names returns the function names of a namespace in sorted order.
func (r *HostRegistry) Names(namespace string) []string {
	out := make([]string, 0, len(r.funcs[namespace]))
	for name := range r.funcs[namespace] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// toKebabCase converts PascalCase to kebab-case.
// Handles acronyms: GetHTTPCode -> get-http-code. Adjacent acronyms are
// not split: GetHTTPURL -> get-httpurl.
func toKebabCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('-')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
