package moor

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

type autoMarker struct{}

// Auto is the sentinel a caller passes in an argument position to
// request injection for that parameter while supplying later positions
// explicitly.
var Auto any = autoMarker{}

// Binding marks one parameter of a wrapped function as injectable. The
// requirement may leave its target type or name unset; they are
// completed from the parameter's declared type and the binding's name
// at wrap time.
type Binding struct {
	index int
	name  string
	req   Requirement
}

// Arg binds the parameter at index (counting every parameter of fn,
// including a leading context.Context) to a requirement. The name is
// used for CallNamed and to complete an unnamed requirement; Go's
// reflection carries no parameter names, so it is declared here.
func Arg(index int, name string, req Requirement) Binding {
	return Binding{index: index, name: name, req: req}
}

// paramSpec is the wrap-time descriptor for one parameter.
type paramSpec struct {
	typ   reflect.Type
	name  string
	req   Requirement
	bound bool
	isCtx bool
}

// Injected is a wrapped callable with the binding descriptor computed
// once at wrap time. Calling it fills unbound injectable parameters by
// resolving their requirements; explicitly supplied arguments always
// win over injection.
type Injected struct {
	reg    *Registry
	fn     reflect.Value
	params []paramSpec
	errOut bool
	scoped bool
}

// Injectable wraps fn with the given parameter bindings. fn must be a
// non-variadic function; context.Context parameters receive the calling
// context and cannot be bound. Method values carry their receiver, so
// wrapping a bound method needs no extra indirection.
//
//	handler, err := r.Injectable(
//	    func(ctx context.Context, city string, svc *Weather) string { ... },
//	    moor.Arg(2, "svc", moor.Require[*Weather]()),
//	)
//	out, err := handler.Call(ctx, "Lisbon")
func (r *Registry) Injectable(fn any, bindings ...Binding) (*Injected, error) {
	return r.wrap(fn, bindings, false)
}

// Executor wraps fn like Injectable and additionally brackets every
// call in a fresh execution scope: context-scoped definitions and
// transients resolved during the call are released when it returns,
// even on error or panic.
func (r *Registry) Executor(fn any, bindings ...Binding) (*Injected, error) {
	return r.wrap(fn, bindings, true)
}

func (r *Registry) wrap(fn any, bindings []Binding, scoped bool) (*Injected, error) {
	if fn == nil {
		return nil, errors.New("injectable: fn cannot be nil")
	}

	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, errors.Errorf("injectable: fn must be a function, got %T", fn)
	}

	if fnType.IsVariadic() {
		return nil, errors.New("injectable: variadic functions are not supported")
	}

	params := make([]paramSpec, fnType.NumIn())
	for i := range params {
		typ := fnType.In(i)
		params[i] = paramSpec{
			typ:   typ,
			isCtx: typ == ctxType,
		}
	}

	for _, b := range bindings {
		if b.index < 0 || b.index >= len(params) {
			return nil, errors.Errorf("injectable: binding index %d out of range, fn has %d parameters", b.index, len(params))
		}

		p := &params[b.index]
		if p.isCtx {
			return nil, errors.Errorf("injectable: parameter %d is a context.Context and cannot be bound", b.index)
		}

		if p.bound {
			return nil, errors.Errorf("injectable: parameter %d bound twice", b.index)
		}

		completed := b.req.completed(p.typ, b.name)
		if len(completed.Targets()) == 0 {
			return nil, errors.Wrapf(ErrNoTargetType, "injectable: parameter %d", b.index)
		}

		p.req = completed
		p.name = b.name
		p.bound = true
	}

	errOut := fnType.NumOut() > 0 && fnType.Out(fnType.NumOut()-1) == errType

	return &Injected{
		reg:    r,
		fn:     fnValue,
		params: params,
		errOut: errOut,
		scoped: scoped,
	}, nil
}

// Call invokes the wrapped function with positional arguments. args map
// onto fn's non-context parameters in order; a missing trailing
// argument or an Auto sentinel in a bound position is injected.
// Returns fn's results, with a trailing error return split off.
func (f *Injected) Call(ctx context.Context, args ...any) ([]any, error) {
	if f.scoped {
		var out []any

		err := f.reg.RunScope(ctx, func(ctx context.Context) error {
			var callErr error
			out, callErr = f.invoke(ctx, args, nil)

			return callErr
		})

		return out, err
	}

	return f.invoke(ctx, args, nil)
}

// CallNamed invokes the wrapped function with keyword arguments, keyed
// by binding name. Every non-context parameter must be bound; names
// present in kwargs win over injection.
func (f *Injected) CallNamed(ctx context.Context, kwargs map[string]any) ([]any, error) {
	if f.scoped {
		var out []any

		err := f.reg.RunScope(ctx, func(ctx context.Context) error {
			var callErr error
			out, callErr = f.invoke(ctx, nil, kwargs)

			return callErr
		})

		return out, err
	}

	return f.invoke(ctx, nil, kwargs)
}

func (f *Injected) invoke(ctx context.Context, args []any, kwargs map[string]any) ([]any, error) {
	in := make([]reflect.Value, len(f.params))
	argPos := 0

	for i := range f.params {
		p := &f.params[i]

		if p.isCtx {
			in[i] = reflect.ValueOf(ctx)

			continue
		}

		supplied, explicit, err := f.argument(p, i, args, kwargs, &argPos)
		if err != nil {
			return nil, err
		}

		if explicit {
			value, err := coerce(supplied, p.typ)
			if err != nil {
				return nil, errors.Wrapf(err, "argument for parameter %d", i)
			}

			in[i] = value

			continue
		}

		if !p.bound {
			return nil, errors.Errorf("injectable: no argument and no binding for parameter %d", i)
		}

		resolved, err := f.reg.resolveWith(ctx, p.req, args)
		if err != nil {
			return nil, err
		}

		value, err := coerce(resolved, p.typ)
		if err != nil {
			return nil, errors.Wrapf(err, "injected value for parameter %d", i)
		}

		in[i] = value
	}

	if kwargs == nil && argPos < len(args) {
		return nil, errors.Errorf("injectable: %d arguments supplied, fn takes %d", len(args), argPos)
	}

	return f.results(f.fn.Call(in))
}

// argument determines whether the caller explicitly supplied a value
// for parameter i, consuming positional args or consulting kwargs.
func (f *Injected) argument(p *paramSpec, i int, args []any, kwargs map[string]any, argPos *int) (any, bool, error) {
	if kwargs != nil {
		if !p.bound {
			return nil, false, errors.Errorf("injectable: CallNamed requires parameter %d to be bound", i)
		}

		value, ok := kwargs[p.name]

		return value, ok, nil
	}

	if *argPos >= len(args) {
		return nil, false, nil
	}

	supplied := args[*argPos]
	*argPos++

	if supplied == Auto {
		return nil, false, nil
	}

	return supplied, true, nil
}

func (f *Injected) results(out []reflect.Value) ([]any, error) {
	var err error

	if f.errOut {
		last := out[len(out)-1]
		if !last.IsNil() {
			err = last.Interface().(error)
		}

		out = out[:len(out)-1]
	}

	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}

	return results, err
}

// coerce turns an any into a reflect.Value assignable to typ, mapping
// nil to the type's zero value where that is legal.
func coerce(value any, typ reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch typ.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(typ), nil
		default:
			return reflect.Value{}, typeMismatchError(typ.String(), "nil")
		}
	}

	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(typ) {
		return reflect.Value{}, typeMismatchError(typ.String(), rv.Type().String())
	}

	return rv, nil
}
