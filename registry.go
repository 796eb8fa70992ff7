package moor

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefinitionOption configures a definition during registration.
type DefinitionOption func(*Definition)

// WithName gives the definition a discriminating name. Named
// definitions match only requirements that carry the same name or no
// name at all.
func WithName(name string) DefinitionOption {
	return func(d *Definition) {
		d.name = name
	}
}

// Provide registers a typed factory under the given scope. The produced
// type is derived once from the factory's type parameter and never
// changes. Registration order is significant: the first compatible
// definition wins lookups, so an earlier registration of the same
// type and name shadows later ones.
func Provide[T any](r *Registry, scope Scope, factory func(ctx context.Context) (T, Teardown, error), opts ...DefinitionOption) (*Definition, error) {
	if factory == nil {
		return nil, errors.WithStack(ErrNilFactory)
	}

	untyped := func(ctx context.Context) (any, Teardown, error) {
		return factory(ctx)
	}

	return ProvideUntyped(r, scope, TypeOf[T](), untyped, opts...)
}

// ProvideUntyped registers a factory whose produced type is supplied
// explicitly. Prefer the generic Provide; this is the escape hatch for
// code that works with reflect.Type directly.
func ProvideUntyped(r *Registry, scope Scope, produced reflect.Type, factory Factory, opts ...DefinitionOption) (*Definition, error) {
	if !scope.valid() {
		return nil, errors.Wrapf(ErrInvalidScope, "%d", int(scope))
	}

	if factory == nil {
		return nil, errors.WithStack(ErrNilFactory)
	}

	if produced == nil {
		return nil, errors.WithStack(ErrNoProducedType)
	}

	def := &Definition{
		produced: produced,
		scope:    scope,
		factory:  factory,
		reg:      r,
	}

	for _, opt := range opts {
		opt(def)
	}

	r.defs = append(r.defs, def)
	r.log.Debug("definition registered", zap.Stringer("definition", def))

	return def, nil
}

// AddFallback appends a fallback provider to the chain consulted on
// lookup failure. Fallbacks run in the order they were added.
func (r *Registry) AddFallback(f Fallback) {
	r.fallbacks = append(r.fallbacks, f)
}

// Use appends a hook observing resolution and release.
func (r *Registry) Use(h Hook) {
	r.hooks.add(h)
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)

	return out
}

// lookup scans definitions in registration order and returns the first
// whose produced type satisfies the requirement's type-compatibility
// test and whose name matches. Ties resolve to the earliest
// registration.
func (r *Registry) lookup(req Requirement) *Definition {
	for _, def := range r.defs {
		if req.satisfiedBy(def.produced) && def.acceptsName(req.name) {
			return def
		}
	}

	return nil
}

// Resolve turns a requirement into a live instance: registry lookup,
// then construction-or-fetch under the definition's scope policy. On
// lookup failure the fallback chain is consulted in order, then the
// requirement's default; only after all of those comes ErrNotFound.
func (r *Registry) Resolve(ctx context.Context, req Requirement) (any, error) {
	return r.resolveWith(ctx, req, nil)
}

// resolveWith is Resolve with the original call-site arguments made
// available to fallback providers.
func (r *Registry) resolveWith(ctx context.Context, req Requirement, args []any) (any, error) {
	if len(req.targets) == 0 {
		return nil, errors.Wrapf(ErrNoTargetType, "resolve %s", req)
	}

	if err := r.hooks.beforeResolve(ctx, req); err != nil {
		return nil, err
	}

	value, err := r.resolveInternal(ctx, req, args)

	if herr := r.hooks.afterResolve(ctx, req, value, err); herr != nil {
		return nil, herr
	}

	return value, err
}

func (r *Registry) resolveInternal(ctx context.Context, req Requirement, args []any) (any, error) {
	if def := r.lookup(req); def != nil {
		return def.fetch(ctx)
	}

	for _, fallback := range r.fallbacks {
		value, ok, err := fallback(ctx, req, args)
		if err != nil {
			return nil, err
		}

		if ok {
			return value, nil
		}
	}

	if value, ok := req.DefaultValue(); ok {
		return value, nil
	}

	return nil, notFoundError(req)
}
