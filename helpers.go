package moor

import (
	"context"
	"fmt"
)

// ResolveAs resolves Require[T](opts...) with type safety.
func ResolveAs[T any](ctx context.Context, r *Registry, opts ...RequireOption) (T, error) {
	var zero T

	instance, err := r.Resolve(ctx, Require[T](opts...))
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, typeMismatchError(fmt.Sprintf("%T", zero), fmt.Sprintf("%T", instance))
	}

	return typed, nil
}

// MustResolve resolves or panics - use only during startup.
func MustResolve[T any](ctx context.Context, r *Registry, opts ...RequireOption) T {
	instance, err := ResolveAs[T](ctx, r, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", Require[T](opts...), err))
	}

	return instance
}

// ProvideValue registers a pre-built instance as a singleton with a
// no-op teardown.
func ProvideValue[T any](r *Registry, value T, opts ...DefinitionOption) (*Definition, error) {
	return Provide(r, Singleton, func(ctx context.Context) (T, Teardown, error) {
		return value, nil, nil
	}, opts...)
}

// Registration defers one Provide call so several definitions can be
// registered in a single batch.
type Registration func(*Registry) error

// Def creates a Registration for batch registration.
//
//	err := moor.RegisterAll(r,
//	    moor.Def(moor.Singleton, newDatabase),
//	    moor.Def(moor.ContextScoped, newSession),
//	)
func Def[T any](scope Scope, factory func(ctx context.Context) (T, Teardown, error), opts ...DefinitionOption) Registration {
	return func(r *Registry) error {
		_, err := Provide(r, scope, factory, opts...)

		return err
	}
}

// RegisterAll applies registrations in order, stopping at the first
// failure.
func RegisterAll(r *Registry, regs ...Registration) error {
	for _, reg := range regs {
		if err := reg(r); err != nil {
			return err
		}
	}

	return nil
}
