package moor

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers a requirement's resolution until first access. Useful for
// breaking resolution cycles or postponing expensive construction.
type Lazy[T any] struct {
	reg      *Registry
	req      Requirement
	once     sync.Once
	value    T
	err      error
	resolved bool
}

// NewLazy creates a lazy wrapper around Require[T](opts...).
func NewLazy[T any](r *Registry, opts ...RequireOption) *Lazy[T] {
	return &Lazy[T]{
		reg: r,
		req: Require[T](opts...),
	}
}

// Get resolves the requirement on first call and caches the outcome;
// subsequent calls return the cached value or error.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.once.Do(func() {
		instance, err := l.reg.Resolve(ctx, l.req)
		if err != nil {
			l.err = err

			return
		}

		typed, ok := instance.(T)
		if !ok {
			var zero T

			l.err = typeMismatchError(fmt.Sprintf("%T", zero), fmt.Sprintf("%T", instance))

			return
		}

		l.value = typed
		l.resolved = true
	})

	return l.value, l.err
}

// MustGet resolves the requirement, panicking on error.
func (l *Lazy[T]) MustGet(ctx context.Context) T {
	value, err := l.Get(ctx)
	if err != nil {
		panic(fmt.Sprintf("lazy %s failed: %v", l.req, err))
	}

	return value
}

// IsResolved reports whether the requirement has been resolved.
func (l *Lazy[T]) IsResolved() bool {
	return l.resolved
}

// Provider re-resolves its requirement on every access. Paired with a
// transient definition it hands out a fresh instance per call.
type Provider[T any] struct {
	reg *Registry
	req Requirement
}

// NewProvider creates a provider for Require[T](opts...).
func NewProvider[T any](r *Registry, opts ...RequireOption) *Provider[T] {
	return &Provider[T]{
		reg: r,
		req: Require[T](opts...),
	}
}

// Provide resolves and returns an instance. Each call may return a
// different instance, depending on the matched definition's scope.
func (p *Provider[T]) Provide(ctx context.Context) (T, error) {
	instance, err := p.reg.Resolve(ctx, p.req)
	if err != nil {
		var zero T

		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		var zero T

		return zero, typeMismatchError(fmt.Sprintf("%T", zero), fmt.Sprintf("%T", instance))
	}

	return typed, nil
}

// MustProvide resolves an instance, panicking on error.
func (p *Provider[T]) MustProvide(ctx context.Context) T {
	value, err := p.Provide(ctx)
	if err != nil {
		panic(fmt.Sprintf("provider %s failed: %v", p.req, err))
	}

	return value
}
