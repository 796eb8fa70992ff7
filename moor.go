// Package moor is a dependency-resolution and lifecycle-management
// engine. Factories are registered as definitions bound to a scope
// (singleton, per-execution-context, or transient); call sites declare
// typed requirements that the resolver turns into live instances,
// constructing each at most once per scope and releasing it
// deterministically when the scope ends.
//
//	r := moor.New()
//	moor.Provide(r, moor.Singleton, func(ctx context.Context) (*Database, moor.Teardown, error) {
//	    db, err := openDatabase()
//	    if err != nil {
//	        return nil, nil, err
//	    }
//	    return db, func(ctx context.Context, cause error) error { return db.Close() }, nil
//	})
//
//	db, err := moor.ResolveAs[*Database](ctx, r)
package moor

import (
	"context"

	"go.uber.org/zap"
)

// Fallback is consulted, in registration order, when no definition
// matches a requirement. args carries the original call-site arguments
// when resolution happens through an injectable wrapper, nil otherwise.
// Returning ok == false passes to the next fallback; a non-nil error
// aborts resolution immediately.
type Fallback func(ctx context.Context, req Requirement, args []any) (value any, ok bool, err error)

// Registry is an ordered collection of definitions plus the resolver
// that serves requirements from them. Registration must complete before
// resolution begins; the definition list is not designed for concurrent
// mutation during resolves.
type Registry struct {
	defs      []*Definition
	fallbacks []Fallback
	hooks     hookChain
	log       *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for teardown and resolution
// diagnostics. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithFallback appends a fallback provider to the chain consulted on
// lookup failure.
func WithFallback(f Fallback) Option {
	return func(r *Registry) {
		r.fallbacks = append(r.fallbacks, f)
	}
}

// WithHook appends a hook observing resolution and release.
func WithHook(h Hook) Option {
	return func(r *Registry) {
		r.hooks.add(h)
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		log: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}
