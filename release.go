package moor

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Release walks all definitions of the given scope, in registration
// order, and invokes each release step. cause carries the error that
// forced the scope exit, or nil on a clean exit; it is forwarded to
// every teardown. A failing teardown never skips the remaining
// releases; failures are aggregated into the returned error.
func (r *Registry) Release(ctx context.Context, scope Scope, cause error) error {
	return r.releaseDefs(ctx, cause, func(d *Definition) bool {
		return d.scope == scope
	})
}

// ReleaseAll releases every definition, regardless of scope, in
// registration order.
func (r *Registry) ReleaseAll(ctx context.Context, cause error) error {
	return r.releaseDefs(ctx, cause, func(*Definition) bool {
		return true
	})
}

// ReleaseOnly releases just the given definitions (in registration
// order, not argument order), leaving the rest of the registry live.
// Used to tear down a single resolution independently.
func (r *Registry) ReleaseOnly(ctx context.Context, cause error, defs ...*Definition) error {
	subset := make(map[*Definition]bool, len(defs))
	for _, d := range defs {
		subset[d] = true
	}

	return r.releaseDefs(ctx, cause, func(d *Definition) bool {
		return subset[d]
	})
}

func (r *Registry) releaseDefs(ctx context.Context, cause error, match func(*Definition) bool) error {
	var errs error

	for _, def := range r.defs {
		if !match(def) {
			continue
		}

		r.hooks.beforeRelease(ctx, def)
		err := def.release(ctx, cause)
		r.hooks.afterRelease(ctx, def, err)

		if err != nil {
			r.log.Error("teardown failed", zap.Stringer("definition", def), zap.Error(err))
			errs = multierr.Append(errs, errors.Wrapf(err, "release %s", def))
		}
	}

	return errs
}

// RunScope brackets a unit of work in a fresh execution scope. fn runs
// with a context carrying the new scope; on exit, successful or not,
// context-scoped definitions and the scope's transient constructions
// are released in registration order, with fn's error (if any)
// forwarded to each teardown.
//
// If fn fails, its error takes propagation precedence: teardown
// failures are logged but the original error is returned. On a clean
// exit, aggregated teardown failures are returned. A panic in fn still
// triggers the releases and then re-panics.
func (r *Registry) RunScope(ctx context.Context, fn func(ctx context.Context) error) error {
	scoped := EnterScope(ctx)

	defer func() {
		if p := recover(); p != nil {
			cause := errors.Errorf("panic during scoped execution: %v", p)
			if relErr := r.releaseScoped(scoped, cause); relErr != nil {
				r.log.Error("teardown failed during panic exit", zap.Error(relErr))
			}

			panic(p)
		}
	}()

	err := fn(scoped)

	relErr := r.releaseScoped(scoped, err)
	if err != nil {
		if relErr != nil {
			r.log.Error("teardown failed during error exit", zap.Error(relErr))
		}

		return err
	}

	return relErr
}

// releaseScoped releases the definitions owned by an execution scope:
// context-scoped slots and transient constructions recorded inside it.
// Singletons outlive any one scope and are left untouched.
func (r *Registry) releaseScoped(ctx context.Context, cause error) error {
	return r.releaseDefs(ctx, cause, func(d *Definition) bool {
		return d.scope == ContextScoped || d.scope == Transient
	})
}
