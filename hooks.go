package moor

import (
	"context"

	"go.uber.org/zap"
)

// Hook observes resolution and release. Hooks run in the order they were
// added. Resolve hooks may abort by returning an error; release hooks
// cannot abort, because a scope exit must attempt every release.
type Hook interface {
	// BeforeResolve runs before a requirement is resolved. Returning an
	// error aborts the resolution.
	BeforeResolve(ctx context.Context, req Requirement) error

	// AfterResolve runs after resolution, successful or not; value and
	// err reflect the outcome.
	AfterResolve(ctx context.Context, req Requirement, value any, err error) error

	// BeforeRelease runs before a definition's release step.
	BeforeRelease(ctx context.Context, def *Definition)

	// AfterRelease runs after a definition's release step with its
	// teardown error, if any.
	AfterRelease(ctx context.Context, def *Definition, err error)
}

type hookChain struct {
	hooks []Hook
}

func (c *hookChain) add(h Hook) {
	c.hooks = append(c.hooks, h)
}

func (c *hookChain) beforeResolve(ctx context.Context, req Requirement) error {
	for _, h := range c.hooks {
		if err := h.BeforeResolve(ctx, req); err != nil {
			return err
		}
	}

	return nil
}

func (c *hookChain) afterResolve(ctx context.Context, req Requirement, value any, err error) error {
	for _, h := range c.hooks {
		if herr := h.AfterResolve(ctx, req, value, err); herr != nil {
			return herr
		}
	}

	return nil
}

func (c *hookChain) beforeRelease(ctx context.Context, def *Definition) {
	for _, h := range c.hooks {
		h.BeforeRelease(ctx, def)
	}
}

func (c *hookChain) afterRelease(ctx context.Context, def *Definition, err error) {
	for _, h := range c.hooks {
		h.AfterRelease(ctx, def, err)
	}
}

// FuncHook wraps functions as a Hook. Nil fields are no-ops.
type FuncHook struct {
	BeforeResolveFunc func(ctx context.Context, req Requirement) error
	AfterResolveFunc  func(ctx context.Context, req Requirement, value any, err error) error
	BeforeReleaseFunc func(ctx context.Context, def *Definition)
	AfterReleaseFunc  func(ctx context.Context, def *Definition, err error)
}

// BeforeResolve implements Hook.
func (f *FuncHook) BeforeResolve(ctx context.Context, req Requirement) error {
	if f.BeforeResolveFunc != nil {
		return f.BeforeResolveFunc(ctx, req)
	}

	return nil
}

// AfterResolve implements Hook.
func (f *FuncHook) AfterResolve(ctx context.Context, req Requirement, value any, err error) error {
	if f.AfterResolveFunc != nil {
		return f.AfterResolveFunc(ctx, req, value, err)
	}

	return nil
}

// BeforeRelease implements Hook.
func (f *FuncHook) BeforeRelease(ctx context.Context, def *Definition) {
	if f.BeforeReleaseFunc != nil {
		f.BeforeReleaseFunc(ctx, def)
	}
}

// AfterRelease implements Hook.
func (f *FuncHook) AfterRelease(ctx context.Context, def *Definition, err error) {
	if f.AfterReleaseFunc != nil {
		f.AfterReleaseFunc(ctx, def, err)
	}
}

// LoggingHook returns a hook that logs resolutions at debug level and
// failures at warn level.
func LoggingHook(log *zap.Logger) Hook {
	return &FuncHook{
		AfterResolveFunc: func(ctx context.Context, req Requirement, value any, err error) error {
			if err != nil {
				log.Warn("resolution failed", zap.Stringer("requirement", req), zap.Error(err))
			} else {
				log.Debug("resolved", zap.Stringer("requirement", req))
			}

			return nil
		},
		AfterReleaseFunc: func(ctx context.Context, def *Definition, err error) {
			if err != nil {
				log.Warn("release failed", zap.Stringer("definition", def), zap.Error(err))
			} else {
				log.Debug("released", zap.Stringer("definition", def))
			}
		},
	}
}
