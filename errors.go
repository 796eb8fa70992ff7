package moor

import (
	"github.com/pkg/errors"
)

// The package distinguishes four kinds of failure. Configuration errors
// (ErrInvalidScope, ErrNilFactory, ErrNoTargetType, ErrNoActiveScope,
// binder setup errors) surface immediately and are never retried. Lookup
// failures (ErrNotFound) mean no definition, fallback, or default could
// satisfy a requirement. Construction failures propagate the factory's
// error unmodified. Teardown failures are aggregated by the release
// coordinator and never skip remaining releases.
var (
	// ErrNotFound is returned when no definition matches a requirement
	// and neither the fallback chain nor the requirement's default
	// produced a value.
	ErrNotFound = errors.New("no definition matches requirement")

	// ErrNoTargetType is returned when resolution is attempted for a
	// requirement that carries no target type.
	ErrNoTargetType = errors.New("requirement has no target type")

	// ErrInvalidScope is returned at registration time for a scope value
	// outside Singleton, ContextScoped, Transient.
	ErrInvalidScope = errors.New("unrecognized scope")

	// ErrNilFactory is returned when a definition is registered without
	// a factory.
	ErrNilFactory = errors.New("factory cannot be nil")

	// ErrNoProducedType is returned when a definition's produced type
	// cannot be determined at registration time.
	ErrNoProducedType = errors.New("produced type cannot be determined")

	// ErrCircularResolution is returned when a definition's factory
	// resolves, directly or transitively, the definition under
	// construction.
	ErrCircularResolution = errors.New("circular resolution detected")

	// ErrNoActiveScope is returned when a context-scoped definition is
	// resolved from a context that has no execution scope installed.
	ErrNoActiveScope = errors.New("no execution scope in context")

	// ErrTypeMismatch is returned when a resolved value cannot be
	// assigned to the requesting parameter or type.
	ErrTypeMismatch = errors.New("resolved value has incompatible type")
)

// notFoundError decorates ErrNotFound with the requirement being looked up.
func notFoundError(req Requirement) error {
	return errors.Wrapf(ErrNotFound, "resolve %s", req)
}

// typeMismatchError decorates ErrTypeMismatch with both sides.
func typeMismatchError(want, got string) error {
	return errors.Wrapf(ErrTypeMismatch, "want %s, got %s", want, got)
}
