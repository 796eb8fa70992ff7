package moor

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Teardown is the cleanup continuation paired with a constructed value.
// It runs exactly once when the owning scope ends. cause carries the
// error that forced the scope exit, or nil on a clean exit, so teardown
// logic can distinguish the two.
type Teardown func(ctx context.Context, cause error) error

// Factory constructs one value and its teardown. A nil teardown means
// the value needs no cleanup. Factories may block or perform
// asynchronous work; cancellation is the factory's own business and
// whatever error it returns propagates unmodified.
type Factory func(ctx context.Context) (any, Teardown, error)

// liveEntry is a constructed value paired with its teardown.
type liveEntry struct {
	value    any
	teardown Teardown
}

// Definition is a registered factory bound to a scope policy. It owns
// the policy for constructing, caching, and releasing exactly one
// produced value per scope: a singleton slot on the definition itself,
// a per-execution-context slot for context-scoped definitions, and no
// storage at all for transients.
type Definition struct {
	name     string
	produced reflect.Type
	scope    Scope
	factory  Factory
	reg      *Registry

	// Singleton slot. The atomic pointer is the lock-free fast path;
	// mu serializes first construction.
	live atomic.Pointer[liveEntry]
	mu   sync.Mutex

	// Transient teardowns constructed outside any execution scope.
	pendingMu sync.Mutex
	pending   []*liveEntry
}

// Name returns the discriminating name, or "" for an unnamed definition.
func (d *Definition) Name() string {
	return d.name
}

// ProducedType returns the type the factory yields, derived once at
// registration time.
func (d *Definition) ProducedType() reflect.Type {
	return d.produced
}

// Scope returns the definition's scope policy.
func (d *Definition) Scope() Scope {
	return d.scope
}

// Live reports whether the singleton slot currently holds an instance.
// Context-scoped liveness is a property of each execution context, not
// of the definition.
func (d *Definition) Live() bool {
	return d.live.Load() != nil
}

// DefinitionInfo contains diagnostic information about a definition.
type DefinitionInfo struct {
	Name     string
	Produced string
	Scope    Scope
	Live     bool
}

// Inspect returns diagnostic information about the definition.
func (d *Definition) Inspect() DefinitionInfo {
	return DefinitionInfo{
		Name:     d.name,
		Produced: d.produced.String(),
		Scope:    d.scope,
		Live:     d.Live(),
	}
}

// String renders the definition for diagnostics.
func (d *Definition) String() string {
	if d.name != "" {
		return fmt.Sprintf("%s %s (name %q)", d.scope, d.produced, d.name)
	}

	return fmt.Sprintf("%s %s", d.scope, d.produced)
}

// acceptsName implements the name-compatibility half of lookup: an
// unnamed definition matches any requirement name; a named definition
// matches only "no preference" or an identical name.
func (d *Definition) acceptsName(reqName string) bool {
	if d.name == "" {
		return true
	}

	return reqName == "" || reqName == d.name
}

// fetch returns the live instance for the requesting context, building
// it first if the scope has none. Concurrent first access of a
// singleton blocks on the per-definition mutex and observes exactly one
// construction; the atomic fast path keeps warm resolutions lock-free.
func (d *Definition) fetch(ctx context.Context) (any, error) {
	if isVisiting(ctx, d) {
		return nil, errors.Wrapf(ErrCircularResolution, "constructing %s", d)
	}

	switch d.scope {
	case Singleton:
		if entry := d.live.Load(); entry != nil {
			return entry.value, nil
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		// Re-check: another resolver may have finished construction
		// while this one waited on the lock.
		if entry := d.live.Load(); entry != nil {
			return entry.value, nil
		}

		entry, err := d.construct(ctx)
		if err != nil {
			return nil, err
		}

		d.live.Store(entry)

		return entry.value, nil

	case ContextScoped:
		state := stateFrom(ctx)
		if state == nil {
			return nil, errors.Wrapf(ErrNoActiveScope, "resolve %s", d)
		}

		if entry := state.slot(d); entry != nil {
			return entry.value, nil
		}

		// A context is not expected to be resolved concurrently by two
		// goroutines; if it is, the first stored entry wins and the
		// loser is torn down immediately.
		entry, err := d.construct(ctx)
		if err != nil {
			return nil, err
		}

		stored, lost := state.storeSlot(d, entry)
		if lost {
			if terr := runTeardown(ctx, entry, nil); terr != nil {
				d.reg.log.Warn("teardown of redundant context instance failed",
					zap.Stringer("definition", d), zap.Error(terr))
			}
		}

		return stored.value, nil

	case Transient:
		entry, err := d.construct(ctx)
		if err != nil {
			return nil, err
		}

		if state := stateFrom(ctx); state != nil {
			state.recordTransient(d, entry)
		} else {
			d.pendingMu.Lock()
			d.pending = append(d.pending, entry)
			d.pendingMu.Unlock()
		}

		return entry.value, nil

	default:
		return nil, errors.Wrapf(ErrInvalidScope, "%d", int(d.scope))
	}
}

// construct invokes the factory. A factory error leaves the definition
// in its prior, uninitialized state; no partial entry is retained.
func (d *Definition) construct(ctx context.Context) (*liveEntry, error) {
	value, teardown, err := d.factory(withVisiting(ctx, d))
	if err != nil {
		return nil, err
	}

	return &liveEntry{value: value, teardown: teardown}, nil
}

// release tears down the instance(s) owned by this definition for the
// requesting context. Stored state is cleared before teardown runs, so
// the definition never looks live after a release attempt, even when
// teardown itself fails. Releasing an uninitialized definition is a
// no-op.
func (d *Definition) release(ctx context.Context, cause error) error {
	switch d.scope {
	case Singleton:
		return runTeardown(ctx, d.live.Swap(nil), cause)

	case ContextScoped:
		state := stateFrom(ctx)
		if state == nil {
			return nil
		}

		return runTeardown(ctx, state.takeSlot(d), cause)

	case Transient:
		var entries []*liveEntry
		if state := stateFrom(ctx); state != nil {
			entries = state.drainTransients(d)
		} else {
			d.pendingMu.Lock()
			entries = d.pending
			d.pending = nil
			d.pendingMu.Unlock()
		}

		var err error
		for _, entry := range entries {
			err = multierr.Append(err, runTeardown(ctx, entry, cause))
		}

		return err

	default:
		return nil
	}
}

func runTeardown(ctx context.Context, entry *liveEntry, cause error) error {
	if entry == nil || entry.teardown == nil {
		return nil
	}

	return entry.teardown(ctx, cause)
}
