package moor

import (
	"context"
	"sync"
)

// execState holds the per-execution-context resolution state: one slot
// per context-scoped definition and the ledger of transient teardowns
// created inside the scope. The state is threaded through calls on a
// context.Context, never stored globally, so the copy-on-branch
// semantics hold regardless of which goroutine the context migrates to.
type execState struct {
	mu         sync.Mutex
	slots      map[*Definition]*liveEntry
	transients map[*Definition][]*liveEntry
}

func newExecState() *execState {
	return &execState{
		slots:      make(map[*Definition]*liveEntry),
		transients: make(map[*Definition][]*liveEntry),
	}
}

type execStateKey struct{}

// EnterScope returns a context carrying a fresh execution scope. The new
// scope starts empty: context-scoped definitions resolved through it
// never observe instances belonging to any other scope, including one
// already present on ctx.
func EnterScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, execStateKey{}, newExecState())
}

// Branch returns a context carrying a snapshot of the current scope's
// already-resolved context-scoped values. The branched scope inherits
// read access to those values; resolutions and releases performed in the
// branch do not propagate back to the parent. Teardown responsibility
// stays with the parent, so a branched entry releases as a no-op.
//
// Branching a context with no scope behaves like EnterScope.
func Branch(ctx context.Context) context.Context {
	child := newExecState()

	if parent := stateFrom(ctx); parent != nil {
		parent.mu.Lock()
		for def, entry := range parent.slots {
			child.slots[def] = &liveEntry{value: entry.value}
		}
		parent.mu.Unlock()
	}

	return context.WithValue(ctx, execStateKey{}, child)
}

// HasScope reports whether ctx carries an execution scope.
func HasScope(ctx context.Context) bool {
	return stateFrom(ctx) != nil
}

func stateFrom(ctx context.Context) *execState {
	if ctx == nil {
		return nil
	}

	state, _ := ctx.Value(execStateKey{}).(*execState)

	return state
}

// slot returns the live entry for a context-scoped definition, if any.
func (s *execState) slot(def *Definition) *liveEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.slots[def]
}

// storeSlot records a constructed entry, keeping an earlier winner if a
// concurrent construction raced this one. Returns the entry that ends up
// stored and whether the given entry lost the race.
func (s *execState) storeSlot(def *Definition, entry *liveEntry) (*liveEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.slots[def]; ok {
		return existing, true
	}

	s.slots[def] = entry

	return entry, false
}

// takeSlot removes and returns the entry for a definition. The slot is
// cleared unconditionally so the definition never looks live after a
// release attempt.
func (s *execState) takeSlot(def *Definition) *liveEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.slots[def]
	delete(s.slots, def)

	return entry
}

// recordTransient appends a transient construction to the scope ledger.
func (s *execState) recordTransient(def *Definition, entry *liveEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transients[def] = append(s.transients[def], entry)
}

// drainTransients removes and returns all transient entries recorded for
// a definition, oldest first.
func (s *execState) drainTransients(def *Definition) []*liveEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.transients[def]
	delete(s.transients, def)

	return entries
}

// visitKey carries the set of definitions currently under construction
// along the resolution call chain. The set rides the context, not the
// goroutine, so recursive factories are detected without false positives
// across unrelated concurrent resolutions.
type visitKey struct{}

func withVisiting(ctx context.Context, def *Definition) context.Context {
	prev, _ := ctx.Value(visitKey{}).(map[*Definition]bool)

	visiting := make(map[*Definition]bool, len(prev)+1)
	for d := range prev {
		visiting[d] = true
	}
	visiting[def] = true

	return context.WithValue(ctx, visitKey{}, visiting)
}

func isVisiting(ctx context.Context, def *Definition) bool {
	if ctx == nil {
		return false
	}

	visiting, _ := ctx.Value(visitKey{}).(map[*Definition]bool)

	return visiting[def]
}
