// Package guard tracks open transaction scopes per resource.
//
// Depth lives in the context.Context passed down a call chain, keyed by the
// Tracker that owns it. Each resource has its own Tracker, so goroutines that
// share a connection pool, or callers using different resources, never see
// each other's scopes.
package guard

import "context"

// Tracker records nested scopes for one resource.
// The zero value is not usable; create one with NewTracker.
type Tracker struct {
	name string
}

type scope struct {
	depth int
	value any
}

// NewTracker creates a tracker. name is informational only.
func NewTracker(name string) *Tracker {
	return &Tracker{name: name}
}

// Name returns the name given to NewTracker.
func (t *Tracker) Name() string {
	return t.name
}

// Enter returns a context one scope deeper than ctx. value is attached to the
// new scope (typically the open transaction) and returned by Value.
func (t *Tracker) Enter(ctx context.Context, value any) context.Context {
	return context.WithValue(ctx, t, scope{depth: t.Depth(ctx) + 1, value: value})
}

// Depth returns the number of scopes entered on this tracker in ctx.
// It implements dbretry.DepthSource.
func (t *Tracker) Depth(ctx context.Context) int {
	if s, ok := ctx.Value(t).(scope); ok {
		return s.depth
	}
	return 0
}

// Value returns the value attached to the innermost scope, if any.
func (t *Tracker) Value(ctx context.Context) (any, bool) {
	s, ok := ctx.Value(t).(scope)
	if !ok {
		return nil, false
	}
	return s.value, true
}
