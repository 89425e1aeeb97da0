package dbretry

import "context"

// Matcher decides whether an error message belongs to a rule.
// Implementations must be pure and safe for concurrent use.
type Matcher interface {
	Match(message string) bool
}

// Resource is the connection scope a unit of work runs against.
// Used only by the reconnect action.
type Resource interface {
	// Discard drops the current physical connection(s).
	Discard(ctx context.Context) error

	// Reestablish opens a fresh connection after Discard.
	Reestablish(ctx context.Context) error
}

// DepthSource reports how many transaction scopes are open on a resource.
//
// The value is read when a failure is evaluated, so the unit of work's own
// transaction has already unwound. Implementations must scope the count per
// resource and per caller; a process-wide counter lets unrelated callers block
// or permit each other's retries.
type DepthSource interface {
	Depth(ctx context.Context) int
}

// DepthFunc adapts a function to DepthSource.
type DepthFunc func(ctx context.Context) int

// Depth calls f(ctx).
func (f DepthFunc) Depth(ctx context.Context) int {
	return f(ctx)
}
