// Package rollback provides a scope-bound undo guard for multi-step
// operations that must be atomic from the caller's perspective. The guard
// records a cleanup action that runs when the scope exits, unless the
// operation completed and the guard was dismissed.
package rollback

// Guard runs its cleanup closure when Run is invoked (typically deferred),
// unless Dismiss was called first. The cleanup must be best-effort: panics
// raised inside it are swallowed so that a failing cleanup can never mask
// the error that triggered it.
//
// A Guard is single-owner and stack-scoped; it is not safe for concurrent
// use.
type Guard struct {
	cleanup   func()
	dismissed bool
	ran       bool
}

// New returns a guard armed with the given cleanup action.
func New(cleanup func()) *Guard {
	return &Guard{cleanup: cleanup}
}

// Dismiss commits the guarded operation: the cleanup will not run.
func (g *Guard) Dismiss() {
	g.dismissed = true
}

// Run executes the cleanup unless the guard was dismissed. It is a no-op on
// second and later calls.
func (g *Guard) Run() {
	if g.dismissed || g.ran || g.cleanup == nil {
		return
	}
	g.ran = true

	defer func() {
		// Cleanup is best-effort; never propagate its failures.
		_ = recover()
	}()
	g.cleanup()
}

// Dismissed reports whether the guard was committed.
func (g *Guard) Dismissed() bool {
	return g.dismissed
}

// Ran reports whether the cleanup action actually executed.
func (g *Guard) Ran() bool {
	return g.ran
}
