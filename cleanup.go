package stepcoro

import "sync"

// Defer holds an ordered list of cleanup thunks and runs them in reverse
// (LIFO) order on Dispose: the last thunk Added is the first one run. It is
// acquired at the start of a scope (a combinator's internal executor run)
// and must be released on every exit path, including early abort.
//
// Dispose is idempotent: calling it a second time is a no-op. Thunks must
// not themselves suspend or panic observably; a panicking thunk is
// implementation-defined (Dispose recovers it and continues running the
// remaining thunks, in this implementation).
type Defer struct {
	mu       sync.Mutex
	thunks   []func()
	disposed bool
}

// Add prepends thunk to the front of the cleanup list so it runs before
// whatever was already registered, preserving LIFO order across repeated
// Add calls.
func (d *Defer) Add(thunk func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		thunk()
		return
	}
	d.thunks = append([]func(){thunk}, d.thunks...)
}

// Dispose runs every registered thunk, front to back in the order Add
// prepended them (which is LIFO relative to registration), having first
// marked the Defer disposed.
// A second call is a no-op.
func (d *Defer) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	thunks := d.thunks
	d.thunks = nil
	d.mu.Unlock()

	for _, thunk := range thunks {
		runCleanupThunk(thunk)
	}
}

// runCleanupThunk runs a single cleanup thunk, swallowing a panic so one
// broken thunk cannot prevent the rest of the scope from unwinding.
func runCleanupThunk(thunk func()) {
	defer func() { _ = recover() }()
	thunk()
}
