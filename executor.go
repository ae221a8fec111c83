package stepcoro

// Executor owns a set of Resumables and advances all of them once per tick,
// in reverse insertion order, removing members whose Finished becomes true
// after the pass. Reverse order lets a Resumable remove itself during its
// own Resume without disturbing the indices of peers not yet advanced that
// tick.
//
// The Executor does not own its members in the lifecycle sense: a caller
// that wants disposal on termination must dispose members itself, or drive
// them through a future combinator (AllOf, FirstCompleted, WaitAllOf) that
// owns them via a Defer.
type Executor struct {
	members []Resumable

	// Observe, if set, is called after each Resume pass with the number of
	// members advanced and the number removed that tick. It costs nothing
	// when nil and exists purely for diagnostics/tests.
	Observe func(advanced, removed int)
}

// NewExecutor creates an empty Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Add registers r. Order of Add calls defines insertion order.
func (e *Executor) Add(r Resumable) {
	e.members = append(e.members, r)
}

// Remove deregisters r, if present. It reports whether r was found.
func (e *Executor) Remove(r Resumable) bool {
	for i, m := range e.members {
		if m == r {
			e.members = append(e.members[:i], e.members[i+1:]...)
			return true
		}
	}
	return false
}

// Clear deregisters every member.
func (e *Executor) Clear() {
	e.members = nil
}

// Contains reports whether r is currently a member.
func (e *Executor) Contains(r Resumable) bool {
	for _, m := range e.members {
		if m == r {
			return true
		}
	}
	return false
}

// Count returns the number of current members.
func (e *Executor) Count() int {
	return len(e.members)
}

// Members returns a snapshot of the current members, in insertion order.
// Mutating the returned slice does not affect the Executor.
func (e *Executor) Members() []Resumable {
	out := make([]Resumable, len(e.members))
	copy(out, e.members)
	return out
}

// Finished reports whether the Executor has no members.
func (e *Executor) Finished() bool {
	return len(e.members) == 0
}

// Resume advances every member once, in reverse insertion order, then
// removes members whose Finished became true, preserving the relative
// order of the survivors.
func (e *Executor) Resume(delta float64) error {
	var firstErr error
	for i := len(e.members) - 1; i >= 0; i-- {
		if err := e.members[i].Resume(delta); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	survivors := e.members[:0:0]
	removed := 0
	for _, m := range e.members {
		if m.Finished() {
			removed++
			continue
		}
		survivors = append(survivors, m)
	}
	advanced := len(e.members)
	e.members = survivors

	if e.Observe != nil {
		e.Observe(advanced, removed)
	}

	return firstErr
}

var _ Resumable = (*Executor)(nil)
