package stepcoro

// Join returns a Step over r that an outer Coroutine can await: it resumes
// r with the ambient delta once per Advance call and yields Pause until r
// finishes. Because a Coroutine advances a freshly-nested child immediately
// (within the same tick it was pushed), an instantaneous Resumable finishes
// without ever causing an extra Pause.
func Join(r Resumable) Step {
	return StepFunc(func(delta float64) (Yielded, error) {
		if r.Finished() {
			return nil, nil
		}
		if err := r.Resume(delta); err != nil {
			return nil, err
		}
		if r.Finished() {
			return nil, nil
		}
		return Pause, nil
	})
}

// JoinWhile is like Join, but the loop runs while pred reports true,
// ignoring r.Finished entirely.
func JoinWhile(r Resumable, pred func() bool) Step {
	return StepFunc(func(delta float64) (Yielded, error) {
		if !pred() {
			return nil, nil
		}
		if err := r.Resume(delta); err != nil {
			return nil, err
		}
		if !pred() {
			return nil, nil
		}
		return Pause, nil
	})
}

// TimedJoin is like Join, but also exits once budget has been exhausted:
// each Advance subtracts the ambient delta from budget before checking.
func TimedJoin(r Resumable, budget float64) Step {
	remaining := budget
	return StepFunc(func(delta float64) (Yielded, error) {
		if remaining <= 0 || r.Finished() {
			return nil, nil
		}
		if err := r.Resume(delta); err != nil {
			return nil, err
		}
		remaining -= delta
		if remaining <= 0 || r.Finished() {
			return nil, nil
		}
		return Pause, nil
	})
}
