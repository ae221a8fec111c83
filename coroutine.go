package stepcoro

// Resumable is the capability shared by Coroutine and Executor: something
// with a terminal state and a per-tick advance method.
type Resumable interface {
	Finished() bool
	Resume(delta float64) error
}

// Coroutine owns a stack of Steps: a currently-advancing top and any
// parents suspended on a Nest yield beneath it. It is the core of the
// package — the mechanism that lets one steppable block suspend on another.
//
// Invariants: Finished() is true iff both the top and the stack are empty;
// every Step ever pushed is disposed exactly once, whether by natural
// completion, by Become, or by explicit Dispose of the Coroutine.
type Coroutine struct {
	top   Step
	stack []Step
}

// NewCoroutine creates a Coroutine rooted at top.
func NewCoroutine(top Step) *Coroutine {
	return &Coroutine{top: top}
}

// Finished reports whether the Coroutine has no more work.
func (c *Coroutine) Finished() bool {
	return c.top == nil
}

// Sleep returns a Step that completes once at least seconds worth of delta
// has been observed across however many ticks it takes, pausing in between.
// A non-positive seconds completes immediately, on the first Advance.
func Sleep(seconds float64) Step {
	remaining := seconds
	return StepFunc(func(delta float64) (Yielded, error) {
		if remaining <= 0 {
			return nil, nil
		}
		remaining -= delta
		if remaining <= 0 {
			return nil, nil
		}
		return Pause, nil
	})
}

// Resume advances the Coroutine for one tick. It runs the advance loop
// (below) on top, if any; a Step that throws propagates its error out of
// Resume, but the Coroutine itself remains advanceable on the next tick
// (the throwing frame is considered ended and disposed).
//
// Advance loop, per tick:
//  1. Advance top. If it finished, dispose it; if the stack is non-empty,
//     pop a parent into top and restart from 1; otherwise top becomes nil
//     and Resume returns.
//  2. Otherwise inspect the Yielded value:
//     - Pause: Resume returns, control goes back to the driver.
//     - NestYield(child): push top onto the stack, set top = child, restart
//       from 1.
//     - OpYield(Become(child)): dispose top, set top = child, restart
//       from 1 (the stack does not grow).
//     - anything else: ErrMalformedYield.
func (c *Coroutine) Resume(delta float64) error {
	for {
		if c.top == nil {
			return nil
		}

		y, err := c.top.Advance(delta)
		if err != nil {
			c.popFinished()
			return err
		}
		if y == nil {
			c.popFinished()
			if c.top == nil {
				return nil
			}
			continue
		}

		switch v := y.(type) {
		case pauseYield:
			return nil

		case NestYield:
			c.stack = append(c.stack, c.top)
			c.top = v.Child
			continue

		case OpYield:
			switch op := v.Op.(type) {
			case becomeOperation:
				dispose(c.top)
				c.top = op.Child
				continue
			default:
				return newMalformedYieldError(y)
			}

		default:
			return newMalformedYieldError(y)
		}
	}
}

// popFinished disposes the current top (already finished) and pops a
// parent off the stack into top, if any.
func (c *Coroutine) popFinished() {
	dispose(c.top)
	c.top = nil
	if n := len(c.stack); n > 0 {
		c.top = c.stack[n-1]
		c.stack = c.stack[:n-1]
	}
}

// Dispose tears down the Coroutine: it disposes the current top, then every
// Step remaining on the stack, parent-most last (LIFO relative to how they
// were pushed). Dispose is idempotent.
func (c *Coroutine) Dispose() {
	if c.top != nil {
		dispose(c.top)
		c.top = nil
	}
	for i := len(c.stack) - 1; i >= 0; i-- {
		dispose(c.stack[i])
	}
	c.stack = nil
}

var _ Resumable = (*Coroutine)(nil)
