// Package stepcoro implements cooperative, time-stepped coroutines for a
// host application that drives its own update loop (a game engine's frame
// loop, a simulation tick, or similar).
//
// # Layers
//
// The package is layered bottom-up:
//
//   - A Step is a lazy, single-pass sequence. Each call to Advance either
//     reports a value the driver should act on (Pause, Nest, or Become) or
//     signals that the step is finished.
//   - A Coroutine owns a stack of Steps. It advances the top of the stack,
//     pushes a child when a Step yields Nest, tail-replaces the top when a
//     Step yields Become, and pops back to the parent when a child finishes.
//   - An Executor owns a set of Resumables (anything with Finished/Resume,
//     which both Coroutine and Executor satisfy) and advances all of them
//     once per tick, in reverse insertion order, removing finished members
//     after the pass.
//   - The join adapters (Join, JoinWhile, TimedJoin) turn a Resumable into a
//     Step so an outer Coroutine can wait on it.
//   - A Future[T] is a typed value-or-error handle driven by a Step. The
//     combinators in combinators.go (Bind, Map, Catch, AllOf,
//     FirstCompleted, FirstCompletedOrFaulted, WaitAllOf, Loop, Wait)
//     compose futures sequentially and concurrently.
//   - Func in generator.go adapts an ordinary sequential Go function — a
//     "steppable block" — into a Step, so user code can be written as plain
//     imperative statements interspersed with yield calls rather than as a
//     hand-rolled state machine.
//
// # Driving the library
//
// The host is responsible for calling Resume with a non-negative delta
// (seconds, as a float64) once per tick, on whatever it constructed:
//
//	c := stepcoro.NewCoroutine(step)
//	for !c.Finished() {
//	    if err := c.Resume(deltaSeconds); err != nil {
//	        // a Step's Advance returned an error; the Coroutine is still
//	        // advanceable on the next tick.
//	    }
//	}
//
// There is no hidden, thread-local notion of "the current delta": every
// Advance and Resume call takes delta explicitly, and that same value is
// threaded down through any Steps pushed or resumed within the same tick.
package stepcoro
