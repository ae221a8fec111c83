package stepcoro

import (
	"fmt"
	"log/slog"
	"sort"
)

// --- error translation helpers -------------------------------------------

// panicToError converts a recovered panic value into an error, for the
// adapter-layer rule that thrown errors are lifted into a future's error
// slot, never into the step stream (spec §4.4).
func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("stepcoro: panic: %w", err)
	}
	return fmt.Errorf("stepcoro: panic: %v", r)
}

func protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	fn()
	return nil
}

func callBinder[T, U any](binder func(T) Future[U], t T) (fut Future[U], err error) {
	err = protect(func() { fut = binder(t) })
	return
}

func callSelector[T, U, V any](selector func(T, U) V, t T, u U) (v V, err error) {
	err = protect(func() { v = selector(t, u) })
	return
}

func callHandler[T any](handler func(error) Future[T], e error) (fut Future[T], err error) {
	err = protect(func() { fut = handler(e) })
	return
}

func callReducer[S any](reducer func(S) Future[LoopStep[S]], s S) (fut Future[LoopStep[S]], err error) {
	err = protect(func() { fut = reducer(s) })
	return
}

func callPureReducer[S any](reducer func(S) LoopStep[S], s S) (step LoopStep[S], err error) {
	err = protect(func() { step = reducer(s) })
	return
}

// --- Bind / Then / Map ----------------------------------------------------

// Bind runs first; once it completes without error, calls binder with its
// result to obtain second, runs second, and, if second also completes
// without error, combines both results with selector. An error from
// first, binder, second, or selector short-circuits the rest and is
// captured into the returned future's error slot.
func Bind[T, U, V any](first Future[T], binder func(T) Future[U], selector func(T, U) V) Future[V] {
	return &bindFuture[T, U, V]{first: first, binder: binder, selector: selector}
}

type bindFuture[T, U, V any] struct {
	box[V]
	first    Future[T]
	binder   func(T) Future[U]
	selector func(T, U) V
}

func (bf *bindFuture[T, U, V]) Run() Step {
	return &bindStep[T, U, V]{bf: bf, firstStep: bf.first.Run()}
}

type bindPhase int

const (
	bindPhaseFirst bindPhase = iota
	bindPhaseSecond
	bindPhaseDone
)

type bindStep[T, U, V any] struct {
	bf         *bindFuture[T, U, V]
	phase      bindPhase
	firstStep  Step
	second     Future[U]
	secondStep Step
}

func (s *bindStep[T, U, V]) Advance(delta float64) (Yielded, error) {
	for {
		switch s.phase {
		case bindPhaseFirst:
			y, err := s.firstStep.Advance(delta)
			if err != nil {
				s.bf.fail(err)
				s.phase = bindPhaseDone
				return nil, nil
			}
			if y != nil {
				return y, nil
			}
			if ferr := s.bf.first.Err(); ferr != nil {
				s.bf.fail(ferr)
				s.phase = bindPhaseDone
				return nil, nil
			}
			second, berr := callBinder(s.bf.binder, s.bf.first.Result())
			if berr != nil {
				s.bf.fail(berr)
				s.phase = bindPhaseDone
				return nil, nil
			}
			s.second = second
			s.secondStep = second.Run()
			s.phase = bindPhaseSecond

		case bindPhaseSecond:
			y, err := s.secondStep.Advance(delta)
			if err != nil {
				s.bf.fail(err)
				s.phase = bindPhaseDone
				return nil, nil
			}
			if y != nil {
				return y, nil
			}
			if serr := s.second.Err(); serr != nil {
				s.bf.fail(serr)
				s.phase = bindPhaseDone
				return nil, nil
			}
			v, selErr := callSelector(s.bf.selector, s.bf.first.Result(), s.second.Result())
			if selErr != nil {
				s.bf.fail(selErr)
			} else {
				s.bf.succeed(v)
			}
			s.phase = bindPhaseDone
			return nil, nil

		default:
			return nil, nil
		}
	}
}

func (s *bindStep[T, U, V]) Dispose() {
	dispose(s.firstStep)
	if s.secondStep != nil {
		dispose(s.secondStep)
	}
}

// Then is Bind specialized to ignore first's result in the combined value:
// Then(first, g) = Bind(first, g, (_, u) => u).
func Then[T, U any](first Future[T], g func(T) Future[U]) Future[U] {
	return Bind(first, g, func(_ T, u U) U { return u })
}

// Map is Bind specialized with a trivial binder that produces no real
// second future: Map(first, h) = Bind(first, _ => Value(unit{}), (t, _) => h(t)).
func Map[T, U any](first Future[T], h func(T) U) Future[U] {
	return Bind(first, func(T) Future[unit] { return Value(unit{}) }, func(t T, _ unit) U { return h(t) })
}

type unit struct{}

// --- Catch ------------------------------------------------------------

// Catch runs first; if it completes without error, that result is mirrored
// unchanged. Otherwise handler is called with first's error to obtain a
// recovery future, which is run and whose result/error is adopted.
func Catch[T any](first Future[T], handler func(error) Future[T]) Future[T] {
	return &catchFuture[T]{first: first, handler: handler}
}

type catchFuture[T any] struct {
	box[T]
	first   Future[T]
	handler func(error) Future[T]
}

func (cf *catchFuture[T]) Run() Step {
	return &catchStep[T]{cf: cf, firstStep: cf.first.Run()}
}

type catchPhase int

const (
	catchPhaseFirst catchPhase = iota
	catchPhaseRecovery
	catchPhaseDone
)

type catchStep[T any] struct {
	cf           *catchFuture[T]
	phase        catchPhase
	firstStep    Step
	recovery     Future[T]
	recoveryStep Step
}

func (s *catchStep[T]) Advance(delta float64) (Yielded, error) {
	for {
		switch s.phase {
		case catchPhaseFirst:
			y, err := s.firstStep.Advance(delta)
			if y != nil && err == nil {
				return y, nil
			}
			fErr := err
			if fErr == nil {
				fErr = s.cf.first.Err()
			}
			if fErr == nil {
				s.cf.succeed(s.cf.first.Result())
				s.phase = catchPhaseDone
				return nil, nil
			}
			recovery, herr := callHandler(s.cf.handler, fErr)
			if herr != nil {
				s.cf.fail(herr)
				s.phase = catchPhaseDone
				return nil, nil
			}
			s.recovery = recovery
			s.recoveryStep = recovery.Run()
			s.phase = catchPhaseRecovery

		case catchPhaseRecovery:
			y, err := s.recoveryStep.Advance(delta)
			if err != nil {
				s.cf.fail(err)
				s.phase = catchPhaseDone
				return nil, nil
			}
			if y != nil {
				return y, nil
			}
			if rerr := s.recovery.Err(); rerr != nil {
				s.cf.fail(rerr)
			} else {
				s.cf.succeed(s.recovery.Result())
			}
			s.phase = catchPhaseDone
			return nil, nil

		default:
			return nil, nil
		}
	}
}

func (s *catchStep[T]) Dispose() {
	dispose(s.firstStep)
	if s.recoveryStep != nil {
		dispose(s.recoveryStep)
	}
}

// --- AllOf ----------------------------------------------------------------

// AllOf runs every member concurrently under an internal Executor. The
// first member error aborts the group (the surrounding Defer disposes the
// remaining member drivers); on success, Result is the per-member results
// in input order.
func AllOf[T any](members ...Future[T]) Future[[]T] {
	return &allOfFuture[T]{members: members}
}

type allOfFuture[T any] struct {
	box[[]T]
	members []Future[T]
}

func (af *allOfFuture[T]) Run() Step {
	if len(af.members) == 0 {
		af.succeed(nil)
		return Done()
	}
	s := &allOfStep[T]{af: af, exec: NewExecutor(), cleanup: &Defer{}}
	for _, m := range af.members {
		driver := NewCoroutine(m.Run())
		s.cleanup.Add(driver.Dispose)
		s.exec.Add(&allOfMember[T]{Coroutine: driver, af: af, fut: m})
	}
	return s
}

type allOfMember[T any] struct {
	*Coroutine
	af       *allOfFuture[T]
	fut      Future[T]
	recorded bool
}

func (m *allOfMember[T]) Resume(delta float64) error {
	err := m.Coroutine.Resume(delta)
	if m.Coroutine.Finished() && !m.recorded {
		m.recorded = true
		if m.fut.Err() != nil && m.af.err == nil {
			m.af.fail(m.fut.Err())
		}
	}
	return err
}

type allOfStep[T any] struct {
	af      *allOfFuture[T]
	exec    *Executor
	cleanup *Defer
	done    bool
}

func (s *allOfStep[T]) Advance(delta float64) (Yielded, error) {
	if s.done {
		return nil, nil
	}
	if s.af.err != nil || s.exec.Finished() {
		return s.finish()
	}
	if err := s.exec.Resume(delta); err != nil && s.af.err == nil {
		s.af.fail(err)
	}
	if s.af.err != nil || s.exec.Finished() {
		return s.finish()
	}
	return Pause, nil
}

func (s *allOfStep[T]) finish() (Yielded, error) {
	s.done = true
	s.cleanup.Dispose()
	if s.af.err == nil {
		results := make([]T, len(s.af.members))
		for i, m := range s.af.members {
			results[i] = m.Result()
		}
		s.af.succeed(results)
	}
	return nil, nil
}

func (s *allOfStep[T]) Dispose() { s.cleanup.Dispose() }

// --- tuple conveniences: Pair/Triple, AllOf2/AllOf3 -----------------------

// Pair is the result of AllOf2/WaitAllOf2.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple is the result of AllOf3/WaitAllOf3.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func futureAny[T any](f Future[T]) Future[any] {
	return Map(f, func(t T) any { return t })
}

func anyAs[T any](v any) T {
	t, _ := v.(T)
	return t
}

// AllOf2 is a fixed-arity convenience over AllOf for exactly two members.
func AllOf2[A, B any](fa Future[A], fb Future[B]) Future[Pair[A, B]] {
	return Map(AllOf[any](futureAny(fa), futureAny(fb)), func(r []any) Pair[A, B] {
		return Pair[A, B]{First: anyAs[A](r[0]), Second: anyAs[B](r[1])}
	})
}

// AllOf3 is a fixed-arity convenience over AllOf for exactly three members.
func AllOf3[A, B, C any](fa Future[A], fb Future[B], fc Future[C]) Future[Triple[A, B, C]] {
	return Map(AllOf[any](futureAny(fa), futureAny(fb), futureAny(fc)), func(r []any) Triple[A, B, C] {
		return Triple[A, B, C]{First: anyAs[A](r[0]), Second: anyAs[B](r[1]), Third: anyAs[C](r[2])}
	})
}

// --- FirstCompleted / FirstCompletedOrFaulted ------------------------------

// FirstCompleted races its members and adopts the first one to succeed. If
// every member fails, the result fails with an AggregateError of every
// member's error.
func FirstCompleted[T any](members ...Future[T]) Future[T] {
	return &firstOfFuture[T]{members: members, onlySuccess: true}
}

// FirstCompletedOrFaulted races its members and adopts whichever finishes
// first, success or failure.
func FirstCompletedOrFaulted[T any](members ...Future[T]) Future[T] {
	return &firstOfFuture[T]{members: members, onlySuccess: false}
}

type firstOfFuture[T any] struct {
	box[T]
	members     []Future[T]
	onlySuccess bool
}

func (ff *firstOfFuture[T]) Run() Step {
	if len(ff.members) == 0 {
		ff.fail(NewAggregateError())
		return Done()
	}
	s := &firstOfStep[T]{ff: ff, exec: NewExecutor(), cleanup: &Defer{}, winner: -1}
	for i, m := range ff.members {
		driver := NewCoroutine(m.Run())
		s.cleanup.Add(driver.Dispose)
		s.exec.Add(&firstOfMember[T]{Coroutine: driver, idx: i, step: s})
	}
	return s
}

type firstOfMember[T any] struct {
	*Coroutine
	idx      int
	step     *firstOfStep[T]
	notified bool
}

func (m *firstOfMember[T]) Resume(delta float64) error {
	err := m.Coroutine.Resume(delta)
	if m.Coroutine.Finished() && !m.notified {
		m.notified = true
		m.step.finishedThisTick = append(m.step.finishedThisTick, m.idx)
	}
	return err
}

type firstOfStep[T any] struct {
	ff               *firstOfFuture[T]
	exec             *Executor
	cleanup          *Defer
	finishedThisTick []int
	errs             []error
	winner           int
	done             bool
}

func (s *firstOfStep[T]) Advance(delta float64) (Yielded, error) {
	if s.done {
		return nil, nil
	}
	s.finishedThisTick = s.finishedThisTick[:0]
	if err := s.exec.Resume(delta); err != nil {
		s.errs = append(s.errs, err)
	}
	s.processFinished()
	if s.winner >= 0 || s.exec.Finished() {
		return s.finish()
	}
	return Pause, nil
}

func (s *firstOfStep[T]) processFinished() {
	if s.winner >= 0 || len(s.finishedThisTick) == 0 {
		return
	}
	sort.Ints(s.finishedThisTick)

	if !s.ff.onlySuccess {
		s.winner = s.finishedThisTick[0]
		return
	}

	bestSuccess := -1
	for _, idx := range s.finishedThisTick {
		m := s.ff.members[idx]
		if m.Err() == nil {
			if bestSuccess == -1 {
				bestSuccess = idx
			}
		} else {
			s.errs = append(s.errs, m.Err())
		}
	}
	if bestSuccess >= 0 {
		s.winner = bestSuccess
	}
}

func (s *firstOfStep[T]) finish() (Yielded, error) {
	s.done = true
	s.cleanup.Dispose()
	if s.winner >= 0 {
		m := s.ff.members[s.winner]
		if m.Err() != nil {
			s.ff.fail(m.Err())
		} else {
			s.ff.succeed(m.Result())
		}
		return nil, nil
	}
	s.ff.fail(NewAggregateError(s.errs...))
	return nil, nil
}

func (s *firstOfStep[T]) Dispose() { s.cleanup.Dispose() }

// --- WaitAllOf --------------------------------------------------------------

// CompletionStatus is one member's outcome as recorded by WaitAllOf.
type CompletionStatus[T any] struct {
	Result T
	Err    error
}

// WaitAllOf runs every member concurrently and always completes once every
// member has terminated, regardless of member errors: Result is each
// member's CompletionStatus, in input order.
func WaitAllOf[T any](members ...Future[T]) Future[[]CompletionStatus[T]] {
	return &waitAllOfFuture[T]{members: members}
}

type waitAllOfFuture[T any] struct {
	box[[]CompletionStatus[T]]
	members []Future[T]
}

func (wf *waitAllOfFuture[T]) Run() Step {
	if len(wf.members) == 0 {
		wf.succeed(nil)
		return Done()
	}
	s := &waitAllOfStep[T]{wf: wf, exec: NewExecutor(), cleanup: &Defer{}}
	for _, m := range wf.members {
		driver := NewCoroutine(m.Run())
		s.cleanup.Add(driver.Dispose)
		s.exec.Add(driver)
	}
	return s
}

type waitAllOfStep[T any] struct {
	wf      *waitAllOfFuture[T]
	exec    *Executor
	cleanup *Defer
	done    bool
}

func (s *waitAllOfStep[T]) Advance(delta float64) (Yielded, error) {
	if s.done {
		return nil, nil
	}
	if s.exec.Finished() {
		return s.finish()
	}
	if err := s.exec.Resume(delta); err != nil {
		// WaitAllOf never aborts on member error; a raw Advance error (as
		// opposed to a future-level Err()) is unusual enough to be worth a
		// diagnostic, mirroring dispatch-go's handling of an unexpected
		// late/unknown poll result.
		slog.Debug("stepcoro: waitallof member advance reported an error; ignoring", "error", err)
	}
	if s.exec.Finished() {
		return s.finish()
	}
	return Pause, nil
}

func (s *waitAllOfStep[T]) finish() (Yielded, error) {
	s.done = true
	s.cleanup.Dispose()
	statuses := make([]CompletionStatus[T], len(s.wf.members))
	for i, m := range s.wf.members {
		statuses[i] = CompletionStatus[T]{Result: m.Result(), Err: m.Err()}
	}
	s.wf.succeed(statuses)
	return nil, nil
}

func (s *waitAllOfStep[T]) Dispose() { s.cleanup.Dispose() }

// WaitAllOf2 is a fixed-arity convenience over WaitAllOf for exactly two
// members.
func WaitAllOf2[A, B any](fa Future[A], fb Future[B]) Future[Pair[CompletionStatus[A], CompletionStatus[B]]] {
	return Map(WaitAllOf[any](futureAny(fa), futureAny(fb)), func(r []CompletionStatus[any]) Pair[CompletionStatus[A], CompletionStatus[B]] {
		return Pair[CompletionStatus[A], CompletionStatus[B]]{
			First:  CompletionStatus[A]{Result: anyAs[A](r[0].Result), Err: r[0].Err},
			Second: CompletionStatus[B]{Result: anyAs[B](r[1].Result), Err: r[1].Err},
		}
	})
}

// WaitAllOf3 is a fixed-arity convenience over WaitAllOf for exactly three
// members.
func WaitAllOf3[A, B, C any](fa Future[A], fb Future[B], fc Future[C]) Future[Triple[CompletionStatus[A], CompletionStatus[B], CompletionStatus[C]]] {
	return Map(WaitAllOf[any](futureAny(fa), futureAny(fb), futureAny(fc)), func(r []CompletionStatus[any]) Triple[CompletionStatus[A], CompletionStatus[B], CompletionStatus[C]] {
		return Triple[CompletionStatus[A], CompletionStatus[B], CompletionStatus[C]]{
			First:  CompletionStatus[A]{Result: anyAs[A](r[0].Result), Err: r[0].Err},
			Second: CompletionStatus[B]{Result: anyAs[B](r[1].Result), Err: r[1].Err},
			Third:  CompletionStatus[C]{Result: anyAs[C](r[2].Result), Err: r[2].Err},
		}
	})
}

// --- Loop / Wait ------------------------------------------------------------

// LoopStep is the Break(s) | Continue(s) control record driving Loop and
// Wait.
type LoopStep[S any] struct {
	brk   bool
	state S
}

// Break produces a LoopStep that ends the loop with final state s.
func Break[S any](s S) LoopStep[S] { return LoopStep[S]{brk: true, state: s} }

// Continue produces a LoopStep that carries the loop on with next state s.
func Continue[S any](s S) LoopStep[S] { return LoopStep[S]{brk: false, state: s} }

// IsBreak reports whether this step ends the loop.
func (l LoopStep[S]) IsBreak() bool { return l.brk }

// State returns the step's carried state.
func (l LoopStep[S]) State() S { return l.state }

// Loop repeatedly calls reducer with the current state to obtain a Future;
// runs it; and, on success, expects a LoopStep: Break ends the loop with
// that state as the result, Continue carries the loop on with the new
// state. A nil Future from reducer is ErrNullReducerResult; an error from
// the Future it returns propagates and ends the loop.
func Loop[S any](reducer func(S) Future[LoopStep[S]], initial S) Future[S] {
	return &loopFuture[S]{reducer: reducer, initial: initial}
}

type loopFuture[S any] struct {
	box[S]
	reducer func(S) Future[LoopStep[S]]
	initial S
}

func (lf *loopFuture[S]) Run() Step {
	return &loopStep[S]{lf: lf, state: lf.initial}
}

type loopStep[S any] struct {
	lf         *loopFuture[S]
	state      S
	effect     Future[LoopStep[S]]
	effectStep Step
	done       bool
}

func (s *loopStep[S]) Advance(delta float64) (Yielded, error) {
	for {
		if s.done {
			return nil, nil
		}
		if s.effectStep == nil {
			effect, err := callReducer(s.lf.reducer, s.state)
			if err != nil {
				s.lf.fail(err)
				s.done = true
				return nil, nil
			}
			if effect == nil {
				s.lf.fail(ErrNullReducerResult)
				s.done = true
				return nil, nil
			}
			s.effect = effect
			s.effectStep = effect.Run()
		}

		y, err := s.effectStep.Advance(delta)
		if err != nil {
			s.lf.fail(err)
			s.done = true
			return nil, nil
		}
		if y != nil {
			return y, nil
		}
		if eerr := s.effect.Err(); eerr != nil {
			s.lf.fail(eerr)
			s.done = true
			return nil, nil
		}

		step := s.effect.Result()
		s.effect, s.effectStep = nil, nil
		if step.IsBreak() {
			s.lf.succeed(step.State())
			s.done = true
			return nil, nil
		}
		s.state = step.State()
	}
}

func (s *loopStep[S]) Dispose() {
	if s.effectStep != nil {
		dispose(s.effectStep)
	}
}

// Wait evaluates reducer(state) synchronously, immediately (no inner
// Future): while it returns Continue(s), Wait yields Pause and re-evaluates
// reducer(s) on the next tick; on Break(s), Result is s. For N pauses the
// reducer is invoked exactly N+1 times.
func Wait[S any](reducer func(S) LoopStep[S], initial S) Future[S] {
	return &waitFuture[S]{reducer: reducer, initial: initial}
}

type waitFuture[S any] struct {
	box[S]
	reducer func(S) LoopStep[S]
	initial S
}

func (wf *waitFuture[S]) Run() Step {
	return &waitStep[S]{wf: wf, state: wf.initial}
}

type waitStep[S any] struct {
	wf    *waitFuture[S]
	state S
	done  bool
}

func (s *waitStep[S]) Advance(float64) (Yielded, error) {
	if s.done {
		return nil, nil
	}
	step, err := callPureReducer(s.wf.reducer, s.state)
	if err != nil {
		s.wf.fail(err)
		s.done = true
		return nil, nil
	}
	if step.IsBreak() {
		s.wf.succeed(step.State())
		s.done = true
		return nil, nil
	}
	s.state = step.State()
	return Pause, nil
}

// WaitPred is the predicate shortcut for Wait: it loops while pred()
// reports true.
func WaitPred(pred func() bool) Future[unit] {
	return Wait(func(unit) LoopStep[unit] {
		if pred() {
			return Continue(unit{})
		}
		return Break(unit{})
	}, unit{})
}
