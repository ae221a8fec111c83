package stepcoro

import "context"

// Future is a typed value-or-error handle driven by a Step. Run is consumed
// once: calling it a second time is undefined. After the Step returned by
// Run reaches completion, exactly one of Result/HasResult or Err is
// meaningful — a well-formed core Future never leaves both empty.
type Future[T any] interface {
	// Result returns the future's value. It is only meaningful once the
	// driving Step has finished and HasResult reports true.
	Result() T

	// HasResult reports whether Result holds a value (as opposed to Err
	// holding an error, or the future not having run yet).
	HasResult() bool

	// Err returns the future's error, if any, once the driving Step has
	// finished.
	Err() error

	// Run returns the Step that drives this future to completion.
	Run() Step
}

// box is the result/error slot shared by every Future implementation in
// this package; combinators embed it rather than reimplementing the
// accessor methods.
type box[T any] struct {
	result    T
	hasResult bool
	err       error
}

func (b *box[T]) Result() T        { return b.result }
func (b *box[T]) HasResult() bool  { return b.hasResult }
func (b *box[T]) Err() error       { return b.err }
func (b *box[T]) succeed(v T)      { b.result = v; b.hasResult = true; b.err = nil }
func (b *box[T]) fail(err error)   { b.err = err; b.hasResult = false }

// simpleFuture is an already-completed future (Value or Failed).
type simpleFuture[T any] struct{ box[T] }

// Value returns a Future already completed with v.
func Value[T any](v T) Future[T] {
	f := &simpleFuture[T]{}
	f.succeed(v)
	return f
}

// Failed returns a Future already completed with err.
func Failed[T any](err error) Future[T] {
	f := &simpleFuture[T]{}
	f.fail(err)
	return f
}

func (f *simpleFuture[T]) Run() Step { return Done() }

// funcFuture runs an ordinary function exactly once, synchronously, on its
// first Advance.
type funcFuture[T any] struct {
	box[T]
	f func() (T, error)
}

// FromFunc returns a Future that, on its first Advance, calls f once and
// completes immediately with whatever it returns.
func FromFunc[T any](f func() (T, error)) Future[T] {
	return &funcFuture[T]{f: f}
}

func (ff *funcFuture[T]) Run() Step {
	return StepFunc(func(float64) (Yielded, error) {
		v, err := ff.f()
		if err != nil {
			ff.fail(err)
		} else {
			ff.succeed(v)
		}
		return nil, nil
	})
}

// Channel is the write-only completion handle a Block future passes to its
// implementation function. Exactly one of Accept or Fail must be called
// before the Step returned by the implementation finishes.
type Channel[T any] struct {
	f *blockFuture[T]
}

// Accept completes the future with v.
func (c Channel[T]) Accept(v T) { c.f.succeed(v) }

// Fail completes the future with err.
func (c Channel[T]) Fail(err error) { c.f.fail(err) }

// blockFuture bridges a steppable block into the Future abstraction
// through a Channel.
type blockFuture[T any] struct {
	box[T]
	impl func(Channel[T]) Step
}

// FromBlock adapts a steppable block into a Future[T]. impl receives a
// Channel[T] and must return the Step driving the block; the block must
// call Accept or Fail on the channel before that Step finishes. If it
// doesn't, the future fails with ErrBlockDidNotComplete.
func FromBlock[T any](impl func(Channel[T]) Step) Future[T] {
	return &blockFuture[T]{impl: impl}
}

func (bf *blockFuture[T]) Run() Step {
	inner := bf.impl(Channel[T]{f: bf})
	return &blockStep[T]{bf: bf, inner: inner}
}

type blockStep[T any] struct {
	bf    *blockFuture[T]
	inner Step
}

func (s *blockStep[T]) Advance(delta float64) (Yielded, error) {
	y, err := s.inner.Advance(delta)
	if err != nil {
		s.bf.fail(err)
		return nil, nil
	}
	if y == nil {
		if !s.bf.hasResult && s.bf.err == nil {
			s.bf.fail(ErrBlockDidNotComplete)
		}
		return nil, nil
	}
	return y, nil
}

func (s *blockStep[T]) Dispose() { dispose(s.inner) }

// threadedFuture runs its function on a dedicated goroutine, polling for
// completion cooperatively; disposal cancels the context passed to the
// function rather than forcibly killing the goroutine (see NewThreaded).
type threadedFuture[T any] struct {
	box[T]
	f func(context.Context) (T, error)
}

// NewThreaded returns a Future that runs f on a dedicated goroutine. f
// should poll ctx.Done() for cooperative cancellation: if the future is
// disposed (its scope exits early) while f is still running, ctx is
// cancelled. There is no way to forcibly abort f; this is the redesign of
// the core's original (unsafe) thread-abort behavior into cooperative
// cancellation.
func NewThreaded[T any](f func(ctx context.Context) (T, error)) Future[T] {
	return &threadedFuture[T]{f: f}
}

func (tf *threadedFuture[T]) Run() Step {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := tf.f(ctx)
		if err != nil {
			tf.fail(err)
		} else {
			tf.succeed(v)
		}
	}()
	return &threadedStep[T]{done: done, cancel: cancel}
}

type threadedStep[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
}

func (s *threadedStep[T]) Advance(float64) (Yielded, error) {
	select {
	case <-s.done:
		return nil, nil
	default:
		return Pause, nil
	}
}

func (s *threadedStep[T]) Dispose() { s.cancel() }

// CompletionSource is an out-of-band Future whose result is supplied by an
// external producer via Accept/Fail rather than by the Future's own Step.
// Its Step reports completion once the source has been completed and
// Pause until then. Completing it twice returns ErrDoubleCompletion from
// Accept/Fail and leaves the first completion in place.
type CompletionSource[T any] struct {
	box[T]
	completed bool
}

// NewCompletionSource creates an incomplete CompletionSource.
func NewCompletionSource[T any]() *CompletionSource[T] {
	return &CompletionSource[T]{}
}

// Accept completes the source with v. It returns ErrDoubleCompletion (and
// leaves the source unchanged) if already completed.
func (c *CompletionSource[T]) Accept(v T) error {
	if c.completed {
		return ErrDoubleCompletion
	}
	c.completed = true
	c.succeed(v)
	return nil
}

// Fail completes the source with err. It returns ErrDoubleCompletion (and
// leaves the source unchanged) if already completed.
func (c *CompletionSource[T]) Fail(err error) error {
	if c.completed {
		return ErrDoubleCompletion
	}
	c.completed = true
	c.fail(err)
	return nil
}

// Cancelled reports whether the source has been completed with a
// non-nil error and no result — distinguishing "not completed yet" from
// "completed, but as a failure" without inventing a second channel.
func (c *CompletionSource[T]) Cancelled() bool {
	return c.completed && !c.hasResult
}

// Future returns the Future[T] view of this source.
func (c *CompletionSource[T]) Future() Future[T] { return completionSourceFuture[T]{c} }

type completionSourceFuture[T any] struct{ c *CompletionSource[T] }

func (f completionSourceFuture[T]) Result() T       { return f.c.Result() }
func (f completionSourceFuture[T]) HasResult() bool { return f.c.HasResult() }
func (f completionSourceFuture[T]) Err() error      { return f.c.Err() }
func (f completionSourceFuture[T]) Run() Step {
	return StepFunc(func(float64) (Yielded, error) {
		if f.c.completed {
			return nil, nil
		}
		return Pause, nil
	})
}
