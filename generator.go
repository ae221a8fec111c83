package stepcoro

import (
	"context"
	"fmt"
	"runtime"
)

// Func adapts an ordinary, sequential Go function into a Step. f receives a
// yield function: calling yield(v) suspends f's goroutine and reports v
// from the Step's Advance, resuming f (and returning the delta of the next
// Advance call) only once Advance is called again.
//
// This lets a "steppable block" be written as plain imperative code:
//
//	step := stepcoro.Func(func(yield func(stepcoro.Yielded) float64) error {
//	    x = 0
//	    yield(stepcoro.Pause)
//	    x = 3
//	    yield(stepcoro.Pause)
//	    x = 4
//	    return nil
//	})
//
// f's own return value (nil or an error) becomes the error Advance reports
// on the final, completing call.
//
// Under the hood this runs f on its own goroutine and hands control back
// and forth over a pair of unbuffered channels — the same double-handshake
// technique a hand-written resume/yield coroutine uses — but only one of
// the generator's goroutine or its driver is ever runnable at a time, so
// the two never race.
//
// opts configures the generator the same way tcard/coro's SetOption
// configures a raw coroutine: WithGoFunc overrides how the backing
// goroutine is spawned, and KillOnContextDone ties the generator's
// lifetime to a context in addition to Dispose.
func Func(f func(yield func(Yielded) float64) error, opts ...GenOption) Step {
	o := defaultGenOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &generatorStep{
		deltaCh: make(chan float64),
		outCh:   make(chan genOutput),
		killCh:  make(chan struct{}),
		killCtx: o.killCtx,
		doneCh:  make(chan struct{}),
	}
	o.goFunc(func() { g.run(f) })

	// Backstop: if the driver abandons this Step without ever calling
	// Dispose (a caller bug), don't leak the parked goroutine forever.
	runtime.SetFinalizer(g, func(g *generatorStep) { g.kill() })

	return g
}

// GenOption configures a generator Step created by Func.
type GenOption func(*genOptions)

type genOptions struct {
	goFunc  GoFunc
	killCtx context.Context
}

// GoFunc spawns the goroutine that runs a generator's function.
type GoFunc func(func())

// WithGoFunc overrides how Func spawns the goroutine backing its Step. The
// default is a plain "go f()"; a caller might supply one that runs f through
// a worker pool instead.
func WithGoFunc(g GoFunc) GenOption {
	return func(o *genOptions) { o.goFunc = g }
}

// KillOnContextDone ties a generator's lifetime to ctx: once ctx is done,
// the generator is killed exactly as if Dispose had been called — its
// underlying goroutine unwinds through its own deferred cleanup, and the
// Step reports completion (with no error, the same "as if exited normally"
// contract Dispose has) on the next Advance.
func KillOnContextDone(ctx context.Context) GenOption {
	return func(o *genOptions) { o.killCtx = ctx }
}

var defaultGenOptions = genOptions{
	goFunc:  func(f func()) { go f() },
	killCtx: context.Background(),
}

type genOutput struct {
	y    Yielded
	err  error
	done bool
}

type generatorStep struct {
	deltaCh chan float64
	outCh   chan genOutput
	killCh  chan struct{}
	killCtx context.Context

	// doneCh is closed, unconditionally, the moment run's goroutine exits,
	// regardless of why. Advance selects on it alongside deltaCh/outCh so a
	// generator killed asynchronously (via KillOnContextDone, from whatever
	// goroutine cancels the context) can never leave Advance blocked
	// sending to or receiving from a goroutine that has already exited.
	doneCh chan struct{}

	finished bool
	killed   bool
}

// killedError is panicked through a generator's own defers when its Step is
// disposed while parked in yield, so the user function's deferred cleanups
// still run before the goroutine exits.
type killedError struct{}

func (killedError) Error() string { return "stepcoro: generator killed on dispose" }

func (g *generatorStep) run(f func(yield func(Yielded) float64) error) {
	defer close(g.doneCh)

	var result genOutput
	defer func() {
		r := recover()
		if r == nil {
			g.outCh <- result
			return
		}
		if _, ok := r.(killedError); ok {
			// Disposed or context-cancelled mid-run: the goroutine has
			// already unwound through any of the user function's own
			// defers. Nothing more to report; Advance observes doneCh.
			return
		}
		if err, ok := r.(error); ok {
			g.outCh <- genOutput{err: fmt.Errorf("stepcoro: generator panicked: %w", err), done: true}
			return
		}
		g.outCh <- genOutput{err: fmt.Errorf("stepcoro: generator panicked: %v", r), done: true}
	}()

	select {
	case <-g.deltaCh:
	case <-g.killCh:
		panic(killedError{})
	case <-g.killCtx.Done():
		panic(killedError{})
	}

	yield := func(y Yielded) float64 {
		g.outCh <- genOutput{y: y}
		select {
		case d := <-g.deltaCh:
			return d
		case <-g.killCh:
			panic(killedError{})
		case <-g.killCtx.Done():
			panic(killedError{})
		}
	}

	result = genOutput{err: f(yield), done: true}
}

func (g *generatorStep) Advance(delta float64) (Yielded, error) {
	if g.finished {
		return nil, nil
	}

	select {
	case g.deltaCh <- delta:
	case <-g.doneCh:
		// The generator already exited on its own (killed by its context
		// going done between ticks) before this tick's delta could be
		// delivered: report completion rather than blocking forever on a
		// goroutine that is no longer there to receive it.
		g.finished = true
		return nil, nil
	}

	select {
	case out := <-g.outCh:
		if out.done {
			g.finished = true
			return nil, out.err
		}
		return out.y, nil
	case <-g.doneCh:
		g.finished = true
		return nil, nil
	}
}

func (g *generatorStep) Dispose() {
	g.kill()
}

func (g *generatorStep) kill() {
	if g.finished || g.killed {
		return
	}
	g.killed = true
	g.finished = true
	close(g.killCh)
}

var _ error = killedError{}
