package stepcoro

import (
	"context"
	"sync"

	"github.com/ygrebnov/workers"
)

// sharedPool is the process-wide worker pool backing NewPool futures. It is
// started lazily, on first use, with a dynamically-sized pool (the Pool
// future variant makes no per-call sizing decisions, mirroring
// ygrebnov/workers' MaxWorkers: 0 default).
var (
	sharedPoolOnce sync.Once
	sharedPool     workers.Workers[error]
)

func getSharedPool() workers.Workers[error] {
	sharedPoolOnce.Do(func() {
		sharedPool = workers.New[error](context.Background(), &workers.Config{
			StartImmediately: true,
		})
		// The pool's Results/Errors channels must be drained or a full
		// buffer would eventually block task dispatch; Pool futures report
		// their own result directly (see NewPool), so both channels are
		// just discarded here.
		go drainChan(sharedPool.GetResults())
		go drainChan(sharedPool.GetErrors())
	})
	return sharedPool
}

func drainChan[T any](ch <-chan T) {
	for range ch {
	}
}

// poolFuture dispatches its function through the shared worker pool instead
// of a dedicated goroutine. Unlike NewThreaded, a poolFuture cannot be
// cancelled: disposing its Step abandons interest in the result, but the
// queued function still runs to completion on whatever worker picks it up,
// and its side effects still happen.
type poolFuture[T any] struct {
	box[T]
	f func(context.Context) (T, error)
}

// NewPool is like NewThreaded, but dispatches f through a shared worker
// pool rather than spawning a dedicated goroutine per call. It does not
// support cancellation: a disposed poolFuture's worker keeps running to
// completion in the background, and its result is simply discarded.
func NewPool[T any](f func(ctx context.Context) (T, error)) Future[T] {
	return &poolFuture[T]{f: f}
}

func (pf *poolFuture[T]) Run() Step {
	done := make(chan struct{})
	abandoned := make(chan struct{})

	task := func(ctx context.Context) error {
		v, err := pf.f(ctx)
		select {
		case <-abandoned:
			return err
		default:
		}
		if err != nil {
			pf.fail(err)
		} else {
			pf.succeed(v)
		}
		close(done)
		return err
	}

	pool := getSharedPool()
	if err := pool.AddTask(task); err != nil {
		pf.fail(err)
		return Done()
	}

	return &poolStep[T]{done: done, abandoned: abandoned}
}

type poolStep[T any] struct {
	done      chan struct{}
	abandoned chan struct{}
}

func (s *poolStep[T]) Advance(float64) (Yielded, error) {
	select {
	case <-s.done:
		return nil, nil
	default:
		return Pause, nil
	}
}

// Dispose abandons interest in the result; it does not stop the queued
// function from running to completion on the shared pool.
func (s *poolStep[T]) Dispose() {
	select {
	case <-s.abandoned:
	default:
		close(s.abandoned)
	}
}
