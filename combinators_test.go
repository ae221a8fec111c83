package stepcoro

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindResultLaw(t *testing.T) {
	// ∀ futures f, g with g error-free on input v and f completing with v:
	// Bind(f, g, sel).Result() == sel(v, g(v).Result()).
	f := Value(3)
	binder := func(v int) Future[int] { return Value(v * 10) }
	selector := func(v, u int) int { return v + u }

	bound := Bind[int, int, int](f, binder, selector)
	runToCompletion(t, bound.Run())

	assert.NoError(t, bound.Err())
	assert.Equal(t, selector(3, binder(3).Result()), bound.Result())
}

func TestBindPropagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	f := Failed[int](boom)
	bound := Bind[int, int, int](f, func(int) Future[int] { return Value(0) }, func(a, b int) int { return a + b })
	runToCompletion(t, bound.Run())
	assert.ErrorIs(t, bound.Err(), boom)
}

func TestBindPropagatesSecondError(t *testing.T) {
	boom := errors.New("boom")
	bound := Bind[int, int, int](Value(1), func(int) Future[int] { return Failed[int](boom) }, func(a, b int) int { return a + b })
	runToCompletion(t, bound.Run())
	assert.ErrorIs(t, bound.Err(), boom)
}

func TestBindCapturesPanickingSelector(t *testing.T) {
	bound := Bind[int, int, int](Value(1), func(int) Future[int] { return Value(2) }, func(int, int) int {
		panic("selector exploded")
	})
	runToCompletion(t, bound.Run())
	require.Error(t, bound.Err())
}

func TestThenChainsFutures(t *testing.T) {
	f := Then(Value(2), func(v int) Future[string] {
		if v == 2 {
			return Value("two")
		}
		return Value("other")
	})
	runToCompletion(t, f.Run())
	assert.Equal(t, "two", f.Result())
}

func TestMapTransformsResult(t *testing.T) {
	f := Map(Value(21), func(v int) int { return v * 2 })
	runToCompletion(t, f.Run())
	assert.Equal(t, 42, f.Result())
}

func TestCatchRecoversFromError(t *testing.T) {
	boom := errors.New("boom")
	f := Catch(Failed[int](boom), func(err error) Future[int] {
		assert.ErrorIs(t, err, boom)
		return Value(-1)
	})
	runToCompletion(t, f.Run())
	assert.Equal(t, -1, f.Result())
	assert.NoError(t, f.Err())
}

func TestCatchMirrorsSuccessWithoutCallingHandler(t *testing.T) {
	called := false
	f := Catch(Value(5), func(error) Future[int] {
		called = true
		return Value(0)
	})
	runToCompletion(t, f.Run())
	assert.Equal(t, 5, f.Result())
	assert.False(t, called)
}

func TestAllOfOrdersResultsByInputOrder(t *testing.T) {
	f := AllOf[int](pausingIntFuture(3, 1), pausingIntFuture(1, 2), pausingIntFuture(2, 3))
	runToCompletion(t, f.Run())
	assert.NoError(t, f.Err())
	assert.Equal(t, []int{1, 2, 3}, f.Result())
}

func TestAllOfEmptySucceedsImmediately(t *testing.T) {
	f := AllOf[int]()
	runToCompletion(t, f.Run())
	assert.NoError(t, f.Err())
	assert.Empty(t, f.Result())
}

func TestAllOfAbortsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	neverDone := StepFunc(func(float64) (Yielded, error) { return Pause, nil })
	stuck := FromBlock(func(ch Channel[int]) Step { return neverDone })
	failing := pausingFailingFuture(1, boom)

	f := AllOf[int](stuck, failing)
	runToCompletion(t, f.Run())
	assert.ErrorIs(t, f.Err(), boom)
	assert.False(t, f.HasResult())
}

func TestAllOf2ProducesPair(t *testing.T) {
	f := AllOf2[int, string](pausingIntFuture(1, 7), Value("ok"))
	runToCompletion(t, f.Run())
	assert.Equal(t, Pair[int, string]{First: 7, Second: "ok"}, f.Result())
}

func TestFirstCompletedWaitsForASuccess(t *testing.T) {
	boom := errors.New("boom")
	fast := pausingFailingFuture(1, boom)
	slowSuccess := pausingIntFuture(3, 99)

	f := FirstCompleted[int](fast, slowSuccess)
	runToCompletion(t, f.Run())
	assert.NoError(t, f.Err())
	assert.Equal(t, 99, f.Result())
}

func TestFirstCompletedAllFailingAggregates(t *testing.T) {
	e1 := errors.New("e1")
	e2 := errors.New("e2")
	f := FirstCompleted[int](pausingFailingFuture(1, e1), pausingFailingFuture(1, e2))
	runToCompletion(t, f.Run())

	var agg *AggregateError
	require.ErrorAs(t, f.Err(), &agg)
	assert.ElementsMatch(t, []error{e1, e2}, agg.InnerErrors())
}

func TestFirstCompletedOrFaultedTakesFirstRegardlessOfOutcome(t *testing.T) {
	boom := errors.New("boom")
	fast := pausingFailingFuture(1, boom)
	slow := pausingIntFuture(5, 1)

	f := FirstCompletedOrFaulted[int](fast, slow)
	runToCompletion(t, f.Run())
	assert.ErrorIs(t, f.Err(), boom)
}

func TestWaitAllOfNeverAborts(t *testing.T) {
	boom := errors.New("boom")
	f := WaitAllOf[int](pausingIntFuture(1, 1), pausingFailingFuture(2, boom), pausingIntFuture(1, 3))
	runToCompletion(t, f.Run())

	require.NoError(t, f.Err())
	statuses := f.Result()
	require.Len(t, statuses, 3)
	assert.Equal(t, 1, statuses[0].Result)
	assert.ErrorIs(t, statuses[1].Err, boom)
	assert.Equal(t, 3, statuses[2].Result)
}

func TestLoopNullReducerResultIsAnError(t *testing.T) {
	f := Loop[int](func(int) Future[LoopStep[int]] { return nil }, 0)
	runToCompletion(t, f.Run())
	assert.ErrorIs(t, f.Err(), ErrNullReducerResult)
}

func TestWaitPredBreaksImmediatelyWhenFalseFromTheStart(t *testing.T) {
	calls := 0
	f := WaitPred(func() bool { calls++; return false })
	runToCompletion(t, f.Run())
	assert.Equal(t, 1, calls)
	assert.True(t, f.HasResult())
}

// pausingIntFuture is a FromBlock future that pauses `pauses` times before
// accepting v.
func pausingIntFuture(pauses int, v int) Future[int] {
	return FromBlock(func(ch Channel[int]) Step {
		remaining := pauses
		return StepFunc(func(float64) (Yielded, error) {
			if remaining > 0 {
				remaining--
				return Pause, nil
			}
			ch.Accept(v)
			return nil, nil
		})
	})
}

func pausingFailingFuture(pauses int, err error) Future[int] {
	return FromBlock(func(ch Channel[int]) Step {
		remaining := pauses
		return StepFunc(func(float64) (Yielded, error) {
			if remaining > 0 {
				remaining--
				return Pause, nil
			}
			ch.Fail(err)
			return nil, nil
		})
	})
}
