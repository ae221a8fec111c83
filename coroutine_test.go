package stepcoro

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoroutineDisposeIdempotent(t *testing.T) {
	disposed := 0
	child := &disposableStep{onDispose: func() { disposed++ }}
	c := NewCoroutine(StepFunc(func(float64) (Yielded, error) {
		return Nest(child), nil
	}))

	require.NoError(t, c.Resume(0))
	c.Dispose()
	c.Dispose()

	assert.True(t, c.Finished())
	assert.Equal(t, 1, disposed)
	assert.NoError(t, c.Resume(0))
}

type disposableStep struct {
	onDispose func()
}

func (d *disposableStep) Advance(float64) (Yielded, error) { return Pause, nil }
func (d *disposableStep) Dispose()                         { d.onDispose() }

func TestCoroutinePropagatesErrorButStaysAdvanceable(t *testing.T) {
	boom := errors.New("boom")
	failed := false
	c := NewCoroutine(StepFunc(func(float64) (Yielded, error) {
		if !failed {
			failed = true
			return nil, boom
		}
		return nil, nil
	}))

	err := c.Resume(0)
	require.ErrorIs(t, err, boom)
	assert.True(t, c.Finished())
	assert.NoError(t, c.Resume(0))
}

func TestBecomeBoundedStackDepth(t *testing.T) {
	// Become does not return control to the driver, so each state pauses
	// once before handing over; otherwise a single Resume would never return.
	var a, b Step
	paused := false
	pauseThenBecome := func(next *Step) Step {
		return StepFunc(func(float64) (Yielded, error) {
			if !paused {
				paused = true
				return Pause, nil
			}
			paused = false
			return Become(*next), nil
		})
	}
	a = pauseThenBecome(&b)
	b = pauseThenBecome(&a)

	c := NewCoroutine(a)
	for i := 0; i < 200; i++ {
		require.NoError(t, c.Resume(0))
		assert.LessOrEqual(t, len(c.stack), 1, "Become must not grow the stack")
	}
}

func TestMalformedYieldIsAnError(t *testing.T) {
	c := NewCoroutine(StepFunc(func(float64) (Yielded, error) {
		return malformedYielded{}, nil
	}))

	err := c.Resume(0)
	assert.ErrorIs(t, err, ErrMalformedYield)
}

type malformedYielded struct{}

func (malformedYielded) yielded() {}

func TestSleepCompletesAfterBudgetExhausted(t *testing.T) {
	c := NewCoroutine(Sleep(2.5))

	require.NoError(t, c.Resume(1))
	assert.False(t, c.Finished())

	require.NoError(t, c.Resume(1))
	assert.False(t, c.Finished())

	require.NoError(t, c.Resume(1))
	assert.True(t, c.Finished())
}

func TestSleepNonPositiveCompletesImmediately(t *testing.T) {
	c := NewCoroutine(Sleep(0))
	require.NoError(t, c.Resume(1))
	assert.True(t, c.Finished())
}
