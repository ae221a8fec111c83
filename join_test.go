package stepcoro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinCompletesInstantResumableWithoutExtraPause(t *testing.T) {
	r := &countingResumable{ticksLeft: 1}
	c := NewCoroutine(Join(r))

	require.NoError(t, c.Resume(0))
	assert.True(t, c.Finished())
	assert.Equal(t, 1, r.resumes, "an instantaneous resumable finishes on its first resume, no extra tick")
}

func TestJoinWaitsThenCompletes(t *testing.T) {
	r := &countingResumable{ticksLeft: 2}
	c := NewCoroutine(Join(r))

	require.NoError(t, c.Resume(0))
	assert.False(t, c.Finished())
	require.NoError(t, c.Resume(0))
	assert.True(t, c.Finished())
}

func TestJoinWhileIgnoresFinished(t *testing.T) {
	calls := 0
	r := &countingResumable{ticksLeft: 100}
	pred := func() bool {
		calls++
		return calls <= 2
	}

	c := NewCoroutine(JoinWhile(r, pred))
	require.NoError(t, c.Resume(0))
	assert.False(t, c.Finished())
	require.NoError(t, c.Resume(0))
	assert.True(t, c.Finished())
	assert.Equal(t, 3, calls, "pred is checked once before and once after each resume, until it turns false")
	assert.Equal(t, 1, r.resumes, "the tick where pred first turns false never reaches r.Resume")
}

func TestTimedJoinExitsWhenBudgetExhausted(t *testing.T) {
	r := &countingResumable{ticksLeft: 100}
	c := NewCoroutine(TimedJoin(r, 2.5))

	require.NoError(t, c.Resume(1))
	assert.False(t, c.Finished())
	require.NoError(t, c.Resume(1))
	assert.False(t, c.Finished())
	require.NoError(t, c.Resume(1))
	assert.True(t, c.Finished(), "budget exhausted even though r never finished")
}

func TestTimedJoinExitsWhenResumableFinishes(t *testing.T) {
	r := &countingResumable{ticksLeft: 1}
	c := NewCoroutine(TimedJoin(r, 1000))

	require.NoError(t, c.Resume(1))
	assert.True(t, c.Finished())
}
