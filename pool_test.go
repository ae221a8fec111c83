package stepcoro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolCompletes(t *testing.T) {
	f := NewPool(func(ctx context.Context) (int, error) { return 5, nil })
	step := f.Run()

	deadline := time.Now().Add(2 * time.Second)
	for {
		y, err := step.Advance(0)
		require.NoError(t, err)
		if y == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pool future never completed")
		}
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 5, f.Result())
	assert.NoError(t, f.Err())
}

func TestNewPoolCapturesError(t *testing.T) {
	boom := errors.New("boom")
	f := NewPool(func(ctx context.Context) (int, error) { return 0, boom })
	step := f.Run()

	deadline := time.Now().Add(2 * time.Second)
	for {
		y, err := step.Advance(0)
		require.NoError(t, err)
		if y == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pool future never completed")
		}
		time.Sleep(time.Millisecond)
	}

	assert.ErrorIs(t, f.Err(), boom)
}

func TestNewPoolDisposeAbandonsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := NewPool(func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 9, nil
	})

	step := f.Run()
	<-started

	disposer, ok := step.(Disposer)
	require.True(t, ok)
	disposer.Dispose()
	close(release)

	// Give the abandoned worker a moment to finish; its result must never
	// land on f since the step already disposed interest in it.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, f.HasResult())
	assert.NoError(t, f.Err())
}
