package asynclife

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimedPropagatesFastResult(t *testing.T) {
	inner := NewThreadedOperation("inner", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return "fast", nil
	})
	timed := Timed("timed", inner, time.Second, nil)
	require.NoError(t, timed.Start())
	timed.WaitForFinished()

	assert.Equal(t, StateCompleted, timed.State())
	assert.False(t, timed.IsTimedOut())
	result, err := timed.Result()
	require.NoError(t, err)
	assert.Equal(t, "fast", result)
}

func TestTimedWithOnTimeout(t *testing.T) {
	inner := Idle("inner", time.Second)
	timed := Timed("timed", inner, 30*time.Millisecond, func() *AsyncOperation {
		return Nop("on-timeout")
	})

	require.NoError(t, timed.Start())
	timed.WaitForFinished()

	assert.Equal(t, StateCompleted, timed.State())
	assert.True(t, timed.IsTimedOut())

	deadline := time.After(time.Second)
	for inner.State() == StateRunning {
		select {
		case <-deadline:
			t.Fatal("inner operation should have been cancelled at the timeout")
		case <-time.After(time.Millisecond):
		}
	}
	assert.Equal(t, StateCancelled, inner.State())
}

func TestTimedWithoutOnTimeout(t *testing.T) {
	inner := Idle("inner", time.Second)
	timed := Timed("timed", inner, 20*time.Millisecond, nil)

	require.NoError(t, timed.Start())
	timed.WaitForFinished()

	assert.Equal(t, StateCompleted, timed.State())
	assert.True(t, timed.IsTimedOut())
	result, err := timed.Result()
	require.NoError(t, err)
	assert.Nil(t, result)
}
