package asynclife

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialPropagatesLastResult(t *testing.T) {
	op1 := NewThreadedOperation("op1", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return "a", nil
	})
	op2 := NewThreadedOperation("op2", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return "b", nil
	})
	seq := Sequential("seq", op1, op2)

	require.NoError(t, seq.Start())
	seq.WaitForFinished()

	assert.Equal(t, StateCompleted, seq.State())
	result, err := seq.Result()
	require.NoError(t, err)
	assert.Equal(t, "b", result)
}

func TestSequentialShortCircuitsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	op1 := NewThreadedOperation("op1", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return nil, boom
	})
	ran := false
	op2 := NewThreadedOperation("op2", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		ran = true
		return nil, nil
	})
	seq := Sequential("seq", op1, op2)

	require.NoError(t, seq.Start())
	seq.WaitForFinished()

	assert.Equal(t, StateFailed, seq.State())
	cause, err := seq.FailureCause()
	require.NoError(t, err)
	assert.Equal(t, boom, cause)
	assert.False(t, ran)
}

func TestSequentialEmpty(t *testing.T) {
	seq := Sequential("seq")
	require.NoError(t, seq.Start())
	seq.WaitForFinished()
	assert.Equal(t, StateCompleted, seq.State())
}

func TestSequentialCancelStopsBeforeNextChild(t *testing.T) {
	proceed := make(chan struct{})
	op1 := NewThreadedOperation("op1", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		<-proceed
		return "a", nil
	})
	ran := false
	op2 := NewThreadedOperation("op2", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		ran = true
		return "b", nil
	})
	seq := Sequential("seq", op1, op2)
	require.NoError(t, seq.Start())

	done := make(chan struct{})
	go func() {
		seq.Cancel()
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	close(proceed)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancel never returned")
	}
	seq.WaitForFinished()
	assert.Equal(t, StateCancelled, seq.State())
	assert.False(t, ran)
}
