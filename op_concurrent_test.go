package asynclife

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentCompletesAtQuorum(t *testing.T) {
	fast := NewThreadedOperation("fast", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return nil, nil
	})
	slow := NewThreadedOperation("slow", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		for !tok.IsCancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, ErrOperationStopped
	})

	par := Concurrent("par", 1, fast, slow)
	require.NoError(t, par.Start())
	par.WaitForFinished()

	assert.Equal(t, StateCompleted, par.State())
	result, err := par.Result()
	require.NoError(t, err)
	assert.Nil(t, result)

	deadline := time.After(time.Second)
	for slow.State() == StateRunning {
		select {
		case <-deadline:
			t.Fatal("straggler should have been cancelled once quorum was reached")
		case <-time.After(time.Millisecond):
		}
	}
	assert.Equal(t, StateCancelled, slow.State())
}

func TestConcurrentWaitsForAllWhenKEqualsN(t *testing.T) {
	op1 := NewThreadedOperation("op1", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return nil, nil
	})
	op2 := NewThreadedOperation("op2", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return nil, nil
	})
	par := Concurrent("par", 0, op1, op2)
	require.NoError(t, par.Start())
	par.WaitForFinished()
	assert.Equal(t, StateCompleted, par.State())
}

func TestConcurrentCancelCancelsAllChildren(t *testing.T) {
	op1 := NewThreadedOperation("op1", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		for !tok.IsCancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, ErrOperationStopped
	})
	op2 := NewThreadedOperation("op2", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		for !tok.IsCancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, ErrOperationStopped
	})
	par := Concurrent("par", 2, op1, op2)
	require.NoError(t, par.Start())
	time.Sleep(5 * time.Millisecond)

	par.Cancel()
	par.WaitForFinished()
	assert.Equal(t, StateCancelled, par.State())
}
