package asynclife

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerNoWaitRejectsWhileBusy(t *testing.T) {
	sched := NewOperationScheduler(PolicyNoWait, nil)
	gate := make(chan struct{})

	first := NewThreadedOperationWithOptions("slot", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		<-gate
		return nil, nil
	}, AsyncOperationOptions{Scheduler: sched})
	second := NewThreadedOperationWithOptions("slot", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return nil, nil
	}, AsyncOperationOptions{Scheduler: sched})

	require.NoError(t, first.Start())
	first.WaitForStarted()

	err := second.Start()
	assert.True(t, IsSchedulerRejected(err))

	close(gate)
	first.WaitForFinished()
}

func TestSchedulerQueuedRunsInOrder(t *testing.T) {
	sched := NewOperationScheduler(PolicyQueued, nil)
	gate := make(chan struct{})
	var order []int
	done := make(chan struct{})

	first := NewThreadedOperationWithOptions("slot", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		<-gate
		order = append(order, 1)
		return nil, nil
	}, AsyncOperationOptions{Scheduler: sched})
	second := NewThreadedOperationWithOptions("slot", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		order = append(order, 2)
		close(done)
		return nil, nil
	}, AsyncOperationOptions{Scheduler: sched})

	require.NoError(t, first.Start())
	require.NoError(t, second.Start())
	assert.Equal(t, StateNotStarted, second.State())

	close(gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second operation never ran")
	}
	assert.Equal(t, []int{1, 2}, order)
}

func TestSchedulerCancelPreviousCancelsRunning(t *testing.T) {
	sched := NewOperationScheduler(PolicyCancelPrevious, nil)

	first := NewThreadedOperationWithOptions("slot", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		for !tok.IsCancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, ErrOperationStopped
	}, AsyncOperationOptions{Scheduler: sched})
	second := NewThreadedOperationWithOptions("slot", func(ctx context.Context, tok CancelToken) (interface{}, error) {
		return "second", nil
	}, AsyncOperationOptions{Scheduler: sched})

	require.NoError(t, first.Start())
	first.WaitForStarted()

	require.NoError(t, second.Start())
	second.WaitForFinished()

	assert.Equal(t, StateCancelled, first.State())
	assert.Equal(t, StateCompleted, second.State())
}
