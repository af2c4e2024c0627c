package asynclife

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncOperationCompletes(t *testing.T) {
	op := NewAsyncOperation(OperationHooks{
		Name: "op",
		Start: func(ctx context.Context) error {
			return nil
		},
	})
	var started, finished *AsyncOperation
	var finishedState State
	done := make(chan struct{})
	op.AddStateChangeListener(asyncListener{
		onStarted: func(o *AsyncOperation) { started = o },
		onFinished: func(o *AsyncOperation, s State) {
			finished, finishedState = o, s
			close(done)
		},
	})

	require.NoError(t, op.Start())
	op.NotifyStarted()
	op.NotifyCompleted("result")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener never observed the terminal transition")
	}
	assert.Equal(t, op, started)
	assert.Equal(t, op, finished)
	assert.Equal(t, StateCompleted, finishedState)

	result, err := op.Result()
	require.NoError(t, err)
	assert.Equal(t, "result", result)
}

func TestAsyncOperationFails(t *testing.T) {
	boom := errors.New("boom")
	op := NewAsyncOperation(OperationHooks{Name: "op"})
	require.NoError(t, op.Start())
	op.NotifyStarted()
	op.NotifyFailed(boom)

	assert.Equal(t, StateFailed, op.State())
	cause, err := op.FailureCause()
	require.NoError(t, err)
	assert.Equal(t, boom, cause)

	_, err = op.Result()
	assert.True(t, IsInvalidState(err))
}

func TestAsyncOperationCancelBeforeStart(t *testing.T) {
	op := NewAsyncOperation(OperationHooks{Name: "op"})
	op.Cancel()
	assert.Equal(t, StateCancelled, op.State())

	// starting an already-cancelled operation is an idempotent no-op
	assert.NoError(t, op.Start())
	assert.Equal(t, StateCancelled, op.State())
}

func TestAsyncOperationCancelWhileRunningInvokesStopHook(t *testing.T) {
	stopped := make(chan struct{}, 1)
	var op *AsyncOperation
	op = NewAsyncOperation(OperationHooks{
		Name: "op",
		Start: func(ctx context.Context) error {
			op.NotifyStartedCtx(ctx)
			return nil
		},
		Stop: func(ctx context.Context) error {
			stopped <- struct{}{}
			return nil
		},
	})
	require.NoError(t, op.Start())
	op.WaitForStarted()

	op.Cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("expected stop hook to run")
	}
	op.NotifyCancelled()
	assert.Equal(t, StateCancelled, op.State())
}

func TestAsyncOperationOutOfOrderCompletion(t *testing.T) {
	op := NewAsyncOperation(OperationHooks{Name: "op"})
	require.NoError(t, op.Start())

	// NotifyCompleted arrives while still Starting: this should still
	// resolve to Completed, having passed through Running.
	done := make(chan struct{})
	go func() {
		op.NotifyCompleted(42)
		close(done)
	}()
	// Give the reconciliation goroutine a chance to actually block before
	// unblocking it, exercising the wait path rather than a lucky race.
	time.Sleep(5 * time.Millisecond)
	op.NotifyStarted()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyCompleted never returned")
	}
	assert.Equal(t, StateCompleted, op.State())
	result, err := op.Result()
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestAsyncOperationCompletedIsTerminalIgnoresFurtherNotifications(t *testing.T) {
	op := NewAsyncOperation(OperationHooks{Name: "op"})
	require.NoError(t, op.Start())
	op.NotifyStarted()
	op.NotifyCompleted(1)

	op.NotifyFailed(errors.New("too late"))
	assert.Equal(t, StateCompleted, op.State())
}

func TestAsyncOperationListenerCatchUpAfterRunning(t *testing.T) {
	op := NewAsyncOperation(OperationHooks{Name: "op"})
	require.NoError(t, op.Start())
	op.NotifyStarted()

	startedCh := make(chan struct{}, 1)
	op.AddStateChangeListener(asyncListener{
		onStarted: func(o *AsyncOperation) { startedCh <- struct{}{} },
	})
	select {
	case <-startedCh:
	case <-time.After(time.Second):
		t.Fatal("late listener should be caught up on the Running transition")
	}
}

func TestAsyncOperationListenerCatchUpAfterTerminal(t *testing.T) {
	op := NewAsyncOperation(OperationHooks{Name: "op"})
	require.NoError(t, op.Start())
	op.NotifyStarted()
	op.NotifyCompleted(nil)

	finishedCh := make(chan State, 1)
	op.AddStateChangeListener(asyncListener{
		onFinished: func(o *AsyncOperation, s State) { finishedCh <- s },
	})
	select {
	case s := <-finishedCh:
		assert.Equal(t, StateCompleted, s)
	case <-time.After(time.Second):
		t.Fatal("late listener should be caught up on the terminal transition")
	}
}

// asyncListener adapts function fields to AsyncOperationListener.
type asyncListener struct {
	onStarted  func(op *AsyncOperation)
	onFinished func(op *AsyncOperation, terminal State)
}

func (l asyncListener) OnAsyncOperationStarted(op *AsyncOperation) {
	if l.onStarted != nil {
		l.onStarted(op)
	}
}

func (l asyncListener) OnAsyncOperationFinished(op *AsyncOperation, terminal State) {
	if l.onFinished != nil {
		l.onFinished(op, terminal)
	}
}
