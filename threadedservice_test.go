package asynclife

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadedServiceAutoStart(t *testing.T) {
	stop := make(chan struct{})
	svc := NewThreadedService("t", func(ctx context.Context, cb ThreadCallback) error {
		<-stop
		return nil
	})
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	close(stop)
	require.NoError(t, svc.Stop())
	assert.True(t, svc.IsStopped())
}

func TestThreadedServiceManualStartNotification(t *testing.T) {
	ready := make(chan struct{})
	stop := make(chan struct{})
	svc := NewThreadedServiceWithOptions("t", func(ctx context.Context, cb ThreadCallback) error {
		<-ready
		cb.NotifyStarted()
		for !cb.IsStopPending() {
			select {
			case <-stop:
				return nil
			case <-time.After(time.Millisecond):
			}
		}
		return nil
	}, ThreadedServiceOptions{ManualStartNotification: true})

	started := make(chan error, 1)
	go func() { started <- svc.Start() }()

	select {
	case <-started:
		t.Fatal("start should block until NotifyStarted is called")
	case <-time.After(20 * time.Millisecond):
	}
	close(ready)

	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("start never returned after manual notification")
	}
	assert.True(t, svc.IsRunning())
	close(stop)
	require.NoError(t, svc.Stop())
}

func TestThreadedServiceSpontaneousFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := NewThreadedService("t", func(ctx context.Context, cb ThreadCallback) error {
		return boom
	})
	require.NoError(t, svc.Start())

	deadline := time.After(time.Second)
	for !svc.IsFailed() {
		select {
		case <-deadline:
			t.Fatal("expected service to fail spontaneously")
		case <-time.After(time.Millisecond):
		}
	}
	assert.ErrorIs(t, svc.FailureCause(), boom)
}

func TestThreadedServiceSpontaneousExitNoError(t *testing.T) {
	svc := NewThreadedService("t", func(ctx context.Context, cb ThreadCallback) error {
		return nil
	})
	require.NoError(t, svc.Start())

	deadline := time.After(time.Second)
	for !svc.IsStopped() {
		select {
		case <-deadline:
			t.Fatal("expected service to settle to stopped on spontaneous exit")
		case <-time.After(time.Millisecond):
		}
	}
}
