package asynclife

import (
	"context"
	"sync"
	"time"
)

// Delayed returns an AsyncOperation that waits delay before starting op,
// per spec.md §4.F. Cancelling the parent before the scheduled tick simply
// cancels the pending timer and never starts op; cancelling it after the
// tick delegates to op.Cancel and mirrors op's actual outcome.
func Delayed(name string, delay time.Duration, op *AsyncOperation) *AsyncOperation {
	return DelayedWithOptions(name, delay, op, AsyncOperationOptions{})
}

// DelayedWithOptions is Delayed with explicit options.
func DelayedWithOptions(name string, delay time.Duration, op *AsyncOperation, opts AsyncOperationOptions) *AsyncOperation {
	sched := schedulerFromOptions(opts)

	var parent *AsyncOperation
	var mu sync.Mutex
	var timer Cancellable
	started := false

	parent = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			parent.NotifyStartedCtx(ctx)
			mu.Lock()
			timer = sched.Schedule(delay, func() {
				mu.Lock()
				started = true
				mu.Unlock()
				op.AddStateChangeListener(EventSinkFunc(func(ev Event) {
					mirrorTerminal(ev, parent)
				}))
				_ = op.StartCtx(ctx)
			})
			mu.Unlock()
			return nil
		},
		Stop: func(ctx context.Context) error {
			mu.Lock()
			alreadyStarted := started
			if !alreadyStarted && timer != nil {
				timer.Cancel()
			}
			mu.Unlock()
			if alreadyStarted {
				op.CancelCtx(ctx)
				op.WaitForFinished()
			}
			return nil
		},
	}, opts, "AOP.DELAYED")
	return parent
}

// mirrorTerminal reflects a child AsyncOperation's terminal event onto
// parent. It is the shared propagation helper of Delayed, Timed,
// Backgrounded and OnFault (Sequential, Concurrent and Periodic call the
// parent's Notify* methods themselves): a child's Completed/Failed/Cancelled
// outcome is mirrored by calling the corresponding Notify* method on the
// parent directly, so a
// combinator's own Cancel handling only needs to fall back to a generic
// Cancelled transition when nothing else has already settled the parent.
func mirrorTerminal(ev Event, parent *AsyncOperation) {
	to, ok := ev.Get("to")
	if !ok {
		return
	}
	state := to.(State)
	if !state.IsTerminal() {
		return
	}
	causeVal, _ := ev.Get("cause")
	var causeErr error
	if causeVal != nil {
		causeErr, _ = causeVal.(error)
	}
	switch state {
	case StateCompleted:
		opVal, _ := ev.Get("target")
		var result interface{}
		if o, ok := opVal.(*AsyncOperation); ok {
			result, _ = o.Result()
		}
		parent.NotifyCompletedCtx(context.Background(), result)
	case StateFailed:
		parent.NotifyFailedCtx(context.Background(), causeErr)
	case StateCancelled:
		parent.NotifyCancelledCtx(context.Background())
	}
}
