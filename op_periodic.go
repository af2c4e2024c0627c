package asynclife

import (
	"context"
	"sync"
	"time"
)

// Forever is the Periodic count sentinel meaning "never complete on its
// own"; only cancellation or a child failure ends such an operation.
const Forever = -1

// Periodic returns an AsyncOperation that repeatedly creates and runs a
// fresh child operation from opFactory: initDelay before the first run,
// interDelay between each subsequent run. The parent completes once count
// children have completed successfully (or never, if count is Forever); any
// child Failed or Cancelled propagates immediately as the parent's own
// outcome. A parent cancel cancels the currently running child, or the
// pending inter-run delay, whichever is in flight (spec.md §4.F).
func Periodic(name string, opFactory func() *AsyncOperation, initDelay, interDelay time.Duration, count int) *AsyncOperation {
	return PeriodicWithOptions(name, opFactory, initDelay, interDelay, count, AsyncOperationOptions{})
}

// PeriodicWithOptions is Periodic with explicit options.
func PeriodicWithOptions(name string, opFactory func() *AsyncOperation, initDelay, interDelay time.Duration,
	count int, opts AsyncOperationOptions) *AsyncOperation {
	sched := schedulerFromOptions(opts)

	var parent *AsyncOperation
	var mu sync.Mutex
	cancelled := false
	successes := 0
	var pendingTimer Cancellable
	var currentChild *AsyncOperation

	var scheduleNext func(ctx context.Context, delay time.Duration)
	scheduleNext = func(ctx context.Context, delay time.Duration) {
		mu.Lock()
		if cancelled {
			mu.Unlock()
			return
		}
		pendingTimer = sched.Schedule(delay, func() {
			mu.Lock()
			if cancelled {
				mu.Unlock()
				return
			}
			child := opFactory()
			currentChild = child
			mu.Unlock()

			child.AddStateChangeListener(EventSinkFunc(func(ev Event) {
				to, ok := ev.Get("to")
				if !ok || !to.(State).IsTerminal() {
					return
				}
				state := to.(State)
				switch state {
				case StateFailed:
					causeVal, _ := ev.Get("cause")
					causeErr, _ := causeVal.(error)
					parent.NotifyFailedCtx(ctx, causeErr)
				case StateCancelled:
					parent.NotifyCancelledCtx(ctx)
				case StateCompleted:
					mu.Lock()
					successes++
					done := count != Forever && successes >= count
					mu.Unlock()
					if done {
						parent.NotifyCompletedCtx(ctx, nil)
						return
					}
					scheduleNext(ctx, interDelay)
				}
			}))
			_ = child.StartCtx(ctx)
		})
		mu.Unlock()
	}

	parent = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			parent.NotifyStartedCtx(ctx)
			if count == 0 {
				parent.NotifyCompletedCtx(ctx, nil)
				return nil
			}
			scheduleNext(ctx, initDelay)
			return nil
		},
		Stop: func(ctx context.Context) error {
			mu.Lock()
			cancelled = true
			if pendingTimer != nil {
				pendingTimer.Cancel()
			}
			child := currentChild
			mu.Unlock()
			if child != nil {
				child.CancelCtx(ctx)
				child.WaitForFinished()
			} else {
				parent.NotifyCancelledCtx(ctx)
			}
			return nil
		},
	}, opts, "AOP.PERIODIC")
	return parent
}
