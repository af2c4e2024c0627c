package asynclife

import (
	"context"
	"sync"
	"time"
)

// TimedOperation wraps the AsyncOperation Timed returns with the extra
// IsTimedOut query spec.md's scenario 6 names.
type TimedOperation struct {
	*AsyncOperation
	mu       sync.Mutex
	timedOut bool
}

// IsTimedOut reports whether the timeout fired before op finished on its
// own.
func (t *TimedOperation) IsTimedOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timedOut
}

// Timed returns an AsyncOperation that races op against a timeout. If op
// finishes first its outcome propagates unchanged. If the timeout fires
// first, op is cancelled; if onTimeout is non-nil, the operation it
// produces is started and its outcome is adopted, otherwise the parent
// completes with a nil result. Either way IsTimedOut becomes true. A parent
// cancel issued while the onTimeout op is running cancels that op instead.
func Timed(name string, op *AsyncOperation, timeout time.Duration, onTimeout func() *AsyncOperation) *TimedOperation {
	return TimedWithOptions(name, op, timeout, onTimeout, AsyncOperationOptions{})
}

// TimedWithOptions is Timed with explicit options.
func TimedWithOptions(name string, op *AsyncOperation, timeout time.Duration, onTimeout func() *AsyncOperation,
	opts AsyncOperationOptions) *TimedOperation {
	sched := schedulerFromOptions(opts)

	result := &TimedOperation{}
	var mu sync.Mutex
	settled := false
	var timeoutTimer Cancellable
	var activeChild *AsyncOperation

	var parent *AsyncOperation
	parent = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			parent.NotifyStartedCtx(ctx)

			mu.Lock()
			activeChild = op
			mu.Unlock()

			op.AddStateChangeListener(EventSinkFunc(func(ev Event) {
				to, ok := ev.Get("to")
				if !ok || !to.(State).IsTerminal() {
					return
				}
				mu.Lock()
				if settled {
					mu.Unlock()
					return
				}
				settled = true
				if timeoutTimer != nil {
					timeoutTimer.Cancel()
				}
				mu.Unlock()
				mirrorTerminal(ev, parent)
			}))

			timeoutTimer = sched.Schedule(timeout, func() {
				mu.Lock()
				if settled {
					mu.Unlock()
					return
				}
				settled = true
				result.mu.Lock()
				result.timedOut = true
				result.mu.Unlock()
				mu.Unlock()

				op.CancelCtx(ctx)
				op.WaitForFinished()

				if onTimeout == nil {
					parent.NotifyCompletedCtx(ctx, nil)
					return
				}
				handler := onTimeout()
				mu.Lock()
				activeChild = handler
				mu.Unlock()
				handler.AddStateChangeListener(EventSinkFunc(func(ev Event) {
					to, ok := ev.Get("to")
					if !ok || !to.(State).IsTerminal() {
						return
					}
					mirrorTerminal(ev, parent)
				}))
				_ = handler.StartCtx(ctx)
			})
			_ = op.StartCtx(ctx)
			return nil
		},
		Stop: func(ctx context.Context) error {
			mu.Lock()
			child := activeChild
			if timeoutTimer != nil {
				timeoutTimer.Cancel()
			}
			mu.Unlock()
			if child != nil {
				child.CancelCtx(ctx)
				child.WaitForFinished()
			}
			return nil
		},
	}, opts, "AOP.TIMED")
	result.AsyncOperation = parent
	return result
}
