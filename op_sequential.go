package asynclife

import (
	"context"
	"sync"
)

// Sequential returns an AsyncOperation that runs ops one after another,
// waiting for each to finish before starting the next. Its result is the
// last op's result. Any child failure or cancellation short-circuits the
// rest and is reported as the parent's own outcome. A cancel request
// observed right after a child completes (but before the next one starts)
// transitions the parent straight to Cancelled instead of starting the
// next child, per spec.md §4.F.
func Sequential(name string, ops ...*AsyncOperation) *AsyncOperation {
	return SequentialWithOptions(name, AsyncOperationOptions{}, ops...)
}

// SequentialWithOptions is Sequential with explicit options.
func SequentialWithOptions(name string, opts AsyncOperationOptions, ops ...*AsyncOperation) *AsyncOperation {
	var parent *AsyncOperation
	var mu sync.Mutex
	cancelRequested := false
	var current *AsyncOperation

	var runFrom func(ctx context.Context, idx int)
	runFrom = func(ctx context.Context, idx int) {
		mu.Lock()
		current = ops[idx]
		mu.Unlock()

		ops[idx].AddStateChangeListener(EventSinkFunc(func(ev Event) {
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
				requested := cancelRequested
				mu.Unlock()
				if requested {
					parent.NotifyCancelledCtx(ctx)
					return
				}
				if idx == len(ops)-1 {
					result, _ := ops[idx].Result()
					parent.NotifyCompletedCtx(ctx, result)
					return
				}
				runFrom(ctx, idx+1)
			}
		}))
		_ = ops[idx].StartCtx(ctx)
	}

	parent = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			parent.NotifyStartedCtx(ctx)
			if len(ops) == 0 {
				parent.NotifyCompletedCtx(ctx, nil)
				return nil
			}
			runFrom(ctx, 0)
			return nil
		},
		Stop: func(ctx context.Context) error {
			mu.Lock()
			cancelRequested = true
			child := current
			mu.Unlock()
			if child != nil {
				child.CancelCtx(ctx)
				child.WaitForFinished()
			}
			return nil
		},
	}, opts, "AOP.SEQ")
	return parent
}
