package asynclife

import (
	"context"
	"sync"
)

// Concurrent returns an AsyncOperation that starts every op in ops in
// parallel and completes, with a nil result, as soon as k of them reach a
// terminal state (any terminal state counts toward the quorum, per the
// chosen resolution of spec.md's Open Question on K=N quorum-vs-abort
// semantics). Once the quorum is reached the remaining ops are cancelled.
// A cancel request on the parent cancels every child and, once they have
// all finished, the parent reports Cancelled. k<=0 or k>len(ops) defaults
// to len(ops) (wait for all).
func Concurrent(name string, k int, ops ...*AsyncOperation) *AsyncOperation {
	return ConcurrentWithOptions(name, k, AsyncOperationOptions{}, ops...)
}

// ConcurrentWithOptions is Concurrent with explicit options.
func ConcurrentWithOptions(name string, k int, opts AsyncOperationOptions, ops ...*AsyncOperation) *AsyncOperation {
	if k <= 0 || k > len(ops) {
		k = len(ops)
	}

	var parent *AsyncOperation
	var mu sync.Mutex
	finishedCount := 0
	quorumSettled := false
	cancelledByParent := false

	onChildFinished := func(ctx context.Context) {
		mu.Lock()
		finishedCount++
		count := finishedCount
		byParent := cancelledByParent
		settled := quorumSettled
		if !byParent && !settled && count >= k {
			quorumSettled = true
			settled = true
		}
		reachedAll := count >= len(ops)
		mu.Unlock()

		if byParent {
			if reachedAll {
				parent.NotifyCancelledCtx(ctx)
			}
			return
		}
		if settled && count >= k {
			// Cancel stragglers; their own finish callbacks will just add to
			// finishedCount with no further effect once settled is true.
			for _, child := range ops {
				child.CancelCtx(ctx)
			}
			if count == k {
				parent.NotifyCompletedCtx(ctx, nil)
			}
		}
	}

	parent = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			parent.NotifyStartedCtx(ctx)
			if len(ops) == 0 {
				parent.NotifyCompletedCtx(ctx, nil)
				return nil
			}
			for _, child := range ops {
				child.AddStateChangeListener(EventSinkFunc(func(ev Event) {
					to, ok := ev.Get("to")
					if !ok || !to.(State).IsTerminal() {
						return
					}
					onChildFinished(ctx)
				}))
				_ = child.StartCtx(ctx)
			}
			return nil
		},
		Stop: func(ctx context.Context) error {
			mu.Lock()
			if cancelledByParent {
				mu.Unlock()
				return nil
			}
			cancelledByParent = true
			mu.Unlock()
			for _, child := range ops {
				child.CancelCtx(ctx)
			}
			for _, child := range ops {
				child.WaitForFinished()
			}
			return nil
		},
	}, opts, "AOP.CONCUR")
	return parent
}
