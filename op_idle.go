package asynclife

import (
	"context"
	"time"
)

// Idle returns an AsyncOperation that runs Running for duration and then
// completes with a nil result, per spec.md §4.F. Cancelling it while idle
// cancels the pending timer instead of waiting it out.
func Idle(name string, duration time.Duration) *AsyncOperation {
	return IdleWithOptions(name, duration, AsyncOperationOptions{})
}

// IdleWithOptions is Idle with explicit options. If opts.Executor does not
// implement ScheduledExecutor, DefaultScheduledExecutor is used for timing
// (opts.Executor, if set, still receives listener dispatch).
func IdleWithOptions(name string, duration time.Duration, opts AsyncOperationOptions) *AsyncOperation {
	sched := schedulerFromOptions(opts)

	var op *AsyncOperation
	var timer Cancellable
	// Idle has no dedicated logger name in the recognized set (spec.md §6);
	// unlike its sibling combinators it logs under the generic "AOP" name.
	op = NewAsyncOperationWithOptions(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			op.NotifyStartedCtx(ctx)
			timer = sched.Schedule(duration, func() {
				op.NotifyCompletedCtx(ctx, nil)
			})
			return nil
		},
		Stop: func(ctx context.Context) error {
			if timer != nil {
				timer.Cancel()
			}
			return nil
		},
	}, opts)
	return op
}

// schedulerFromOptions returns opts.Executor if it already implements
// ScheduledExecutor, or a fresh DefaultScheduledExecutor otherwise. Timed,
// Delayed, Periodic and Idle all need delayed execution regardless of what
// plain Executor the caller configured for listener dispatch.
func schedulerFromOptions(opts AsyncOperationOptions) ScheduledExecutor {
	if sched, ok := opts.Executor.(ScheduledExecutor); ok {
		return sched
	}
	return DefaultScheduledExecutor()
}
