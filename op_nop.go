package asynclife

import "context"

// Nop returns an AsyncOperation that completes immediately with a nil
// result as soon as it is started. Cancelling it before it starts still
// produces Cancelled, per the base AsyncOperation contract; Nop itself adds
// no behavior beyond "succeed instantly" (spec.md §4.F).
func Nop(name string) *AsyncOperation {
	var op *AsyncOperation
	op = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			op.NotifyStartedCtx(ctx)
			op.NotifyCompletedCtx(ctx, nil)
			return nil
		},
	}, AsyncOperationOptions{}, "AOP.NOP")
	return op
}
