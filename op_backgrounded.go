package asynclife

import "context"

// Backgrounded returns an AsyncOperation that starts both fg and bg and
// mirrors fg's outcome as its own. Whenever fg terminates, bg is cancelled
// regardless of whether it has already finished (spec.md §4.F).
func Backgrounded(name string, fg, bg *AsyncOperation) *AsyncOperation {
	return BackgroundedWithOptions(name, fg, bg, AsyncOperationOptions{})
}

// BackgroundedWithOptions is Backgrounded with explicit options.
func BackgroundedWithOptions(name string, fg, bg *AsyncOperation, opts AsyncOperationOptions) *AsyncOperation {
	var parent *AsyncOperation
	parent = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			parent.NotifyStartedCtx(ctx)
			fg.AddStateChangeListener(EventSinkFunc(func(ev Event) {
				to, ok := ev.Get("to")
				if !ok || !to.(State).IsTerminal() {
					return
				}
				bg.CancelCtx(ctx)
				mirrorTerminal(ev, parent)
			}))
			_ = bg.StartCtx(ctx)
			_ = fg.StartCtx(ctx)
			return nil
		},
		Stop: func(ctx context.Context) error {
			fg.CancelCtx(ctx)
			fg.WaitForFinished()
			bg.CancelCtx(ctx)
			return nil
		},
	}, opts, "AOP.BACKGROUND")
	return parent
}
