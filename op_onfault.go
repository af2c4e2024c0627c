package asynclife

import (
	"context"
	"sync"
)

// OnFault returns an AsyncOperation that runs op normally: a Completed or
// Cancelled outcome propagates unchanged. If op Fails, handlerFactory is
// invoked to build a recovery operation; the parent then adopts the
// handler's outcome. If the handler itself fails or is cancelled, the
// parent Fails with op's *original* cause rather than the handler's
// (spec.md §4.F).
func OnFault(name string, op *AsyncOperation, handlerFactory func(cause error) *AsyncOperation) *AsyncOperation {
	return OnFaultWithOptions(name, op, handlerFactory, AsyncOperationOptions{})
}

// OnFaultWithOptions is OnFault with explicit options.
func OnFaultWithOptions(name string, op *AsyncOperation, handlerFactory func(cause error) *AsyncOperation,
	opts AsyncOperationOptions) *AsyncOperation {
	var parent *AsyncOperation
	var mu sync.Mutex
	var activeChild *AsyncOperation

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
				state := to.(State)
				if state != StateFailed {
					mirrorTerminal(ev, parent)
					return
				}
				causeVal, _ := ev.Get("cause")
				originalCause, _ := causeVal.(error)

				handler := handlerFactory(originalCause)
				mu.Lock()
				activeChild = handler
				mu.Unlock()
				handler.AddStateChangeListener(EventSinkFunc(func(hev Event) {
					hto, ok := hev.Get("to")
					if !ok || !hto.(State).IsTerminal() {
						return
					}
					if hto.(State) == StateCompleted {
						mirrorTerminal(hev, parent)
						return
					}
					parent.NotifyFailedCtx(ctx, originalCause)
				}))
				_ = handler.StartCtx(ctx)
			}))
			_ = op.StartCtx(ctx)
			return nil
		},
		Stop: func(ctx context.Context) error {
			mu.Lock()
			child := activeChild
			mu.Unlock()
			if child != nil {
				child.CancelCtx(ctx)
				child.WaitForFinished()
			}
			return nil
		},
	}, opts, "AOP.ON_FAULT")
	return parent
}
