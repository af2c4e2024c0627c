package asynclife

import "context"

// CancelToken is handed to a threaded AsyncOperation's body so it can poll
// for a requested cancellation without the body needing to understand the
// operation's internal state machine, per spec.md's closure-body operation
// design.
type CancelToken interface {
	// IsCancelled reports whether Cancel has been called on the operation.
	IsCancelled() bool
}

type cancelFlag struct {
	op *AsyncOperation
}

func (c cancelFlag) IsCancelled() bool {
	c.op.mu.Lock()
	defer c.op.mu.Unlock()
	return c.op.internal == opCancelling || c.op.internal == opCancelled
}

// NewThreadedOperation creates an AsyncOperation whose body runs on its own
// goroutine. body receives a CancelToken instead of being killed outright:
// returning ErrOperationStopped (or a wrapped instance of it) is read back
// as a confirmed cancellation rather than a failure, matching Design Notes
// §9's "distinguished outcome value replaces exceptions for control flow".
// Any other non-nil error fails the operation; a nil error (or a returned
// result) completes it.
func NewThreadedOperation(name string, body func(ctx context.Context, tok CancelToken) (interface{}, error)) *AsyncOperation {
	return NewThreadedOperationWithOptions(name, body, AsyncOperationOptions{})
}

// NewThreadedOperationWithOptions is NewThreadedOperation with explicit
// options.
func NewThreadedOperationWithOptions(name string, body func(ctx context.Context, tok CancelToken) (interface{}, error),
	opts AsyncOperationOptions) *AsyncOperation {
	var op *AsyncOperation
	op = newAsyncOperationNamed(OperationHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			op.NotifyStartedCtx(ctx)
			go func() {
				tok := cancelFlag{op: op}
				result, err := body(ctx, tok)
				switch {
				case err == nil:
					op.NotifyCompletedCtx(ctx, result)
				case IsOperationStopped(err):
					op.NotifyCancelledCtx(ctx)
				default:
					op.NotifyFailedCtx(ctx, err)
				}
			}()
			return nil
		},
		// Stop has nothing to do: Cancel moves the operation to Cancelled
		// as soon as it is called while Running, and the body observes that
		// through the CancelToken. Whatever the body returns afterwards is
		// ignored, since the operation is already terminal.
	}, opts, "ASYNC.RUNNABLE")
	return op
}
