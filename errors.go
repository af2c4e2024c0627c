package asynclife

import (
	"errors"
	"fmt"
)

// Sentinel causes. Every error the state machines raise themselves wraps
// one of these, so callers can test with errors.Is regardless of how many
// layers of fmt.Errorf("%w") sit on top. Errors returned by hooks and
// bodies are passed through unchanged and wrap none of them.
var (
	errInvalidState       = errors.New("asynclife: invalid state")
	errInterrupted        = errors.New("asynclife: interrupted")
	errSchedulerRejected  = errors.New("asynclife: scheduler rejected operation")
	errReconciliationWait = errors.New("asynclife: started notification did not arrive in time")

	// ErrOperationStopped is the sentinel outcome a threaded/closure
	// AsyncOperation body returns to request cooperative cancellation. It
	// carries no diagnostic information and is never surfaced to listeners
	// as a failure cause; notifyOperationCancelled is called instead.
	ErrOperationStopped = errors.New("asynclife: operation stopped")
)

// IsInvalidState returns true if the cause of the error is an invalid
// initial state, such as starting an already-running Service or reading
// the result of an AsyncOperation that has not completed.
func IsInvalidState(err error) bool {
	return errors.Is(err, errInvalidState)
}

// IsInterrupted returns true if the cause of the error is an interruption.
// None of the state machines in this package return an error with this
// cause.
func IsInterrupted(err error) bool {
	return errors.Is(err, errInterrupted)
}

// IsSchedulerRejected returns true if an operation failed because the
// scheduler it was submitted to refused to run it.
func IsSchedulerRejected(err error) bool {
	return errors.Is(err, errSchedulerRejected)
}

// IsOperationStopped returns true if err is (or wraps) the cooperative
// cancellation sentinel returned by a threaded/closure operation body.
func IsOperationStopped(err error) bool {
	return errors.Is(err, ErrOperationStopped)
}

// IsReconciliationTimeout returns true if the cause is the bounded wait for
// a tardy "started" notification timing out (see asyncop.go, reconcileStart).
func IsReconciliationTimeout(err error) bool {
	return errors.Is(err, errReconciliationWait)
}

func invalidStateErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, errInvalidState)...)
}

func interruptedErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, errInterrupted)...)
}

func schedulerRejectedErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, errSchedulerRejected)...)
}

// cause is the seam where a hook or body's returned error becomes the
// FailureCause callers observe. It intentionally does not unwrap: a body's
// own fmt.Errorf("doing X: %w", err) wrapping is part of the failure's
// meaning, not a mechanical artifact this package introduced, so it stays
// attached verbatim. Callers that only care about a specific underlying
// error use errors.Is/errors.As against the stored cause, which already
// walks any %w chain the body built.
func cause(err error) error {
	return err
}
