package asynclife

import (
	"context"
	"sync"
	"time"
)

// reconciliationWindow bounds how long notifyOperationCompleted (and its
// Failed sibling) will wait for a tardy "started" notification
// before forcing a synthetic Running transition. spec.md §5/§6: this is a
// fixed constant of the design and intentionally has no public setter.
const reconciliationWindow = 3 * time.Second

// OperationHooks are the closures an AsyncOperation invokes to do its work.
// Neither field is required. The hooks never advance the state themselves:
// every combinator in this package uses its Start hook only to launch its
// children and then drives its own state machine through direct calls to
// NotifyStarted/NotifyCompleted/NotifyCancelled/NotifyFailed, as spec.md's
// design notes describe combinators "driving their own state machine" from
// child events.
type OperationHooks struct {
	// Name is a user-friendly identifier used in logs and events.
	Name string
	// Start is the "startOperation" hook: invoked once by permitToStart,
	// outside the state lock, after the operation is allowed to begin. It
	// is expected to launch any async work and return quickly; a returned
	// error is translated into a failure notification. The hook itself
	// does not move the operation to Running; NotifyStarted/NotifyCompleted
	// must still be called, from the hook or from whatever goroutine is
	// doing the actual work.
	Start ContextHook
	// Stop is the "stopOperation" hook: invoked when Cancel is called
	// while the operation is Running, outside the state lock. It is
	// expected to request the work stop. If a Notify* call has settled the
	// operation by the time the hook returns, that outcome stands;
	// otherwise Cancel moves the operation to Cancelled itself.
	Stop ContextHook
}

// AsyncOperationOptions configures the ambient collaborators of an
// AsyncOperation.
type AsyncOperationOptions struct {
	// Executor dispatches listener notifications. Defaults to
	// DefaultExecutor().
	Executor Executor
	// Logger receives lifecycle log messages, named "AOP". Defaults to
	// NoopLogger().
	Logger Logger
	// Scheduler, if set, is submitted to instead of calling permitToStart
	// directly from Start.
	Scheduler OperationScheduler
}

type opListenerEntry struct {
	original interface{}
	callback AsyncOperationListener
	sink     EventSink
	ch       chan<- Event
}

type queuedOpEvent struct {
	event     AsyncOperationStateChangeEvent
	listeners []opListenerEntry
}

// AsyncOperation is a one-shot, cancellable computation with states
// {NotStarted, Running, Completed, Failed, Cancelled}, per spec.md §4.C.
// It tolerates a completion notification arriving before its corresponding
// start notification, and composes: combinators build larger operations by
// creating a bare AsyncOperation and driving it from child state events.
type AsyncOperation struct {
	hooks     OperationHooks
	scheduler OperationScheduler
	executor  Executor
	logger    Logger

	mu           sync.Mutex
	cond         *sync.Cond
	internal     opInternalState
	result       interface{}
	failureCause error
	everRan      bool

	startResolved   bool
	startResolvedCh chan struct{}
	finished        bool
	finishedCh      chan struct{}

	listeners         []opListenerEntry
	eventQueue        []queuedOpEvent
	dispatcherStarted bool
}

// NewAsyncOperation creates an AsyncOperation around the given hooks with
// default options.
func NewAsyncOperation(hooks OperationHooks) *AsyncOperation {
	return NewAsyncOperationWithOptions(hooks, AsyncOperationOptions{})
}

// NewAsyncOperationWithOptions creates an AsyncOperation with explicit
// options.
func NewAsyncOperationWithOptions(hooks OperationHooks, opts AsyncOperationOptions) *AsyncOperation {
	return newAsyncOperationNamed(hooks, opts, "AOP")
}

// newAsyncOperationNamed is NewAsyncOperationWithOptions with an explicit
// logger component name, used by the combinators in op_*.go to scope their
// logger to the name spec.md §6 assigns them (e.g. "AOP.SEQ") instead of the
// generic "AOP" a bare AsyncOperation gets.
func newAsyncOperationNamed(hooks OperationHooks, opts AsyncOperationOptions, loggerName string) *AsyncOperation {
	if opts.Executor == nil {
		opts.Executor = DefaultExecutor()
	}
	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	op := &AsyncOperation{
		hooks:           hooks,
		scheduler:       opts.Scheduler,
		executor:        opts.Executor,
		logger:          logger.Named(loggerName),
		internal:        opNotStarted,
		startResolvedCh: make(chan struct{}),
		finishedCh:      make(chan struct{}),
	}
	op.cond = sync.NewCond(&op.mu)
	return op
}

// Name returns the operation's user-friendly name.
func (op *AsyncOperation) Name() string { return op.hooks.Name }

// State returns the current public state.
func (op *AsyncOperation) State() State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.internal.public()
}

// Result returns the operation's result. It fails with IllegalState unless
// the operation is Completed (spec.md J2).
func (op *AsyncOperation) Result() (interface{}, error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.internal != opCompleted {
		return nil, invalidStateErrorf("operation %q: result not available in state %s", op.hooks.Name, op.internal.public())
	}
	return op.result, nil
}

// FailureCause returns the operation's failure cause. It fails with
// IllegalState unless the operation is Failed (spec.md J2).
func (op *AsyncOperation) FailureCause() (error, error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.internal != opFailed {
		return nil, invalidStateErrorf("operation %q: failure cause not available in state %s", op.hooks.Name, op.internal.public())
	}
	return op.failureCause, nil
}

// Start transitions the operation out of NotStarted, submitting it to the
// configured scheduler (if any) or permitting it to start directly.
// Starting an already-Cancelled operation is a no-op, per spec.md §4.C.
func (op *AsyncOperation) Start() error { return op.StartCtx(context.Background()) }

// StartCtx is Start with an explicit context.
func (op *AsyncOperation) StartCtx(ctx context.Context) error {
	op.mu.Lock()
	if op.internal == opCancelled {
		op.mu.Unlock()
		return nil
	}
	if op.internal != opNotStarted {
		st := op.internal
		op.mu.Unlock()
		return invalidStateErrorf("operation %q: cannot start from %s", op.hooks.Name, st.public())
	}
	op.internal = opScheduling
	op.mu.Unlock()

	if op.scheduler != nil {
		err := op.scheduler.Submit(ctx, op)
		if err != nil {
			op.mu.Lock()
			if op.internal == opScheduling {
				op.internal = opFailed
				op.failureCause = schedulerRejectedErrorf("operation %q", op.hooks.Name)
				op.resolveStartLocked()
				op.finishLocked(ctx, StateFailed, op.failureCause)
			}
			op.mu.Unlock()
			return err
		}
		return nil
	}

	op.permitToStart(ctx)
	return nil
}

// permitToStart is the scheduler handshake: it authorizes the operation to
// move from Scheduling into Starting and invokes the start hook. It is
// unexported because only Start (no scheduler) and OperationScheduler
// implementations (same package) call it. It returns false if the
// operation was cancelled while still Scheduling.
func (op *AsyncOperation) permitToStart(ctx context.Context) bool {
	op.mu.Lock()
	if op.internal != opScheduling {
		op.mu.Unlock()
		return false
	}
	op.internal = opStarting
	op.mu.Unlock()
	op.logger.Debug("starting", "name", op.hooks.Name)

	var err error
	if op.hooks.Start != nil {
		err = op.hooks.Start(ctx)
	}
	if err != nil {
		op.executor.Execute(func() { op.NotifyFailedCtx(ctx, err) })
	}
	return true
}

// Cancel requests the operation stop. It is always safe to call, any
// number of times, from any state, and never blocks longer than the
// Stop hook takes to run (spec.md §5, "Cancellation semantics").
func (op *AsyncOperation) Cancel() { op.CancelCtx(context.Background()) }

// CancelCtx is Cancel with an explicit context.
func (op *AsyncOperation) CancelCtx(ctx context.Context) {
	op.mu.Lock()
	switch op.internal {
	case opCompleted, opFailed, opCancelled:
		op.mu.Unlock()
		return
	case opCancelling:
		op.mu.Unlock()
		return
	case opNotStarted, opScheduling, opStarting:
		op.internal = opCancelled
		op.resolveStartLocked()
		op.finishLocked(ctx, StateCancelled, nil)
		op.mu.Unlock()
		op.logger.Info("operation cancelled before start", "name", op.hooks.Name)
		return
	default: // opRunning
		op.internal = opCancelling
		op.mu.Unlock()
	}

	if op.hooks.Stop != nil {
		if err := op.hooks.Stop(ctx); err != nil {
			op.logger.Warn("stop hook returned error during cancel", "name", op.hooks.Name, "error", err)
		}
	}

	op.mu.Lock()
	if !op.internal.terminal() {
		op.internal = opCancelled
		op.finishLocked(ctx, StateCancelled, nil)
	}
	op.mu.Unlock()
	op.logger.Info("operation cancelled", "name", op.hooks.Name)
}

// NotifyStarted is called by the operation's body once its start prelude
// has completed. A call arriving after the operation has already reached a
// terminal state is ignored (spec.md J4).
func (op *AsyncOperation) NotifyStarted() { op.NotifyStartedCtx(context.Background()) }

// NotifyStartedCtx is NotifyStarted with an explicit context.
func (op *AsyncOperation) NotifyStartedCtx(ctx context.Context) {
	op.mu.Lock()
	if op.internal != opStarting {
		op.mu.Unlock()
		return
	}
	op.internal = opRunning
	op.everRan = true
	op.enqueueEventLocked(ctx, StateRunning, nil)
	op.resolveStartLocked()
	op.mu.Unlock()
	op.logger.Debug("operation running", "name", op.hooks.Name)
}

// NotifyCompleted is called by the operation's body with its result. If it
// arrives before the corresponding NotifyStarted (out-of-order), it waits
// up to reconciliationWindow for the start notification, then forces a
// synthetic Running transition so observers still see {Running, Completed}
// in order (spec.md §4.C, "out-of-order tolerance").
func (op *AsyncOperation) NotifyCompleted(result interface{}) {
	op.NotifyCompletedCtx(context.Background(), result)
}

// NotifyCompletedCtx is NotifyCompleted with an explicit context.
func (op *AsyncOperation) NotifyCompletedCtx(ctx context.Context, result interface{}) {
	if !op.reconcileStart(ctx) {
		return
	}
	op.mu.Lock()
	if op.internal != opRunning && op.internal != opCancelling {
		op.mu.Unlock()
		return
	}
	op.internal = opCompleted
	op.result = result
	op.finishLocked(ctx, StateCompleted, nil)
	op.mu.Unlock()
	op.logger.Info("operation completed", "name", op.hooks.Name)
}

// NotifyCancelled is called by the operation's body to confirm a
// cancellation it observed cooperatively.
func (op *AsyncOperation) NotifyCancelled() { op.NotifyCancelledCtx(context.Background()) }

// NotifyCancelledCtx is NotifyCancelled with an explicit context.
func (op *AsyncOperation) NotifyCancelledCtx(ctx context.Context) {
	op.mu.Lock()
	if op.internal.terminal() {
		op.mu.Unlock()
		return
	}
	op.internal = opCancelled
	op.resolveStartLocked()
	op.finishLocked(ctx, StateCancelled, nil)
	op.mu.Unlock()
	op.logger.Info("operation cancelled by body", "name", op.hooks.Name)
}

// NotifyFailed is called by the operation's body, or by permitToStart, when
// the work raised an error. Out-of-order with respect to NotifyStarted is
// tolerated the same way NotifyCompleted is.
func (op *AsyncOperation) NotifyFailed(failureCause error) {
	op.NotifyFailedCtx(context.Background(), failureCause)
}

// NotifyFailedCtx is NotifyFailed with an explicit context.
func (op *AsyncOperation) NotifyFailedCtx(ctx context.Context, failureCause error) {
	if !op.reconcileStart(ctx) {
		return
	}
	op.mu.Lock()
	if op.internal != opRunning && op.internal != opCancelling {
		op.mu.Unlock()
		return
	}
	root := cause(failureCause)
	op.internal = opFailed
	op.failureCause = root
	op.finishLocked(ctx, StateFailed, root)
	op.mu.Unlock()
	op.logger.Error(failureCause, "operation failed", "name", op.hooks.Name)
}

// reconcileStart absorbs an out-of-order completion/failure notification
// that arrives while the operation is still Starting. It returns false if
// the caller should stop processing because the operation already reached
// a terminal state while waiting (or was already terminal to begin with).
func (op *AsyncOperation) reconcileStart(ctx context.Context) bool {
	op.mu.Lock()
	if op.internal.terminal() {
		op.mu.Unlock()
		return false
	}
	if op.internal != opStarting {
		op.mu.Unlock()
		return true
	}
	ch := op.startResolvedCh
	op.mu.Unlock()

	select {
	case <-ch:
	case <-time.After(reconciliationWindow):
		op.mu.Lock()
		if op.internal == opStarting {
			op.internal = opRunning
			op.everRan = true
			op.enqueueEventLocked(ctx, StateRunning, errReconciliationWait)
			op.resolveStartLocked()
			op.logger.Warn("started notification did not arrive in time, forcing running",
				"name", op.hooks.Name)
		}
		op.mu.Unlock()
	}

	op.mu.Lock()
	terminal := op.internal.terminal()
	op.mu.Unlock()
	return !terminal
}

// WaitForStarted blocks until the operation has been observed Running (via
// NotifyStarted or forced reconciliation) or has reached a terminal state
// without ever running.
func (op *AsyncOperation) WaitForStarted() {
	op.mu.Lock()
	ch := op.startResolvedCh
	op.mu.Unlock()
	<-ch
}

// WaitForStartedTimeout is WaitForStarted bounded by timeout; it returns
// false if the timeout elapses first.
func (op *AsyncOperation) WaitForStartedTimeout(timeout time.Duration) bool {
	op.mu.Lock()
	ch := op.startResolvedCh
	op.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// WaitForFinished blocks until the operation reaches a terminal state.
func (op *AsyncOperation) WaitForFinished() {
	op.mu.Lock()
	ch := op.finishedCh
	op.mu.Unlock()
	<-ch
}

// WaitForFinishedTimeout is WaitForFinished bounded by timeout; it returns
// false if the timeout elapses first.
func (op *AsyncOperation) WaitForFinishedTimeout(timeout time.Duration) bool {
	op.mu.Lock()
	ch := op.finishedCh
	op.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (op *AsyncOperation) resolveStartLocked() {
	if !op.startResolved {
		op.startResolved = true
		close(op.startResolvedCh)
	}
}

// finishLocked records the terminal transition, enqueues its event and
// closes finishedCh. Must be called with mu held, exactly once per
// operation (guarded by op.finished).
func (op *AsyncOperation) finishLocked(ctx context.Context, to State, causeErr error) {
	op.resolveStartLocked()
	if op.finished {
		return
	}
	op.finished = true
	op.enqueueEventLocked(ctx, to, causeErr)
	close(op.finishedCh)
}

// AddStateChangeListener registers a listener for this operation's state
// transitions. l must be an AsyncOperationListener, an EventSink, or a
// chan<- Event. If the operation has already reached Running, a synthetic
// Running event is queued for the new listener immediately; if it has
// reached a terminal state, the terminal event is queued right behind it
// (spec.md J3/P4).
func (op *AsyncOperation) AddStateChangeListener(l interface{}) bool {
	entry, ok := normalizeOpListener(l)
	if !ok {
		return false
	}
	op.mu.Lock()
	op.listeners = append(op.listeners, entry)
	op.ensureDispatcherLocked()

	if op.everRan {
		op.eventQueue = append(op.eventQueue, queuedOpEvent{
			event:     AsyncOperationStateChangeEvent{Operation: op, To: StateRunning, At: time.Now(), tag: newTag()},
			listeners: []opListenerEntry{entry},
		})
	}
	if op.finished {
		op.eventQueue = append(op.eventQueue, queuedOpEvent{
			event: AsyncOperationStateChangeEvent{
				Operation: op, To: op.internal.public(), Cause: op.failureCause, At: time.Now(), tag: newTag(),
			},
			listeners: []opListenerEntry{entry},
		})
	}
	op.cond.Broadcast()
	op.mu.Unlock()
	return true
}

// RemoveStateChangeListener removes a previously registered listener. See
// Service.RemoveStateChangeListener for the identity-comparison caveat.
func (op *AsyncOperation) RemoveStateChangeListener(l interface{}) {
	op.mu.Lock()
	defer op.mu.Unlock()
	for i, entry := range op.listeners {
		if sameListener(entry.original, l) {
			op.listeners = append(op.listeners[:i], op.listeners[i+1:]...)
			return
		}
	}
}

func normalizeOpListener(l interface{}) (opListenerEntry, bool) {
	switch v := l.(type) {
	case AsyncOperationListener:
		return opListenerEntry{original: l, callback: v}, true
	case EventSink:
		return opListenerEntry{original: l, sink: v}, true
	case chan<- Event:
		return opListenerEntry{original: l, ch: v}, true
	default:
		return opListenerEntry{}, false
	}
}

// enqueueEventLocked builds the event and appends it, with a snapshot of
// the listener list, to the dispatch queue while mu is held - the same
// total-order guarantee Service.enqueueEventLocked provides.
func (op *AsyncOperation) enqueueEventLocked(ctx context.Context, to State, causeErr error) {
	op.logger.Debug("transitioned", "to", to.String())
	if len(op.listeners) == 0 {
		return
	}
	ev := AsyncOperationStateChangeEvent{
		Operation: op,
		To:        to,
		Cause:     causeErr,
		At:        time.Now(),
		tag:       newTag(),
	}
	snapshot := append([]opListenerEntry(nil), op.listeners...)
	op.eventQueue = append(op.eventQueue, queuedOpEvent{event: ev, listeners: snapshot})
	op.cond.Broadcast()
}

func (op *AsyncOperation) ensureDispatcherLocked() {
	if op.dispatcherStarted {
		return
	}
	op.dispatcherStarted = true
	op.executor.Execute(op.dispatchLoop)
}

func (op *AsyncOperation) dispatchLoop() {
	for {
		op.mu.Lock()
		for len(op.eventQueue) == 0 {
			op.cond.Wait()
		}
		item := op.eventQueue[0]
		op.eventQueue = op.eventQueue[1:]
		op.mu.Unlock()

		op.deliver(item)
	}
}

func (op *AsyncOperation) deliver(item queuedOpEvent) {
	for _, l := range item.listeners {
		op.deliverOne(l, item.event)
	}
}

func (op *AsyncOperation) deliverOne(l opListenerEntry, ev AsyncOperationStateChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			op.logger.Warn("operation listener panicked", "panic", r)
		}
	}()
	switch {
	case l.callback != nil:
		if ev.To == StateRunning {
			l.callback.OnAsyncOperationStarted(ev.Operation)
		} else {
			l.callback.OnAsyncOperationFinished(ev.Operation, ev.To)
		}
	case l.sink != nil:
		l.sink.OnEvent(ev)
	case l.ch != nil:
		l.ch <- ev
	}
}
