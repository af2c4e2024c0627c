package asynclife

import (
	"context"
	"sync"
	"time"
)

// serviceInternalState is the fine-grained internal state of a Service.
// Several internal states map to the same public State (spec.md §3.1).
type serviceInternalState uint8

const (
	svcStopped serviceInternalState = iota
	svcStarting
	svcRunning
	svcStopping
	svcFailing
	svcFailed
)

func (s serviceInternalState) public() State {
	switch s {
	case svcStopped, svcStarting:
		return StateStopped
	case svcRunning, svcStopping:
		return StateRunning
	default:
		return StateFailed
	}
}

func (s serviceInternalState) transient() bool {
	return s == svcStarting || s == svcStopping || s == svcFailing
}

// ServiceHooks are the closures a Service invokes to actually do its work.
// This is the "template struct" the design notes call for: subtype-style
// extensibility by composing closures rather than by inheritance.
type ServiceHooks struct {
	// Name is a user-friendly identifier used in logs and events.
	Name string
	// Start performs the service's startup work. It runs without the state
	// lock held. Returning nil transitions the service to Running;
	// returning an error transitions it to Failed and the error is
	// surfaced to the Start caller.
	Start ContextHook
	// Stop gracefully winds the service down. It runs without the state
	// lock held. Returning nil transitions the service to Stopped;
	// returning an error transitions it to Failed.
	Stop ContextHook
	// FailureHandler decides how the service recovers when NotifyFailed is
	// called. If nil, the default policy calls Stop quietly (ignoring its
	// error) and settles into StateFailed.
	FailureHandler FailureHandler
}

// ServiceOptions configures the ambient collaborators of a Service.
type ServiceOptions struct {
	// Executor dispatches listener notifications. Defaults to
	// DefaultExecutor().
	Executor Executor
	// Logger receives lifecycle log messages, named "STARTABLE". Defaults
	// to NoopLogger().
	Logger Logger
}

type serviceListenerEntry struct {
	original interface{}
	callback ServiceListener
	sink     EventSink
	ch       chan<- Event
}

type queuedServiceEvent struct {
	event     ServiceStateChangeEvent
	listeners []serviceListenerEntry
}

// Service is a restartable activity with states {Stopped, Running, Failed}.
// It is the "Service state machine" of spec.md §4.A: fine-grained internal
// states drive the coarser public state, hooks run without the state lock
// held, and every observer sees the same total order of transitions.
type Service struct {
	hooks    ServiceHooks
	executor Executor
	logger   Logger

	mu           sync.Mutex
	cond         *sync.Cond
	internal     serviceInternalState
	failureCause error
	finishedCh   chan struct{}

	listeners         []serviceListenerEntry
	eventQueue        []queuedServiceEvent
	dispatcherStarted bool
}

// NewService creates a Service around the given hooks with default options.
func NewService(hooks ServiceHooks) *Service {
	return NewServiceWithOptions(hooks, ServiceOptions{})
}

// NewServiceWithOptions creates a Service around the given hooks and
// options.
func NewServiceWithOptions(hooks ServiceHooks, opts ServiceOptions) *Service {
	if opts.Executor == nil {
		opts.Executor = DefaultExecutor()
	}
	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	s := &Service{
		hooks:      hooks,
		executor:   opts.Executor,
		logger:     logger.Named("STARTABLE"),
		internal:   svcStopped,
		finishedCh: closedChan(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Name returns the service's user-friendly name.
func (s *Service) Name() string { return s.hooks.Name }

// Logger returns the service's configured logger, for combinators that need
// to log about a member service from outside its own hooks.
func (s *Service) Logger() Logger { return s.logger }

// State returns the current public state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.internal.public()
}

// IsRunning reports whether the service's public state is Running.
func (s *Service) IsRunning() bool { return s.State() == StateRunning }

// IsStopped reports whether the service's public state is Stopped.
func (s *Service) IsStopped() bool { return s.State() == StateStopped }

// IsFailed reports whether the service's public state is Failed.
func (s *Service) IsFailed() bool { return s.State() == StateFailed }

// FailureCause returns the error that caused a Failed state, or nil if the
// service is not currently Failed (spec.md invariant I1).
func (s *Service) FailureCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.internal.public() != StateFailed {
		return nil
	}
	return s.failureCause
}

// Start runs Start's hook and blocks until it completes. It returns an
// error if the service was not in Stopped or Failed, or if the start hook
// itself failed.
func (s *Service) Start() error { return s.StartCtx(context.Background()) }

// StartCtx is Start with an explicit context, passed through to the hooks.
func (s *Service) StartCtx(ctx context.Context) error {
	s.mu.Lock()
	if s.internal != svcStopped && s.internal != svcFailed {
		from := s.internal.public()
		s.mu.Unlock()
		return invalidStateErrorf("service %q: cannot start from %s", s.hooks.Name, from)
	}
	from := s.internal.public()
	s.internal = svcStarting
	s.finishedCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Debug("starting", "name", s.hooks.Name)

	var err error
	if s.hooks.Start != nil {
		err = s.hooks.Start(ctx)
	}

	s.mu.Lock()
	if err != nil {
		root := cause(err)
		s.failureCause = root
		s.internal = svcFailed
		s.enqueueEventLocked(ctx, from, StateFailed, root)
		close(s.finishedCh)
		s.cond.Broadcast()
		s.mu.Unlock()
		s.logger.Error(err, "service failed to start", "name", s.hooks.Name)
		return err
	}

	s.failureCause = nil
	s.internal = svcRunning
	s.enqueueEventLocked(ctx, from, StateRunning, nil)
	s.cond.Broadcast()
	s.mu.Unlock()
	s.logger.Info("service started", "name", s.hooks.Name)
	return nil
}

// Stop gracefully shuts the service down. If the service is not currently
// Running, Stop waits out any in-flight transition and then does nothing
// (spec.md §4.A).
func (s *Service) Stop() error { return s.StopCtx(context.Background()) }

// StopCtx is Stop with an explicit context.
func (s *Service) StopCtx(ctx context.Context) error {
	s.mu.Lock()
	for s.internal.transient() {
		s.cond.Wait()
	}
	if s.internal != svcRunning {
		s.mu.Unlock()
		return nil
	}
	s.internal = svcStopping
	s.mu.Unlock()

	s.logger.Debug("stopping", "name", s.hooks.Name)

	var err error
	if s.hooks.Stop != nil {
		err = s.hooks.Stop(ctx)
	}

	s.mu.Lock()
	if err != nil {
		root := cause(err)
		s.failureCause = root
		s.internal = svcFailed
		s.enqueueEventLocked(ctx, StateRunning, StateFailed, root)
		close(s.finishedCh)
		s.cond.Broadcast()
		s.mu.Unlock()
		s.logger.Error(err, "service failed to stop", "name", s.hooks.Name)
		return err
	}

	s.internal = svcStopped
	s.enqueueEventLocked(ctx, StateRunning, StateStopped, nil)
	close(s.finishedCh)
	s.cond.Broadcast()
	s.mu.Unlock()
	s.logger.Info("service stopped", "name", s.hooks.Name)
	return nil
}

// NotifyFailed is called by the service's own body when it detects a
// runtime failure outside of Start/Stop. It waits out any in-flight
// transition; a service already Failed ignores the notification. The
// configured FailureHandler (or the default quiet-stop policy) decides the
// recovered state.
func (s *Service) NotifyFailed(failureCause error) {
	s.NotifyFailedCtx(context.Background(), failureCause)
}

// NotifyFailedCtx is NotifyFailed with an explicit context.
func (s *Service) NotifyFailedCtx(ctx context.Context, failureCause error) {
	s.mu.Lock()
	for s.internal.transient() {
		s.cond.Wait()
	}
	if s.internal == svcFailed {
		s.mu.Unlock()
		s.logger.Debug("ignoring failure notification, already failed", "error", failureCause)
		return
	}
	s.internal = svcFailing
	s.mu.Unlock()

	handler := s.hooks.FailureHandler
	var recovered State
	if handler != nil {
		recovered = handler(ctx, failureCause)
	} else {
		if s.hooks.Stop != nil {
			_ = s.hooks.Stop(ctx)
		}
		recovered = StateFailed
	}

	s.mu.Lock()
	switch recovered {
	case StateRunning:
		s.internal = svcRunning
		s.cond.Broadcast()
		s.mu.Unlock()
		s.logger.Debug("recovered from failure", "name", s.hooks.Name)
	case StateStopped:
		s.internal = svcStopped
		s.enqueueEventLocked(ctx, StateRunning, StateStopped, nil)
		close(s.finishedCh)
		s.cond.Broadcast()
		s.mu.Unlock()
		s.logger.Info("service stopped after failure", "name", s.hooks.Name)
	default:
		root := cause(failureCause)
		s.failureCause = root
		s.internal = svcFailed
		s.enqueueEventLocked(ctx, StateRunning, StateFailed, root)
		close(s.finishedCh)
		s.cond.Broadcast()
		s.mu.Unlock()
		s.logger.Error(failureCause, "service failed", "name", s.hooks.Name)
	}
}

// NotifyInterrupted is called by the service's body when it has stopped
// itself outside of a Stop call, such as an underlying listener socket
// closing on its own.
func (s *Service) NotifyInterrupted() {
	s.NotifyInterruptedCtx(context.Background())
}

// NotifyInterruptedCtx is NotifyInterrupted with an explicit context.
func (s *Service) NotifyInterruptedCtx(ctx context.Context) {
	s.mu.Lock()
	for s.internal.transient() {
		s.cond.Wait()
	}
	if s.internal != svcRunning {
		s.mu.Unlock()
		return
	}
	s.internal = svcStopped
	s.enqueueEventLocked(ctx, StateRunning, StateStopped, nil)
	close(s.finishedCh)
	s.cond.Broadcast()
	s.mu.Unlock()
	s.logger.Info("service interrupted", "name", s.hooks.Name)
}

// WaitForFinished blocks until the service's public state is Stopped or
// Failed.
func (s *Service) WaitForFinished() {
	s.mu.Lock()
	ch := s.finishedCh
	s.mu.Unlock()
	<-ch
}

// WaitForFinishedTimeout blocks until the service's public state is Stopped
// or Failed, or the timeout elapses first, in which case it returns false.
func (s *Service) WaitForFinishedTimeout(timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.finishedCh
	s.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// AddStateChangeListener registers a listener for this service's state
// transitions. l must be a ServiceListener, an EventSink, or a
// chan<- Event; any other type is rejected and false is returned.
func (s *Service) AddStateChangeListener(l interface{}) bool {
	entry, ok := normalizeServiceListener(l)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, entry)
	s.ensureDispatcherLocked()
	s.mu.Unlock()
	return true
}

// RemoveStateChangeListener removes a previously registered listener. It is
// a no-op if l was never registered, or if l's dynamic type is not
// comparable (such as a listener built from ServiceListenerFunc).
func (s *Service) RemoveStateChangeListener(l interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.listeners {
		if sameListener(entry.original, l) {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func normalizeServiceListener(l interface{}) (serviceListenerEntry, bool) {
	switch v := l.(type) {
	case ServiceListener:
		return serviceListenerEntry{original: l, callback: v}, true
	case EventSink:
		return serviceListenerEntry{original: l, sink: v}, true
	case chan<- Event:
		return serviceListenerEntry{original: l, ch: v}, true
	default:
		return serviceListenerEntry{}, false
	}
}

// enqueueEventLocked builds the event and appends it, together with a
// snapshot of the current listener list, to the dispatch queue while the
// state lock is held. This is what guarantees invariant I3: every observer
// sees this service's transitions in the same total order, regardless of
// how the configured Executor schedules the actual delivery.
func (s *Service) enqueueEventLocked(ctx context.Context, from, to State, causeErr error) {
	s.logger.Debug("transitioned", "from", from.String(), "to", to.String())
	if len(s.listeners) == 0 {
		return
	}
	ev := ServiceStateChangeEvent{
		Service: s,
		From:    from,
		To:      to,
		Cause:   causeErr,
		At:      time.Now(),
		tag:     newTag(),
	}
	snapshot := append([]serviceListenerEntry(nil), s.listeners...)
	s.eventQueue = append(s.eventQueue, queuedServiceEvent{event: ev, listeners: snapshot})
	s.cond.Broadcast()
}

// ensureDispatcherLocked lazily starts the single dispatch goroutine that
// drains eventQueue in order. Called with mu held.
func (s *Service) ensureDispatcherLocked() {
	if s.dispatcherStarted {
		return
	}
	s.dispatcherStarted = true
	s.executor.Execute(s.dispatchLoop)
}

func (s *Service) dispatchLoop() {
	for {
		s.mu.Lock()
		for len(s.eventQueue) == 0 {
			s.cond.Wait()
		}
		item := s.eventQueue[0]
		s.eventQueue = s.eventQueue[1:]
		s.mu.Unlock()

		s.deliver(item)
	}
}

func (s *Service) deliver(item queuedServiceEvent) {
	for _, l := range item.listeners {
		s.deliverOne(l, item.event)
	}
}

func (s *Service) deliverOne(l serviceListenerEntry, ev ServiceStateChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("service listener panicked", "panic", r)
		}
	}()
	switch {
	case l.callback != nil:
		l.callback.OnStateChanged(ev.Service, ev.From, ev.To)
	case l.sink != nil:
		l.sink.OnEvent(ev)
	case l.ch != nil:
		l.ch <- ev
	}
}

// sameListener compares two listener handles for identity, tolerating
// uncomparable dynamic types (such as func values) by treating them as
// never equal instead of panicking.
func sameListener(a, b interface{}) (eq bool) {
	defer func() { recover() }()
	return a == b
}
