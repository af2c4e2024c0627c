package asynclife

import (
	"sync"
	"time"
)

// StateCondition evaluates a predicate over a Service's or an
// AsyncOperation's public state, becoming "done" the first time the
// predicate holds true, per spec.md §4.H. At construction the condition
// subscribes to the entity's state events and then evaluates the predicate
// once against the current state; it self-deregisters as soon as it
// becomes done (including when the predicate already holds at
// construction), so a condition that is awaited once and discarded does
// not leak a listener registration.
type StateCondition struct {
	mu   sync.Mutex
	done bool
	ch   chan struct{}
}

// stateSource is satisfied by both *Service and *AsyncOperation.
type stateSource interface {
	State() State
	AddStateChangeListener(l interface{}) bool
	RemoveStateChangeListener(l interface{})
}

// conditionSink is a pointer-identity EventSink, deliberately not a plain
// func value: RemoveStateChangeListener compares listeners by == and a
// *conditionSink compares reliably, whereas two EventSinkFunc values never
// do (see sameListener in service.go).
type conditionSink struct {
	entity    stateSource
	predicate func(State) bool
	c         *StateCondition
}

func (s *conditionSink) OnEvent(ev Event) {
	toVal, ok := ev.Get("to")
	if !ok || !s.predicate(toVal.(State)) {
		return
	}
	s.complete()
}

// complete marks the condition done exactly once and deregisters the
// listener. It is called both from the initial post-registration check and
// from OnEvent, so whichever of the two observes the predicate becoming
// true first wins and the other is a no-op.
func (s *conditionSink) complete() {
	s.c.mu.Lock()
	if s.c.done {
		s.c.mu.Unlock()
		return
	}
	s.c.done = true
	close(s.c.ch)
	s.c.mu.Unlock()
	s.entity.RemoveStateChangeListener(s)
}

// NewStateCondition builds a condition over entity's public state. The
// listener is registered before the initial state is checked, so a
// transition landing between "read the current state" and "subscribe"
// cannot be missed the way it would if the check ran first.
func NewStateCondition(entity stateSource, predicate func(State) bool) *StateCondition {
	c := &StateCondition{ch: make(chan struct{})}
	sink := &conditionSink{entity: entity, predicate: predicate, c: c}
	entity.AddStateChangeListener(sink)
	if predicate(entity.State()) {
		sink.complete()
	}
	return c
}

// EvaluateNow reports whether the condition currently holds.
func (c *StateCondition) EvaluateNow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Await blocks until the condition becomes done.
func (c *StateCondition) Await() {
	<-c.ch
}

// AwaitTimeout blocks until the condition becomes done or timeout elapses
// first, in which case it returns false.
func (c *StateCondition) AwaitTimeout(timeout time.Duration) bool {
	select {
	case <-c.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}
