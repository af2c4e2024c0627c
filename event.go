package asynclife

import (
	"time"

	"github.com/google/uuid"
)

// Event is the uniform accessor surface both concrete event types satisfy,
// so a generic event bus that only knows about property names (rather than
// concrete Go types) can still consume them.
type Event interface {
	// Get looks up a named property ("from", "to", "tag", "error", "time",
	// ...). ok is false if the event type does not carry that property.
	Get(name string) (interface{}, bool)
	// Tag returns the correlation tag attached at emission time, or "" if
	// none was set.
	Tag() string
}

// ServiceStateChangeEvent is published whenever a Service's public state
// changes.
type ServiceStateChangeEvent struct {
	Service *Service
	From    State
	To      State
	Cause   error
	At      time.Time
	tag     string
}

func (e ServiceStateChangeEvent) Tag() string { return e.tag }

func (e ServiceStateChangeEvent) Get(name string) (interface{}, bool) {
	switch name {
	case "service", "target":
		return e.Service, true
	case "from":
		return e.From, true
	case "to":
		return e.To, true
	case "error", "cause":
		return e.Cause, true
	case "time", "at":
		return e.At, true
	case "tag":
		return e.tag, true
	default:
		return nil, false
	}
}

// AsyncOperationStateChangeEvent is published whenever an AsyncOperation's
// public state changes.
type AsyncOperationStateChangeEvent struct {
	Operation *AsyncOperation
	To        State
	Cause     error
	At        time.Time
	tag       string
}

func (e AsyncOperationStateChangeEvent) Tag() string { return e.tag }

func (e AsyncOperationStateChangeEvent) Get(name string) (interface{}, bool) {
	switch name {
	case "operation", "target":
		return e.Operation, true
	case "to":
		return e.To, true
	case "error", "cause":
		return e.Cause, true
	case "time", "at":
		return e.At, true
	case "tag":
		return e.tag, true
	default:
		return nil, false
	}
}

// ServiceListener is the callback-style listener shape for Service state
// changes.
type ServiceListener interface {
	OnStateChanged(target *Service, from, to State)
}

// ServiceListenerFunc adapts a plain function to ServiceListener.
type ServiceListenerFunc func(target *Service, from, to State)

func (f ServiceListenerFunc) OnStateChanged(target *Service, from, to State) {
	f(target, from, to)
}

// AsyncOperationListener is the callback-style listener shape for
// AsyncOperation state changes: a start notification and a single terminal
// notification.
type AsyncOperationListener interface {
	OnAsyncOperationStarted(op *AsyncOperation)
	OnAsyncOperationFinished(op *AsyncOperation, terminal State)
}

// EventSink is the event-bus-style listener shape: a single method
// receiving the concrete event object, addressed generically through Event.
type EventSink interface {
	OnEvent(ev Event)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(ev Event)

func (f EventSinkFunc) OnEvent(ev Event) { f(ev) }

// newTag generates a correlation id for a freshly emitted event chain. It is
// not part of any public API surface beyond Event.Tag, matching spec.md
// §3.4's "tag?" being opaque to consumers.
func newTag() string {
	return uuid.NewString()
}
