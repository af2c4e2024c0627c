package asynclife

import (
	"sync"
	"time"
)

// ValueInfo pairs a published value with the time it was set. It is
// immutable once constructed (spec.md §3.3).
type ValueInfo struct {
	Value      interface{}
	ModifiedAt time.Time
}

// VariableListener is notified whenever a Variable's value changes.
type VariableListener interface {
	OnValueChanged(info ValueInfo)
}

// VariableListenerFunc adapts a plain function to VariableListener.
type VariableListenerFunc func(info ValueInfo)

func (f VariableListenerFunc) OnValueChanged(info ValueInfo) { f(info) }

// Variable is a producer/consumer observable cell: a single named slot
// updated by a producer and read, awaited or watched by any number of
// consumers. It is the peripheral "observable variable" family spec.md §1
// mentions as a consumer of the Service/AsyncOperation contract rather
// than a state machine of its own.
type Variable struct {
	name   string
	logger Logger

	mu        sync.Mutex
	cond      *sync.Cond
	current   *ValueInfo
	listeners []VariableListener
}

// NewVariable creates an unset Variable named name.
func NewVariable(name string) *Variable {
	return NewVariableWithLogger(name, nil)
}

// NewVariableWithLogger is NewVariable with an explicit Logger, named
// "VAR.SIMPLE".
func NewVariableWithLogger(name string, logger Logger) *Variable {
	if logger == nil {
		logger = NoopLogger()
	}
	v := &Variable{name: name, logger: logger.Named("VAR.SIMPLE")}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// Set publishes a new value, timestamped now, and wakes any waiters.
func (v *Variable) Set(value interface{}) {
	v.mu.Lock()
	info := ValueInfo{Value: value, ModifiedAt: time.Now()}
	v.current = &info
	listeners := append([]VariableListener(nil), v.listeners...)
	v.cond.Broadcast()
	v.mu.Unlock()

	v.logger.Debug("variable set", "name", v.name)
	for _, l := range listeners {
		l.OnValueChanged(info)
	}
}

// Get returns the current value and whether the variable has ever been
// set.
func (v *Variable) Get() (ValueInfo, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return ValueInfo{}, false
	}
	return *v.current, true
}

// Await blocks until the variable has been set at least once, and returns
// its value.
func (v *Variable) Await() ValueInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	for v.current == nil {
		v.cond.Wait()
	}
	return *v.current
}

// AwaitTimeout is Await bounded by timeout. ok is false if the timeout
// elapsed before any value was set.
func (v *Variable) AwaitTimeout(timeout time.Duration) (info ValueInfo, ok bool) {
	done := make(chan ValueInfo, 1)
	go func() { done <- v.Await() }()
	select {
	case info := <-done:
		return info, true
	case <-time.After(timeout):
		return ValueInfo{}, false
	}
}

// AddListener registers l to be notified of every future Set call. It is
// not notified of the variable's current value, if any.
func (v *Variable) AddListener(l VariableListener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, l)
}

// RemoveListener removes a previously registered listener.
func (v *Variable) RemoveListener(l VariableListener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, existing := range v.listeners {
		if sameListener(existing, l) {
			v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)
			return
		}
	}
}

// DerivedVariable mirrors a source Variable through a mapping function,
// republishing under its own name and its own listener set. It is the
// "VAR.SUPPORT" logger name's namesake: a supporting variable computed from
// another rather than set directly by a producer.
type DerivedVariable struct {
	*Variable
	source *Variable
}

// NewDerivedVariable derives a new Variable from source: whenever source is
// set, mapFn's result is published on the returned DerivedVariable. If
// source already has a value, the derived variable is seeded immediately.
func NewDerivedVariable(name string, source *Variable, mapFn func(interface{}) interface{}) *DerivedVariable {
	d := &DerivedVariable{
		Variable: NewVariableWithLogger(name, source.logger),
		source:   source,
	}
	d.Variable.logger = d.Variable.logger.Named("VAR.SUPPORT")
	if info, ok := source.Get(); ok {
		d.Set(mapFn(info.Value))
	}
	source.AddListener(VariableListenerFunc(func(info ValueInfo) {
		d.Set(mapFn(info.Value))
	}))
	return d
}
