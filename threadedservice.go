package asynclife

import (
	"context"
	"sync"
)

// ThreadCallback is handed to a threaded service's body so it can signal
// readiness and observe cooperative stop requests.
type ThreadCallback interface {
	// NotifyStarted signals that the body's startup prelude has completed.
	// Only meaningful when the service was constructed with
	// ManualStartNotification; ignored otherwise.
	NotifyStarted()
	// IsStopPending reports whether Stop has been called and the body
	// should wind down and return.
	IsStopPending() bool
}

type threadState uint8

const (
	threadStarting threadState = iota
	threadRunning
	threadStopping
	threadStopped
)

// ThreadedServiceOptions configures NewThreadedService in addition to the
// base ServiceOptions.
type ThreadedServiceOptions struct {
	ServiceOptions
	// ManualStartNotification requires the body to call
	// ThreadCallback.NotifyStarted once its startup prelude has succeeded.
	// If false, the service transitions to Running as soon as the body's
	// goroutine has been launched.
	ManualStartNotification bool
}

// threadedBody adapts a blocking run(cb) call into ServiceHooks, per
// spec.md §4.B.
type threadedBody struct {
	run         func(ctx context.Context, cb ThreadCallback) error
	manualStart bool
	svc         *Service

	mu       sync.Mutex
	cond     *sync.Cond
	state    threadState
	startErr error
	stopErr  error
}

type threadedCallback struct{ b *threadedBody }

func (c threadedCallback) NotifyStarted() { c.b.notifyStarted() }
func (c threadedCallback) IsStopPending() bool { return c.b.isStopPending() }

func (b *threadedBody) notifyStarted() {
	b.mu.Lock()
	if b.state == threadStarting {
		b.state = threadRunning
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

func (b *threadedBody) isStopPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == threadStopping
}

// start is the Service Start hook. It launches the worker goroutine and,
// depending on ManualStartNotification, either waits for the body's own
// readiness signal or declares the service Running immediately.
func (b *threadedBody) start(ctx context.Context) error {
	b.mu.Lock()
	if b.manualStart {
		b.state = threadStarting
	} else {
		b.state = threadRunning
	}
	b.mu.Unlock()

	go func() {
		cb := threadedCallback{b: b}
		err := b.run(ctx, cb)

		b.mu.Lock()
		prevState := b.state
		b.state = threadStopped
		b.stopErr = err
		if prevState == threadStarting {
			b.startErr = err
		}
		b.cond.Broadcast()
		spontaneous := prevState != threadStopping
		b.mu.Unlock()

		// A failure or spontaneous return that occurs while nobody is
		// waiting on this body via start()/stop() must still be reported.
		// Start()/Stop() report the error themselves when they are the
		// ones blocked waiting; only the truly unsolicited case (the body
		// exits while the service just sits Running) is routed through
		// the Service's own failure/interruption notifications.
		if prevState == threadRunning && spontaneous {
			if err != nil {
				b.svc.NotifyFailedCtx(ctx, err)
			} else {
				b.svc.NotifyInterruptedCtx(ctx)
			}
		}
	}()

	if !b.manualStart {
		return nil
	}

	b.mu.Lock()
	for b.state == threadStarting {
		b.cond.Wait()
	}
	state := b.state
	err := b.startErr
	b.mu.Unlock()
	if state == threadStopped {
		return err
	}
	return nil
}

// stop is the Service Stop hook. It requests the body wind down (observable
// via IsStopPending) and waits for the worker goroutine to exit.
func (b *threadedBody) stop(ctx context.Context) error {
	b.mu.Lock()
	if b.state == threadStopped {
		err := b.stopErr
		b.mu.Unlock()
		return err
	}
	b.state = threadStopping
	b.cond.Broadcast()
	for b.state != threadStopped {
		b.cond.Wait()
	}
	err := b.stopErr
	b.mu.Unlock()
	return err
}

// NewThreadedService creates a Service whose body is a blocking
// run(ctx, cb) call, per spec.md §4.B.
func NewThreadedService(name string, run func(ctx context.Context, cb ThreadCallback) error) *Service {
	return NewThreadedServiceWithOptions(name, run, ThreadedServiceOptions{})
}

// NewThreadedServiceWithOptions is NewThreadedService with explicit options.
func NewThreadedServiceWithOptions(name string, run func(ctx context.Context, cb ThreadCallback) error,
	opts ThreadedServiceOptions) *Service {
	b := &threadedBody{run: run, manualStart: opts.ManualStartNotification}
	b.cond = sync.NewCond(&b.mu)

	svc := NewServiceWithOptions(ServiceHooks{
		Name:  name,
		Start: b.start,
		Stop:  b.stop,
	}, opts.ServiceOptions)
	b.svc = svc
	return svc
}
