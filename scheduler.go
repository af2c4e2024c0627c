package asynclife

import (
	"context"
	"sync"
)

// submittable is the subset of *AsyncOperation an OperationScheduler needs:
// just enough to authorize (or refuse) a Scheduling operation to proceed,
// and to be told to stop. Declared as an interface (rather than depending
// on *AsyncOperation's concrete permitToStart directly from here) only to
// keep the coupling explicit; the only implementation is *AsyncOperation.
type submittable interface {
	permitToStart(ctx context.Context) bool
	CancelCtx(ctx context.Context)
	WaitForFinished()
}

// OperationScheduler arbitrates how multiple AsyncOperations submitted
// under the same name compete for the right to run, per spec.md §4.E.
type OperationScheduler interface {
	// Submit registers op under name and, depending on policy, authorizes it
	// to start now, queues it behind a currently running operation, or
	// rejects it outright (a non-nil error).
	Submit(ctx context.Context, op *AsyncOperation) error
	// StopAll cancels every operation currently tracked by the scheduler.
	StopAll()
	// Policy identifies the scheduling discipline: "nowait", "queued" or
	// "cancel_previous".
	Policy() string
}

type schedulerEntry struct {
	op   *AsyncOperation
	done chan struct{}
}

// namedScheduler implements all three scheduling policies spec.md §4.E
// describes, keyed by an arbitrary caller-supplied name (typically the
// operation's logical identity, distinct from the display Name in
// OperationHooks).
type namedScheduler struct {
	policy string
	logger Logger

	mu      sync.Mutex
	current map[string]*schedulerEntry
	waiting map[string][]*schedulerEntry
}

const (
	// PolicyNoWait rejects a submission outright if one is already running
	// under the same name.
	PolicyNoWait = "nowait"
	// PolicyQueued queues a submission behind the currently running one
	// under the same name; it is started once the current one finishes.
	PolicyQueued = "queued"
	// PolicyCancelPrevious cancels the currently running operation under the
	// same name (waiting for it to finish) before starting the new one.
	PolicyCancelPrevious = "cancel_previous"
)

// NewOperationScheduler creates an OperationScheduler enforcing policy,
// which must be one of PolicyNoWait, PolicyQueued or PolicyCancelPrevious.
func NewOperationScheduler(policy string, logger Logger) OperationScheduler {
	if logger == nil {
		logger = NoopLogger()
	}
	return &namedScheduler{
		policy:  policy,
		logger:  logger.Named("SCHEDULER"),
		current: make(map[string]*schedulerEntry),
		waiting: make(map[string][]*schedulerEntry),
	}
}

func (s *namedScheduler) Policy() string { return s.policy }

// Submit keys operations by op.Name(); multiple logical slots sharing a
// name is the scheduler's entire reason for existing (spec.md §4.E, "named
// slot" semantics) so NewAsyncOperation callers that want independent
// scheduling must give their operations distinct names.
func (s *namedScheduler) Submit(ctx context.Context, op *AsyncOperation) error {
	name := op.Name()
	entry := &schedulerEntry{op: op, done: make(chan struct{})}

	s.mu.Lock()
	existing, busy := s.current[name]
	switch {
	case !busy:
		s.current[name] = entry
		s.mu.Unlock()
		s.runAndWatch(ctx, name, entry)
		return nil

	case s.policy == PolicyNoWait:
		s.mu.Unlock()
		return schedulerRejectedErrorf("operation %q: already running under %q", op.Name(), name)

	case s.policy == PolicyQueued:
		s.waiting[name] = append(s.waiting[name], entry)
		s.mu.Unlock()
		s.logger.Debug("queued operation", "name", name)
		return nil

	default: // PolicyCancelPrevious
		s.mu.Unlock()
		existing.op.CancelCtx(ctx)
		existing.op.WaitForFinished()

		s.mu.Lock()
		s.current[name] = entry
		s.mu.Unlock()
		s.runAndWatch(ctx, name, entry)
		return nil
	}
}

// runAndWatch authorizes entry to start and, on its own goroutine, waits
// for it to finish so the next queued (or future) submission under the
// same name can take the slot.
func (s *namedScheduler) runAndWatch(ctx context.Context, name string, entry *schedulerEntry) {
	go func() {
		entry.op.WaitForFinished()
		close(entry.done)
		s.advance(ctx, name, entry)
	}()
	entry.op.permitToStart(ctx)
}

func (s *namedScheduler) advance(ctx context.Context, name string, finished *schedulerEntry) {
	s.mu.Lock()
	if s.current[name] == finished {
		delete(s.current, name)
	}
	var next *schedulerEntry
	if queue := s.waiting[name]; len(queue) > 0 {
		next = queue[0]
		s.waiting[name] = queue[1:]
		s.current[name] = next
	}
	s.mu.Unlock()

	if next != nil {
		s.runAndWatch(ctx, name, next)
	}
}

// StopAll cancels every currently running and queued operation.
func (s *namedScheduler) StopAll() {
	s.mu.Lock()
	var all []*schedulerEntry
	for _, e := range s.current {
		all = append(all, e)
	}
	for _, q := range s.waiting {
		all = append(all, q...)
	}
	s.waiting = make(map[string][]*schedulerEntry)
	s.mu.Unlock()

	for _, e := range all {
		e.op.CancelCtx(context.Background())
	}
}
