package asynclife

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// CompositeService returns a Service that starts every member in parallel.
// If any member fails to start, the others are stopped and the parent
// Fails with the first member's start error (spec.md §4.G, scenario 8). Once
// running, any member that later fails is mirrored onto the parent via
// NotifyFailed; any member that stops on its own (not as part of the
// parent's own Stop) triggers the parent's own Stop.
func CompositeService(name string, members ...*Service) *Service {
	return CompositeServiceWithOptions(name, ServiceOptions{}, members...)
}

// CompositeServiceWithOptions is CompositeService with explicit options.
func CompositeServiceWithOptions(name string, opts ServiceOptions, members ...*Service) *Service {
	var parent *Service
	var mu sync.Mutex
	stoppingSelf := false

	parent = NewServiceWithOptions(ServiceHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			for _, m := range members {
				member := m
				member.AddStateChangeListener(ServiceListenerFunc(func(target *Service, from, to State) {
					mu.Lock()
					selfStop := stoppingSelf
					mu.Unlock()
					switch to {
					case StateFailed:
						parent.NotifyFailedCtx(ctx, target.FailureCause())
					case StateStopped:
						if !selfStop && parent.IsRunning() {
							go func() { _ = parent.StopCtx(ctx) }()
						}
					}
				}))
			}

			var wg sync.WaitGroup
			errs := make([]error, len(members))
			wg.Add(len(members))
			for i, m := range members {
				i, m := i, m
				go func() {
					defer wg.Done()
					errs[i] = m.StartCtx(ctx)
				}()
			}
			wg.Wait()

			var firstErr error
			for _, err := range errs {
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			if firstErr == nil {
				return nil
			}

			mu.Lock()
			stoppingSelf = true
			mu.Unlock()
			for _, m := range members {
				if m.IsRunning() {
					_ = m.StopCtx(ctx)
				}
			}
			mu.Lock()
			stoppingSelf = false
			mu.Unlock()
			return firstErr
		},
		Stop: func(ctx context.Context) error {
			mu.Lock()
			stoppingSelf = true
			mu.Unlock()
			defer func() {
				mu.Lock()
				stoppingSelf = false
				mu.Unlock()
			}()

			var wg sync.WaitGroup
			errs := make([]error, len(members))
			wg.Add(len(members))
			for i, m := range members {
				i, m := i, m
				go func() {
					defer wg.Done()
					if m.IsRunning() {
						errs[i] = m.StopCtx(ctx)
					}
				}()
			}
			wg.Wait()

			var agg *multierror.Error
			for _, err := range errs {
				if err != nil {
					agg = multierror.Append(agg, err)
				}
			}
			return agg.ErrorOrNil()
		},
	}, opts)
	return parent
}
