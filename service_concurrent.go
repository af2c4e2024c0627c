package asynclife

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ConcurrentService is a facet view over a set of independently addressable
// member services, per the REDESIGN FLAGS resolution of "dynamic proxies
// over multiple interfaces" into an explicit, non-reflective view: callers
// that need a specific member back (rather than only the aggregate
// Service) ask this type for it by name instead of the source's runtime
// interface-proxy trick.
type ConcurrentService struct {
	*Service
	members map[string]*Service
	order   []*Service
}

// Member returns the member registered under name, and whether it exists.
func (c *ConcurrentService) Member(name string) (*Service, bool) {
	m, ok := c.members[name]
	return m, ok
}

// NewConcurrentService returns a ConcurrentService with the given named
// members. Start behaves like CompositeService: all members start in
// parallel, and a start failure rolls the others back. Stop differs: it
// tolerates partial failure, stopping every member it can and never
// failing the parent on a member's stop error (spec.md §4.G).
func NewConcurrentService(name string, members map[string]*Service) *ConcurrentService {
	return NewConcurrentServiceWithOptions(name, members, ServiceOptions{})
}

// NewConcurrentServiceWithOptions is NewConcurrentService with explicit
// options.
func NewConcurrentServiceWithOptions(name string, members map[string]*Service, opts ServiceOptions) *ConcurrentService {
	order := make([]*Service, 0, len(members))
	for _, m := range members {
		order = append(order, m)
	}

	var parent *Service
	var mu sync.Mutex
	stoppingSelf := false

	parent = NewServiceWithOptions(ServiceHooks{
		Name: name,
		Start: func(ctx context.Context) error {
			for _, m := range order {
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
			errs := make([]error, len(order))
			wg.Add(len(order))
			for i, m := range order {
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
			for _, m := range order {
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
			errs := make([]error, len(order))
			wg.Add(len(order))
			for i, m := range order {
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
			if agg != nil {
				parent.Logger().Warn("member stop failures tolerated", "error", agg.ErrorOrNil())
			}
			return nil
		},
	}, opts)
	return &ConcurrentService{Service: parent, members: members, order: order}
}
