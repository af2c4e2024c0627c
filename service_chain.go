package asynclife

import "context"

// chainListener is the ServiceListener installed by chain, kept around so
// unchain can remove exactly it.
type chainListener struct {
	follower *Service
	executor Executor
	logger   Logger
}

func (c chainListener) OnStateChanged(target *Service, from, to State) {
	switch to {
	case StateRunning:
		c.logger.Debug("leader running, starting follower", "leader", target.Name(), "follower", c.follower.Name())
		c.executor.Execute(func() { _ = c.follower.Start() })
	case StateStopped:
		c.logger.Debug("leader stopped, stopping follower", "leader", target.Name(), "follower", c.follower.Name())
		c.executor.Execute(func() { _ = c.follower.Stop() })
	case StateFailed:
		c.logger.Debug("leader failed, failing follower", "leader", target.Name(), "follower", c.follower.Name())
		c.executor.Execute(func() { c.follower.NotifyFailed(target.FailureCause()) })
	}
}

// Chain installs a listener on leader so that follower tracks its
// lifecycle: leader→Running starts follower, leader→Stopped stops
// follower, leader→Failed notifies follower failed. Each reaction runs on
// executor rather than inline, matching the "on leader's executor"
// wording of spec.md §4.G. It returns a handle Unchain accepts to remove
// the listener.
func Chain(leader, follower *Service, executor Executor) *chainListener {
	if executor == nil {
		executor = DefaultExecutor()
	}
	l := &chainListener{follower: follower, executor: executor, logger: leader.Logger().Named("STARTABLE.CHAIN")}
	leader.AddStateChangeListener(l)
	return l
}

// Unchain removes a listener previously installed by Chain.
func Unchain(leader *Service, handle *chainListener) {
	leader.RemoveStateChangeListener(handle)
}

// SetFailureDependency installs a one-way dependency: when dependee Fails,
// dependent is marked Failed with the same cause (spec.md §4.G).
func SetFailureDependency(dependee, dependent *Service) {
	dependee.AddStateChangeListener(ServiceListenerFunc(func(target *Service, from, to State) {
		if to == StateFailed {
			dependent.NotifyFailedCtx(context.Background(), target.FailureCause())
		}
	}))
}
