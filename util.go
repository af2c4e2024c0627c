package asynclife

import (
	"context"
	"time"
)

// DropContext wraps a context-naive hook as a context-aware one. The
// context passed to the resulting ContextHook is discarded. nil maps to
// nil, so it composes cleanly with optional hook fields.
func DropContext(hook Hook) ContextHook {
	if hook == nil {
		return nil
	}
	return func(context.Context) error {
		return hook()
	}
}

// Wait returns a readiness-probe function that becomes ready after the
// given duration elapses: each call returns a channel that is closed once
// duration has passed. Nothing in this package consumes such a probe; it is
// for callers whose services have a fixed warm-up delay instead of an
// active check.
func Wait(duration time.Duration) func() <-chan error {
	return func() <-chan error {
		ch := make(chan error)
		go func() {
			<-time.After(duration)
			close(ch)
		}()
		return ch
	}
}
