package asynclife

import "context"

// ContextHook is a context-aware hook used by both Service and
// AsyncOperation bodies.
type ContextHook = func(context.Context) error

// Hook is a context-naive hook.
type Hook = func() error

// ErrorHook receives lifecycle events and optionally transforms or
// suppresses the error carried by them.
type ErrorHook = func(event Event) error

// FailureHandler decides how a Service recovers from a runtime failure
// reported through Service.NotifyFailed. It returns the state the service
// should settle into: StateRunning (silent recovery), StateStopped, or
// StateFailed. The zero FailureHandler stops the service quietly and
// reports StateFailed, matching spec.md §4.A's default policy.
type FailureHandler = func(ctx context.Context, cause error) State
