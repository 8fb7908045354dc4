package reactive

import "github.com/reactor-run/reactive/internal"

// CycleError is the panic value raised by a DerivedCell's Get when its
// compute function reads the cell itself, directly or transitively, on
// the same goroutine. The panic propagates to the caller of Get; when the
// recompute runs on the executor instead, it reaches the runtime's task
// panic handler.
type CycleError = internal.CycleError

// RuntimeNotInitializedError is the panic value raised by the
// constructors and combinators that need an active runtime (Cell,
// Derived, NewTrigger, Resource, Effect, Scope, Untrack) when none is
// active: before InitRuntime, after the active runtime's Shutdown, or
// outside a WithRuntime scope.
type RuntimeNotInitializedError = internal.RuntimeNotInitializedError

// FetchError wraps the cause of a failed ResourceCell fetch.
type FetchError = internal.FetchError

// CancelledError is carried as a ResourceCell's Cancelled state.
type CancelledError = internal.CancelledError
