package internal

import "sync"

// EffectRunner is the side-effecting dependent of spec.md §4.7: it reads
// cells for their value, not their changes, and its body re-runs on the
// executor whenever any dependency it read last time changes. Grounded
// on vango's pkg/vango/effect.go for the re-track-from-scratch-every-run
// discipline, and on the teacher's sig.go Owner/OnCleanup combinator for
// cleanup registration: each run gets its own scope pushed via
// PushScope/PopScope, so a body that calls OnCleanup registers against
// that run's scope, disposed right before the next run (or on Dispose).
type EffectRunner struct {
	nodeBase

	body     func()
	tracker  *Tracker
	executor *Executor

	mu       sync.Mutex
	scope    *Owner
	disposed bool
}

func NewEffectRunner(tracker *Tracker, executor *Executor, body func()) *EffectRunner {
	e := &EffectRunner{
		nodeBase: newNodeBase(),
		body:     body,
		tracker:  tracker,
		executor: executor,
	}
	e.BindSelf(e)
	return e
}

// Start runs the body synchronously for the first time, establishing its
// initial dependency set.
func (e *EffectRunner) Start() {
	e.run()
}

// OnDependencyChanged re-runs the body on the executor so the notifying
// write's own call stack isn't blocked by effect work.
func (e *EffectRunner) OnDependencyChanged() {
	e.mu.Lock()
	disposed := e.disposed
	e.mu.Unlock()
	if disposed {
		return
	}
	e.executor.Submit(e.run)
}

func (e *EffectRunner) run() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	prevScope := e.scope
	e.mu.Unlock()

	if prevScope != nil {
		prevScope.Dispose()
	}

	nextScope := NewOwner()
	e.tracker.StartTracking(e)
	func() {
		defer e.tracker.StopTracking()
		PushScope(nextScope)
		defer PopScope()
		e.body()
	}()

	e.mu.Lock()
	e.scope = nextScope
	e.mu.Unlock()
}

// Dispose runs the current scope's cleanups and removes this effect from
// the dependency graph so it never re-runs again.
func (e *EffectRunner) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	scope := e.scope
	e.scope = nil
	e.mu.Unlock()

	if scope != nil {
		scope.Dispose()
	}
	e.tracker.cleanupDependent(e)
}
