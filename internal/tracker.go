package internal

import (
	"sync"
	"weak"

	mapset "github.com/deckarep/golang-set/v2"
)

// depEdgeSet holds the weak back-edges registered against a single
// dependency node, keyed by the dependent's own id so re-registering the
// same dependent during a recomputation is a no-op (spec: "deduped by
// identity").
type depEdgeSet struct {
	mu   sync.Mutex
	byID map[uint64]weak.Pointer[nodeBase]
}

func newDepEdgeSet() *depEdgeSet {
	return &depEdgeSet{byID: make(map[uint64]weak.Pointer[nodeBase])}
}

// trackContext is one frame of a goroutine's computation-context stack:
// which Dependent is currently being (re)computed, and the set of
// dependency ids it has read so far this pass.
type trackContext struct {
	dependent   Dependent
	accumulated mapset.Set[uint64]
}

type goroutineState struct {
	stack []*trackContext
}

// Tracker is the DependencyTracker of spec.md §4.1: two process-wide maps
// (dependents, depsOf) plus a per-goroutine context stack. The stack is
// keyed by goroutine id (github.com/petermattis/goid, the one
// non-stdlib, non-test dependency carried over from the teacher's ambient
// runtime-per-goroutine technique) so that nested StartTracking calls on
// the same goroutine compose like a LIFO, while unrelated goroutines
// never observe each other's in-flight computation.
type Tracker struct {
	dependents sync.Map // uint64 (dependency id) -> *depEdgeSet
	depsOf     sync.Map // uint64 (dependent id)  -> mapset.Set[uint64]
	contexts   sync.Map // int64 (goroutine id)    -> *goroutineState

	onError func(nodeID uint64, err any)
}

func NewTracker(onError func(nodeID uint64, err any)) *Tracker {
	if onError == nil {
		onError = func(uint64, any) {}
	}
	return &Tracker{onError: onError}
}

func (t *Tracker) state() *goroutineState {
	gid := currentGoroutineID()
	if v, ok := t.contexts.Load(gid); ok {
		return v.(*goroutineState)
	}
	gs := &goroutineState{}
	actual, _ := t.contexts.LoadOrStore(gid, gs)
	return actual.(*goroutineState)
}

func (t *Tracker) top() *trackContext {
	gs := t.state()
	if n := len(gs.stack); n > 0 {
		return gs.stack[n-1]
	}
	return nil
}

// StartTracking clears the dependent's previous dependency edges — so a
// switched (dynamic) dependency set is possible — and pushes a fresh
// context onto the calling goroutine's stack.
func (t *Tracker) StartTracking(d Dependent) {
	t.cleanupDependent(d)

	gs := t.state()
	gs.stack = append(gs.stack, &trackContext{
		dependent:   d,
		accumulated: mapset.NewThreadUnsafeSet[uint64](),
	})
}

// StopTracking pops the top context, installs its accumulated dependency
// set as the dependent's new depsOf entry, and returns that set.
func (t *Tracker) StopTracking() mapset.Set[uint64] {
	gs := t.state()
	n := len(gs.stack)
	if n == 0 {
		return mapset.NewThreadUnsafeSet[uint64]()
	}

	ctx := gs.stack[n-1]
	gs.stack = gs.stack[:n-1]

	t.depsOf.Store(ctx.dependent.ID(), ctx.accumulated)
	return ctx.accumulated
}

// PushUntracked pushes a dependent-less frame onto the calling
// goroutine's stack so reads inside fn register no dependency, even
// though a tracked computation is still in progress further down the
// stack. Grounded on the teacher's Untrack, which suspends tracking for
// the duration of a callback.
func (t *Tracker) PushUntracked() {
	gs := t.state()
	gs.stack = append(gs.stack, &trackContext{})
}

// PopUntracked pops the frame pushed by PushUntracked.
func (t *Tracker) PopUntracked() {
	gs := t.state()
	if n := len(gs.stack); n > 0 {
		gs.stack = gs.stack[:n-1]
	}
}

// TrackAccess records a read of dep by the computation on top of the
// calling goroutine's stack, if any, and registers a weak back-edge from
// dep to that computation's dependent.
func (t *Tracker) TrackAccess(dep Node) {
	ctx := t.top()
	if ctx == nil || ctx.dependent == nil {
		return
	}

	ctx.accumulated.Add(dep.ID())

	v, _ := t.dependents.LoadOrStore(dep.ID(), newDepEdgeSet())
	edges := v.(*depEdgeSet)

	edges.mu.Lock()
	if _, exists := edges.byID[ctx.dependent.ID()]; !exists {
		edges.byID[ctx.dependent.ID()] = weak.Make(ctx.dependent.base())
	}
	edges.mu.Unlock()
}

// NotifyDependents snapshots the weak back-edge set registered against
// dep, prunes references that have been collected, and invokes
// OnDependencyChanged on each surviving dependent. A panic from one
// dependent is reported via onError and never aborts the walk.
func (t *Tracker) NotifyDependents(dep Node) {
	v, ok := t.dependents.Load(dep.ID())
	if !ok {
		return
	}
	edges := v.(*depEdgeSet)

	edges.mu.Lock()
	live := make([]*nodeBase, 0, len(edges.byID))
	var stale []uint64
	for id, wp := range edges.byID {
		if nb := wp.Value(); nb != nil {
			live = append(live, nb)
		} else {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(edges.byID, id)
	}
	edges.mu.Unlock()

	for _, nb := range live {
		t.SafeCall(nb.id, nb.notify)
	}
}

// SafeCall invokes fn, recovering any panic and reporting it via onError
// tagged with nodeID, instead of letting it propagate. Used both for a
// dependent's OnDependencyChanged (NotifyDependents above) and for a
// direct Listener invocation (Cell/DerivedCell/ResourceCell/Trigger's
// notification phases), so a panicking subscriber is caught, logged, and
// never aborts the rest of the notification pass — spec's ListenerError:
// "caught, logged, swallowed."
func (t *Tracker) SafeCall(nodeID uint64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.onError(nodeID, r)
		}
	}()
	fn()
}

// cleanupDependent removes every back-edge that d registered during its
// previous computation, leaving dependents[...] pruned down to exactly
// what d is about to re-read.
func (t *Tracker) cleanupDependent(d Dependent) {
	v, ok := t.depsOf.Load(d.ID())
	if !ok {
		return
	}
	oldDeps := v.(mapset.Set[uint64])
	t.depsOf.Delete(d.ID())

	for depID := range oldDeps.Iter() {
		if v, ok := t.dependents.Load(depID); ok {
			edges := v.(*depEdgeSet)
			edges.mu.Lock()
			delete(edges.byID, d.ID())
			edges.mu.Unlock()
		}
	}
}

// DependencyCount reports the number of dependencies recorded for a
// dependent by its last tracked computation.
func (t *Tracker) DependencyCount(d Dependent) int {
	v, ok := t.depsOf.Load(d.ID())
	if !ok {
		return 0
	}
	return v.(mapset.Set[uint64]).Cardinality()
}

// DebugCounts reports the total number of dependency nodes with at least
// one registered back-edge, and the total number of dependents with a
// recorded dependency set, for Runtime.DebugString.
func (t *Tracker) DebugCounts() (dependencyNodes, dependentNodes int) {
	t.dependents.Range(func(_, v any) bool {
		edges := v.(*depEdgeSet)
		edges.mu.Lock()
		if len(edges.byID) > 0 {
			dependencyNodes++
		}
		edges.mu.Unlock()
		return true
	})
	t.depsOf.Range(func(_, _ any) bool {
		dependentNodes++
		return true
	})
	return
}

// SubscriberCount reports how many live weak back-edges point at dep,
// used by diagnostics.
func (t *Tracker) SubscriberCount(dep Node) int {
	v, ok := t.dependents.Load(dep.ID())
	if !ok {
		return 0
	}
	edges := v.(*depEdgeSet)
	edges.mu.Lock()
	defer edges.mu.Unlock()

	n := 0
	for _, wp := range edges.byID {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}
