package internal

import (
	"sync"
	"sync/atomic"
)

// DerivedMode controls when a DerivedCell recomputes after a dependency
// changes: Lazy defers recomputation until the next Get, Eager
// recomputes immediately on the executor so dependents already observe
// a fresh value by the time they read it.
type DerivedMode int

const (
	DerivedLazy DerivedMode = iota
	DerivedEager
)

const noComputingGID = 0

// DerivedCell is the cached, lazily-or-eagerly recomputed node of spec.md
// §4.3. Grounded on vango's pkg/vango/memo.go Memo[T]: a valid/computing
// flag pair guarding recomputation, with sources re-tracked on every
// recompute so dynamic (switched) dependencies are supported. Cycle
// detection is grounded on the same file's computing atomic guard, but
// strengthened here to check the computing goroutine's identity before
// attempting the node's lock: sync.RWMutex is not reentrant, so a same-
// goroutine recursive read must be caught before it locks, or it would
// deadlock instead of raising a CycleError.
type DerivedCell struct {
	nodeBase

	compute func() any
	equal   func(a, b any) bool
	mode    DerivedMode

	tracker  *Tracker
	executor *Executor

	mu          sync.RWMutex
	value       any
	hasValue    bool
	dirty       bool
	computingOf atomic.Int64 // goroutine id currently inside recompute, or noComputingGID

	subs     *SubscriptionList[Listener]
	notifier *Notifier
}

func NewDerivedCell(tracker *Tracker, executor *Executor, compute func() any, mode DerivedMode, equal func(a, b any) bool) *DerivedCell {
	if equal == nil {
		equal = DefaultEqual
	}
	d := &DerivedCell{
		nodeBase: newNodeBase(),
		compute:  compute,
		equal:    equal,
		mode:     mode,
		tracker:  tracker,
		executor: executor,
		dirty:    true,
		subs:     NewSubscriptionList[Listener](),
	}
	d.notifier = NewNotifier(nil)
	d.BindSelf(d)
	return d
}

func (d *DerivedCell) OnDependencyChanged() {
	// Eager either by construction or because at least one direct
	// listener is watching: a subscriber has no other way to observe a
	// recompute than a background one, since it never calls Get itself.
	if d.mode == DerivedEager || d.subs.Len() > 0 {
		d.mu.Lock()
		d.dirty = true
		d.mu.Unlock()

		d.executor.Submit(func() {
			changed := d.recompute()
			if changed {
				d.notifier.Notify(
					func() {
						d.subs.Each(func(l Listener) { d.tracker.SafeCall(d.ID(), func() { l(d.Peek()) }) })
					},
					func() { d.tracker.NotifyDependents(d) },
				)
			}
		})
		return
	}

	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
	// Lazy mode still propagates the invalidation to its own
	// dependents so a derived-of-derived chain recomputes on demand
	// rather than serving a stale cached value.
	d.tracker.NotifyDependents(d)
}

// Get returns the current value, recomputing first if dirty. Registers
// this node as a dependency of the calling computation, if any.
func (d *DerivedCell) Get() any {
	d.ensureFresh()
	d.tracker.TrackAccess(d)
	return d.Peek()
}

// Peek returns the cached value without recomputing or tracking.
func (d *DerivedCell) Peek() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// Invalidate forces the next Get to recompute even if no tracked
// dependency has changed.
func (d *DerivedCell) Invalidate() {
	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
}

func (d *DerivedCell) ensureFresh() {
	if d.computingOf.Load() == currentGoroutineID() {
		panic(&CycleError{NodeID: d.ID()})
	}

	d.mu.RLock()
	needsRecompute := d.dirty || !d.hasValue
	hadValue := d.hasValue
	d.mu.RUnlock()

	if needsRecompute && d.recompute() && hadValue {
		d.notifier.Notify(func() {
			d.subs.Each(func(l Listener) { d.tracker.SafeCall(d.ID(), func() { l(d.Peek()) }) })
		}, nil)
	}
}

// recompute runs compute, guarded against same-goroutine re-entrant
// cycles and against concurrent recomputation from other goroutines. It
// returns whether the cached value changed.
func (d *DerivedCell) recompute() bool {
	gid := currentGoroutineID()

	if d.computingOf.Load() == gid {
		panic(&CycleError{NodeID: d.ID()})
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.dirty && d.hasValue {
		return false
	}

	d.computingOf.Store(gid)
	defer d.computingOf.Store(noComputingGID)

	d.tracker.StartTracking(d)
	var result any
	func() {
		defer d.tracker.StopTracking()
		result = d.compute()
	}()

	changed := !d.hasValue || !d.equal(d.value, result)
	d.value = result
	d.hasValue = true
	d.dirty = false
	return changed
}

// Watch registers a direct listener fired with the new value whenever a
// recompute replaces an earlier cached value with a different one: from
// the executor when a dependency change triggers the background
// recompute (always the case while a listener is registered), or from
// the calling goroutine when Get forces the recompute first. The first
// computation of the value fires nothing.
func (d *DerivedCell) Watch(l Listener) Disposable {
	return d.subs.Add(l)
}
