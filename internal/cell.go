package internal

import "sync"

// Listener is a direct subscriber callback fired on every accepted change
// to a node's value, receiving the new value boxed as any.
type Listener func(newValue any)

// Cell is the mutable leaf node of spec.md §3: a boxed value gated by an
// equality function, tracked by a Tracker, and observed either through
// the Tracker's dependent graph or through direct Listener subscriptions.
// Grounded on vango's pkg/vango/signal.go Signal[T]: an RWMutex-guarded
// value plus a copy-before-notify subscriber list, generalized here to
// hold the value as `any` so the generic public wrapper can recover a T.
type Cell struct {
	nodeBase

	mu    sync.RWMutex
	value any
	equal func(a, b any) bool

	tracker  *Tracker
	subs     *SubscriptionList[Listener]
	notifier *Notifier
}

func NewCell(tracker *Tracker, initial any, equal func(a, b any) bool) *Cell {
	if equal == nil {
		equal = DefaultEqual
	}
	c := &Cell{
		nodeBase: newNodeBase(),
		value:    initial,
		equal:    equal,
		tracker:  tracker,
		subs:     NewSubscriptionList[Listener](),
	}
	c.notifier = NewNotifier(nil)
	return c
}

// Get reads the current value and, if called from within a tracked
// computation on the calling goroutine, registers this cell as one of
// that computation's dependencies.
func (c *Cell) Get() any {
	c.tracker.TrackAccess(c)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Peek reads the current value without registering a dependency.
func (c *Cell) Peek() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value. If the new value is equal to the old one under
// the cell's equality function, nothing happens: no notification, no
// dependent recomputation. Otherwise direct listeners fire first, then
// the Tracker notifies every dependent that has read this cell. The two
// phases are guarded by a Notifier against re-entrant notification, so a
// listener that writes back into this same cell synchronously doesn't
// recurse into a second, nested notification pass.
func (c *Cell) Set(v any) {
	c.commit(func(any) any { return v })
}

// Update reads the current value, applies fn, and stores the result,
// holding the lock across the whole read-compute-write so two concurrent
// Updates can't both read the same current value and race to overwrite
// each other's result. Grounded on vango's Signal.Update, which holds
// its mutex across the same span for the same reason.
func (c *Cell) Update(fn func(current any) any) {
	c.commit(fn)
}

func (c *Cell) commit(fn func(current any) any) {
	c.mu.Lock()
	next := fn(c.value)
	if c.equal(c.value, next) {
		c.mu.Unlock()
		return
	}
	c.value = next
	c.mu.Unlock()

	c.notifier.Notify(
		func() { c.subs.Each(func(l Listener) { c.tracker.SafeCall(c.ID(), func() { l(next) }) }) },
		func() { c.tracker.NotifyDependents(c) },
	)
}

// Watch registers a direct listener fired with the new value on every
// accepted Set. The returned Disposable removes it.
func (c *Cell) Watch(l Listener) Disposable {
	return c.subs.Add(l)
}
