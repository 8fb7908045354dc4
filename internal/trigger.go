package internal

// Trigger is the stateless signal node of spec.md §3: it carries no
// cached value and no equality gate, so every Fire unconditionally
// notifies direct listeners and tracked dependents, even if the payload
// is identical to the last one. Grounded on the same Cell/Signal
// subscriber-list shape, stripped of the value box and equality check.
type Trigger struct {
	nodeBase

	tracker *Tracker
	subs    *SubscriptionList[Listener]
}

func NewTrigger(tracker *Tracker) *Trigger {
	return &Trigger{
		nodeBase: newNodeBase(),
		tracker:  tracker,
		subs:     NewSubscriptionList[Listener](),
	}
}

// Track registers this trigger as a dependency of the calling tracked
// computation, if any, without firing anything. A DerivedCell or
// EffectRunner that reads a Trigger this way recomputes on every Fire.
func (t *Trigger) Track() {
	t.tracker.TrackAccess(t)
}

// Fire notifies every direct listener and tracked dependent with
// payload, unconditionally. A panicking listener is caught and reported
// via the tracker's error hook rather than aborting the rest of the pass
// or the remaining dependent notifications.
func (t *Trigger) Fire(payload any) {
	t.subs.Each(func(l Listener) { t.tracker.SafeCall(t.ID(), func() { l(payload) }) })
	t.tracker.NotifyDependents(t)
}

// Watch registers a direct listener invoked with each Fire's payload.
func (t *Trigger) Watch(l Listener) Disposable {
	return t.subs.Add(l)
}
