package internal

import "sync"

// Notifier guards a node's notification phase against re-entrancy: a
// direct listener or a dependent's OnDependencyChanged that writes back
// into the same node during its own notification must not trigger a
// second, nested notification pass. Grounded on DependentNotifier.java's
// isNotifying flag plus a synchronized re-check.
type Notifier struct {
	mu        sync.Mutex
	notifying bool
	onReentry func()
}

// NewNotifier returns a Notifier. onReentry, if non-nil, is invoked
// (instead of running the notification) whenever Notify is called while
// a notification from the same node is already in flight.
func NewNotifier(onReentry func()) *Notifier {
	return &Notifier{onReentry: onReentry}
}

// Notify runs direct first (the node's own subscriber phase), then tracker
// (the Tracker's dependent-notification phase), guarding against
// re-entrant calls from within either phase.
func (n *Notifier) Notify(direct, tracker func()) {
	n.mu.Lock()
	if n.notifying {
		n.mu.Unlock()
		if n.onReentry != nil {
			n.onReentry()
		}
		return
	}
	n.notifying = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.notifying = false
		n.mu.Unlock()
	}()

	if direct != nil {
		direct()
	}
	if tracker != nil {
		tracker()
	}
}
