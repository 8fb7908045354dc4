package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifierGuardsReentrancy(t *testing.T) {
	var reentered bool
	n := NewNotifier(func() { reentered = true })

	var calls int
	n.Notify(func() {
		calls++
		// a re-entrant call from within direct/tracker must be rejected
		n.Notify(func() { calls++ }, nil)
	}, nil)

	assert.Equal(t, 1, calls)
	assert.True(t, reentered)
}

func TestNotifierRunsDirectThenTracker(t *testing.T) {
	n := NewNotifier(nil)

	var order []string
	n.Notify(
		func() { order = append(order, "direct") },
		func() { order = append(order, "tracker") },
	)

	assert.Equal(t, []string{"direct", "tracker"}, order)
}

func TestNotifierAllowsSequentialCalls(t *testing.T) {
	n := NewNotifier(nil)

	calls := 0
	n.Notify(func() { calls++ }, nil)
	n.Notify(func() { calls++ }, nil)

	assert.Equal(t, 2, calls)
}
