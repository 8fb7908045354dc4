package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerFireUnconditionalNoEqualityGate(t *testing.T) {
	tr := NewTracker(nil)
	tg := NewTrigger(tr)

	var payloads []any
	tg.Watch(func(p any) { payloads = append(payloads, p) })

	tg.Fire("same")
	tg.Fire("same")
	tg.Fire("same")

	assert.Equal(t, []any{"same", "same", "same"}, payloads)
}

func TestTriggerTrackRegistersDependencyWithoutFiring(t *testing.T) {
	tr := NewTracker(nil)
	tg := NewTrigger(tr)

	calls := 0
	d := NewDerivedCell(tr, nil, func() any {
		calls++
		tg.Track()
		return calls
	}, DerivedLazy, nil)

	assert.Equal(t, 1, d.Get())

	tg.Fire(nil)
	assert.Equal(t, 2, d.Get())
}

func TestTriggerPanickingListenerDoesNotAbortPass(t *testing.T) {
	var reported []uint64
	tr := NewTracker(func(nodeID uint64, err any) { reported = append(reported, nodeID) })
	tg := NewTrigger(tr)

	tg.Watch(func(any) { panic("boom") })

	secondFired := 0
	tg.Watch(func(any) { secondFired++ })

	tg.Fire(nil)

	assert.Equal(t, []uint64{tg.ID()}, reported)
	assert.Equal(t, 1, secondFired)
}

func TestTriggerWatchDispose(t *testing.T) {
	tr := NewTracker(nil)
	tg := NewTrigger(tr)

	fired := 0
	sub := tg.Watch(func(any) { fired++ })
	tg.Fire(nil)
	assert.Equal(t, 1, fired)

	sub.Dispose()
	tg.Fire(nil)
	assert.Equal(t, 1, fired)
}
