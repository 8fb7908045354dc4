package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedRecomputesOnDependencyChange(t *testing.T) {
	tr := NewTracker(nil)
	c := NewCell(tr, 2, nil)

	calls := 0
	d := NewDerivedCell(tr, nil, func() any {
		calls++
		return c.Get().(int) * 10
	}, DerivedLazy, nil)

	assert.Equal(t, 20, d.Get())
	assert.Equal(t, 1, calls)

	// lazy: same value read again without a dependency change doesn't recompute
	assert.Equal(t, 20, d.Get())
	assert.Equal(t, 1, calls)

	c.Set(3)
	assert.Equal(t, 30, d.Get())
	assert.Equal(t, 2, calls)
}

func TestDerivedSwitchedDependencies(t *testing.T) {
	tr := NewTracker(nil)
	useA := NewCell(tr, true, nil)
	a := NewCell(tr, "a", nil)
	b := NewCell(tr, "b", nil)

	d := NewDerivedCell(tr, nil, func() any {
		if useA.Get().(bool) {
			return a.Get()
		}
		return b.Get()
	}, DerivedLazy, nil)

	assert.Equal(t, "a", d.Get())

	// switch branches: d should now depend on b, not a
	useA.Set(false)
	assert.Equal(t, "b", d.Get())

	d.Invalidate()
	a.Set("a2") // no longer a dependency; must not force a recompute via notify
	assert.Equal(t, "b", d.Peek())
}

func TestDerivedWithWatchRecomputesInBackground(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	c := NewCell(tr, 2, nil)
	d := NewDerivedCell(tr, ex, func() any {
		return c.Get().(int) * 10
	}, DerivedLazy, nil)

	// lazy by construction, but acquiring a subscriber is itself enough
	// to move it onto the eager path — no Get call follows.
	var mu sync.Mutex
	var got []any
	d.Watch(func(v any) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	// establish the initial cached value without it counting as the
	// "explicit read" the property is about to forbid.
	assert.Equal(t, 20, d.Get())

	c.Set(3)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []any{30}, got)
	assert.Equal(t, 30, d.Peek())
}

func TestDerivedCycleDetection(t *testing.T) {
	tr := NewTracker(nil)

	var self *DerivedCell
	self = NewDerivedCell(tr, nil, func() any {
		return self.Get()
	}, DerivedLazy, nil)

	require.PanicsWithValue(t, &CycleError{NodeID: self.ID()}, func() { self.Get() })
}
