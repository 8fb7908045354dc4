package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectRunsImmediatelyAndOnChange(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	c := NewCell(tr, 1, nil)
	var mu sync.Mutex
	var log []int

	e := NewEffectRunner(tr, ex, func() {
		v := c.Get().(int)
		mu.Lock()
		log = append(log, v)
		mu.Unlock()
	})
	e.Start()

	mu.Lock()
	assert.Equal(t, []int{1}, log)
	mu.Unlock()

	c.Set(2)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(log) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, log)
	mu.Unlock()

	e.Dispose()
	c.Set(3)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, log)
	mu.Unlock()
}

func TestEffectCleanupRunsBeforeNextRunAndOnDispose(t *testing.T) {
	tr := NewTracker(nil)
	ex := NewExecutor(nil)
	defer ex.Close()

	c := NewCell(tr, 1, nil)
	var mu sync.Mutex
	var log []string

	e := NewEffectRunner(tr, ex, func() {
		_ = c.Get().(int)
		mu.Lock()
		log = append(log, "run")
		mu.Unlock()

		if scope := CurrentScope(); scope != nil {
			scope.OnCleanup(func() {
				mu.Lock()
				log = append(log, "cleanup")
				mu.Unlock()
			})
		}
	})
	e.Start()

	c.Set(2)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(log) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"run", "cleanup", "run"}, log)
	mu.Unlock()

	e.Dispose()
	mu.Lock()
	assert.Equal(t, []string{"run", "cleanup", "run", "cleanup"}, log)
	mu.Unlock()
}
