package internal

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Executor is the runtime's pool of lightweight worker tasks plus a
// single background goroutine driving a deadline-ordered timer queue.
// Grounded on JSignalsExecutor.java/JSignalsVThreadPool.java (an
// unbounded virtual-thread factory for fire-and-forget submission, and a
// single-thread scheduled executor for delays) — merged here into one
// type since the two Java classes were a legacy duplication of the same
// concern. The worker pool itself is golang.org/x/sync/errgroup, the
// idiomatic Go replacement for an unbounded thread-per-task executor.
type Executor struct {
	group *errgroup.Group
	gctx  context.Context

	timerMu   sync.Mutex
	timerHeap timerHeap
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	onPanic func(err any)
}

type timerTask struct {
	at    time.Time
	fn    func()
	index int
}

type timerHeap []*timerTask

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// NewExecutor starts the background timer-driving goroutine. onPanic, if
// non-nil, is invoked whenever a submitted task panics, instead of
// crashing the process.
func NewExecutor(onPanic func(err any)) *Executor {
	g, gctx := errgroup.WithContext(context.Background())
	e := &Executor{
		group:   g,
		gctx:    gctx,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		onPanic: onPanic,
	}
	go e.runTimer()
	return e
}

// Submit runs fn on the pool, recovering any panic via onPanic rather
// than propagating it to the errgroup (an error-producing task would
// otherwise cancel sibling work via the shared context).
func (e *Executor) Submit(fn func()) {
	e.group.Go(func() error {
		e.guarded(fn)
		return nil
	})
}

func (e *Executor) guarded(fn func()) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
	}()
	fn()
}

// Schedule runs fn on the pool after d elapses. It returns a Disposable
// that cancels the pending run if it hasn't fired yet.
func (e *Executor) Schedule(d time.Duration, fn func()) Disposable {
	task := &timerTask{at: time.Now().Add(d), fn: fn}

	e.timerMu.Lock()
	heap.Push(&e.timerHeap, task)
	e.timerMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}

	return disposeFunc(func() {
		e.timerMu.Lock()
		defer e.timerMu.Unlock()
		if task.index >= 0 && task.index < len(e.timerHeap) && e.timerHeap[task.index] == task {
			heap.Remove(&e.timerHeap, task.index)
			task.fn = nil
		}
	})
}

func (e *Executor) runTimer() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		e.timerMu.Lock()
		var wait time.Duration
		if e.timerHeap.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(e.timerHeap[0].at)
			if wait < 0 {
				wait = 0
			}
		}
		e.timerMu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-e.done:
			return
		case <-e.wake:
			continue
		case <-timer.C:
			e.fireDue()
		}
	}
}

func (e *Executor) fireDue() {
	now := time.Now()
	var due []*timerTask

	e.timerMu.Lock()
	for e.timerHeap.Len() > 0 && !e.timerHeap[0].at.After(now) {
		due = append(due, heap.Pop(&e.timerHeap).(*timerTask))
	}
	e.timerMu.Unlock()

	for _, t := range due {
		if t.fn != nil {
			e.Submit(t.fn)
		}
	}
}

// Close stops the timer goroutine and waits for in-flight submitted
// tasks to finish.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return e.group.Wait()
}
