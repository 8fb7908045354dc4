package internal

import (
	"context"
	"sync"
	"time"
)

// ResourceStatus is the state-machine position of a ResourceCell.
type ResourceStatus int

const (
	ResourceIdle ResourceStatus = iota
	ResourceLoading
	ResourceSuccess
	ResourceError
	ResourceCancelled
)

// ResourceState is an immutable snapshot of a ResourceCell: besides the
// current status, Data always carries the last known-good value (even
// while Loading, Error, or Cancelled), so a consumer never has to fall
// back to a zero value just because a refetch is in flight. Grounded on
// async/ResourceRef.java, the more complete of the two legacy resource
// implementations found in the original source, which threads a
// cachedValue through every transition instead of discarding it on
// Resource.java's simpler path.
type ResourceState struct {
	Status ResourceStatus
	Data   any
	Err    error
}

// Outcome is the terminal result of one fetch: either Data on success, or
// Err for a failed or cancelled/superseded fetch. It is delivered on the
// channel returned by Fetch/Invalidate — the Go realization of spec.md's
// "completion future", grounded on other_examples/b97tsk-async's
// Task/Result-over-channel discussion.
type Outcome struct {
	Data any
	Err  error
}

// ResourceCell is the async fetch node of spec.md §4.6. Grounded on
// async/ResourceRef.java for the supersession discipline (an atomic
// getAndSet on the in-flight fetch, cancelling whatever it replaces) and
// on vango's pkg/features/resource/resource.go for the Go-idiomatic
// realization of the same state machine (a fetchID generation counter,
// goroutine-based execution, retry-with-backoff). Debounce is driven by
// the runtime Executor's timer queue rather than a bare time.Sleep, so a
// burst of Invalidate calls collapses into a single fetch.
type ResourceCell struct {
	nodeBase

	fetcher   func(ctx context.Context) (any, error)
	tracker   *Tracker
	executor  *Executor
	debounce  time.Duration
	autoFetch bool

	mu         sync.Mutex
	state      ResourceState
	generation uint64
	cancel     context.CancelFunc
	pendingOp  Disposable
	waiters    []chan Outcome // callers awaiting the next run's completion

	subs     *SubscriptionList[Listener]
	notifier *Notifier
}

func NewResourceCell(tracker *Tracker, executor *Executor, fetcher func(ctx context.Context) (any, error), debounce time.Duration, autoFetch bool) *ResourceCell {
	r := &ResourceCell{
		nodeBase:  newNodeBase(),
		fetcher:   fetcher,
		tracker:   tracker,
		executor:  executor,
		debounce:  debounce,
		autoFetch: autoFetch,
		state:     ResourceState{Status: ResourceIdle},
		subs:      NewSubscriptionList[Listener](),
	}
	r.notifier = NewNotifier(nil)
	r.BindSelf(r)

	if autoFetch {
		r.run()
	}
	return r
}

// OnDependencyChanged refetches, debounced, whenever a cell read during a
// prior fetch changes — unconditionally, not gated on autoFetch: autoFetch
// only controls whether the first fetch happens eagerly at construction
// (ResourceRef.java's constructor: `if (autoFetch) fetch()`); once a
// fetcher has run once and tracked a dependency set,
// ResourceRef.onDependencyChanged() always refetches, since that is the
// only way a resource whose dependencies change ever re-tracks them.
func (r *ResourceCell) OnDependencyChanged() {
	r.debouncedRun()
}

// Get returns the current state snapshot and tracks this resource as a
// dependency of the calling computation, if any.
func (r *ResourceCell) Get() ResourceState {
	r.tracker.TrackAccess(r)
	return r.Peek()
}

// Peek returns the current state snapshot without tracking.
func (r *ResourceCell) Peek() ResourceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Fetch starts a fetch immediately, cancelling and superseding any
// fetch already in flight. It bypasses the debounce delay; use
// Invalidate for debounced refetch-on-dependency-change behaviour. The
// returned channel receives exactly one Outcome — the result of this
// call's own fetch if it runs to completion, or a CancelledError-carrying
// Outcome if a later call supersedes it first.
func (r *ResourceCell) Fetch() <-chan Outcome {
	future := r.addWaiter()
	r.cancelPending()
	r.run()
	return future
}

// Refetch is an alias for Fetch kept for call-site clarity at use sites
// that are explicitly re-running a completed fetch rather than starting
// the first one.
func (r *ResourceCell) Refetch() <-chan Outcome {
	return r.Fetch()
}

// Invalidate schedules a debounced fetch: repeated calls within the
// debounce window collapse into a single run, and every caller's
// returned channel receives that one run's Outcome — a shared completion
// future fanned out over one receive-once channel per caller.
func (r *ResourceCell) Invalidate() <-chan Outcome {
	future := r.addWaiter()
	r.debouncedRun()
	return future
}

func (r *ResourceCell) addWaiter() chan Outcome {
	future := make(chan Outcome, 1)
	r.mu.Lock()
	r.waiters = append(r.waiters, future)
	r.mu.Unlock()
	return future
}

// debouncedRun restarts the debounce window: it cancels any run still
// pending from an earlier call and schedules a fresh one after the
// debounce delay, so a burst of calls within the window resolves into a
// single run, one delay after the last call, carrying every waiter
// registered since the last run started. With no delay it runs at once.
func (r *ResourceCell) debouncedRun() {
	r.mu.Lock()
	alreadyPending := r.pendingOp != nil
	r.mu.Unlock()

	if alreadyPending {
		r.cancelPending()
	}

	if r.debounce <= 0 {
		r.run()
		return
	}

	r.mu.Lock()
	r.pendingOp = r.executor.Schedule(r.debounce, r.run)
	r.mu.Unlock()
}

func (r *ResourceCell) cancelPending() {
	r.mu.Lock()
	op := r.pendingOp
	r.pendingOp = nil
	r.mu.Unlock()

	if op != nil {
		op.Dispose()
	}
}

// Mutate applies an optimistic local update to the last known-good data
// without touching the in-flight fetch or status.
func (r *ResourceCell) Mutate(fn func(current any) any) {
	r.mu.Lock()
	r.state.Data = fn(r.state.Data)
	snapshot := r.state
	r.mu.Unlock()

	r.publish(snapshot)
}

// Cancel aborts the in-flight fetch, if any, moving the resource straight
// to Idle(last) — preserving the last known-good data — rather than
// leaving it parked in a terminal Cancelled state. Grounded on
// ResourceRef.java's cancel(): it cancels the future then immediately
// sets state to idle(cachedValue.get()). The in-flight fetch's own
// completion still resolves its waiters with a CancelledError outcome;
// it is superseded the same way a newer Fetch/Invalidate would supersede
// it, so it never overwrites the Idle state this call just published.
func (r *ResourceCell) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	if cancel == nil {
		r.mu.Unlock()
		return
	}
	r.cancel = nil
	r.generation++
	r.state.Status = ResourceIdle
	r.state.Err = nil
	snapshot := r.state
	r.mu.Unlock()

	cancel()
	r.publish(snapshot)
}

func (r *ResourceCell) run() {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancel = cancel
	r.generation++
	gen := r.generation
	waiters := r.waiters
	r.waiters = nil
	r.state.Status = ResourceLoading
	r.state.Err = nil
	snapshot := r.state
	r.mu.Unlock()

	r.publish(snapshot)

	r.executor.Submit(func() {
		r.tracker.StartTracking(r)
		data, err := func() (any, error) {
			defer r.tracker.StopTracking()
			return r.fetcher(ctx)
		}()

		r.mu.Lock()
		superseded := gen != r.generation
		if !superseded {
			r.cancel = nil
		}

		var outcome Outcome
		switch {
		case ctx.Err() != nil:
			cerr := &CancelledError{Cause: ctx.Err()}
			outcome = Outcome{Err: cerr}
			if !superseded {
				r.state.Status = ResourceCancelled
				r.state.Err = cerr
			}
		case err != nil:
			ferr := &FetchError{Cause: err}
			outcome = Outcome{Err: ferr}
			if !superseded {
				r.state.Status = ResourceError
				r.state.Err = ferr
			}
		default:
			outcome = Outcome{Data: data}
			if !superseded {
				r.state.Status = ResourceSuccess
				r.state.Data = data
				r.state.Err = nil
			}
		}
		result := r.state
		r.mu.Unlock()

		// A superseded fetch still resolves its own generation's
		// waiters (as cancelled) so a caller of the superseded Fetch
		// never blocks forever on a channel nothing will complete;
		// it just doesn't touch shared state a newer run already
		// owns.
		if !superseded {
			r.publish(result)
		}
		for _, w := range waiters {
			w <- outcome
			close(w)
		}
	})
}

func (r *ResourceCell) publish(state ResourceState) {
	r.notifier.Notify(
		func() {
			r.subs.Each(func(l Listener) { r.tracker.SafeCall(r.ID(), func() { l(state) }) })
		},
		func() { r.tracker.NotifyDependents(r) },
	)
}

// Watch registers a direct listener fired with every state transition.
func (r *ResourceCell) Watch(l Listener) Disposable {
	return r.subs.Add(l)
}
