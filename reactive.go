// Package reactive is a thread-safe, fine-grained dependency-tracking
// runtime: mutable Cells, cached Derived values, stateless Triggers,
// debounced async Resources, and side-effecting Effects, all wired
// together by a process-wide DependencyTracker rather than by manual
// subscription bookkeeping.
package reactive

import (
	"context"
	"sync/atomic"
	"weak"

	"github.com/reactor-run/reactive/internal"
)

// as recovers a concrete T from an internal node's type-erased any
// value. Internal nodes are deliberately non-generic (storing `any`) so
// the dependency graph can hold heterogeneous node types in one map;
// the generic wrapper types below are the only place a T is recovered,
// mirroring the teacher's sig.go `as[T any](v any) T` helper.
func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// Runtime owns the process-wide Tracker, the Executor pool/timer, and a
// root disposal scope. See InitRuntime.
type Runtime = internal.Runtime

// Executor is a pool of lightweight worker tasks plus a deadline-ordered
// timer queue. Every Runtime owns one as its shared pool; NewExecutor
// builds a standalone one for WithExecutor, isolating a resource's
// fetch/debounce work from the runtime's shared pool.
type Executor = internal.Executor

// NewExecutor constructs a standalone Executor. onPanic, if non-nil, is
// invoked whenever a task submitted to it panics, instead of crashing
// the process.
func NewExecutor(onPanic func(err any)) *Executor {
	return internal.NewExecutor(onPanic)
}

var active atomic.Pointer[Runtime]

// InitRuntime brings up a Runtime and makes it the active one that
// Cell/Derived/Trigger/Resource/Effect construct against. There is no
// ambient auto-created runtime: calling any constructor before
// InitRuntime, after the active runtime's Shutdown (or outside a
// WithRuntime scope) panics with RuntimeNotInitializedError.
func InitRuntime(opts ...RuntimeOption) (*Runtime, error) {
	var cfg internal.RuntimeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	rt := internal.NewRuntime(cfg)
	rt.Root.OnCleanup(func() { active.CompareAndSwap(rt, nil) })
	active.Store(rt)
	return rt, nil
}

func activeRuntime() *Runtime {
	rt := active.Load()
	if rt == nil {
		panic(&RuntimeNotInitializedError{})
	}
	return rt
}

// WithRuntime initializes a Runtime scoped to body's duration, shutting
// it down (and restoring whatever runtime was active before, if any)
// when body returns. Grounded on runtime/JSignalsRuntime.java's
// AutoCloseable scoping combined with the teacher's context-scoped
// combinators (WithOwner/WithListener in vango's tracking.go).
func WithRuntime(ctx context.Context, opts []RuntimeOption, body func(ctx context.Context) error) error {
	prev := active.Load()
	rt, err := InitRuntime(opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = rt.Shutdown(ctx)
		active.Store(prev)
	}()
	return body(ctx)
}

// CellHandle is a mutable, equality-gated reactive value.
type CellHandle[T any] struct {
	inner *internal.Cell
}

// Cell constructs a mutable Cell holding initial, using
// reflect.DeepEqual (or a built-in fast path) to decide whether a Set
// actually changed anything unless overridden with WithCellEquals.
func Cell[T any](initial T, opts ...CellOption[T]) *CellHandle[T] {
	rt := activeRuntime()

	var cfg cellConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &CellHandle[T]{inner: internal.NewCell(rt.Tracker, initial, cfg.equal)}
}

func (c *CellHandle[T]) Get() T  { return as[T](c.inner.Get()) }
func (c *CellHandle[T]) Peek() T { return as[T](c.inner.Peek()) }

func (c *CellHandle[T]) Set(v T) { c.inner.Set(v) }

func (c *CellHandle[T]) Update(fn func(current T) T) {
	c.inner.Update(func(current any) any { return fn(as[T](current)) })
}

func (c *CellHandle[T]) Watch(fn func(newValue T)) internal.Disposable {
	return c.inner.Watch(func(v any) { fn(as[T](v)) })
}

// DerivedHandle is a cached, lazily-or-eagerly recomputed reactive
// value.
type DerivedHandle[T any] struct {
	inner *internal.DerivedCell
}

// Derived constructs a DerivedCell whose value is recomputed by compute
// whenever a dependency it previously read changes. Lazy by default
// (recomputes on the next Get); pass WithEagerMode to recompute
// immediately on the runtime's executor instead.
func Derived[T any](compute func() T, opts ...DerivedOption) *DerivedHandle[T] {
	rt := activeRuntime()

	cfg := derivedConfig{mode: internal.DerivedLazy}
	for _, opt := range opts {
		opt(&cfg)
	}

	inner := internal.NewDerivedCell(rt.Tracker, rt.Executor, func() any { return compute() }, cfg.mode, cfg.equal)
	return &DerivedHandle[T]{inner: inner}
}

func (d *DerivedHandle[T]) Get() T  { return as[T](d.inner.Get()) }
func (d *DerivedHandle[T]) Peek() T { return as[T](d.inner.Peek()) }

func (d *DerivedHandle[T]) Invalidate() { d.inner.Invalidate() }

func (d *DerivedHandle[T]) Watch(fn func(newValue T)) internal.Disposable {
	return d.inner.Watch(func(v any) { fn(as[T](v)) })
}

// Map derives a new DerivedCell from an existing Cell or DerivedCell by
// applying fn to its value, re-deriving whenever the source changes.
func Map[T, U any](source interface{ Get() T }, fn func(T) U) *DerivedHandle[U] {
	return Derived(func() U { return fn(source.Get()) })
}

// With performs a one-shot transformed read: it applies mapper to
// source's tracked value and returns the result directly, without
// allocating a new DerivedCell. Grounded on core/Ref.java's
// Ref.with(Function), which applies the mapper to get() (a tracked
// read) rather than wrapping it in a ComputedRef.
func With[T, U any](source interface{ Get() T }, mapper func(T) U) U {
	return mapper(source.Get())
}

// WithValue performs a one-shot transformed read of source's current
// value without tracking it as a dependency of the calling computation.
// Grounded on core/Ref.java's Ref.withValue(Function), which applies the
// mapper to getValue() (Ref's untracked read) rather than get().
func WithValue[T, U any](source interface{ Peek() T }, mapper func(T) U) U {
	return mapper(source.Peek())
}

// TriggerHandle is a stateless signal carrying no cached value: every
// Fire unconditionally notifies, even with a payload identical to the
// last one.
type TriggerHandle struct {
	inner *internal.Trigger
}

// NewTrigger constructs a Trigger.
func NewTrigger() *TriggerHandle {
	rt := activeRuntime()
	return &TriggerHandle{inner: internal.NewTrigger(rt.Tracker)}
}

// Track registers this trigger as a dependency of the calling tracked
// computation, without firing.
func (t *TriggerHandle) Track() { t.inner.Track() }

// Fire notifies every listener and tracked dependent with payload.
func (t *TriggerHandle) Fire(payload any) { t.inner.Fire(payload) }

func (t *TriggerHandle) Watch(fn func(payload any)) internal.Disposable {
	return t.inner.Watch(fn)
}

// ResourceStatus is the state-machine position of a ResourceCell.
type ResourceStatus = internal.ResourceStatus

const (
	ResourceIdle      = internal.ResourceIdle
	ResourceLoading   = internal.ResourceLoading
	ResourceSuccess   = internal.ResourceSuccess
	ResourceError     = internal.ResourceError
	ResourceCancelled = internal.ResourceCancelled
)

// ResourceState is an immutable snapshot of a ResourceCell. Data always
// carries the last known-good value, even while Loading, Error or
// Cancelled.
type ResourceState[T any] struct {
	Status ResourceStatus
	Data   T
	Err    error
}

func fromInternalState[T any](s internal.ResourceState) ResourceState[T] {
	return ResourceState[T]{Status: s.Status, Data: as[T](s.Data), Err: s.Err}
}

// ResourceHandle is an async fetch node with debounce and automatic
// supersession of superseded in-flight fetches.
type ResourceHandle[T any] struct {
	inner *internal.ResourceCell
}

// Resource constructs a ResourceCell driven by fetcher. By default it
// must be started with Fetch/Refetch; pass WithAutoFetch to run the
// first fetch immediately at construction instead. Once a fetch has run
// at least once, the resource always refetches (debounced, per
// WithDebounce) whenever a cell read during the previous fetch changes,
// regardless of WithAutoFetch. WithExecutor runs its fetches on a
// dedicated Executor instead of the runtime's shared one.
func Resource[T any](fetcher func(ctx context.Context) (T, error), opts ...ResourceOption[T]) *ResourceHandle[T] {
	rt := activeRuntime()

	var cfg resourceConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	executor := rt.Executor
	if cfg.executor != nil {
		executor = cfg.executor
	}

	inner := internal.NewResourceCell(rt.Tracker, executor, func(ctx context.Context) (any, error) {
		return fetcher(ctx)
	}, cfg.debounce, cfg.autoFetch)

	if scope := internal.CurrentScope(); scope != nil {
		scope.OnCleanup(inner.Cancel)
	}

	return &ResourceHandle[T]{inner: inner}
}

func (r *ResourceHandle[T]) Get() ResourceState[T]  { return fromInternalState[T](r.inner.Get()) }
func (r *ResourceHandle[T]) Peek() ResourceState[T] { return fromInternalState[T](r.inner.Peek()) }

// Outcome is the terminal result of one fetch, delivered on the channel
// Fetch/Refetch/Invalidate return.
type Outcome[T any] struct {
	Data T
	Err  error
}

func convertOutcome[T any](ch <-chan internal.Outcome) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	go func() {
		o := <-ch
		out <- Outcome[T]{Data: as[T](o.Data), Err: o.Err}
		close(out)
	}()
	return out
}

// Fetch starts a fetch immediately, cancelling and superseding any fetch
// already in flight. The returned channel receives exactly one Outcome.
func (r *ResourceHandle[T]) Fetch() <-chan Outcome[T] { return convertOutcome[T](r.inner.Fetch()) }

// Refetch is an alias for Fetch.
func (r *ResourceHandle[T]) Refetch() <-chan Outcome[T] { return convertOutcome[T](r.inner.Refetch()) }

// Invalidate schedules a debounced fetch: every call within the debounce
// window shares the same underlying run, and each caller's returned
// channel receives that run's Outcome.
func (r *ResourceHandle[T]) Invalidate() <-chan Outcome[T] {
	return convertOutcome[T](r.inner.Invalidate())
}

func (r *ResourceHandle[T]) Cancel() { r.inner.Cancel() }

func (r *ResourceHandle[T]) Mutate(fn func(current T) T) {
	r.inner.Mutate(func(current any) any { return fn(as[T](current)) })
}

func (r *ResourceHandle[T]) Watch(fn func(ResourceState[T])) internal.Disposable {
	return r.inner.Watch(func(v any) { fn(fromInternalState[T](v.(internal.ResourceState))) })
}

// EffectHandle is a live side-effecting dependent; call Dispose to stop
// it from re-running and to run its last cleanup.
type EffectHandle struct {
	inner *internal.EffectRunner
}

// Effect runs body immediately and re-runs it on the runtime's executor
// whenever a cell it read changes. Call OnCleanup from within body to
// register a function run right before the next re-run or on Dispose.
func Effect(body func()) *EffectHandle {
	rt := activeRuntime()
	e := internal.NewEffectRunner(rt.Tracker, rt.Executor, body)
	e.Start()
	if scope := internal.CurrentScope(); scope != nil {
		scope.OnCleanup(e.Dispose)
	}
	return &EffectHandle{inner: e}
}

func (e *EffectHandle) Dispose() { e.inner.Dispose() }

// OnCleanup registers fn against the innermost Effect body or Scope call
// currently running on the calling goroutine: fn runs right before that
// Effect's next re-run or on its Dispose, or when that Scope is disposed.
// Calling it outside both is a no-op.
func OnCleanup(fn func()) {
	if scope := internal.CurrentScope(); scope != nil {
		scope.OnCleanup(fn)
	}
}

// Scope groups every Effect, Resource, and OnCleanup registration made
// (directly, or transitively through a nested Scope) during fn's call
// into one disposal unit: disposing the returned handle tears down
// every nested scope first, then runs fn's own cleanups, without the
// caller having to track each Effect/Resource/Disposable it created
// individually. Grounded on the teacher's sig.go Owner/Run combinator
// and internal/owner.go's parent/child disposal tree.
func Scope(fn func()) internal.Disposable {
	rt := activeRuntime()

	owner := internal.NewOwner()
	if parent := internal.CurrentScope(); parent != nil {
		parent.AddChild(owner)
	} else {
		rt.Root.AddChild(owner)
	}

	internal.PushScope(owner)
	func() {
		defer internal.PopScope()
		fn()
	}()

	return owner
}

// Untrack runs fn without registering any dependency it reads against
// the calling computation, even though that computation's tracking
// context is still active further down the call stack.
func Untrack[T any](fn func() T) T {
	rt := activeRuntime()
	rt.Tracker.PushUntracked()
	defer rt.Tracker.PopUntracked()
	return fn()
}

// FlatMapCache memoizes the DerivedHandle FlatMap builds for each
// distinct key pointer, weakly: once nothing outside the cache still
// references a key, its entry becomes collectible, and Prune drops it.
// Grounded on util/WeakLRUCache.java, the legacy switched-dependency
// memo this combinator is modeled on.
type FlatMapCache[K any, T any] struct {
	inner *internal.WeakKeyedLRU[K, *DerivedHandle[T]]
}

// NewFlatMapCache constructs a FlatMapCache holding at most capacity
// entries, evicting least-recently-used ones once exceeded.
func NewFlatMapCache[K any, T any](capacity int) *FlatMapCache[K, T] {
	return &FlatMapCache[K, T]{inner: internal.NewWeakKeyedLRU[K, *DerivedHandle[T]](capacity)}
}

// Prune drops cache entries whose key has been garbage collected.
func (c *FlatMapCache[K, T]) Prune() { c.inner.Prune() }

// FlatMap is the dynamic (switched) dependency combinator of spec.md §6:
// it tracks source as a dependency and, each time source's key changes,
// re-selects the inner DerivedCell fn builds for that key — re-tracking
// whichever inner node is selected, so the result also recomputes
// whenever that inner node's own value changes, flattening a
// two-level (outer key, inner node) dependency into one derived value.
// Per spec.md §4.9, the inner DerivedCell wrapping fn is built at most
// once per currently-reachable key and memoized in cache; fn itself runs
// again whenever that inner cell recomputes. The inner cell holds its key
// only weakly, so a key no longer retained anywhere outside the cache is
// free to be collected along with its cached inner node.
func FlatMap[K any, T any](source interface{ Get() *K }, fn func(*K) T, cache *FlatMapCache[K, T]) *DerivedHandle[T] {
	return Derived(func() T {
		key := source.Get()
		if key == nil {
			panic(&internal.NilArgumentError{Argument: "key"})
		}
		if cached, ok := cache.inner.Get(key); ok {
			return cached.Get()
		}
		wk := weak.Make(key)
		derived := Derived(func() T { return fn(wk.Value()) })
		cache.inner.Put(key, derived)
		return derived.Get()
	})
}

// At indexes into a slice of reactive handles, panicking with
// IndexOutOfRangeError instead of a bare runtime index-out-of-range
// error so callers can match on it the same way they match FetchError
// or CancelledError.
func At[H any](handles []H, index int) H {
	if index < 0 || index >= len(handles) {
		panic(&internal.IndexOutOfRangeError{Index: index, Length: len(handles)})
	}
	return handles[index]
}
