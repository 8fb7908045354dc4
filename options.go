package reactive

import (
	"log"
	"time"

	"github.com/reactor-run/reactive/internal"
)

// RuntimeOption configures a Runtime at InitRuntime time.
type RuntimeOption func(*internal.RuntimeConfig)

// WithLogger overrides the runtime's lifecycle/error logger. Defaults to
// the standard library logger writing to stderr.
func WithLogger(logger *log.Logger) RuntimeOption {
	return func(c *internal.RuntimeConfig) { c.Logger = logger }
}

// WithDependentPanicHandler overrides how a panic raised while notifying
// a node is reported: a panicking Watch listener, or a dependent whose
// change notification panics. Compute functions and effect bodies that
// re-run on the executor report their panics through
// WithTaskPanicHandler instead. The notification walk continues to the
// next listener or dependent regardless.
func WithDependentPanicHandler(fn func(nodeID uint64, err any)) RuntimeOption {
	return func(c *internal.RuntimeConfig) { c.OnDependentPanic = fn }
}

// WithTaskPanicHandler overrides how a panic raised by a task submitted
// to the runtime's executor is reported.
func WithTaskPanicHandler(fn func(err any)) RuntimeOption {
	return func(c *internal.RuntimeConfig) { c.OnTaskPanic = fn }
}

// CellOption configures a Cell at construction time.
type CellOption[T any] func(*cellConfig)

type cellConfig struct {
	equal func(a, b any) bool
}

// WithCellEquals overrides the default equality check that gates Set:
// a Set carrying a value equal under this function to the current one
// is a no-op, firing no listeners and no dependent recomputation.
func WithCellEquals[T any](equal func(a, b T) bool) CellOption[T] {
	return func(c *cellConfig) {
		c.equal = func(a, b any) bool { return equal(a.(T), b.(T)) }
	}
}

// DerivedOption configures a DerivedCell at construction time.
type DerivedOption func(*derivedConfig)

type derivedConfig struct {
	mode  internal.DerivedMode
	equal func(a, b any) bool
}

// WithEagerMode recomputes a DerivedCell immediately on the runtime's
// executor whenever a dependency changes, instead of waiting for the
// next Get.
func WithEagerMode() DerivedOption {
	return func(c *derivedConfig) { c.mode = internal.DerivedEager }
}

// WithDerivedEquals overrides the cached-value equality check used to
// decide whether a recompute actually changed anything.
func WithDerivedEquals[T any](equal func(a, b T) bool) DerivedOption {
	return func(c *derivedConfig) {
		c.equal = func(a, b any) bool { return equal(a.(T), b.(T)) }
	}
}

// ResourceOption configures a ResourceCell at construction time.
type ResourceOption[T any] func(*resourceConfig[T])

type resourceConfig[T any] struct {
	debounce  time.Duration
	autoFetch bool
	executor  *Executor
}

// WithAutoFetch makes the resource run its fetcher immediately at
// construction instead of waiting for an explicit Fetch/Refetch call.
// Once the fetcher has run once (whether triggered by this option or by
// an explicit call) and tracked a dependency set, the resource always
// refetches on a tracked dependency's change, subject to WithDebounce,
// independent of this option.
func WithAutoFetch[T any]() ResourceOption[T] {
	return func(c *resourceConfig[T]) { c.autoFetch = true }
}

// WithDebounce collapses a burst of Invalidate calls within d into a
// single fetch.
func WithDebounce[T any](d time.Duration) ResourceOption[T] {
	return func(c *resourceConfig[T]) { c.debounce = d }
}

// WithExecutor runs this resource's fetches and debounce timer on a
// dedicated Executor instead of the runtime's shared one — for isolating
// a slow or high-volume fetcher's work from the rest of the runtime's
// background tasks.
func WithExecutor[T any](executor *Executor) ResourceOption[T] {
	return func(c *resourceConfig[T]) { c.executor = executor }
}
