package internal

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RuntimeConfig holds the assembled result of the public RuntimeOption
// functional options. It lives in this package so Runtime's constructor
// doesn't need to import the root package's option types.
type RuntimeConfig struct {
	// OnDependentPanic is invoked whenever a direct listener, or a
	// dependent's OnDependencyChanged, panics during notification.
	OnDependentPanic func(nodeID uint64, err any)
	// OnTaskPanic is invoked whenever a task submitted to the executor
	// panics.
	OnTaskPanic func(err any)
	// Logger receives structured lifecycle messages (init, shutdown,
	// recovered panics). Defaults to the standard library logger writing
	// to stderr, matching JSignalsRuntime's close-time log line.
	Logger *log.Logger
}

// Runtime is the explicit, caller-owned aggregate of spec.md §9's
// design note: rather than an ambient process-wide singleton
// auto-created on first access (the source lineage's
// runtime_default.go/runtime_wasm.go pattern), callers obtain one from
// InitRuntime and must Shutdown it. It bundles the process-wide Tracker
// with the Executor, and a root Owner scoping any resource that wants
// its lifecycle tied to the runtime itself.
type Runtime struct {
	Tracker  *Tracker
	Executor *Executor
	Root     *Owner

	logger *log.Logger

	mu     sync.Mutex
	closed bool
}

func NewRuntime(cfg RuntimeConfig) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[reactive] ", log.LstdFlags)
	}

	onDependentPanic := cfg.OnDependentPanic
	if onDependentPanic == nil {
		onDependentPanic = func(nodeID uint64, err any) {
			logger.Printf("[%d] recovered panic notifying node %d: %v", symbolDependentPanic, nodeID, err)
		}
	}
	onTaskPanic := cfg.OnTaskPanic
	if onTaskPanic == nil {
		onTaskPanic = func(err any) {
			logger.Printf("[%d] recovered panic in executor task: %v", symbolTaskPanic, err)
		}
	}

	r := &Runtime{
		Tracker:  NewTracker(onDependentPanic),
		Executor: NewExecutor(onTaskPanic),
		Root:     NewOwner(),
		logger:   logger,
	}
	logger.Printf("[%d] runtime initialized", symbolRuntimeInit)
	return r
}

// Shutdown disposes the root owner and stops the executor, waiting for
// in-flight tasks to drain or ctx to be cancelled, whichever comes
// first. Grounded on runtime/JSignalsRuntime.java's AutoCloseable.close.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.Root.Dispose()

	done := make(chan error, 1)
	go func() { done <- r.Executor.Close() }()

	select {
	case err := <-done:
		r.logger.Printf("[%d] runtime closed", symbolRuntimeShutdown)
		return err
	case <-ctx.Done():
		r.logger.Printf("[%d] runtime closed (executor drain abandoned: context done)", symbolRuntimeShutdown)
		return ctx.Err()
	}
}

// DebugString renders a one-shot snapshot of tracker occupancy as a
// table, adapted from delaneyj-signalparty's go-pretty usage for ad hoc
// debug tooling rather than benchmark reporting.
func (r *Runtime) DebugString() string {
	dependencyNodes, dependentNodes := r.Tracker.DebugCounts()

	var sb strings.Builder
	tw := table.NewWriter()
	tw.SetOutputMirror(&sb)
	tw.AppendHeader(table.Row{"metric", "value"})
	tw.AppendRow(table.Row{"tracked dependency nodes", dependencyNodes})
	tw.AppendRow(table.Row{"tracked dependents", dependentNodes})
	tw.Render()

	return fmt.Sprintf("reactive runtime debug snapshot\n%s", sb.String())
}
