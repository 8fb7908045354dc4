package internal

import "github.com/petermattis/goid"

// currentGoroutineID identifies the calling goroutine. It keys the
// per-task computation-context stack in Tracker, the same ambient-context
// technique the rest of this codebase's lineage uses for thread-local
// reactive state.
func currentGoroutineID() int64 {
	return goid.Get()
}
