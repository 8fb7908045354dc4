package internal

import "github.com/cespare/xxhash/v2"

// symbol is a stable numeric tag for a log event category, grounded on
// delaneyj-signalparty's pkg/flimsy/types.go SYMBOL_* constants (each a
// masked xxhash of a name rather than an iota, so the numeric value
// survives reordering the declarations below).
type symbol uint64

func newSymbol(name string) symbol {
	return symbol(xxhash.Sum64String(name) & 0x7fffffffffffffff)
}

var (
	symbolDependentPanic  = newSymbol("dependent_panic")
	symbolTaskPanic       = newSymbol("task_panic")
	symbolRuntimeInit     = newSymbol("runtime_init")
	symbolRuntimeShutdown = newSymbol("runtime_shutdown")
)
