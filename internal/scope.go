package internal

import "sync"

// scopeStack is the ambient per-goroutine stack of the Owner currently
// running, mirroring the teacher's sig.go ambient Owner/Context
// machinery but keyed by goroutine id instead of a single package-level
// field, so OnCleanup called from within a concurrently-running effect
// body on another goroutine attaches to that goroutine's own scope.
var scopeStack sync.Map // int64 (goroutine id) -> []*Owner

func scopeFrames(gid int64) []*Owner {
	v, ok := scopeStack.Load(gid)
	if !ok {
		return nil
	}
	return v.([]*Owner)
}

// PushScope makes o the current scope for the calling goroutine.
func PushScope(o *Owner) {
	gid := currentGoroutineID()
	frames := append(scopeFrames(gid), o)
	scopeStack.Store(gid, frames)
}

// PopScope removes the current scope for the calling goroutine.
func PopScope() {
	gid := currentGoroutineID()
	frames := scopeFrames(gid)
	if len(frames) == 0 {
		return
	}
	frames = frames[:len(frames)-1]
	if len(frames) == 0 {
		scopeStack.Delete(gid)
		return
	}
	scopeStack.Store(gid, frames)
}

// CurrentScope returns the Owner currently running on the calling
// goroutine, or nil outside any scope.
func CurrentScope() *Owner {
	frames := scopeFrames(currentGoroutineID())
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}
