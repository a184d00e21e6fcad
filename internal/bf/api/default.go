package api

import "sync/atomic"

// current is the process-default runtime used by code that has no
// Runtime handle of its own, such as the public bf package.
var current atomic.Pointer[Runtime]

func init() {
	current.Store(New(Options{}))
}

// Default returns the process-default runtime.
func Default() *Runtime {
	return current.Load()
}

// SetDefault replaces the process-default runtime and returns the old one.
func SetDefault(r *Runtime) *Runtime {
	return current.Swap(r)
}
