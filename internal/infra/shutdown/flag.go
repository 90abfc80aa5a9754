// Package shutdown provides process termination handling for DocMesh.
package shutdown

import (
	"sync"
	"sync/atomic"
)

// Flag is the process-wide stop token.
//
// Any goroutine may set it, many goroutines read it. Setting is
// idempotent; once a reader has observed it true it will never
// observe it false again.
type Flag struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewFlag creates an unset Flag.
func NewFlag() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Set marks the flag. Safe to call from multiple goroutines and
// safe to call repeatedly.
func (f *Flag) Set() {
	f.set.Store(true)
	f.once.Do(func() { close(f.done) })
}

// IsSet reports whether the flag has been set.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel that is closed once the flag is set.
func (f *Flag) Done() <-chan struct{} {
	return f.done
}
