// Package runtime supplies the concrete host services (spec.md §5)
// that internal/adapter/endpoint is built against: a mutex, a
// single-shot retry timer, and a deferred-op runner.
package runtime

import "sync"

// Lock is a plain mutual-exclusion lock.
type Lock struct {
	mu sync.Mutex
}

func NewLock() *Lock { return &Lock{} }

func (l *Lock) Lock()   { l.mu.Lock() }
func (l *Lock) Unlock() { l.mu.Unlock() }
