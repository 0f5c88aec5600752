package ports

import "time"

// Lock is the mutual-exclusion primitive the engine protects its state
// with (spec.md §3 "lock"). Implemented by internal/runtime.Lock.
type Lock interface {
	Lock()
	Unlock()
}

// Timer is the single-shot retry timer used to re-drive non-progressing
// filter handshakes (spec.md §4.6). Implemented by internal/runtime.Timer.
type Timer interface {
	// Start arms the timer to fire fn after d, cancelling any previous arm.
	Start(d time.Duration, fn func())
	// Stop cancels a pending fire. It reports true if the timer was
	// stopped before firing, false if it had already fired (or is
	// currently firing) and done will be invoked once that fire's
	// handler returns.
	Stop(done func()) (stoppedBeforeFire bool)
}

// Runner is the deferred-op executor (spec.md §3 "runner", §4.5). A
// submitted function runs later, outside the caller's stack and
// outside any lock the caller may hold. Implemented by
// internal/runtime.Runner.
type Runner interface {
	Run(fn func())
	// Close stops the runner's background goroutine. Safe to call once
	// no further Run calls will be made (i.e. during final teardown).
	Close()
}

// HostServices bundles the primitives §3/§5 require an Endpoint to be
// supplied with.
type HostServices interface {
	NewLock() Lock
	NewTimer() Timer
	NewRunner() Runner
}
