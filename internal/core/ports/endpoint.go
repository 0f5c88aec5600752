package ports

import "github.com/thushan/conduit/internal/core/domain"

// ReadCallback delivers bytes to the user, or err!=nil when the LL has
// failed. It returns how many bytes of buf the user consumed.
type ReadCallback func(err error, buf []byte) (consumed int)

// WriteCallback fires when the endpoint is ready to accept more writes
// (xmit_enabled and no filter backlog, spec.md §4.2).
type WriteCallback func()

// UrgentCallback fires on an out-of-band condition, after the filter's
// LLUrgent has observed it.
type UrgentCallback func()

// OpenDone fires exactly once per open attempt (spec.md §3 invariant 2).
type OpenDone func(err error)

// CloseDone fires exactly once per close (spec.md §3 invariant 2).
type CloseDone func()

// Callbacks are the user callbacks an Endpoint is constructed with.
type Callbacks struct {
	Read   ReadCallback
	Write  WriteCallback
	Urgent UrgentCallback
}

// StreamEndpoint is the stable, user-facing wire of the core
// (spec.md §6 "Endpoint-facing user API").
type StreamEndpoint interface {
	// Write errs KindBadEndpoint if not Open; surfaces a saved transmit
	// error exactly once if one was recorded by a prior drain cycle.
	Write(buf []byte) (n int, err error)

	// Open is only valid from Closed; otherwise KindBusy.
	Open(done OpenDone) error
	// Close is valid from Open, OpeningLL, OpeningFilter; otherwise KindBusy.
	Close(done CloseDone) error

	// Free decrements the user-visible reference count. The last
	// release initiates close (if needed) and final teardown.
	Free()
	// Ref increments the user-visible reference count.
	Ref()

	SetReadCallbackEnable(enable bool)
	SetWriteCallbackEnable(enable bool)

	// State reports the current lifecycle state (read without the lock
	// held is racy with respect to the very next transition, but safe:
	// State is only ever advanced monotonically within one handshake).
	State() domain.State

	RemoteAddr() string
	RemoteID() string
}
