package ports

import (
	"time"

	"github.com/thushan/conduit/internal/core/domain"
)

// ULHandler is the callback a filter drives with encoded bytes
// destined for the LL (ul_write's handler, spec.md §6).
type ULHandler func(buf []byte) (consumed int, err error)

// LLHandler is the callback a filter drives with decoded bytes destined
// for the user (ll_write's handler, spec.md §6).
type LLHandler func(buf []byte) (consumed int, err error)

// Filter is the byte-stream transform contract (spec.md §6). A filter
// sits between the LL and the user. The engine calls its Filter
// unconditionally and does not accept a nil one; "no filter" is
// expressed by installing internal/adapter/filter.Passthrough, so the
// engine code has one path.
type Filter interface {
	// Setup/Cleanup run once per open attempt.
	Setup() error
	Cleanup()

	// ULReadPending reports bytes decoded but not yet delivered to the user.
	ULReadPending() bool
	// LLWritePending reports bytes encoded but not yet written to the LL.
	LLWritePending() bool
	// LLReadNeeded reports that the filter needs more raw bytes to progress.
	LLReadNeeded() bool

	// CheckOpenDone does final handshake validation (e.g. certificate checks).
	CheckOpenDone() error

	// TryConnect/TryDisconnect drive the handshake one step.
	TryConnect() domain.ConnectResult
	TryDisconnect() domain.ConnectResult

	// ULWrite accepts a user payload, encodes as much of it as fits the
	// filter's outgoing buffer, and pushes encoded bytes through handler.
	// consumed is how much of buf the filter accepted.
	ULWrite(handler ULHandler, buf []byte) (consumed int, err error)
	// LLWrite accepts raw LL bytes and pushes decoded payload through handler.
	LLWrite(handler LLHandler, buf []byte) (consumed int, err error)

	// LLUrgent handles an out-of-band notification from the LL.
	LLUrgent()

	// Timeout is an optional periodic tick while Open; filters that don't
	// need one may leave HasTimeout false.
	HasTimeout() bool
	Timeout()

	// SetCallbacks publishes the filter's demand signals to the engine.
	SetCallbacks(cb FilterCallbacks)
}

// FilterCallbacks are the callbacks a filter invokes into the engine.
type FilterCallbacks interface {
	// OutputReady signals the filter has LL-bound bytes ready; the engine
	// responds by enabling LL write interest.
	OutputReady()
	// StartTimer requests the engine arm its timer for d.
	StartTimer(d time.Duration)
}
