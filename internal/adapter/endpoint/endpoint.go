// Package endpoint implements the stream endpoint engine of spec.md: a
// state machine that composes a lower-level transport (LL) with an
// optional filter into one read/write/open/close stream, across
// asynchronous callback boundaries, under a single per-endpoint lock.
//
// This file is the state controller (spec.md §4.1): it owns Endpoint's
// fields and drives Open/Close/Write/the seven lifecycle states.
package endpoint

import (
	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/internal/core/ports"
)

// openRef is the single-use guard for the extra refcount unit the
// engine holds while an asynchronous LL Open call is outstanding
// (spec.md §3 invariant 3, §9 Open Question). Releasing it twice is a
// no-op instead of silently underflowing the refcount.
type openRef struct{ held bool }

func (r *openRef) acquire() { r.held = true }

// release returns true the first time it is called while held, and
// false (a no-op) on any later call — a double-release is a caller
// bug, but made survivable rather than exploding the refcount.
func (r *openRef) release() bool {
	if !r.held {
		return false
	}
	r.held = false
	return true
}

// Endpoint is the composite stream object: one LL, at most one filter,
// plus the lock/timer/runner host services and the bookkeeping
// spec.md §3 describes.
type Endpoint struct {
	o    ports.HostServices
	ll   ports.LL
	flt  ports.Filter
	lock ports.Lock
	tmr  ports.Timer
	run  ports.Runner

	state domain.State

	refcount uint
	freeref  uint
	llOpen   openRef

	openDone  ports.OpenDone
	closeDone ports.CloseDone

	cb ports.Callbacks

	readEnabled    bool
	xmitEnabled    bool
	tmpXmitEnabled bool
	inRead         bool
	llErrOccurred  bool

	deferredOpPending bool
	deferredOpen      bool
	deferredClose     bool
	deferredRead      bool

	// pendingLLCloseFinish is the lock-already-held completion step to
	// run from the deferred-op runner when llClose's LL.Close returned
	// LLCloseImmediate (see lifetime.go's llClose).
	pendingLLCloseFinish func()

	savedXmitErr error

	isClient bool
}

// New constructs a client endpoint, born Closed. The caller drives
// OpeningLL -> OpeningFilter -> Open via Open.
func New(o ports.HostServices, ll ports.LL, flt ports.Filter, cb ports.Callbacks) *Endpoint {
	return alloc(o, ll, flt, true, cb, nil)
}

// NewServer constructs a server endpoint, born OpeningFilter: the
// handshake is pushed by forcing one LL write-ready callback so
// try_connect runs from the write path (spec.md §3 Lifecycle, §9).
func NewServer(o ports.HostServices, ll ports.LL, flt ports.Filter, openDone ports.OpenDone) *Endpoint {
	return alloc(o, ll, flt, false, ports.Callbacks{}, openDone)
}

func alloc(o ports.HostServices, ll ports.LL, flt ports.Filter, isClient bool, cb ports.Callbacks, openDone ports.OpenDone) *Endpoint {
	e := &Endpoint{
		o:        o,
		ll:       ll,
		flt:      flt,
		lock:     o.NewLock(),
		tmr:      o.NewTimer(),
		run:      o.NewRunner(),
		refcount: 1,
		freeref:  1,
		cb:       cb,
		isClient: isClient,
	}
	flt.SetCallbacks(filterCallbacks{e})
	ll.SetCallbacks(llCallbacks{e})

	if isClient {
		e.state = domain.Closed
		return e
	}

	// Server path: run filter setup synchronously (construction is not
	// under contention yet) and bootstrap the handshake via a forced
	// write-ready callback.
	if err := e.flt.Setup(); err != nil {
		e.state = domain.Closed
		return e
	}
	e.openDone = openDone
	e.state = domain.OpeningFilter
	e.tmpXmitEnabled = true
	e.setLLEnables()
	return e
}

// Open is only valid from Closed; otherwise KindBusy (spec.md §4.1).
func (e *Endpoint) Open(done ports.OpenDone) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.state != domain.Closed {
		return domain.NewError("open", domain.KindBusy, e.state, nil)
	}

	if err := e.flt.Setup(); err != nil {
		return domain.NewError("open", domain.KindNoMemory, e.state, err)
	}

	e.inRead = false
	e.deferredRead = false
	e.deferredOpen = false
	e.deferredClose = false
	e.readEnabled = false
	e.xmitEnabled = false
	e.llErrOccurred = false
	e.openDone = done

	status, err := e.ll.Open(e.onLLOpenDone)
	switch status {
	case ports.LLOpenImmediate:
		e.state = domain.OpeningFilter
		e.deferredOpen = true
		e.scheduleDeferredOp()
		return nil
	case ports.LLOpenInProgress:
		e.state = domain.OpeningLL
		e.ref()
		e.llOpen.acquire()
		return nil
	default:
		e.flt.Cleanup()
		return domain.NewError("open", domain.KindCommunication, e.state, err)
	}
}

// Close requests a graceful close. Valid from Open, OpeningLL,
// OpeningFilter; KindBusy otherwise (spec.md §4.1).
func (e *Endpoint) Close(done ports.CloseDone) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.state != domain.Open {
		if e.state.IsOpening() {
			e.iClose(done)
			// The close supersedes the in-flight open; drop the open
			// refcount unit it was holding (spec.md §4.1 tie-break,
			// §9 Open Question — released via the typed guard).
			if e.llOpen.release() {
				e.derefNoUnlock()
			}
			e.openDone = nil
			return nil
		}
		return domain.NewError("close", domain.KindBusy, e.state, nil)
	}
	e.iClose(done)
	return nil
}

// iClose is the internal close entry shared by Close and Free
// (spec.md §4.1/§4.4). Caller holds the lock.
func (e *Endpoint) iClose(done ports.CloseDone) {
	e.closeDone = done
	switch {
	case e.llErrOccurred:
		e.state = domain.ClosingLL
		e.llClose(e.finishCloseLocked)
	case e.flt.LLWritePending():
		e.state = domain.CloseWaitDrain
	default:
		e.state = domain.ClosingFilter
		e.tryClose()
	}
	e.setLLEnables()
}

// Write errs KindBadEndpoint if not Open, or surfaces a saved transmit
// error exactly once (spec.md §6/§7).
func (e *Endpoint) Write(buf []byte) (int, error) {
	e.lock.Lock()
	defer func() {
		e.setLLEnables()
		e.lock.Unlock()
	}()

	if e.state != domain.Open {
		return 0, domain.NewError("write", domain.KindBadEndpoint, e.state, nil)
	}
	if e.savedXmitErr != nil {
		err := e.savedXmitErr
		e.savedXmitErr = nil
		return 0, err
	}

	n, err := e.flt.ULWrite(e.writeDataHandler, buf)
	return n, err
}

func (e *Endpoint) SetReadCallbackEnable(enable bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.state == domain.Closed || e.state == domain.ClosingFilter || e.state == domain.ClosingLL {
		return
	}
	e.readEnabled = enable
	pending := e.flt.ULReadPending()

	switch {
	case e.inRead || e.state.IsOpening() || (pending && !enable):
		// Nothing to do; the read/open handling wakes things up.
	case pending:
		e.inRead = true
		e.deferredRead = true
		e.scheduleDeferredOp()
	default:
		e.setLLEnables()
	}
}

func (e *Endpoint) SetWriteCallbackEnable(enable bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.state == domain.Closed || e.state == domain.ClosingFilter || e.state == domain.ClosingLL {
		return
	}
	if e.xmitEnabled != enable {
		e.xmitEnabled = enable
		e.setLLEnables()
	}
}

func (e *Endpoint) State() domain.State {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.state
}

func (e *Endpoint) RemoteAddr() string {
	if a := e.ll.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (e *Endpoint) RemoteID() string {
	return e.ll.RemoteID()
}

var _ ports.StreamEndpoint = (*Endpoint)(nil)
