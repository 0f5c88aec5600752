// This file is the event router (spec.md §4.2): it adapts the LL's and
// the filter's callback shapes onto the engine, and carries the two
// open/close completion steps every path funnels through.
package endpoint

import (
	"time"

	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/internal/core/ports"
)

// llCallbacks adapts ports.LLCallbacks onto an Endpoint.
type llCallbacks struct{ e *Endpoint }

func (c llCallbacks) ReadCallback(readErr error, buf []byte) int {
	return c.e.llRead(readErr, buf)
}

func (c llCallbacks) WriteCallback() {
	c.e.llWriteReady()
}

func (c llCallbacks) UrgentCallback() {
	c.e.llUrgent()
}

// filterCallbacks adapts ports.FilterCallbacks onto an Endpoint.
type filterCallbacks struct{ e *Endpoint }

func (c filterCallbacks) OutputReady() {
	// Called synchronously from within a filter method the engine is
	// already holding the lock for; no locking here.
	c.e.ll.SetWriteCallbackEnable(true)
}

func (c filterCallbacks) StartTimer(d time.Duration) {
	c.e.lock.Lock()
	if c.e.state == domain.Open {
		c.e.tmr.Start(d, c.e.onTimerFire)
	}
	c.e.lock.Unlock()
}

// onLLOpenDone is passed to ll.Open; it fires once, possibly from a
// different goroutine than the one that called Open. It races Close/Free
// for ownership of the llOpen guard: whichever reaches release() first
// consumes the refcount unit Open acquired for the in-flight call, and
// the other is a no-op (spec.md §9 Open Question). A Close/Free that
// wins the race has already moved the endpoint off OpeningLL, so a late
// completion must not advance or finish an open that no longer exists.
func (e *Endpoint) onLLOpenDone(err error) {
	e.lock.Lock()

	released := e.llOpen.release()

	if e.state == domain.OpeningLL {
		if err != nil {
			e.finishOpenLocked(err)
		} else {
			e.state = domain.OpeningFilter
			e.tryConnect()
			e.setLLEnables()
		}
	}

	if released {
		e.derefAndUnlock()
		return
	}
	e.lock.Unlock()
}

// finishCloseLocked completes a close: filter teardown, state to
// Closed, then the user's close_done outside the lock. Caller holds
// the lock and gets it back.
func (e *Endpoint) finishCloseLocked() {
	e.flt.Cleanup()
	e.state = domain.Closed
	if e.closeDone != nil {
		done := e.closeDone
		e.closeDone = nil
		e.lock.Unlock()
		done()
		e.lock.Lock()
	}
}

// finishOpenLocked completes an open attempt, successful or not.
// Caller holds the lock and gets it back.
func (e *Endpoint) finishOpenLocked(err error) {
	if err != nil {
		e.state = domain.Closed
		e.flt.Cleanup()
	} else {
		e.state = domain.Open
	}
	if e.openDone != nil {
		done := e.openDone
		e.openDone = nil
		e.lock.Unlock()
		done(err)
		e.lock.Lock()
	}
}

// readDataHandler is the LLHandler the filter drives with decoded
// bytes bound for the user (spec.md §6).
func (e *Endpoint) readDataHandler(buf []byte) (int, error) {
	if e.state != domain.Open || !e.readEnabled || e.cb.Read == nil {
		return 0, nil
	}
	return e.cb.Read(nil, buf), nil
}

// writeDataHandler is the ULHandler the filter drives with
// encoded bytes bound for the LL (spec.md §6).
func (e *Endpoint) writeDataHandler(buf []byte) (int, error) {
	return e.ll.Write(buf)
}

// llRead is the LL's read callback. readErr!=nil means the transport
// has failed; otherwise buf holds raw bytes still to be consumed.
func (e *Endpoint) llRead(readErr error, buf []byte) int {
	e.lock.Lock()
	e.ll.SetReadCallbackEnable(false)

	if readErr != nil {
		// Recorded here, before any user callback, so the user can see
		// and react to it (e.g. by closing) during that callback.
		e.readEnabled = false
		e.llErrOccurred = true

		switch {
		case e.state == domain.OpeningFilter || e.state == domain.OpeningLL:
			e.state = domain.ClosingLL
			cause := readErr
			e.llClose(func() { e.finishOpenLocked(cause) })
		case e.state == domain.CloseWaitDrain || e.state == domain.ClosingFilter:
			e.state = domain.ClosingLL
			e.llClose(e.finishCloseLocked)
		case e.cb.Read != nil:
			e.lock.Unlock()
			e.cb.Read(readErr, nil)
			e.lock.Lock()
		default:
			e.iClose(nil)
		}

		e.setLLEnables()
		e.lock.Unlock()
		return 0
	}

	if e.inRead {
		// A deferred read is already draining the filter; let it run.
		e.lock.Unlock()
		return 0
	}

	consumed := 0
	if len(buf) > 0 {
		e.inRead = true
		e.lock.Unlock()
		n, fltErr := e.flt.LLWrite(e.readDataHandler, buf)
		e.lock.Lock()
		e.inRead = false
		consumed = n

		// A filter error while decoding LL bytes on an Open endpoint is
		// handled like a dead LL: llErrOccurred is set and the endpoint
		// is force-closed (no close-done callback is delivered).
		if fltErr != nil && e.state == domain.Open {
			e.readEnabled = false
			e.llErrOccurred = true
			e.iClose(nil)
		}

		if e.state == domain.OpeningFilter {
			e.tryConnect()
		}
		if e.state == domain.ClosingFilter {
			e.tryClose()
		}
	}

	e.setLLEnables()
	e.lock.Unlock()
	return consumed
}

// llWriteReady is the LL's write-ready callback.
func (e *Endpoint) llWriteReady() {
	e.lock.Lock()
	e.ll.SetWriteCallbackEnable(false)

	if e.flt.LLWritePending() {
		if _, err := e.flt.ULWrite(e.writeDataHandler, nil); err != nil {
			e.savedXmitErr = err
		}
	}

	if e.state == domain.CloseWaitDrain && !e.flt.LLWritePending() {
		e.state = domain.ClosingFilter
	}
	if e.state == domain.OpeningFilter {
		e.tryConnect()
	}
	if e.state == domain.ClosingFilter {
		e.tryClose()
	}
	if e.state != domain.OpeningFilter && !e.flt.LLWritePending() && e.xmitEnabled {
		if e.cb.Write != nil {
			e.lock.Unlock()
			e.cb.Write()
			e.lock.Lock()
		}
	}

	e.tmpXmitEnabled = false

	e.setLLEnables()
	e.lock.Unlock()
}

// llUrgent is the LL's out-of-band callback. The filter observes it
// first (a real filter may consume it entirely); the user is still
// notified, matching a passthrough filter's behaviour. The filter call
// runs under the lock like every other filter method site; the user
// callback runs outside it like every other user callback site.
func (e *Endpoint) llUrgent() {
	e.lock.Lock()
	e.flt.LLUrgent()
	cb := e.cb.Urgent
	e.lock.Unlock()

	if cb != nil {
		cb()
	}
}

var _ ports.LLCallbacks = llCallbacks{}
var _ ports.FilterCallbacks = filterCallbacks{}
