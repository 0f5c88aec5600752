// This file is the lifetime manager (spec.md §4.4): the two
// independent reference counts, and final teardown.
package endpoint

import (
	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/internal/core/ports"
)

// ref adds one strong obligation to refcount. Caller holds the lock.
func (e *Endpoint) ref() {
	e.refcount++
}

// deref releases one strong obligation without unlocking. It must only
// be called when the refcount is guaranteed not to reach zero here
// (i.e. the caller still holds another obligation, or will release the
// lock itself via derefAndUnlock immediately after).
func (e *Endpoint) deref() {
	if e.refcount == 0 {
		panic("endpoint: refcount underflow")
	}
	e.refcount--
}

// derefNoUnlock is deref, named at call sites where "no unlock happens
// here" needs to be obvious (the close path, where the lock is held by
// an outer defer).
func (e *Endpoint) derefNoUnlock() {
	e.deref()
}

// derefAndUnlock releases one strong obligation and drops the lock. If
// that was the last obligation, teardown begins.
func (e *Endpoint) derefAndUnlock() {
	if e.refcount == 0 {
		panic("endpoint: refcount underflow")
	}
	e.refcount--
	count := e.refcount
	e.lock.Unlock()

	if count != 0 {
		return
	}

	// A timer may still be armed (or mid-fire); stop it before freeing
	// anything else so a concurrent fire never touches freed state.
	stoppedInline := e.tmr.Stop(e.finishFree)
	if stoppedInline {
		e.finishFree()
	}
}

// finishFree releases what's left once every reference is gone: the
// timer is already stopped by the caller; the LL and filter are
// already closed/cleaned up by whichever close path ran last. Only the
// runner's background goroutine still needs stopping.
func (e *Endpoint) finishFree() {
	e.run.Close()
}

// Free decrements the user-visible reference count. The final release
// triggers internal close if not already closing, then drops the
// initial strong reference (spec.md §4.4).
func (e *Endpoint) Free() {
	e.lock.Lock()

	if e.freeref == 0 {
		panic("endpoint: freeref underflow")
	}
	e.freeref--
	if e.freeref > 0 {
		e.lock.Unlock()
		return
	}

	switch {
	case e.state == domain.ClosingFilter || e.state == domain.ClosingLL:
		// Already closing; the user discarded the object, so suppress
		// the completion callback they'll never observe.
		e.closeDone = nil
	case e.state.IsOpening():
		e.iClose(nil)
		if e.llOpen.release() {
			e.deref()
		}
	case e.state != domain.Closed:
		e.iClose(nil)
	}

	// Lose the initial reference so the object is freed once every
	// outstanding LL call / deferred op has also released its own.
	e.derefAndUnlock()
}

// Ref increments the user-visible reference count.
func (e *Endpoint) Ref() {
	e.lock.Lock()
	e.freeref++
	e.lock.Unlock()
}

// llClose issues the LL close. finishLocked is the completion step
// (finishOpenLocked or finishCloseLocked, bound to whichever outcome
// this close represents) and assumes the lock is already held when it
// runs. Matching genio's ll_close: a synchronous LL completion is
// still routed through the deferred-op runner rather than finishing
// inline, so finishLocked never nests inside the caller that requested
// the close (spec.md §4 SUPPLEMENTED, genio_base.c ll_close).
func (e *Endpoint) llClose(finishLocked func()) {
	done := func() {
		e.lock.Lock()
		finishLocked()
		e.derefAndUnlock()
	}

	status := e.ll.Close(done)
	if status == ports.LLCloseImmediate {
		e.deferredClose = true
		e.pendingLLCloseFinish = finishLocked
		e.scheduleDeferredOp()
		return
	}
	e.ref()
}
