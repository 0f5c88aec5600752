// This file drives the filter handshake (spec.md §4.2/§4.6): the
// retry-until-done loop shared by opening and closing, and the timer
// callback that re-enters it.
package endpoint

import "github.com/thushan/conduit/internal/core/domain"

// tryConnect pushes the open handshake one step. Caller holds the lock.
func (e *Endpoint) tryConnect() {
	if e.state != domain.OpeningFilter {
		// Racing timer/read/write callbacks can all land here; only the
		// first to find the filter still mid-handshake should act.
		return
	}

	e.ll.SetWriteCallbackEnable(false)
	e.ll.SetReadCallbackEnable(false)

	result := e.flt.TryConnect()
	switch result.Outcome {
	case domain.ConnectInProgress:
		return
	case domain.ConnectRetry:
		e.tmr.Start(result.Timeout, e.onTimerFire)
		return
	}

	err := result.Err
	if err == nil {
		err = e.flt.CheckOpenDone()
	}

	if err != nil {
		e.state = domain.ClosingLL
		cause := err
		e.llClose(func() { e.finishOpenLocked(cause) })
	} else {
		e.finishOpenLocked(nil)
	}
}

// tryClose pushes the close handshake one step. Caller holds the lock.
func (e *Endpoint) tryClose() {
	e.ll.SetWriteCallbackEnable(false)
	e.ll.SetReadCallbackEnable(false)

	result := e.flt.TryDisconnect()
	switch result.Outcome {
	case domain.ConnectInProgress:
		return
	case domain.ConnectRetry:
		e.tmr.Start(result.Timeout, e.onTimerFire)
		return
	}

	// A disconnect error still proceeds to LL close; there is no
	// separate failure path for tearing a connection down.
	e.state = domain.ClosingLL
	e.llClose(e.finishCloseLocked)
}

func (e *Endpoint) onTimerFire() {
	e.lock.Lock()

	switch e.state {
	case domain.OpeningFilter:
		e.tryConnect()
	case domain.ClosingFilter:
		e.tryClose()
	case domain.Open:
		if e.flt.HasTimeout() {
			e.lock.Unlock()
			e.flt.Timeout()
			e.lock.Lock()
		}
	}

	e.setLLEnables()
	e.lock.Unlock()
}
