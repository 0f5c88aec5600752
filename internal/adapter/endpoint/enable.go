// This file is the enable arbiter (spec.md §4.3): it derives the LL's
// level-triggered read/write interest from the engine's own intent and
// the filter's backlog, and is the single place that ever turns those
// interests on (callbacks are responsible for turning themselves off).
package endpoint

import "github.com/thushan/conduit/internal/core/domain"

func (e *Endpoint) setLLEnables() {
	if e.flt.LLWritePending() || e.xmitEnabled || e.tmpXmitEnabled {
		e.ll.SetWriteCallbackEnable(true)
	}

	wantRead := (e.readEnabled && !e.flt.ULReadPending()) || e.flt.LLReadNeeded()
	wantRead = (wantRead && e.state == domain.Open) ||
		e.state == domain.OpeningFilter ||
		e.state == domain.ClosingFilter

	if wantRead && !e.inRead {
		e.ll.SetReadCallbackEnable(true)
	}
}
