// This file is the deferred-op driver (spec.md §4.5): work that must
// not run on the caller's own stack (to avoid nested locking, or to
// let a synchronous LL completion behave like an asynchronous one) is
// scheduled here and run once, later, by the runner.
package endpoint

import "github.com/thushan/conduit/internal/core/domain"

// scheduleDeferredOp arms a single pending run of runDeferredOp,
// coalescing repeated calls. Caller holds the lock.
func (e *Endpoint) scheduleDeferredOp() {
	if e.deferredOpPending {
		return
	}
	e.deferredOpPending = true
	e.ref()
	e.run.Run(e.runDeferredOp)
}

func (e *Endpoint) runDeferredOp() {
	e.lock.Lock()

	for {
		if e.deferredOpen {
			e.deferredOpen = false
			e.tryConnect()
		}

		if e.deferredClose {
			e.deferredClose = false
			finish := e.pendingLLCloseFinish
			e.pendingLLCloseFinish = nil
			if finish != nil {
				finish()
			}
		}

		if e.deferredRead {
			if e.state != domain.Open {
				break
			}
			e.deferredRead = false

			e.lock.Unlock()
			e.flt.LLWrite(e.readDataHandler, nil)
			e.lock.Lock()

			e.inRead = false
		}

		if !e.deferredRead && !e.deferredOpen && !e.deferredClose {
			break
		}
	}

	e.deferredOpPending = false
	e.setLLEnables()
	e.derefAndUnlock()
}
