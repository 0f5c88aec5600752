package transport

// wake is a single-slot notification channel used to arm the read and
// write loops. SetReadCallbackEnable/SetWriteCallbackEnable(true) is an
// edge-triggered arm request (the engine always disables before
// processing a callback and re-enables only if it wants another one,
// spec.md §4.2) so a non-blocking send that coalesces multiple arms
// into one pending wake is exactly what's needed — no buffering beyond
// "there is at least one arm outstanding".
type wake chan struct{}

func newWake() wake { return make(wake, 1) }

func (w wake) arm() {
	select {
	case w <- struct{}{}:
	default:
	}
}
