package runtime

import (
	"sync"
	"time"
)

// Timer is a single-shot, restartable retry timer built on
// time.AfterFunc. Starting it again before it fires cancels the
// previous arm; Stop reports whether it beat the fire, and otherwise
// runs done once the in-flight fire's handler has returned.
type Timer struct {
	mu   sync.Mutex
	t    *time.Timer
	fire chan struct{}
}

func NewTimer() *Timer { return &Timer{} }

func (t *Timer) Start(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
	}

	fire := make(chan struct{})
	t.fire = fire
	t.t = time.AfterFunc(d, func() {
		fn()
		close(fire)
	})
}

func (t *Timer) Stop(done func()) bool {
	t.mu.Lock()
	tm, fire := t.t, t.fire
	t.mu.Unlock()

	if tm == nil {
		return true
	}
	if tm.Stop() {
		t.mu.Lock()
		if t.t == tm {
			t.t = nil
		}
		t.mu.Unlock()
		return true
	}

	go func() {
		<-fire
		done()
	}()
	return false
}
