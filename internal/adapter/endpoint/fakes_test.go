package endpoint_test

import (
	"net"
	"sync"

	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/internal/core/ports"
)

// fakeLL is a minimal ports.LL double. Open/Close record the done
// callback they were given so a test can fire it to simulate an
// asynchronous transport completion.
type fakeLL struct {
	mu sync.Mutex

	openStatus ports.LLOpenStatus
	openErr    error
	openDone   func(error)
	openCalls  int

	closeStatus ports.LLCloseStatus
	closeDone   func()
	closeCalls  int

	writeErr error
	writes   [][]byte
}

func (f *fakeLL) Write(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), buf...))
	return len(buf), nil
}

func (f *fakeLL) Open(done func(error)) (ports.LLOpenStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	f.openDone = done
	return f.openStatus, f.openErr
}

func (f *fakeLL) Close(done func()) ports.LLCloseStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closeDone = done
	return f.closeStatus
}

func (f *fakeLL) SetReadCallbackEnable(bool)    {}
func (f *fakeLL) SetWriteCallbackEnable(bool)   {}
func (f *fakeLL) SetCallbacks(ports.LLCallbacks) {}
func (f *fakeLL) RemoteAddr() net.Addr          { return nil }
func (f *fakeLL) RemoteID() string              { return "fake-ll" }

func (f *fakeLL) fireOpenDone(err error) {
	f.mu.Lock()
	done := f.openDone
	f.mu.Unlock()
	done(err)
}

func (f *fakeLL) fireCloseDone() {
	f.mu.Lock()
	done := f.closeDone
	f.mu.Unlock()
	done()
}

// fakeFilter is a minimal ports.Filter double that passes bytes
// through untouched and reports a configurable connect/disconnect
// outcome.
type fakeFilter struct {
	mu sync.Mutex

	setupErr         error
	checkOpenErr     error
	connectResult    domain.ConnectResult
	disconnectResult domain.ConnectResult
	cleanedUp        bool
}

func (f *fakeFilter) Setup() error { return f.setupErr }

func (f *fakeFilter) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanedUp = true
}

func (f *fakeFilter) ULReadPending() bool           { return false }
func (f *fakeFilter) LLWritePending() bool          { return false }
func (f *fakeFilter) LLReadNeeded() bool            { return false }
func (f *fakeFilter) CheckOpenDone() error          { return f.checkOpenErr }
func (f *fakeFilter) TryConnect() domain.ConnectResult    { return f.connectResult }
func (f *fakeFilter) TryDisconnect() domain.ConnectResult { return f.disconnectResult }

func (f *fakeFilter) ULWrite(handler ports.ULHandler, buf []byte) (int, error) {
	return handler(buf)
}

func (f *fakeFilter) LLWrite(handler ports.LLHandler, buf []byte) (int, error) {
	return handler(buf)
}

func (f *fakeFilter) LLUrgent()      {}
func (f *fakeFilter) HasTimeout() bool { return false }
func (f *fakeFilter) Timeout()        {}
func (f *fakeFilter) SetCallbacks(ports.FilterCallbacks) {}

func (f *fakeFilter) wasCleanedUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleanedUp
}
