// Package transport provides net.Conn-backed LL implementations
// (spec.md §6 LL contract): plain TCP, TLS, and an in-process pipe for
// tests, all sharing one core built on top of the standard library's
// net.Conn.
package transport

import (
	"net"
	"sync"

	"github.com/thushan/conduit/internal/core/ports"
	"github.com/thushan/conduit/pkg/pool"
)

const readBufSize = 32 * 1024

type readBuffer struct {
	data [readBufSize]byte
}

func (b *readBuffer) Reset() {}

var bufPool = pool.NewLitePool(func() *readBuffer { return &readBuffer{} })

// dialFunc opens the underlying connection; used by the client-side
// constructors so dialing happens lazily, inside Open, off the
// caller's goroutine.
type dialFunc func() (net.Conn, error)

// Stream is a ports.LL built on any net.Conn. An already-connected
// Stream (the accept side) starts its loops immediately; a dialing
// Stream starts them once Open's goroutine has a connection in hand.
type Stream struct {
	mu   sync.Mutex
	conn net.Conn
	dial dialFunc

	cb       ports.LLCallbacks
	remoteID string

	startOnce sync.Once
	closeOnce sync.Once
	closed    chan struct{}

	readWake  wake
	writeWake wake

	pendingBuf *readBuffer
	pendingOff int
	pendingLen int
}

func newStream(conn net.Conn, dial dialFunc, remoteID string) *Stream {
	return &Stream{
		conn:      conn,
		dial:      dial,
		remoteID:  remoteID,
		closed:    make(chan struct{}),
		readWake:  newWake(),
		writeWake: newWake(),
	}
}

// newConnected builds a Stream around an already-open net.Conn (the
// accept side of a listener) and starts its loops right away, since
// the engine's server-side alloc never calls LL.Open (spec.md §3).
func newConnected(conn net.Conn, remoteID string) *Stream {
	s := newStream(conn, nil, remoteID)
	s.startLoops()
	return s
}

// newDialing builds a Stream that connects lazily, the first (and
// only) time Open is called.
func newDialing(dial dialFunc, remoteID string) *Stream {
	return newStream(nil, dial, remoteID)
}

func (s *Stream) startLoops() {
	s.startOnce.Do(func() {
		go s.readLoop()
		go s.writeNotifyLoop()
	})
}

func (s *Stream) SetCallbacks(cb ports.LLCallbacks) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

func (s *Stream) Open(done func(err error)) (ports.LLOpenStatus, error) {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		s.startLoops()
		return ports.LLOpenImmediate, nil
	}
	dial := s.dial
	s.mu.Unlock()

	go func() {
		conn, err := dial()
		if err != nil {
			done(err)
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.startLoops()
		done(nil)
	}()
	return ports.LLOpenInProgress, nil
}

func (s *Stream) Close(done func()) ports.LLCloseStatus {
	s.closeOnce.Do(func() { close(s.closed) })

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return ports.LLCloseImmediate
}

func (s *Stream) Write(buf []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return 0, net.ErrClosed
	}
	return conn.Write(buf)
}

func (s *Stream) SetReadCallbackEnable(enable bool) {
	if enable {
		s.readWake.arm()
	}
}

func (s *Stream) SetWriteCallbackEnable(enable bool) {
	if enable {
		s.writeWake.arm()
	}
}

func (s *Stream) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

func (s *Stream) RemoteID() string { return s.remoteID }

// readLoop delivers one Read's worth of bytes across as many
// ReadCallback calls as the engine needs to drain it (the engine may
// consume less than it's handed, per the LL.ReadCallback contract),
// blocking on readWake between reads the way a level-triggered poll
// loop blocks in its event wait.
func (s *Stream) readLoop() {
	for {
		select {
		case <-s.closed:
			return
		case <-s.readWake:
		}

		if s.pendingLen == 0 {
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()

			buf := bufPool.Get()
			n, err := conn.Read(buf.data[:])
			if err != nil {
				bufPool.Put(buf)
				s.cb.ReadCallback(err, nil)
				return
			}
			s.pendingBuf = buf
			s.pendingOff = 0
			s.pendingLen = n
		}

		consumed := s.cb.ReadCallback(nil, s.pendingBuf.data[s.pendingOff:s.pendingOff+s.pendingLen])
		s.pendingOff += consumed
		s.pendingLen -= consumed

		if s.pendingLen == 0 {
			bufPool.Put(s.pendingBuf)
			s.pendingBuf = nil
		}
		// If pendingLen > 0 the engine didn't drain everything it was
		// handed (ULReadPending); it re-arms us via
		// SetReadCallbackEnable(true) once it wants the remainder,
		// same as any other read-enable request.
	}
}

// writeNotifyLoop fires WriteCallback once per arm. A plain socket
// (TCP or TLS) is treated as always write-ready, so there's no actual
// readiness wait here — the simplification this package makes in
// place of select/epoll.
func (s *Stream) writeNotifyLoop() {
	for {
		select {
		case <-s.closed:
			return
		case <-s.writeWake:
		}
		s.cb.WriteCallback()
	}
}

var _ ports.LL = (*Stream)(nil)
