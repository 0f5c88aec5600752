package transport

import "net"

// NewPipe returns two already-connected LLs wired directly to each
// other via net.Pipe, for loopback round-trip tests and demos
// (spec.md §8). Pipe I/O is synchronous: a Write on one end blocks
// until the other end has read the bytes.
func NewPipe() (a, b *Stream) {
	ca, cb := net.Pipe()
	return newConnected(ca, "pipe-a"), newConnected(cb, "pipe-b")
}
