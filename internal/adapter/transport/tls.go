package transport

import (
	"crypto/tls"
	"net"
)

// DialTLS builds a client-side LL that dials addr and performs the TLS
// handshake the first time Open is called, grounded on
// iatsiuk-r-cli/internal/conn.go's dialNet (tls.Dialer over a plain
// net.Dialer for the TLS case).
func DialTLS(addr string, cfg *tls.Config) *Stream {
	dialer := tls.Dialer{Config: cfg}
	return newDialing(func() (net.Conn, error) {
		return dialer.Dial("tcp", addr)
	}, addr)
}

// NewTLSConn wraps an already-accepted *tls.Conn (e.g. from
// tls.NewListener's Accept) as a server-side LL. The handshake itself
// runs lazily on the connection's first Read/Write, same as any other
// crypto/tls server connection; CheckOpenDone on a filter installed
// above this LL is where a caller verifies the negotiated state.
func NewTLSConn(conn *tls.Conn) *Stream {
	return newConnected(conn, conn.RemoteAddr().String())
}
