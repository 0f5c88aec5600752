package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/thushan/conduit/internal/adapter/endpoint"
	"github.com/thushan/conduit/internal/adapter/transport"
	"github.com/thushan/conduit/internal/config"
	"github.com/thushan/conduit/internal/core/ports"
)

// activeListener is a running net.Listener plus the config it was
// built from, kept around so Stop can close it.
type activeListener struct {
	cfg      config.ListenerConfig
	listener net.Listener
}

// startListener opens a net.Listener for lc and launches its accept
// loop on the application's errgroup. The accept loop never returns an
// error to the group: a per-connection setup failure is logged and the
// loop goes on, while any Accept error (including the listener being
// closed) ends the loop with a nil result.
func (a *Application) startListener(ctx context.Context, lc config.ListenerConfig) (*activeListener, error) {
	var ln net.Listener
	var err error

	switch lc.Network {
	case "tcp", "":
		ln, err = net.Listen("tcp", lc.Address)
	case "tls":
		tlsCfg, tlsErr := buildServerTLSConfig(lc.TLS)
		if tlsErr != nil {
			return nil, tlsErr
		}
		if tlsCfg == nil {
			return nil, fmt.Errorf("listener %q: network tls requires tls.enabled", lc.Name)
		}
		ln, err = tls.Listen("tcp", lc.Address, tlsCfg)
	default:
		return nil, fmt.Errorf("listener %q: unknown network %q", lc.Name, lc.Network)
	}
	if err != nil {
		return nil, err
	}

	al := &activeListener{cfg: lc, listener: ln}
	a.group.Go(func() error {
		return a.acceptLoop(ctx, al)
	})
	a.logger.Info("listener open", "name", lc.Name, "network", lc.Network, "address", lc.Address)
	return al, nil
}

func (a *Application) acceptLoop(ctx context.Context, al *activeListener) error {
	lc := al.cfg
	for {
		conn, err := al.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			a.logger.Warn("accept failed", "name", lc.Name, "error", err)
			return nil
		}

		remoteIP := conn.RemoteAddr().String()
		if !a.acceptLimiter.Allow(remoteIP) {
			_ = conn.Close()
			continue
		}

		if err := a.acceptConn(lc, conn); err != nil {
			a.logger.Warn("endpoint setup failed", "name", lc.Name, "remote", remoteIP, "error", err)
			_ = conn.Close()
		}
	}
}

func (a *Application) acceptConn(lc config.ListenerConfig, conn net.Conn) error {
	flt, err := buildFilter(lc.Filter, lc.SecretboxKeyHex, lc.TelnetOptions)
	if err != nil {
		return err
	}

	var stream *transport.Stream
	if tlsConn, ok := conn.(*tls.Conn); ok {
		stream = transport.NewTLSConn(tlsConn)
	} else {
		stream = transport.NewTCPConn(conn)
	}

	var ep ports.StreamEndpoint
	ep = endpoint.NewServer(a.host, stream, flt, func(err error) {
		a.publish(lc.Name, "listener", ep, err)
		if err != nil {
			a.logger.Warn("listener endpoint open failed", "name", lc.Name, "error", err)
		}
	})

	a.registerEndpoint(fmt.Sprintf("%s/%s", lc.Name, conn.RemoteAddr()), ep)
	a.publish(lc.Name, "listener", ep, nil)
	return nil
}
